//go:build !ios && !android && (amd64 || arm64) && !cgo

package main

// When cgo is disabled, capi.go (which declares main for the c-shared
// build) is excluded; this stub keeps the package compilable so the
// pure-Go files and their tests still build.
func main() {}
