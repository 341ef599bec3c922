//go:build fuzz

package main

// The fuzz build runs the decode directly in the calling context,
// trading crash-safety for letting a fault-injection front end
// observe raw panics instead of the recovered CodeAssert mapping.
func runIsolated(fn func() error) error {
	return fn()
}
