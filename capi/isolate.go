//go:build !ios && !android && (amd64 || arm64) && !fuzz

package main

import (
	"fmt"

	"github.com/okezie/mp4parse"
)

// runIsolated executes fn on its own goroutine and joins it before
// returning, preserving synchronous call semantics. The goroutine is
// a fault domain: a panic raised while decoding untrusted bytes is
// recovered at this boundary and reported as CodeAssert instead of
// unwinding into the calling C thread.
func runIsolated(fn func() error) error {
	errc := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errc <- &mp4parse.Error{
					Code: mp4parse.CodeAssert,
					Op:   "read",
					Msg:  fmt.Sprintf("panic during parse: %v", r),
				}
			}
		}()
		errc <- fn()
	}()
	return <-errc
}
