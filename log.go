package mp4parse

import "sync"

// LogFunc receives debug narration from the box walker: one line per
// box visited, in printf form.
type LogFunc func(format string, args ...any)

var (
	logMu sync.Mutex
	logFn LogFunc
)

// SetLogCallback installs a debug log hook for the walker. Pass nil to
// disable logging, which is the default. The hook may be called from
// whichever goroutine drives a parse, but never from more than one at
// a time for a single parse.
func SetLogCallback(fn LogFunc) {
	logMu.Lock()
	logFn = fn
	logMu.Unlock()
}

func logf(format string, args ...any) {
	logMu.Lock()
	fn := logFn
	logMu.Unlock()
	if fn != nil {
		fn(format, args...)
	}
}
