// Package handles maps opaque uintptr tokens to Go objects so that no
// Go pointer ever crosses the C boundary.
//
// The C side of the parser API holds an mp4parse_parser*. Handing out
// a real Go pointer there would violate the cgo pointer-passing rules,
// so the capi layer registers each parser here and returns the
// resulting token instead. The token is pointer-sized and meaningless
// to C beyond round-tripping it back into parser calls.
package handles

import "sync"

var (
	mu      sync.RWMutex
	objects = make(map[uintptr]any)
	nextID  uintptr = 1
)

// Register stores v and returns a token for it. Tokens are never
// reused for the lifetime of the process, so a stale token from a
// freed parser can only miss, not alias a newer one.
//
// Thread-safe.
func Register(v any) uintptr {
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	objects[id] = v
	return id
}

// Lookup returns the object a token was registered for, or nil for an
// unknown token.
//
// Thread-safe.
func Lookup(id uintptr) any {
	mu.RLock()
	defer mu.RUnlock()
	return objects[id]
}

// Unregister drops a token, letting its object be collected. Called
// exactly once per handle, from the teardown entry point.
//
// Thread-safe.
func Unregister(id uintptr) {
	mu.Lock()
	defer mu.Unlock()
	delete(objects, id)
}

// Count returns the number of live tokens. Used by tests to check for
// leaks.
//
// Thread-safe.
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(objects)
}
