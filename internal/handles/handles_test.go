package handles

import (
	"sync"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	type parserStub struct {
		poisoned bool
		tracks   int
	}

	p := &parserStub{tracks: 2}
	token := Register(p)

	if token == 0 {
		t.Error("Register should return a non-zero token")
	}

	got := Lookup(token)
	if got == nil {
		t.Fatal("Lookup returned nil for a live token")
	}

	gotParser, ok := got.(*parserStub)
	if !ok {
		t.Fatalf("Lookup returned wrong type: %T", got)
	}
	if gotParser != p {
		t.Errorf("Lookup returned a different object: %+v", gotParser)
	}
}

func TestUnregister(t *testing.T) {
	token := Register("parser")

	if Lookup(token) == nil {
		t.Error("expected value before Unregister")
	}

	Unregister(token)

	if Lookup(token) != nil {
		t.Error("expected nil after Unregister")
	}
}

func TestLookupStaleToken(t *testing.T) {
	// A token that was never handed out misses rather than aliasing.
	if got := Lookup(999999); got != nil {
		t.Errorf("Lookup of unknown token returned %v", got)
	}
}

func TestTokensAreNeverReused(t *testing.T) {
	seen := make(map[uintptr]bool)

	for i := 0; i < 1000; i++ {
		token := Register(i)
		if seen[token] {
			t.Fatalf("token %d was returned twice", token)
		}
		seen[token] = true
		// Freeing must not put the token back into circulation.
		Unregister(token)
	}
}

func TestConcurrentAccess(t *testing.T) {
	const goroutines = 50
	const ops = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				token := Register(&struct{ id, seq int }{id, j})
				if Lookup(token) == nil {
					t.Errorf("Lookup returned nil for token %d", token)
				}
				Unregister(token)
			}
		}(i)
	}

	wg.Wait()
}
