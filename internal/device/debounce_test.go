package device

import (
	"sync"
	"testing"
	"time"
)

func TestDebounce_DeliversLastCallOnce(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []int
	)
	done := make(chan struct{}, 4)

	call := Debounce(func(n int) {
		mu.Lock()
		calls = append(calls, n)
		mu.Unlock()
		done <- struct{}{}
	}, 100*time.Millisecond)

	call(1)
	time.Sleep(10 * time.Millisecond)
	call(2)
	time.Sleep(10 * time.Millisecond)
	call(3)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced function never ran")
	}

	// leave room for a stray second invocation
	time.Sleep(250 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != 3 {
		t.Fatalf("expected exactly one call with 3, got %v", calls)
	}
}

func TestDebouncer_IndependentWrappers(t *testing.T) {
	got := make(chan string, 2)

	a := NewDebouncer(func(s string) { got <- s }, 20*time.Millisecond)
	b := NewDebouncer(func(s string) { got <- s }, 20*time.Millisecond)

	a.Call("a")
	b.Call("b")

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-got:
			seen[s] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, seen %v", seen)
		}
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("wrappers interfered: %v", seen)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	fired := make(chan struct{}, 1)
	d := NewDebouncer(func(struct{}) { fired <- struct{}{} }, 30*time.Millisecond)

	if d.Stop() {
		t.Fatal("nothing pending yet")
	}

	d.Call(struct{}{})
	if !d.Stop() {
		t.Fatal("expected pending call")
	}

	select {
	case <-fired:
		t.Fatal("stopped call still fired")
	case <-time.After(120 * time.Millisecond):
	}
}
