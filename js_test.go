package asynctrack

import (
	"context"
	"testing"
	"time"
)

func TestJSSetTimeoutSkipsHooksWithNoListeners(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer loop.Shutdown(context.Background())

	h := NewAsyncHooks()
	js, err := NewJS(loop, WithAsyncHooks(h))
	if err != nil {
		t.Fatalf("NewJS failed: %v", err)
	}

	fired := make(chan struct{})
	if _, err := js.SetTimeout(func() { close(fired) }, 1); err != nil {
		t.Fatalf("SetTimeout failed: %v", err)
	}

	go loop.Run(context.Background())
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timeout callback never fired")
	}
}

func TestJSSetTimeoutDrivesCreateLoadUnload(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer loop.Shutdown(context.Background())

	h := NewAsyncHooks()
	var before, after bool
	l := CreateListener(Callbacks{
		Before: func(*Context, any) { before = true },
		After:  func(*Context, any) { after = true },
	}, WithWatchMask(ProviderTimer))
	h.Attach(l)

	js, err := NewJS(loop, WithAsyncHooks(h))
	if err != nil {
		t.Fatalf("NewJS failed: %v", err)
	}

	fired := make(chan struct{})
	if _, err := js.SetTimeout(func() { close(fired) }, 1); err != nil {
		t.Fatalf("SetTimeout failed: %v", err)
	}

	go loop.Run(context.Background())
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timeout callback never fired")
	}
	time.Sleep(10 * time.Millisecond)

	if !before || !after {
		t.Fatalf("before=%v after=%v, want both true", before, after)
	}
}

func TestJSSetIntervalReusesSameContextAcrossFirings(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer loop.Shutdown(context.Background())

	h := NewAsyncHooks()
	l := CreateListener(Callbacks{}, WithWatchMask(ProviderTimer))
	h.Attach(l)

	js, err := NewJS(loop, WithAsyncHooks(h))
	if err != nil {
		t.Fatalf("NewJS failed: %v", err)
	}

	var seen []*Context
	fired := make(chan struct{}, 3)
	id, err := js.SetInterval(func() {
		seen = append(seen, h.Active())
		fired <- struct{}{}
	}, 5)
	if err != nil {
		t.Fatalf("SetInterval failed: %v", err)
	}

	go loop.Run(context.Background())

	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("interval callback did not fire the expected number of times")
		}
	}
	if err := js.ClearInterval(id); err != nil {
		t.Fatalf("ClearInterval failed: %v", err)
	}

	if len(seen) < 2 {
		t.Fatalf("captured %d firings, need at least 2 to compare contexts", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] != seen[0] {
			t.Fatalf("firing %d used a different Context than firing 0: SetInterval must reuse one Context across every repeat", i)
		}
	}
}

func TestJSQueueMicrotaskDrivesTickContext(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer loop.Shutdown(context.Background())

	h := NewAsyncHooks()
	var providerSeen Provider
	l := CreateListener(Callbacks{
		Before: func(ctx *Context, _ any) { providerSeen = ctx.Provider() },
	}, WithWatchMask(WatchAll))
	h.Attach(l)

	js, err := NewJS(loop, WithAsyncHooks(h))
	if err != nil {
		t.Fatalf("NewJS failed: %v", err)
	}

	ran := make(chan struct{})
	if err := js.QueueMicrotask(func() { close(ran) }); err != nil {
		t.Fatalf("QueueMicrotask failed: %v", err)
	}

	go loop.Run(context.Background())
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("microtask never ran")
	}
	time.Sleep(10 * time.Millisecond)

	if providerSeen != ProviderTick {
		t.Fatalf("Before callback observed provider %v, want ProviderTick", providerSeen)
	}
}
