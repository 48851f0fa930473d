//go:build linux || darwin

package asynctrack

import (
	"context"
	"os"
	"testing"
	"time"
)

func testCreateIOFD(t *testing.T) (fd int, cleanup func()) {
	t.Helper()
	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		t.Fatal("os.Pipe failed:", err)
	}
	return int(pipeR.Fd()), func() {
		pipeR.Close()
		pipeW.Close()
	}
}

func TestNewTimerResourceDrivesLifecycle(t *testing.T) {
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

	fired := make(chan struct{})
	_, err = NewTimerResource(h, loop, time.Millisecond, func() { close(fired) })
	if err != nil {
		t.Fatalf("NewTimerResource failed: %v", err)
	}

	go loop.Run(context.Background())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer callback never fired")
	}
	// give the loop a moment to unwind Load/Unload around the fired callback.
	time.Sleep(10 * time.Millisecond)

	if !before || !after {
		t.Fatalf("before=%v after=%v, want both true", before, after)
	}
}

func TestNewTimerResourceSkipsHooksWhenNoListeners(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer loop.Shutdown(context.Background())

	h := NewAsyncHooks()

	fired := make(chan struct{})
	r, err := NewTimerResource(h, loop, time.Millisecond, func() { close(fired) })
	if err != nil {
		t.Fatalf("NewTimerResource failed: %v", err)
	}
	if r.ctx != nil {
		t.Fatal("with no attached listeners, Status().ActiveQueueLength is 0 and no Context should be created")
	}

	go loop.Run(context.Background())
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer callback never fired")
	}
}

func TestTimerResourceAbortCancelsBeforeFire(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer loop.Shutdown(context.Background())

	h := NewAsyncHooks()
	l := CreateListener(Callbacks{}, WithWatchMask(ProviderTimer))
	h.Attach(l)

	fired := false
	r, err := NewTimerResource(h, loop, 50*time.Millisecond, func() { fired = true })
	if err != nil {
		t.Fatalf("NewTimerResource failed: %v", err)
	}
	r.Abort(nil)
	if !r.Signal().Aborted() {
		t.Fatal("Signal().Aborted() should be true after Abort")
	}

	go loop.Run(context.Background())
	time.Sleep(100 * time.Millisecond)

	if fired {
		t.Fatal("aborted timer resource must not invoke its callback")
	}
}

func TestFDResourceTeardownOnDetach(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer loop.Shutdown(context.Background())

	fd, cleanup := testCreateIOFD(t)
	defer cleanup()

	h := NewAsyncHooks()
	l := CreateListener(Callbacks{}, WithWatchMask(ProviderFS))
	h.Attach(l)

	r, err := NewFDResource(h, loop, fd, EventRead, ProviderFS, func(IOEvents) {})
	if err != nil {
		t.Fatalf("NewFDResource failed: %v", err)
	}
	if r.ctx == nil {
		t.Fatal("with a listener attached, NewFDResource should create a Context")
	}

	// Detach only reaches contexts currently on the stack (active or
	// suspended): simulate the descriptor becoming active, the way a real
	// readable/writable event would, before detaching its only listener.
	h.Load(r.ctx)
	h.Detach(l)

	if !r.Signal().Aborted() {
		t.Fatal("detaching the last listener should abort the resource via its teardown hook")
	}

	h.Unload(r.ctx)
}
