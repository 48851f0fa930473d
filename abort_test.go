//go:build linux || darwin

package asynctrack

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAbortControllerAbortInvokesHandlers(t *testing.T) {
	c := NewAbortController()
	sig := c.Signal()

	var gotReason any
	sig.OnAbort(func(reason any) { gotReason = reason })

	c.Abort("stopped")

	if !sig.Aborted() {
		t.Fatal("Aborted() should be true after Abort")
	}
	if gotReason != "stopped" {
		t.Fatalf("handler reason = %v, want %q", gotReason, "stopped")
	}
	if sig.Reason() != "stopped" {
		t.Fatalf("Reason() = %v, want %q", sig.Reason(), "stopped")
	}
}

func TestAbortControllerAbortIsIdempotent(t *testing.T) {
	c := NewAbortController()
	c.Abort("first")
	c.Abort("second")

	if c.Signal().Reason() != "first" {
		t.Fatalf("Reason() = %v, want %q (second Abort should be a no-op)", c.Signal().Reason(), "first")
	}
}

func TestAbortSignalOnAbortFiresImmediatelyIfAlreadyAborted(t *testing.T) {
	c := NewAbortController()
	c.Abort("done")

	called := false
	c.Signal().OnAbort(func(reason any) { called = true })

	if !called {
		t.Fatal("OnAbort registered after the signal is already aborted should fire immediately")
	}
}

func TestAbortSignalThrowIfAborted(t *testing.T) {
	sig := newAbortSignal()
	if err := sig.ThrowIfAborted(); err != nil {
		t.Fatal("ThrowIfAborted on a non-aborted signal should return nil")
	}

	c := NewAbortController()
	c.Abort("boom")
	if err := c.Signal().ThrowIfAborted(); err == nil {
		t.Fatal("ThrowIfAborted on an aborted signal should return a non-nil error")
	}
}

func TestAbortErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	ae := &AbortError{Reason: cause}

	if !errors.Is(ae, &AbortError{}) {
		t.Fatal("errors.Is should match any *AbortError target")
	}
	if !errors.Is(ae, cause) {
		t.Fatal("AbortError should unwrap to an error-typed Reason")
	}

	stringReason := &AbortError{Reason: "nope"}
	if stringReason.Unwrap() != nil {
		t.Fatal("Unwrap should return nil when Reason is not an error")
	}
}

func TestAbortAnyAbortsWhenAnyInputAborts(t *testing.T) {
	c1 := NewAbortController()
	c2 := NewAbortController()
	combined := AbortAny([]*AbortSignal{c1.Signal(), c2.Signal()})

	if combined.Aborted() {
		t.Fatal("combined signal should not be aborted before either input aborts")
	}

	c2.Abort("c2 reason")

	if !combined.Aborted() {
		t.Fatal("combined signal should abort once any input signal aborts")
	}
	if combined.Reason() != "c2 reason" {
		t.Fatalf("combined.Reason() = %v, want %q", combined.Reason(), "c2 reason")
	}
}

func TestAbortAnyWithAlreadyAbortedInput(t *testing.T) {
	c1 := NewAbortController()
	c1.Abort("pre-aborted")

	combined := AbortAny([]*AbortSignal{c1.Signal()})
	if !combined.Aborted() {
		t.Fatal("AbortAny should immediately reflect an already-aborted input signal")
	}
}

func TestAbortAnyWithEmptyInputNeverAborts(t *testing.T) {
	combined := AbortAny(nil)
	if combined.Aborted() {
		t.Fatal("AbortAny with no inputs should never abort")
	}
}

func TestAbortTimeoutFiresAfterDelay(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer loop.Shutdown(context.Background())

	controller, err := AbortTimeout(loop, 10)
	if err != nil {
		t.Fatalf("AbortTimeout failed: %v", err)
	}

	go loop.Run(context.Background())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if controller.Signal().Aborted() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("AbortTimeout controller never aborted within the deadline")
}
