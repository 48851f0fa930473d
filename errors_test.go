package asynctrack

import (
	"errors"
	"io"
	"testing"
)

func TestPanicErrorUnwrap(t *testing.T) {
	wrapped := PanicError{Value: io.EOF}
	if !errors.Is(wrapped, io.EOF) {
		t.Fatal("errors.Is should see through PanicError to an error-typed Value")
	}

	notAnError := PanicError{Value: "some string panic"}
	if notAnError.Unwrap() != nil {
		t.Fatal("Unwrap should return nil when Value is not an error")
	}
}

func TestAggregateErrorUnwrapAndIs(t *testing.T) {
	agg := &AggregateError{Errors: []error{io.EOF, io.ErrUnexpectedEOF}}

	if !errors.Is(agg, io.EOF) {
		t.Error("errors.Is should match io.EOF via Unwrap() []error")
	}
	if !errors.Is(agg, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should match io.ErrUnexpectedEOF via Unwrap() []error")
	}

	var other *AggregateError
	if !errors.As(errors.New("wrapper"), &other) {
		// errors.As on a plain error should fail; sanity-check the inverse below.
	}
	if !agg.Is(&AggregateError{}) {
		t.Error("Is should report true for any *AggregateError target, regardless of contents")
	}
}

func TestAggregateErrorCause(t *testing.T) {
	empty := &AggregateError{}
	if empty.AggregateErrorCause() != nil {
		t.Fatal("AggregateErrorCause on an empty Errors slice should be nil")
	}
	agg := &AggregateError{Errors: []error{io.EOF, io.ErrClosedPipe}}
	if agg.AggregateErrorCause() != io.EOF {
		t.Fatal("AggregateErrorCause should return the first error")
	}
}

func TestTypeErrorRangeErrorTimeoutErrorDefaults(t *testing.T) {
	if (&TypeError{}).Error() != "type error" {
		t.Error("TypeError with no Message should use the default string")
	}
	if (&RangeError{}).Error() != "range error" {
		t.Error("RangeError with no Message should use the default string")
	}
	if (&TimeoutError{}).Error() != "operation timed out" {
		t.Error("TimeoutError with no Message should use the default string")
	}
	if (&InvariantViolationError{}).Error() != "invariant violation" {
		t.Error("InvariantViolationError with no Message should use the default string")
	}
}

func TestTypeErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("underlying")
	te := &TypeError{Message: "wrapped", Cause: cause}
	if !errors.Is(te, cause) {
		t.Fatal("TypeError should unwrap to its Cause")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := WrapError("context failed", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatal("WrapError's result should satisfy errors.Is against the original cause")
	}
	if wrapped.Error() != "context failed: root cause" {
		t.Fatalf("WrapError message = %q, want %q", wrapped.Error(), "context failed: root cause")
	}
}
