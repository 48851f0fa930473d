package asynctrack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromisifyPanicRecovery(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Shutdown(context.Background())

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(context.Background()) }()

	promise := loop.Promisify(context.Background(), func(ctx context.Context) (any, error) {
		panic("boom")
	})

	select {
	case result := <-promise.ToChannel():
		panicErr, ok := result.(PanicError)
		require.True(t, ok, "expected PanicError, got %T: %v", result, result)
		assert.Equal(t, "boom", panicErr.Value)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for panic promise")
	}
}

func TestPromisifyDebugModeCapturesCreationStack(t *testing.T) {
	loop, err := New(WithDebugMode(true))
	require.NoError(t, err)
	defer loop.Shutdown(context.Background())

	go loop.Run(context.Background())

	p := loop.Promisify(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})

	stacker, ok := p.(interface{ CreationStackTrace() string })
	require.True(t, ok, "Promise returned by Promisify should expose CreationStackTrace")
	assert.Contains(t, stacker.CreationStackTrace(), "TestPromisifyDebugModeCapturesCreationStack")
}

func TestPromisifyCtxDoneFallback(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Shutdown(context.Background())

	go loop.Run(context.Background())

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	promise := loop.Promisify(cancelledCtx, func(ctx context.Context) (any, error) {
		return "should not reach", nil
	})

	select {
	case result := <-promise.ToChannel():
		assert.ErrorIs(t, result.(error), context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}
