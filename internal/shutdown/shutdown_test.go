package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(timeout time.Duration) *Handler {
	return New(timeout, logger.Discard())
}

func TestNew(t *testing.T) {
	h := newHandler(5 * time.Second)

	assert.Equal(t, 5*time.Second, h.timeout)
	assert.False(t, h.IsShuttingDown())
	assert.Empty(t, h.hooks)
}

func TestShutdown_ReverseOrder(t *testing.T) {
	h := newHandler(5 * time.Second)

	var order []string
	for _, name := range []string{"database", "cache", "http"} {
		name := name
		h.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, h.Shutdown())
	assert.Equal(t, []string{"http", "cache", "database"}, order)
	assert.True(t, h.IsShuttingDown())
}

func TestShutdown_ContinuesAfterError(t *testing.T) {
	h := newHandler(5 * time.Second)
	testErr := errors.New("close failed")

	closed := false
	h.Register("database", func(context.Context) error {
		closed = true
		return nil
	})
	h.Register("cache", func(context.Context) error { return testErr })

	err := h.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, testErr)
	assert.Contains(t, err.Error(), "cache")
	assert.True(t, closed, "remaining hooks still run")
}

func TestShutdown_Timeout(t *testing.T) {
	h := newHandler(50 * time.Millisecond)

	skipped := true
	h.Register("database", func(context.Context) error {
		skipped = false
		return nil
	})
	h.Register("http", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := h.Shutdown()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, skipped, "hooks after the deadline are skipped")
}

func TestShutdown_Idempotent(t *testing.T) {
	h := newHandler(5 * time.Second)

	calls := 0
	h.Register("db", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, h.Shutdown())
	require.NoError(t, h.Shutdown())
	assert.Equal(t, 1, calls)
}

func TestDone(t *testing.T) {
	h := newHandler(5 * time.Second)

	select {
	case <-h.Done():
		t.Fatal("expected done channel to be open")
	default:
	}

	require.NoError(t, h.Shutdown())

	select {
	case <-h.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected done channel to be closed")
	}
}

func TestWait_Trigger(t *testing.T) {
	h := newHandler(5 * time.Second)

	stopped := make(chan struct{})
	h.Register("http", func(context.Context) error {
		close(stopped)
		return nil
	})

	result := make(chan error, 1)
	go func() { result <- h.Wait(context.Background()) }()

	h.Trigger()

	select {
	case err := <-result:
		assert.NoError(t, err)
		<-stopped
	case <-time.After(time.Second):
		t.Fatal("expected Wait to return after Trigger")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	h := newHandler(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, h.Wait(ctx))
	assert.True(t, h.IsShuttingDown())
}
