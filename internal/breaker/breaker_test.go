package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(settings Settings) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New(settings)
	b.now = clock.Now
	return b, clock
}

func fail(context.Context) error    { return errBackend }
func succeed(context.Context) error { return nil }

func TestNew_Defaults(t *testing.T) {
	b := New(Settings{})

	assert.Equal(t, Closed, b.State())
	assert.Equal(t, uint(5), b.settings.Threshold)
	assert.Equal(t, 30*time.Second, b.settings.Cooldown)
	assert.Equal(t, uint(1), b.settings.Probes)
}

func TestDo_PassesResultThrough(t *testing.T) {
	b, _ := newTestBreaker(Settings{Threshold: 3})
	ctx := context.Background()

	assert.NoError(t, b.Do(ctx, succeed))
	assert.ErrorIs(t, b.Do(ctx, fail), errBackend)
	assert.Equal(t, uint(1), b.Failures())

	assert.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, uint(0), b.Failures(), "a success resets the failure run")
}

func TestDo_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(Settings{Threshold: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Do(ctx, fail)
	}
	require.Equal(t, Open, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestDo_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(Settings{Threshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	require.Equal(t, Open, b.State())

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, b.Do(ctx, succeed), ErrOpen, "still cooling down")

	clock.Advance(31 * time.Second)
	assert.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, Closed, b.State())
}

func TestDo_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Settings{Threshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	clock.Advance(2 * time.Minute)

	assert.ErrorIs(t, b.Do(ctx, fail), errBackend)
	assert.Equal(t, Open, b.State())
	assert.ErrorIs(t, b.Do(ctx, succeed), ErrOpen)
}

func TestDo_SingleProbeInFlight(t *testing.T) {
	b, clock := newTestBreaker(Settings{Threshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	clock.Advance(2 * time.Minute)

	err := b.Do(ctx, func(ctx context.Context) error {
		assert.ErrorIs(t, b.Do(ctx, succeed), ErrProbeInFlight)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestDo_CancellationIsNotAFailure(t *testing.T) {
	b, _ := newTestBreaker(Settings{Threshold: 1})

	err := b.Do(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, uint(0), b.Failures())
}

func TestIsFailure_Custom(t *testing.T) {
	ignored := errors.New("miss")
	b, _ := newTestBreaker(Settings{
		Threshold: 1,
		IsFailure: func(err error) bool { return err != nil && !errors.Is(err, ignored) },
	})

	assert.ErrorIs(t, b.Do(context.Background(), func(context.Context) error { return ignored }), ignored)
	assert.Equal(t, Closed, b.State())
}

func TestOnStateChange(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(Settings{
		Name:      "cache",
		Threshold: 1,
		Cooldown:  time.Second,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	clock.Advance(2 * time.Second)
	_ = b.Do(ctx, succeed)
	b.Reset()

	assert.Equal(t, []string{
		"cache:closed->open",
		"cache:open->half-open",
		"cache:half-open->closed",
	}, transitions)
}

func TestReset(t *testing.T) {
	b, _ := newTestBreaker(Settings{Threshold: 1})

	_ = b.Do(context.Background(), fail)
	require.Equal(t, Open, b.State())

	b.Reset()
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, uint(0), b.Failures())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
