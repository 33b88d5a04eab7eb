package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrOpen is returned while the breaker rejects calls
	ErrOpen = errors.New("circuit breaker is open")

	// ErrProbeInFlight is returned when the half-open probe budget is used up
	ErrProbeInFlight = errors.New("circuit breaker probe already in flight")
)

// State of a Breaker
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings configure a Breaker
type Settings struct {
	// Name identifies the protected dependency in logs
	Name string

	// Threshold is the number of consecutive failures that opens the breaker
	Threshold uint

	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close again
	Probes uint

	// IsFailure classifies call results; context cancellation never counts
	IsFailure func(error) bool

	// OnStateChange is called with the lock released after every transition
	OnStateChange func(name string, from, to State)
}

// Breaker guards calls to a flaky dependency
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu          sync.Mutex
	state       State
	consecutive uint
	probes      uint
	successes   uint
	openedAt    time.Time
}

// New creates a closed Breaker. Zero settings fall back to 5 failures, 30s, 1 probe.
func New(settings Settings) *Breaker {
	if settings.Threshold == 0 {
		settings.Threshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.Probes == 0 {
		settings.Probes = 1
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{settings: settings, now: time.Now}
}

// Do runs fn unless the breaker is open
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()

	var transition func()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.settings.Cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		transition = b.moveTo(HalfOpen)
		b.probes = 1
	case HalfOpen:
		if b.probes >= b.settings.Probes {
			b.mu.Unlock()
			return ErrProbeInFlight
		}
		b.probes++
	}

	b.mu.Unlock()
	if transition != nil {
		transition()
	}
	return nil
}

func (b *Breaker) record(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		b.mu.Lock()
		if b.state == HalfOpen && b.probes > 0 {
			b.probes--
		}
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	var transition func()
	if b.settings.IsFailure(err) {
		b.consecutive++
		if b.state == HalfOpen || b.consecutive >= b.settings.Threshold {
			transition = b.moveTo(Open)
		}
	} else {
		b.consecutive = 0
		if b.state == HalfOpen {
			b.successes++
			if b.successes >= b.settings.Probes {
				transition = b.moveTo(Closed)
			}
		}
	}
	b.mu.Unlock()

	if transition != nil {
		transition()
	}
}

// moveTo must be called with mu held; it returns the notification to run after unlocking
func (b *Breaker) moveTo(to State) func() {
	from := b.state
	if from == to {
		return nil
	}

	b.state = to
	b.probes = 0
	b.successes = 0
	switch to {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.consecutive = 0
	}

	if b.settings.OnStateChange == nil {
		return nil
	}
	name, hook := b.settings.Name, b.settings.OnStateChange
	return func() { hook(name, from, to) }
}

// State returns the current state. An open breaker past its cooldown still reports Open until the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current run of consecutive failures
func (b *Breaker) Failures() uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}

// Reset closes the breaker
func (b *Breaker) Reset() {
	b.mu.Lock()
	transition := b.moveTo(Closed)
	b.consecutive = 0
	b.mu.Unlock()

	if transition != nil {
		transition()
	}
}
