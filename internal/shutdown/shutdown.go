package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/glefebvre/reelvault/internal/logger"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler stops the process components in reverse start order
type Handler struct {
	mu       sync.Mutex
	hooks    []hook
	timeout  time.Duration
	log      *logger.Logger
	stopping bool
	done     chan struct{}
	trigger  chan struct{}
	once     sync.Once
}

// New creates a shutdown handler whose hooks share one timeout
func New(timeout time.Duration, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.AppLogger()
	}
	return &Handler{
		timeout: timeout,
		log:     log,
		done:    make(chan struct{}),
		trigger: make(chan struct{}, 1),
	}
}

// Register adds a named hook. Hooks run one at a time, last registered first.
func (h *Handler) Register(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Wait blocks until SIGINT, SIGTERM, Trigger or ctx cancellation, then shuts down
func (h *Handler) Wait(ctx context.Context) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		h.log.WithFields(map[string]interface{}{"signal": sig.String()}).Info("shutdown signal received")
	case <-h.trigger:
		h.log.Info("shutdown triggered")
	case <-ctx.Done():
		h.log.Info("context done, shutting down")
	}

	return h.Shutdown()
}

// Trigger asks a pending Wait to return
func (h *Handler) Trigger() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// Shutdown runs every hook once. Later calls return nil immediately.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.stopping {
		h.mu.Unlock()
		return nil
	}
	h.stopping = true
	hooks := make([]hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	h.once.Do(func() { close(h.done) })

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hk := hooks[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: skipped: %w", hk.name, ctx.Err()))
			continue
		}

		start := time.Now()
		err := hk.fn(ctx)
		fields := map[string]interface{}{
			"component":   hk.name,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err != nil {
			h.log.WithFields(fields).Error("component shutdown failed", err)
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
			continue
		}
		h.log.WithFields(fields).Info("component stopped")
	}

	return errors.Join(errs...)
}

// IsShuttingDown returns true if shutdown has been initiated
func (h *Handler) IsShuttingDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopping
}

// Done is closed when shutdown starts
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
