//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/rewrite"
	"golang.org/x/sys/unix"
)

// watchPauseSignal toggles pause on every SIGUSR1 until ctx ends or the returned stop is called
func watchPauseSignal(ctx context.Context, rw *rewrite.Rewriter, log *logger.Logger) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, unix.SIGUSR1)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-signals:
				state := rw.Toggle()
				log.WithFields(map[string]interface{}{"state": state.String()}).Info("SIGUSR1 received")
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(signals)
		close(done)
	}
}
