//go:build !unix

package main

import (
	"context"

	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/rewrite"
)

// watchPauseSignal is a no-op where SIGUSR1 does not exist
func watchPauseSignal(ctx context.Context, rw *rewrite.Rewriter, log *logger.Logger) func() {
	log.Debug("pause signal not supported on this platform")
	return func() {}
}
