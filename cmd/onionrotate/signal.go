package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// cancelOnShutdown calls cancel when SIGINT or SIGTERM arrives. The
// returned function stops listening; call it once ctx is no longer used.
func cancelOnShutdown(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, msg string) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go watchSignals(ctx, cancel, sigCh, logger, msg)
	return func() { signal.Stop(sigCh) }
}

// watchSignals cancels on the first signal and returns when ctx is done.
func watchSignals(ctx context.Context, cancel context.CancelFunc, sigCh <-chan os.Signal, logger *slog.Logger, msg string) {
	select {
	case <-sigCh:
		logger.Info(msg)
		cancel()
	case <-ctx.Done():
	}
}
