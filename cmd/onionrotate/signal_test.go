package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestWatchSignals(t *testing.T) {
	t.Parallel()

	t.Run("signal cancels and logs", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		sigCh := make(chan os.Signal, 1)
		sigCh <- os.Interrupt

		watchSignals(ctx, cancel, sigCh, logger, "received shutdown signal")

		if ctx.Err() == nil {
			t.Error("expected ctx to be cancelled")
		}
		if !strings.Contains(buf.String(), "received shutdown signal") {
			t.Errorf("log = %q", buf.String())
		}
	})

	t.Run("returns when ctx is done", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			watchSignals(ctx, cancel, make(chan os.Signal), discardLogger(), "unused")
		}()
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("watchSignals did not return after cancellation")
		}
	})
}

func TestCancelOnShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	stop := cancelOnShutdown(ctx, cancel, discardLogger(), "unused")
	cancel()
	stop()

	if ctx.Err() == nil {
		t.Error("expected ctx to be cancelled")
	}
}
