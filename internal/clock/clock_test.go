package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestRealSleep tests the real clock's cancellation behaviour.
func TestRealSleep(t *testing.T) {
	t.Parallel()

	t.Run("returns nil after the duration", func(t *testing.T) {
		t.Parallel()
		if err := New().Sleep(context.Background(), time.Millisecond); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("returns context error when cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		err := New().Sleep(ctx, time.Hour)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if time.Since(start) > time.Second {
			t.Error("expected sleep to return immediately")
		}
	})

	t.Run("zero duration does not block", func(t *testing.T) {
		t.Parallel()
		if err := New().Sleep(context.Background(), 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

// TestFake tests the fake clock.
func TestFake(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("advances time and records sleeps", func(t *testing.T) {
		t.Parallel()
		f := NewFake(start)
		_ = f.Sleep(context.Background(), 2*time.Second)
		_ = f.Sleep(context.Background(), 3*time.Second)

		if got := f.Now(); !got.Equal(start.Add(5 * time.Second)) {
			t.Errorf("Now() = %v, expected %v", got, start.Add(5*time.Second))
		}
		if len(f.Sleeps()) != 2 {
			t.Errorf("expected 2 sleeps, got %d", len(f.Sleeps()))
		}
		if f.Total() != 5*time.Second {
			t.Errorf("Total() = %v, expected 5s", f.Total())
		}
	})

	t.Run("hook can cancel the context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		f := NewFake(start)
		f.OnSleep = func(n int) {
			if n == 2 {
				cancel()
			}
		}

		if err := f.Sleep(ctx, time.Second); err != nil {
			t.Fatalf("unexpected error on first sleep: %v", err)
		}
		if err := f.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled on second sleep, got %v", err)
		}
		if err := f.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled after cancel, got %v", err)
		}
		if len(f.Sleeps()) != 2 {
			t.Errorf("expected cancelled sleep not to be recorded, got %d", len(f.Sleeps()))
		}
	})
}
