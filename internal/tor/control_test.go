package tor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/onionrotate/internal/clock"
	"github.com/nao1215/onionrotate/internal/system"
	"github.com/nao1215/tornago"
)

// fakeControlPort accepts one connection and answers each command line
// with the next reply. An empty reply closes the connection unanswered.
// The received lines are reported once the connection is done.
func fakeControlPort(t *testing.T, replies ...string) (string, <-chan []string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var lines []string
		defer func() { received <- lines }()

		r := bufio.NewReader(conn)
		for _, reply := range replies {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			lines = append(lines, strings.TrimRight(line, "\r\n"))
			if reply == "" {
				return
			}
			if _, err := io.WriteString(conn, reply); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String(), received
}

// fakeControlClient records the calls made on a control connection.
type fakeControlClient struct {
	mu        sync.Mutex
	calls     []string
	authErr   error
	signal    func(ctx context.Context) error
	closeSeen bool
}

func (f *fakeControlClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeControlClient) Authenticate() error {
	f.record("authenticate")
	return f.authErr
}

func (f *fakeControlClient) NewIdentity(ctx context.Context) error {
	f.record("newnym")
	if f.signal != nil {
		return f.signal(ctx)
	}
	return nil
}

func (f *fakeControlClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSeen = true
	return nil
}

// staticEndpoint is an EndpointSource with a fixed answer.
type staticEndpoint struct {
	address string
	auth    ControlAuth
	ok      bool
}

func (s staticEndpoint) ControlEndpoint() (string, ControlAuth, bool) {
	return s.address, s.auth, s.ok
}

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestControl builds a ControlChannel with a fake clock and runner.
func newTestControl(address string, opts ...ControlOption) (*ControlChannel, *clock.Fake, *system.FakeRunner) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	runner := system.NewFakeRunner()
	base := []ControlOption{
		WithControlClock(clk),
		WithReload(runner, system.NewCommand("systemctl", "reload", "tor")),
		WithSettle(3*time.Second, 5*time.Second),
		WithControlTimeout(2 * time.Second),
		WithControlLogger(discardLogger()),
	}
	return NewControlChannel(address, append(base, opts...)...), clk, runner
}

// TestControlChannelRotate tests the primary control-port exchange.
func TestControlChannelRotate(t *testing.T) {
	t.Parallel()

	t.Run("sends authenticate then newnym and settles", func(t *testing.T) {
		t.Parallel()

		addr, received := fakeControlPort(t, "250 OK\r\n", "250 OK\r\n")
		c, clk, runner := newTestControl(addr)

		if err := c.Rotate(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := <-received
		if len(lines) != 2 || lines[0] != "AUTHENTICATE" || lines[1] != "SIGNAL NEWNYM" {
			t.Errorf("received %q, expected AUTHENTICATE then SIGNAL NEWNYM", lines)
		}
		if calls := runner.Calls(); len(calls) != 0 {
			t.Errorf("expected no fallback commands, got %v", calls)
		}
		sleeps := clk.Sleeps()
		if len(sleeps) != 1 || sleeps[0] != 3*time.Second {
			t.Errorf("sleeps = %v, expected [3s]", sleeps)
		}
	})

	t.Run("password is sent quoted", func(t *testing.T) {
		t.Parallel()

		addr, received := fakeControlPort(t, "250 OK\r\n", "250 OK\r\n")
		c, _, _ := newTestControl(addr, WithControlAuth(ControlAuth{Password: `pa"ss`}))

		if err := c.Rotate(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := <-received
		if lines[0] != `AUTHENTICATE "pa\"ss"` {
			t.Errorf("auth line = %q", lines[0])
		}
	})

	t.Run("cookie is sent hex encoded and wins over password", func(t *testing.T) {
		t.Parallel()

		cookiePath := filepath.Join(t.TempDir(), "control_auth_cookie")
		if err := os.WriteFile(cookiePath, []byte{0xde, 0xad, 0xbe, 0xef}, 0600); err != nil {
			t.Fatalf("failed to write cookie: %v", err)
		}

		addr, received := fakeControlPort(t, "250 OK\r\n", "250 OK\r\n")
		c, _, _ := newTestControl(addr, WithControlAuth(ControlAuth{CookieFile: cookiePath, Password: "ignored"}))

		if err := c.Rotate(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := <-received
		if !strings.EqualFold(lines[0], "AUTHENTICATE deadbeef") {
			t.Errorf("auth line = %q", lines[0])
		}
	})

	t.Run("endpoint source overrides configured address and auth", func(t *testing.T) {
		t.Parallel()

		cookiePath := filepath.Join(t.TempDir(), "control_auth_cookie")
		if err := os.WriteFile(cookiePath, []byte{0xca, 0xfe}, 0600); err != nil {
			t.Fatalf("failed to write cookie: %v", err)
		}

		addr, received := fakeControlPort(t, "250 OK\r\n", "250 OK\r\n")
		src := staticEndpoint{address: addr, auth: ControlAuth{CookieFile: cookiePath}, ok: true}
		c, _, runner := newTestControl(closedAddress(t),
			WithControlAuth(ControlAuth{Password: "configured"}),
			WithEndpointSource(src),
		)

		if got := c.Address(); got != addr {
			t.Errorf("Address() = %q, expected %q", got, addr)
		}
		if err := c.Rotate(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := <-received
		if !strings.EqualFold(lines[0], "AUTHENTICATE cafe") {
			t.Errorf("auth line = %q, expected the source's cookie", lines[0])
		}
		if len(runner.Calls()) != 0 {
			t.Errorf("expected no fallback commands, got %v", runner.Calls())
		}
	})

	t.Run("endpoint source without an endpoint keeps configured address", func(t *testing.T) {
		t.Parallel()

		addr, received := fakeControlPort(t, "250 OK\r\n", "250 OK\r\n")
		c, _, _ := newTestControl(addr, WithEndpointSource(staticEndpoint{}))

		if err := c.Rotate(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lines := <-received; len(lines) != 2 {
			t.Errorf("received %q, expected two commands", lines)
		}
	})

	t.Run("connection is closed after the exchange", func(t *testing.T) {
		t.Parallel()

		client := &fakeControlClient{}
		c, _, _ := newTestControl("127.0.0.1:9051",
			WithControlDialer(func(string, tornago.ControlAuth, time.Duration) (ControlClient, error) {
				return client, nil
			}),
		)

		if err := c.Rotate(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(client.calls) != 2 || client.calls[0] != "authenticate" || client.calls[1] != "newnym" {
			t.Errorf("calls = %v, expected authenticate then newnym", client.calls)
		}
		if !client.closeSeen {
			t.Error("expected the connection to be closed")
		}
	})
}

// TestControlChannelFallback tests the reload fallback.
func TestControlChannelFallback(t *testing.T) {
	t.Parallel()

	t.Run("unreachable control port reloads once", func(t *testing.T) {
		t.Parallel()

		c, clk, runner := newTestControl(closedAddress(t))

		err := c.Rotate(context.Background())
		if !errors.Is(err, ErrControlChannel) {
			t.Fatalf("expected ErrControlChannel, got %v", err)
		}
		calls := runner.Calls()
		if len(calls) != 1 || calls[0] != "systemctl reload tor" {
			t.Errorf("calls = %v, expected one reload", calls)
		}
		sleeps := clk.Sleeps()
		if len(sleeps) != 1 || sleeps[0] != 5*time.Second {
			t.Errorf("sleeps = %v, expected [5s]", sleeps)
		}
	})

	testCases := []struct {
		name    string
		replies []string
	}{
		{name: "rejected authentication", replies: []string{"515 Authentication failed\r\n"}},
		{name: "rejected signal", replies: []string{"250 OK\r\n", "552 Unrecognized signal\r\n"}},
		{name: "connection closed without reply", replies: []string{""}},
	}

	for _, tc := range testCases {
		t.Run(tc.name+" reloads once", func(t *testing.T) {
			t.Parallel()

			addr, _ := fakeControlPort(t, tc.replies...)
			c, clk, runner := newTestControl(addr)

			err := c.Rotate(context.Background())
			if !errors.Is(err, ErrControlChannel) {
				t.Fatalf("expected ErrControlChannel, got %v", err)
			}
			if calls := runner.Calls(); len(calls) != 1 {
				t.Errorf("calls = %v, expected one reload", calls)
			}
			if sleeps := clk.Sleeps(); len(sleeps) != 1 || sleeps[0] != 5*time.Second {
				t.Errorf("sleeps = %v, expected [5s]", sleeps)
			}
		})
	}

	t.Run("tornago error is kept in the chain", func(t *testing.T) {
		t.Parallel()

		addr, _ := fakeControlPort(t, "515 Authentication failed\r\n")
		c, _, _ := newTestControl(addr)

		err := c.Rotate(context.Background())
		var tornagoErr *tornago.TornagoError
		if !errors.As(err, &tornagoErr) {
			t.Errorf("expected a *tornago.TornagoError in %v", err)
		}
	})

	t.Run("failing reload does not escalate", func(t *testing.T) {
		t.Parallel()

		c, clk, runner := newTestControl(closedAddress(t))
		reloadErr := errors.New("exit status 1")
		runner.Errors["systemctl reload tor"] = reloadErr

		err := c.Rotate(context.Background())
		if !errors.Is(err, ErrControlChannel) {
			t.Fatalf("expected ErrControlChannel, got %v", err)
		}
		if !errors.Is(err, reloadErr) {
			t.Errorf("expected reload error to be joined, got %v", err)
		}
		if len(runner.Calls()) != 1 {
			t.Errorf("expected exactly one reload attempt, got %v", runner.Calls())
		}
		if len(clk.Sleeps()) != 1 {
			t.Errorf("expected fallback settle even when reload fails, got %v", clk.Sleeps())
		}
	})

	t.Run("missing cookie file falls back", func(t *testing.T) {
		t.Parallel()

		c, _, runner := newTestControl(closedAddress(t), WithControlAuth(ControlAuth{CookieFile: filepath.Join(t.TempDir(), "missing")}))

		err := c.Rotate(context.Background())
		if !errors.Is(err, ErrControlCookie) {
			t.Errorf("expected ErrControlCookie, got %v", err)
		}
		if len(runner.Calls()) != 1 {
			t.Errorf("expected reload fallback, got %v", runner.Calls())
		}
	})

	t.Run("no reload command configured", func(t *testing.T) {
		t.Parallel()

		clk := clock.NewFake(time.Time{})
		c := NewControlChannel(closedAddress(t), WithControlClock(clk), WithControlLogger(discardLogger()))

		err := c.Rotate(context.Background())
		if !errors.Is(err, ErrControlChannel) {
			t.Errorf("expected ErrControlChannel, got %v", err)
		}
	})
}

// TestControlChannelCancellation tests that cancellation is returned as-is.
func TestControlChannelCancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancelled before rotate", func(t *testing.T) {
		t.Parallel()

		c, _, runner := newTestControl(closedAddress(t))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := c.Rotate(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(runner.Calls()) != 0 {
			t.Errorf("expected no reload after cancellation, got %v", runner.Calls())
		}
	})

	t.Run("cancelled during the exchange", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		client := &fakeControlClient{signal: func(context.Context) error {
			cancel()
			return errors.New("connection closed")
		}}
		c, _, runner := newTestControl("127.0.0.1:9051",
			WithControlDialer(func(string, tornago.ControlAuth, time.Duration) (ControlClient, error) {
				return client, nil
			}),
		)

		if err := c.Rotate(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(runner.Calls()) != 0 {
			t.Errorf("expected no reload after cancellation, got %v", runner.Calls())
		}
	})

	t.Run("cancelled during settle", func(t *testing.T) {
		t.Parallel()

		addr, _ := fakeControlPort(t, "250 OK\r\n", "250 OK\r\n")
		c, clk, _ := newTestControl(addr)
		ctx, cancel := context.WithCancel(context.Background())
		clk.OnSleep = func(int) { cancel() }

		if err := c.Rotate(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
