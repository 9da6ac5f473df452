package tor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/onionrotate/internal/clock"
	"github.com/nao1215/onionrotate/internal/system"
	"github.com/nao1215/tornago"
)

// Control channel defaults.
const (
	// DefaultControlAddress is the standard Tor control port.
	DefaultControlAddress = "127.0.0.1:9051"

	// DefaultControlTimeout bounds connecting to the control port and each
	// command sent over it.
	DefaultControlTimeout = 5 * time.Second

	// DefaultRotateSettle is the wait after a successful NEWNYM signal.
	DefaultRotateSettle = 3 * time.Second

	// DefaultFallbackSettle is the longer wait after a daemon reload, which
	// rebuilds every circuit.
	DefaultFallbackSettle = 5 * time.Second
)

// ControlAuth selects how the control connection authenticates.
// With neither field set, a bare AUTHENTICATE is sent, which works when
// the daemon has no control authentication configured.
type ControlAuth struct {
	// Password is sent as a quoted string (HashedControlPassword).
	Password string

	// CookieFile is read on every rotation and sent hex encoded
	// (CookieAuthentication). It takes precedence over Password.
	CookieFile string
}

// credentials converts the auth mode into tornago credentials.
func (a ControlAuth) credentials() (tornago.ControlAuth, error) {
	switch {
	case a.CookieFile != "":
		cookie, err := os.ReadFile(a.CookieFile) //nolint:gosec // Operator-configured path
		if err != nil {
			return tornago.ControlAuth{}, fmt.Errorf("%w: %w", ErrControlCookie, err)
		}
		return tornago.ControlAuthFromCookieBytes(cookie), nil
	case a.Password != "":
		return tornago.ControlAuthFromPassword(a.Password), nil
	default:
		return tornago.ControlAuth{}, nil
	}
}

// ControlClient is one open control-port connection.
// *tornago.ControlClient satisfies it.
type ControlClient interface {
	Authenticate() error
	NewIdentity(ctx context.Context) error
	Close() error
}

// ControlDialer opens a control-port connection.
type ControlDialer func(address string, auth tornago.ControlAuth, timeout time.Duration) (ControlClient, error)

// dialTornago is the default ControlDialer.
func dialTornago(address string, auth tornago.ControlAuth, timeout time.Duration) (ControlClient, error) {
	client, err := tornago.NewControlClient(address, auth, timeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// EndpointSource supplies a control endpoint that is only known at run
// time, such as the one of a daemon launched by this process.
type EndpointSource interface {
	// ControlEndpoint returns the address and credentials to use. ok is
	// false while the source has nothing to offer.
	ControlEndpoint() (address string, auth ControlAuth, ok bool)
}

// ControlChannel asks the daemon for a new identity over its control port.
//
// A rejected AUTHENTICATE or SIGNAL counts as a failed exchange. When the
// exchange fails, the daemon is reloaded once through the process manager.
// Whether either path actually produced a new circuit is only observable
// by verifying the egress address afterwards.
type ControlChannel struct {
	address        string
	auth           ControlAuth
	endpoint       EndpointSource
	timeout        time.Duration
	settle         time.Duration
	fallbackSettle time.Duration
	reload         system.Command
	runner         system.Runner
	clock          clock.Clock
	dial           ControlDialer
	logger         *slog.Logger
}

// ControlOption configures a ControlChannel.
type ControlOption func(*ControlChannel)

// WithControlAuth sets the authentication mode.
func WithControlAuth(auth ControlAuth) ControlOption {
	return func(c *ControlChannel) {
		c.auth = auth
	}
}

// WithEndpointSource makes the channel prefer the endpoint reported by src
// whenever it has one.
func WithEndpointSource(src EndpointSource) ControlOption {
	return func(c *ControlChannel) {
		c.endpoint = src
	}
}

// WithControlTimeout sets the timeout of the control-port exchange.
func WithControlTimeout(timeout time.Duration) ControlOption {
	return func(c *ControlChannel) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithSettle sets the waits after a signal and after a reload fallback.
func WithSettle(settle, fallbackSettle time.Duration) ControlOption {
	return func(c *ControlChannel) {
		c.settle = settle
		c.fallbackSettle = fallbackSettle
	}
}

// WithReload sets the fallback reload command and the runner executing it.
func WithReload(runner system.Runner, reload system.Command) ControlOption {
	return func(c *ControlChannel) {
		c.runner = runner
		c.reload = reload
	}
}

// WithControlClock sets the clock used for settle delays.
func WithControlClock(clk clock.Clock) ControlOption {
	return func(c *ControlChannel) {
		c.clock = clk
	}
}

// WithControlDialer replaces the function used to open the control connection.
func WithControlDialer(dial ControlDialer) ControlOption {
	return func(c *ControlChannel) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// WithControlLogger sets the logger.
func WithControlLogger(logger *slog.Logger) ControlOption {
	return func(c *ControlChannel) {
		c.logger = logger
	}
}

// NewControlChannel creates a ControlChannel for the control port at address.
func NewControlChannel(address string, opts ...ControlOption) *ControlChannel {
	c := &ControlChannel{
		address:        address,
		timeout:        DefaultControlTimeout,
		settle:         DefaultRotateSettle,
		fallbackSettle: DefaultFallbackSettle,
		clock:          clock.New(),
		dial:           dialTornago,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Address returns the control port address currently in use.
func (c *ControlChannel) Address() string {
	address, _ := c.target()
	return address
}

// target resolves the endpoint for the next exchange.
func (c *ControlChannel) target() (string, ControlAuth) {
	if c.endpoint != nil {
		if address, auth, ok := c.endpoint.ControlEndpoint(); ok {
			return address, auth
		}
	}
	return c.address, c.auth
}

// Rotate signals the daemon for a new identity and waits for the new
// circuit to settle.
//
// It returns nil when the control-port exchange succeeded. When it failed,
// the reload fallback runs once and Rotate returns an error wrapping
// ErrControlChannel (joined with the fallback's error, if any). That error
// is informational. Only a cancelled ctx is returned as ctx.Err().
func (c *ControlChannel) Rotate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	address, auth := c.target()
	err := c.exchange(ctx, address, auth)
	if err == nil {
		c.logger.Debug("new identity requested", "control", address)
		return c.clock.Sleep(ctx, c.settle)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	c.logger.Warn("control port exchange failed, reloading daemon",
		"control", address,
		"error", err,
	)
	primary := fmt.Errorf("%w: %w", ErrControlChannel, err)

	fallbackErr := c.reloadDaemon(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if fallbackErr != nil {
		c.logger.Warn("daemon reload failed", "error", fallbackErr)
	}

	if err := c.clock.Sleep(ctx, c.fallbackSettle); err != nil {
		return err
	}
	return errors.Join(primary, fallbackErr)
}

// reloadDaemon runs the fallback reload command.
func (c *ControlChannel) reloadDaemon(ctx context.Context) error {
	if c.runner == nil || c.reload.IsZero() {
		return errors.New("no reload command configured")
	}
	return c.runner.Run(ctx, c.reload)
}

// exchange authenticates and sends SIGNAL NEWNYM over a fresh connection.
func (c *ControlChannel) exchange(ctx context.Context, address string, auth ControlAuth) error {
	creds, err := auth.credentials()
	if err != nil {
		return err
	}

	client, err := c.dial(address, creds, c.timeout)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close() //nolint:errcheck // Connection is discarded either way

	// Unblock the exchange as soon as ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if err := client.Authenticate(); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := client.NewIdentity(ctx); err != nil {
		return fmt.Errorf("signal newnym: %w", err)
	}
	return nil
}
