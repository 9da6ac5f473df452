package tor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultEmbeddedStartupTimeout bounds bootstrapping the embedded daemon.
const DefaultEmbeddedStartupTimeout = 3 * time.Minute

// embeddedCookieFile is the cookie tornago configures inside the data directory.
const embeddedCookieFile = "control_auth_cookie"

// EmbeddedTor launches a Tor daemon managed by tornago. The supervisor uses
// it as the last start strategy when no system service comes up, binding
// it to the same SOCKS and control addresses the session already uses.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	controlAddr    string
	dataDir        string
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor creates a launcher that will listen on socksAddr and
// controlAddr once started.
func NewEmbeddedTor(socksAddr, controlAddr string, opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		socksAddr:      socksAddr,
		controlAddr:    controlAddr,
		startupTimeout: DefaultEmbeddedStartupTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name identifies the strategy in logs.
func (e *EmbeddedTor) Name() string {
	return "embedded tor"
}

// Start launches the daemon and blocks until it has bootstrapped.
// Starting an already running instance is a no-op.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	if e.IsRunning() {
		return nil
	}

	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(e.socksAddr),
		tornago.WithTorControlAddr(e.controlAddr),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	// StartTorDaemon does not take a context; honour cancellation afterwards.
	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // Best effort cleanup
		return err
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	e.controlAddr = process.ControlAddr()
	e.dataDir = process.DataDir()

	return nil
}

// Stop shuts the daemon down. It is safe on an unstarted instance.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}

	err := e.process.Stop()
	e.process = nil
	return err
}

// IsRunning reports whether the daemon was started and not stopped.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// ControlEndpoint reports the control address of the running daemon and
// the cookie it writes into its data directory.
func (e *EmbeddedTor) ControlEndpoint() (string, ControlAuth, bool) {
	if !e.IsRunning() {
		return "", ControlAuth{}, false
	}
	cookie := filepath.Join(e.dataDir, embeddedCookieFile)
	return e.controlAddr, ControlAuth{CookieFile: cookie}, true
}
