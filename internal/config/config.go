package config

import (
	"fmt"
	"net"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/onionrotate/internal/model"
	"github.com/nao1215/onionrotate/internal/system"
	"github.com/nao1215/onionrotate/internal/verify"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "onionrotate"

	// DefaultProxyAddress is the daemon's local SOCKS5 proxy.
	// 127.0.0.1 avoids resolving localhost to ::1 on some systems.
	DefaultProxyAddress = "127.0.0.1:9050"

	// DefaultControlAddress is the daemon's local control port.
	DefaultControlAddress = "127.0.0.1:9051"

	// DefaultProbeTimeout bounds the proxy port probe.
	DefaultProbeTimeout = 3 * time.Second

	// DefaultControlTimeout bounds the whole control-port exchange.
	DefaultControlTimeout = 5 * time.Second

	// DefaultRequestTimeout bounds a single verification request.
	DefaultRequestTimeout = 8 * time.Second

	// DefaultCommandTimeout bounds one process-manager command.
	DefaultCommandTimeout = 10 * time.Second

	// DefaultKillSettle is the wait after killing stray daemons.
	DefaultKillSettle = 2 * time.Second

	// DefaultStartSettle is the wait after each start command.
	DefaultStartSettle = 3 * time.Second

	// DefaultRotateSettle is the wait after a successful rotation signal.
	DefaultRotateSettle = 3 * time.Second

	// DefaultFallbackSettle is the wait after the reload fallback.
	DefaultFallbackSettle = 5 * time.Second

	// DefaultPasses is the number of verification passes over the endpoints.
	DefaultPasses = 1

	// DefaultPassBackoff is the wait between verification passes.
	DefaultPassBackoff = 1 * time.Second

	// DefaultInterval is the auto-mode wait between rotations.
	DefaultInterval = 60 * time.Second

	// DefaultEmbeddedStartupTimeout bounds the embedded daemon bootstrap.
	// Bootstrapping from scratch usually takes one to three minutes.
	DefaultEmbeddedStartupTimeout = 3 * time.Minute
)

// DefaultKillCommand stops stray daemons. The match is on the exact
// process name so that unrelated processes mentioning "tor" survive.
func DefaultKillCommand() system.Command {
	return system.NewCommand("pkill", "-x", "tor")
}

// DefaultStartCommands are tried in order until the proxy port opens.
func DefaultStartCommands() []system.Command {
	return []system.Command{
		system.NewCommand("systemctl", "start", "tor"),
		system.NewCommand("service", "tor", "start"),
	}
}

// DefaultReloadCommand is the control-port fallback.
func DefaultReloadCommand() system.Command {
	return system.NewCommand("systemctl", "reload", "tor")
}

// Config holds all configuration options for onionrotate. It is populated
// from defaults, then the config file, then explicitly set CLI flags.
type Config struct {
	// ProxyAddress is the daemon's SOCKS5 proxy in "host:port" form. It is
	// probed for liveness and carries all verification traffic.
	ProxyAddress string

	// ControlAddress is the daemon's control port in "host:port" form.
	ControlAddress string

	// ControlPassword authenticates against the control port. Ignored when
	// ControlCookieFile is set.
	ControlPassword string

	// ControlCookieFile is the path of the daemon's authentication cookie.
	ControlCookieFile string

	ProbeTimeout   time.Duration
	ControlTimeout time.Duration
	RequestTimeout time.Duration
	CommandTimeout time.Duration

	KillSettle     time.Duration
	StartSettle    time.Duration
	RotateSettle   time.Duration
	FallbackSettle time.Duration

	// Passes is the number of times the endpoint list is walked before a
	// verification is declared failed.
	Passes int

	// PassBackoff is the wait between passes.
	PassBackoff time.Duration

	// RequestSpacing is the minimum delay between two verification
	// requests. Zero disables spacing.
	RequestSpacing time.Duration

	// Endpoints are the address-reporting services.
	Endpoints []string

	// KillCommand stops stray daemons before a restart.
	KillCommand system.Command

	// StartCommands are tried in order to start the daemon.
	StartCommands []system.Command

	// ReloadCommand is used when the control-port exchange fails.
	ReloadCommand system.Command

	// Embedded adds the bundled daemon launcher as the last start strategy.
	Embedded bool

	// EmbeddedStartupTimeout bounds the embedded daemon bootstrap.
	EmbeddedStartupTimeout time.Duration

	// Mode, Interval, and MaxChanges configure the rotation session.
	Mode       model.Mode
	Interval   time.Duration
	MaxChanges int

	// RequireBaseline aborts the session when the starting address cannot
	// be verified.
	RequireBaseline bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit configuration file, if any.
	ConfigFilePath string

	// MetricsAddress, when set, serves Prometheus metrics on /metrics.
	MetricsAddress string

	// JSONReport and MarkdownReport select the end-of-session summary
	// format. Both false selects plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the summary instead of stdout when set.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ProxyAddress:           DefaultProxyAddress,
		ControlAddress:         DefaultControlAddress,
		ProbeTimeout:           DefaultProbeTimeout,
		ControlTimeout:         DefaultControlTimeout,
		RequestTimeout:         DefaultRequestTimeout,
		CommandTimeout:         DefaultCommandTimeout,
		KillSettle:             DefaultKillSettle,
		StartSettle:            DefaultStartSettle,
		RotateSettle:           DefaultRotateSettle,
		FallbackSettle:         DefaultFallbackSettle,
		Passes:                 DefaultPasses,
		PassBackoff:            DefaultPassBackoff,
		Endpoints:              slices.Clone(verify.DefaultEndpoints),
		KillCommand:            DefaultKillCommand(),
		StartCommands:          DefaultStartCommands(),
		ReloadCommand:          DefaultReloadCommand(),
		EmbeddedStartupTimeout: DefaultEmbeddedStartupTimeout,
		Mode:                   model.ModeManual,
		Interval:               DefaultInterval,
	}
}

// SessionConfig returns the rotation session settings.
func (c *Config) SessionConfig() model.SessionConfig {
	return model.SessionConfig{
		Mode:       c.Mode,
		Interval:   c.Interval,
		MaxChanges: c.MaxChanges,
	}
}

// XDGConfigDir returns the XDG config directory for onionrotate.
// On Linux: ~/.config/onionrotate
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if !isHostPort(c.ProxyAddress) {
		return fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.ProxyAddress)
	}
	if !isHostPort(c.ControlAddress) {
		return fmt.Errorf("%w: %q", ErrInvalidControlAddress, c.ControlAddress)
	}

	for _, d := range []time.Duration{c.ProbeTimeout, c.ControlTimeout, c.RequestTimeout, c.CommandTimeout} {
		if d <= 0 {
			return ErrInvalidTimeout
		}
	}
	if c.Embedded && c.EmbeddedStartupTimeout <= 0 {
		return ErrInvalidTimeout
	}

	for _, d := range []time.Duration{c.KillSettle, c.StartSettle, c.RotateSettle, c.FallbackSettle, c.PassBackoff} {
		if d < 0 {
			return ErrInvalidSettle
		}
	}

	if c.Passes < 1 {
		return ErrInvalidPasses
	}
	if c.RequestSpacing < 0 {
		return ErrInvalidRequestSpacing
	}
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}

	hasStart := c.Embedded || slices.ContainsFunc(c.StartCommands, func(cmd system.Command) bool {
		return !cmd.IsZero()
	})
	if !hasStart {
		return ErrNoStartStrategy
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return c.SessionConfig().Validate()
}

// isHostPort reports whether address is "host:port" with a usable port.
func isHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	p, err := strconv.Atoi(port)
	return err == nil && p > 0 && p <= 65535
}
