package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidProxyAddress is returned when the SOCKS proxy address is not
	// in "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")

	// ErrInvalidControlAddress is returned when the control port address is
	// not in "host:port" form.
	ErrInvalidControlAddress = errors.New("invalid control address: expected host:port")

	// ErrInvalidTimeout is returned when a probe, control, request, or
	// command timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidSettle is returned when a settle delay is negative.
	// Zero disables the delay.
	ErrInvalidSettle = errors.New("invalid settle delay: must be non-negative")

	// ErrInvalidPasses is returned when fewer than one verification pass is
	// configured.
	ErrInvalidPasses = errors.New("invalid verification passes: must be at least 1")

	// ErrInvalidRequestSpacing is returned when the request spacing is negative.
	ErrInvalidRequestSpacing = errors.New("invalid request spacing: must be non-negative")

	// ErrNoEndpoints is returned when no address-reporting endpoint is configured.
	ErrNoEndpoints = errors.New("no address endpoints configured")

	// ErrNoStartStrategy is returned when there is neither a start command
	// nor the embedded daemon to fall back on.
	ErrNoStartStrategy = errors.New("no start strategy: configure a start command or enable the embedded daemon")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
