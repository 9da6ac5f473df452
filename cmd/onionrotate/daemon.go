package main

import (
	"fmt"
	"log/slog"

	"github.com/nao1215/onionrotate/internal/config"
	"github.com/nao1215/onionrotate/internal/session"
	"github.com/nao1215/onionrotate/internal/supervisor"
	"github.com/nao1215/onionrotate/internal/system"
	"github.com/nao1215/onionrotate/internal/tor"
	"github.com/nao1215/onionrotate/internal/verify"
)

// daemon bundles the capabilities a session drives. Tests replace the
// interfaces with fakes.
type daemon struct {
	supervisor session.Supervisor
	rotator    session.Rotator
	source     session.AddressSource

	// client is nil in tests.
	client *tor.Client

	// embedded is nil unless the bundled daemon is enabled.
	embedded *tor.EmbeddedTor
}

// newDaemon wires the supervisor, control channel, and verifier for cfg.
func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	client, err := tor.NewClient(cfg.ProxyAddress, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	runner := system.NewExecRunner(system.WithTimeout(cfg.CommandTimeout))

	strategies := supervisor.CommandStrategies(runner, cfg.StartCommands)
	var embedded *tor.EmbeddedTor
	if cfg.Embedded {
		embedded = tor.NewEmbeddedTor(cfg.ProxyAddress, cfg.ControlAddress,
			tor.WithStartupTimeout(cfg.EmbeddedStartupTimeout),
		)
		strategies = append(strategies, embedded)
	}

	sup := supervisor.New(
		tor.NewPortProber(cfg.ProxyAddress, cfg.ProbeTimeout),
		runner,
		supervisor.WithKillCommand(cfg.KillCommand),
		supervisor.WithStrategies(strategies...),
		supervisor.WithSettle(cfg.KillSettle, cfg.StartSettle),
		supervisor.WithLogger(logger),
	)

	// Once launched, the bundled daemon's control address and cookie
	// replace the configured ones.
	var endpoint tor.EndpointSource
	if embedded != nil {
		endpoint = embedded
	}
	control := newControlChannel(cfg, runner, endpoint, logger)

	verifier := verify.New(client.NewHTTPClient(),
		verify.WithEndpoints(cfg.Endpoints...),
		verify.WithRequestTimeout(cfg.RequestTimeout),
		verify.WithPasses(cfg.Passes, cfg.PassBackoff),
		verify.WithRequestSpacing(cfg.RequestSpacing),
		verify.WithLogger(logger),
	)

	return &daemon{
		supervisor: sup,
		rotator:    control,
		source:     verifier,
		client:     client,
		embedded:   embedded,
	}, nil
}

// newControlChannel builds the rotator for cfg. endpoint may be nil.
func newControlChannel(cfg *config.Config, runner system.Runner, endpoint tor.EndpointSource, logger *slog.Logger) *tor.ControlChannel {
	opts := []tor.ControlOption{
		tor.WithControlAuth(tor.ControlAuth{
			Password:   cfg.ControlPassword,
			CookieFile: cfg.ControlCookieFile,
		}),
		tor.WithControlTimeout(cfg.ControlTimeout),
		tor.WithSettle(cfg.RotateSettle, cfg.FallbackSettle),
		tor.WithReload(runner, cfg.ReloadCommand),
		tor.WithControlLogger(logger),
	}
	if endpoint != nil {
		opts = append(opts, tor.WithEndpointSource(endpoint))
	}
	return tor.NewControlChannel(cfg.ControlAddress, opts...)
}

// Close stops the bundled daemon if this process launched it.
func (d *daemon) Close() error {
	if d.embedded == nil {
		return nil
	}
	return d.embedded.Stop()
}
