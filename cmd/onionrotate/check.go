package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/onionrotate/internal/config"
	applog "github.com/nao1215/onionrotate/internal/log"
	"github.com/nao1215/onionrotate/internal/tor"
	"github.com/spf13/cobra"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the Tor daemon and show the current egress address",
		Long: `Check reports whether the Tor SOCKS proxy and control port are reachable,
whether the proxy really is Tor, and which egress address it currently uses.

With --start the daemon is started through the process manager first,
exactly as a rotation session would.

Examples:
  onionrotate check
  onionrotate check --proxy 127.0.0.1:9150 --control 127.0.0.1:9151
  sudo onionrotate check --start`,
		Args: cobra.NoArgs,
		RunE: runCheckCmd,
	}

	addDaemonFlags(cmd)
	cmd.Flags().Bool("start", false, "Start the Tor daemon if it is not running")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	start, err := cmd.Flags().GetBool("start")
	if err != nil {
		return err
	}

	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopSignals := cancelOnShutdown(ctx, cancel, logger, "received shutdown signal, stopping check...")
	defer stopSignals()

	d, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("failed to stop embedded Tor", "error", err)
		}
	}()

	return runCheck(ctx, cfg, d, start, cmd.OutOrStdout())
}

// runCheck prints the daemon status and fails when the proxy is unusable.
func runCheck(ctx context.Context, cfg *config.Config, d *daemon, start bool, out io.Writer) error {
	if start {
		state, err := d.supervisor.EnsureRunning(ctx)
		fmt.Fprintf(out, "Tor service:   %s\n", state)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "SOCKS proxy:   %s (%s)\n", cfg.ProxyAddress, portState(ctx, cfg.ProxyAddress, cfg.ProbeTimeout))
	fmt.Fprintf(out, "Control port:  %s (%s)\n", cfg.ControlAddress, portState(ctx, cfg.ControlAddress, cfg.ProbeTimeout))

	status := d.client.CheckConnection(ctx)
	fmt.Fprintf(out, "Proxy check:   %s\n", status)
	if status != tor.ProxyStatusOK {
		return fmt.Errorf("tor proxy check failed at %s: %w", cfg.ProxyAddress, status.Error())
	}

	address, err := d.source.CurrentAddress(ctx)
	fmt.Fprintf(out, "Current IP:    %s\n", address)
	if err != nil {
		return fmt.Errorf("failed to verify egress address: %w", err)
	}

	return nil
}

func portState(ctx context.Context, address string, timeout time.Duration) string {
	if tor.ProbePort(ctx, address, timeout) {
		return "open"
	}
	return "closed"
}
