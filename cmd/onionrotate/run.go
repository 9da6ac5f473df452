package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/onionrotate/internal/config"
	"github.com/nao1215/onionrotate/internal/database"
	applog "github.com/nao1215/onionrotate/internal/log"
	"github.com/nao1215/onionrotate/internal/metrics"
	"github.com/nao1215/onionrotate/internal/model"
	"github.com/nao1215/onionrotate/internal/report"
	"github.com/nao1215/onionrotate/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// metricsShutdownTimeout bounds the graceful shutdown of the metrics server.
const metricsShutdownTimeout = 5 * time.Second

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a rotation session",
		Long: `Run makes sure the Tor daemon is running, records the current egress
address, and then rotates the identity either on demand or on a timer.

Every rotation is verified by looking up the egress address through the
Tor proxy. The outcome of each attempt is printed as it happens and a
summary is written when the session ends.

Rotation requires permission to restart the Tor service, so run it as
root or give the process manager commands in the configuration file.

Examples:
  # Rotate every time ENTER is pressed
  sudo onionrotate run

  # Rotate every 2 minutes, 10 times, then print a JSON summary
  sudo onionrotate run -m auto -i 2m -n 10 --json

  # Authenticate with the control cookie and expose metrics
  sudo onionrotate run -m auto --cookie-file /run/tor/control.authcookie \
    --metrics-addr 127.0.0.1:9101`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	addDaemonFlags(cmd)

	cmd.Flags().StringP("mode", "m", model.ModeManual.String(),
		"Rotation mode: manual (m, 1) or auto (a, 2)")
	cmd.Flags().DurationP("interval", "i", config.DefaultInterval,
		"Wait between rotations in auto mode")
	cmd.Flags().IntP("max-changes", "n", 0,
		"Stop after this many rotations in auto mode (0 = unlimited)")
	cmd.Flags().Bool("require-baseline", false,
		"Abort when the starting address cannot be verified")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. 127.0.0.1:9101)")
	cmd.Flags().BoolP("json", "j", false,
		"Write the session summary as JSON")
	cmd.Flags().Bool("markdown", false,
		"Write the session summary as Markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write the session summary to a file instead of stdout")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	if os.Geteuid() != 0 {
		logger.Warn("not running as root, restarting the Tor service may fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopSignals := cancelOnShutdown(ctx, cancel, logger, "received shutdown signal, stopping session...")
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

	return runSession(ctx, cfg, d, logger, cmd.InOrStdin(), cmd.OutOrStdout())
}

// runSession drives one rotation session to completion and writes its
// summary. Cancellation of ctx ends the session cleanly.
func runSession(ctx context.Context, cfg *config.Config, d *daemon, logger *slog.Logger, in io.Reader, out io.Writer) error {
	events, err := database.Open(ctx)
	if err != nil {
		return err
	}
	defer events.Close()

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithRequireBaseline(cfg.RequireBaseline),
		session.WithObserver(newConsole(out)),
		session.WithObserver(database.NewObserver(events, logger)),
	}

	var recorder *metrics.Recorder
	if cfg.MetricsAddress != "" {
		recorder = metrics.NewRecorder()
		opts = append(opts, session.WithObserver(recorder))
	}

	sess, err := session.New(cfg.SessionConfig(), d.supervisor, d.rotator, d.source, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Checking Tor service...")

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	var triggers chan struct{}
	if cfg.Mode == model.ModeManual {
		triggers = make(chan struct{})
		go readTriggers(gctx, in, triggers)
	}

	g.Go(func() error {
		// Ending the session shuts the metrics server down.
		defer stop()
		return sess.Run(gctx, triggers)
	})

	if recorder != nil {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddress, recorder.Handler(), logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	summary := sess.Summary()
	if err := events.Enrich(context.Background(), summary); err != nil {
		logger.Warn("failed to aggregate rotation history", "error", err)
	}

	return outputSummary(cfg, summary, out)
}

// readTriggers sends one trigger per input line and closes triggers when
// input ends.
func readTriggers(ctx context.Context, in io.Reader, triggers chan<- struct{}) {
	defer close(triggers)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case triggers <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}

// serveMetrics serves handler on /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsShutdownTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logger.Info("serving metrics", "address", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// outputSummary writes the session summary in the requested format.
func outputSummary(cfg *config.Config, summary *model.SessionSummary, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Summaries list every egress address the session used.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := writer.Write(summary)
	return err
}
