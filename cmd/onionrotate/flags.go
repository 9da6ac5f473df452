package main

import (
	"os"
	"time"

	"github.com/nao1215/onionrotate/internal/config"
	"github.com/nao1215/onionrotate/internal/model"
	"github.com/spf13/cobra"
)

// controlPasswordEnv supplies the control port password without exposing
// it in the process list.
const controlPasswordEnv = "ONIONROTATE_CONTROL_PASSWORD"

// addDaemonFlags registers the flags shared by every command that talks to
// the daemon.
func addDaemonFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("config", "c", "",
		"Configuration file (default: .onionrotate.yaml, then the XDG config directory)")
	flags.String("proxy", config.DefaultProxyAddress,
		"Tor SOCKS5 proxy address")
	flags.String("control", config.DefaultControlAddress,
		"Tor control port address")
	flags.String("control-password", "",
		"Control port password (or set "+controlPasswordEnv+")")
	flags.String("cookie-file", "",
		"Control port authentication cookie file")
	flags.Bool("embedded", false,
		"Launch a bundled Tor daemon when the system service cannot be started")
	flags.Duration("embedded-timeout", config.DefaultEmbeddedStartupTimeout,
		"Maximum time to wait for the bundled daemon to bootstrap")
	flags.Int("passes", config.DefaultPasses,
		"Passes over the address endpoints before a lookup fails")
	flags.Duration("request-spacing", 0,
		"Minimum delay between address endpoint requests (0 disables)")
	flags.Duration("request-timeout", config.DefaultRequestTimeout,
		"Timeout of each address endpoint request")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig loads the configuration file and overlays the flags the user
// set explicitly, so unset flags never clobber file values.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if pw := os.Getenv(controlPasswordEnv); pw != "" {
		cfg.ControlPassword = pw
	}

	stringFlags := []struct {
		name string
		dst  *string
	}{
		{"proxy", &cfg.ProxyAddress},
		{"control", &cfg.ControlAddress},
		{"control-password", &cfg.ControlPassword},
		{"cookie-file", &cfg.ControlCookieFile},
		{"metrics-addr", &cfg.MetricsAddress},
		{"output", &cfg.ReportFile},
	}
	for _, f := range stringFlags {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetString(f.name); err != nil {
			return nil, err
		}
	}

	boolFlags := []struct {
		name string
		dst  *bool
	}{
		{"embedded", &cfg.Embedded},
		{"require-baseline", &cfg.RequireBaseline},
		{"json", &cfg.JSONReport},
		{"markdown", &cfg.MarkdownReport},
	}
	for _, f := range boolFlags {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetBool(f.name); err != nil {
			return nil, err
		}
	}

	intFlags := []struct {
		name string
		dst  *int
	}{
		{"passes", &cfg.Passes},
		{"max-changes", &cfg.MaxChanges},
	}
	for _, f := range intFlags {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetInt(f.name); err != nil {
			return nil, err
		}
	}

	durationFlags := []struct {
		name string
		dst  *time.Duration
	}{
		{"embedded-timeout", &cfg.EmbeddedStartupTimeout},
		{"request-spacing", &cfg.RequestSpacing},
		{"request-timeout", &cfg.RequestTimeout},
		{"interval", &cfg.Interval},
	}
	for _, f := range durationFlags {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetDuration(f.name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("mode") {
		value, err := flags.GetString("mode")
		if err != nil {
			return nil, err
		}
		if cfg.Mode, err = model.ParseMode(value); err != nil {
			return nil, err
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}
