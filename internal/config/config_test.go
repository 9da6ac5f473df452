package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/onionrotate/internal/model"
	"github.com/nao1215/onionrotate/internal/system"
)

// TestNewConfig verifies that NewConfig returns the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("daemon endpoints", func(t *testing.T) {
		t.Parallel()
		if cfg.ProxyAddress != "127.0.0.1:9050" {
			t.Errorf("expected ProxyAddress to be '127.0.0.1:9050', got '%s'", cfg.ProxyAddress)
		}
		if cfg.ControlAddress != "127.0.0.1:9051" {
			t.Errorf("expected ControlAddress to be '127.0.0.1:9051', got '%s'", cfg.ControlAddress)
		}
	})

	t.Run("timing", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			got  time.Duration
			want time.Duration
		}{
			{"ProbeTimeout", cfg.ProbeTimeout, 3 * time.Second},
			{"RequestTimeout", cfg.RequestTimeout, 8 * time.Second},
			{"KillSettle", cfg.KillSettle, 2 * time.Second},
			{"StartSettle", cfg.StartSettle, 3 * time.Second},
			{"RotateSettle", cfg.RotateSettle, 3 * time.Second},
			{"FallbackSettle", cfg.FallbackSettle, 5 * time.Second},
			{"Interval", cfg.Interval, 60 * time.Second},
		}
		for _, tt := range tests {
			if tt.got != tt.want {
				t.Errorf("expected %s to be %v, got %v", tt.name, tt.want, tt.got)
			}
		}
	})

	t.Run("single verification pass", func(t *testing.T) {
		t.Parallel()
		if cfg.Passes != 1 {
			t.Errorf("expected Passes to be 1, got %d", cfg.Passes)
		}
		if cfg.RequestSpacing != 0 {
			t.Errorf("expected no request spacing, got %v", cfg.RequestSpacing)
		}
	})

	t.Run("process-manager commands", func(t *testing.T) {
		t.Parallel()
		if got := cfg.KillCommand.String(); got != "pkill -x tor" {
			t.Errorf("expected kill command 'pkill -x tor', got %q", got)
		}
		if len(cfg.StartCommands) != 2 {
			t.Fatalf("expected 2 start commands, got %d", len(cfg.StartCommands))
		}
		if got := cfg.StartCommands[0].String(); got != "systemctl start tor" {
			t.Errorf("expected first start command 'systemctl start tor', got %q", got)
		}
		if got := cfg.StartCommands[1].String(); got != "service tor start" {
			t.Errorf("expected second start command 'service tor start', got %q", got)
		}
		if got := cfg.ReloadCommand.String(); got != "systemctl reload tor" {
			t.Errorf("expected reload command 'systemctl reload tor', got %q", got)
		}
	})

	t.Run("manual mode unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.Mode != model.ModeManual {
			t.Errorf("expected manual mode, got %v", cfg.Mode)
		}
		if cfg.MaxChanges != 0 {
			t.Errorf("expected MaxChanges 0, got %d", cfg.MaxChanges)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected default config to be valid, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method one rule at a time.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "proxy without port",
			mutate: func(c *Config) { c.ProxyAddress = "127.0.0.1" },
			want:   ErrInvalidProxyAddress,
		},
		{
			name:   "proxy with out of range port",
			mutate: func(c *Config) { c.ProxyAddress = "127.0.0.1:70000" },
			want:   ErrInvalidProxyAddress,
		},
		{
			name:   "control without host",
			mutate: func(c *Config) { c.ControlAddress = ":9051" },
			want:   ErrInvalidControlAddress,
		},
		{
			name:   "zero request timeout",
			mutate: func(c *Config) { c.RequestTimeout = 0 },
			want:   ErrInvalidTimeout,
		},
		{
			name: "embedded without startup timeout",
			mutate: func(c *Config) {
				c.Embedded = true
				c.EmbeddedStartupTimeout = 0
			},
			want: ErrInvalidTimeout,
		},
		{
			name:   "negative settle",
			mutate: func(c *Config) { c.FallbackSettle = -time.Second },
			want:   ErrInvalidSettle,
		},
		{
			name:   "zero passes",
			mutate: func(c *Config) { c.Passes = 0 },
			want:   ErrInvalidPasses,
		},
		{
			name:   "negative request spacing",
			mutate: func(c *Config) { c.RequestSpacing = -time.Millisecond },
			want:   ErrInvalidRequestSpacing,
		},
		{
			name:   "no endpoints",
			mutate: func(c *Config) { c.Endpoints = nil },
			want:   ErrNoEndpoints,
		},
		{
			name:   "no start commands and no embedded daemon",
			mutate: func(c *Config) { c.StartCommands = []system.Command{{}} },
			want:   ErrNoStartStrategy,
		},
		{
			name:   "both report formats",
			mutate: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true },
			want:   ErrConflictingReportFormats,
		},
		{
			name: "auto mode without interval",
			mutate: func(c *Config) {
				c.Mode = model.ModeAuto
				c.Interval = 0
			},
			want: model.ErrInvalidInterval,
		},
		{
			name: "auto mode with negative max changes",
			mutate: func(c *Config) {
				c.Mode = model.ModeAuto
				c.MaxChanges = -1
			},
			want: model.ErrInvalidMaxChanges,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("embedded daemon alone is a start strategy", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.StartCommands = nil
		cfg.Embedded = true
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("manual mode ignores interval", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Interval = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestConfigSessionConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Mode = model.ModeAuto
	cfg.Interval = 2 * time.Minute
	cfg.MaxChanges = 5

	got := cfg.SessionConfig()
	want := model.SessionConfig{Mode: model.ModeAuto, Interval: 2 * time.Minute, MaxChanges: 5}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.onionrotate.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), DefaultConfigFile, `proxy: 127.0.0.1:9150
control: 127.0.0.1:9151
controlCookieFile: /run/tor/control.authcookie
endpoints:
  - https://example.com/ip
killCommand: pkill -x tor
startCommands:
  - rc-service tor start
reloadCommand: rc-service tor reload
embedded: true
requestSpacing: 500ms
passes: 2
mode: auto
interval: 2m
maxChanges: 10
`)

		file, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if file.Proxy != "127.0.0.1:9150" {
			t.Errorf("expected proxy 127.0.0.1:9150, got %q", file.Proxy)
		}
		if file.RequestSpacing != 500*time.Millisecond {
			t.Errorf("expected requestSpacing 500ms, got %v", file.RequestSpacing)
		}
		if file.Interval != 2*time.Minute {
			t.Errorf("expected interval 2m, got %v", file.Interval)
		}
		if file.Embedded == nil || !*file.Embedded {
			t.Error("expected embedded true")
		}
		if len(file.StartCommands) != 1 {
			t.Errorf("expected 1 start command, got %d", len(file.StartCommands))
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, t.TempDir(), DefaultConfigFile, `invalid: yaml: content: [}`)
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

func TestFileApply(t *testing.T) {
	t.Parallel()

	t.Run("empty file keeps defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		if err := (&File{}).Apply(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ProxyAddress != DefaultProxyAddress || len(cfg.StartCommands) != 2 {
			t.Errorf("expected defaults to be kept, got %+v", cfg)
		}
	})

	t.Run("overrides set keys", func(t *testing.T) {
		t.Parallel()

		embedded := true
		file := &File{
			Control:         "127.0.0.1:9151",
			ControlPassword: "secret",
			StartCommands:   []string{"rc-service tor start"},
			Embedded:        &embedded,
			Passes:          3,
			Mode:            "auto",
			MaxChanges:      4,
		}
		cfg := NewConfig()
		if err := file.Apply(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ControlAddress != "127.0.0.1:9151" {
			t.Errorf("expected control 127.0.0.1:9151, got %q", cfg.ControlAddress)
		}
		if cfg.ControlPassword != "secret" {
			t.Errorf("expected control password to be set")
		}
		if len(cfg.StartCommands) != 1 || cfg.StartCommands[0].Name != "rc-service" {
			t.Errorf("expected rc-service start command, got %v", cfg.StartCommands)
		}
		if !cfg.Embedded {
			t.Error("expected embedded true")
		}
		if cfg.Passes != 3 {
			t.Errorf("expected passes 3, got %d", cfg.Passes)
		}
		if cfg.Mode != model.ModeAuto || cfg.MaxChanges != 4 {
			t.Errorf("expected auto mode with 4 changes, got %v/%d", cfg.Mode, cfg.MaxChanges)
		}
		if cfg.ProxyAddress != DefaultProxyAddress {
			t.Errorf("expected proxy default to be kept, got %q", cfg.ProxyAddress)
		}
	})

	t.Run("rejects blank start command", func(t *testing.T) {
		t.Parallel()

		file := &File{StartCommands: []string{"systemctl start tor", "   "}}
		err := file.Apply(NewConfig())
		if !errors.Is(err, system.ErrEmptyCommand) {
			t.Fatalf("expected ErrEmptyCommand, got %v", err)
		}
		if !strings.Contains(err.Error(), "startCommands[1]") {
			t.Errorf("expected error to name the entry, got %v", err)
		}
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		t.Parallel()

		err := (&File{Mode: "sometimes"}).Apply(NewConfig())
		if !errors.Is(err, model.ErrInvalidMode) {
			t.Errorf("expected ErrInvalidMode, got %v", err)
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		configPath := writeFile(t, t.TempDir(), "custom.yaml", "passes: 1\n")

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("finds file in current directory", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, DefaultConfigFile, "passes: 1\n")
		t.Chdir(dir)

		want := filepath.Join(dir, DefaultConfigFile)
		if result := FindConfigFile(""); result != want {
			t.Errorf("expected %q, got %q", want, result)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("explicit missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("applies explicit file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "config.yaml", "proxy: 127.0.0.1:9150\n")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ProxyAddress != "127.0.0.1:9150" {
			t.Errorf("expected proxy from file, got %q", cfg.ProxyAddress)
		}
		if cfg.ConfigFilePath != path {
			t.Errorf("expected ConfigFilePath %q, got %q", path, cfg.ConfigFilePath)
		}
	})

	t.Run("invalid command in file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "config.yaml", "startCommands:\n  - \"\"\n")

		if _, err := Load(path); !errors.Is(err, system.ErrEmptyCommand) {
			t.Errorf("expected ErrEmptyCommand, got %v", err)
		}
	})
}

func TestXDGConfigDir(t *testing.T) {
	t.Parallel()

	dir := XDGConfigDir()
	if filepath.Base(dir) != AppName {
		t.Errorf("expected XDG config dir to end in %q, got %q", AppName, dir)
	}
}
