package config

import (
	"fmt"
	"time"

	"github.com/nao1215/onionrotate/internal/model"
	"github.com/nao1215/onionrotate/internal/system"
)

// File represents the structure of the onionrotate configuration file.
// Every key is optional; unset keys keep the current value.
type File struct {
	// Proxy is the SOCKS5 proxy address.
	Proxy string `yaml:"proxy,omitempty"`

	// Control is the control port address.
	Control string `yaml:"control,omitempty"`

	// ControlPassword authenticates against the control port.
	ControlPassword string `yaml:"controlPassword,omitempty"`

	// ControlCookieFile is the path of the authentication cookie.
	ControlCookieFile string `yaml:"controlCookieFile,omitempty"`

	// Endpoints replaces the address-reporting endpoint list.
	Endpoints []string `yaml:"endpoints,omitempty"`

	// KillCommand, StartCommands, and ReloadCommand are whitespace-separated
	// command lines, e.g. "systemctl start tor".
	KillCommand   string   `yaml:"killCommand,omitempty"`
	StartCommands []string `yaml:"startCommands,omitempty"`
	ReloadCommand string   `yaml:"reloadCommand,omitempty"`

	// Embedded enables the bundled daemon launcher.
	Embedded *bool `yaml:"embedded,omitempty"`

	// RequestSpacing is a duration such as "500ms".
	RequestSpacing time.Duration `yaml:"requestSpacing,omitempty"`

	// Passes is the number of verification passes.
	Passes int `yaml:"passes,omitempty"`

	// Mode is "manual" or "auto".
	Mode string `yaml:"mode,omitempty"`

	// Interval is the auto-mode wait, e.g. "2m".
	Interval time.Duration `yaml:"interval,omitempty"`

	// MaxChanges caps auto-mode rotations. Zero keeps the current value.
	MaxChanges int `yaml:"maxChanges,omitempty"`
}

// Apply overlays the values set in the file onto cfg.
func (f *File) Apply(cfg *Config) error {
	if f.Proxy != "" {
		cfg.ProxyAddress = f.Proxy
	}
	if f.Control != "" {
		cfg.ControlAddress = f.Control
	}
	if f.ControlPassword != "" {
		cfg.ControlPassword = f.ControlPassword
	}
	if f.ControlCookieFile != "" {
		cfg.ControlCookieFile = f.ControlCookieFile
	}
	if len(f.Endpoints) > 0 {
		cfg.Endpoints = append([]string(nil), f.Endpoints...)
	}

	if f.KillCommand != "" {
		cmd, err := system.ParseCommand(f.KillCommand)
		if err != nil {
			return fmt.Errorf("killCommand: %w", err)
		}
		cfg.KillCommand = cmd
	}
	if len(f.StartCommands) > 0 {
		cmds := make([]system.Command, 0, len(f.StartCommands))
		for i, line := range f.StartCommands {
			cmd, err := system.ParseCommand(line)
			if err != nil {
				return fmt.Errorf("startCommands[%d]: %w", i, err)
			}
			cmds = append(cmds, cmd)
		}
		cfg.StartCommands = cmds
	}
	if f.ReloadCommand != "" {
		cmd, err := system.ParseCommand(f.ReloadCommand)
		if err != nil {
			return fmt.Errorf("reloadCommand: %w", err)
		}
		cfg.ReloadCommand = cmd
	}

	if f.Embedded != nil {
		cfg.Embedded = *f.Embedded
	}
	if f.RequestSpacing != 0 {
		cfg.RequestSpacing = f.RequestSpacing
	}
	if f.Passes != 0 {
		cfg.Passes = f.Passes
	}

	if f.Mode != "" {
		mode, err := model.ParseMode(f.Mode)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		cfg.Mode = mode
	}
	if f.Interval != 0 {
		cfg.Interval = f.Interval
	}
	if f.MaxChanges != 0 {
		cfg.MaxChanges = f.MaxChanges
	}

	return nil
}
