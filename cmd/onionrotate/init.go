package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/onionrotate/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/onionrotate.yaml
var configTemplate embed.FS

// templatePath is the location of the template inside configTemplate.
const templatePath = "templates/onionrotate.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an onionrotate configuration file",
		Long: `Init writes a commented configuration file with the default settings.

By default the file is created as .onionrotate.yaml in the current
directory. With --global it is written to the XDG config directory
instead, where every invocation of onionrotate picks it up.

Examples:
  # Create .onionrotate.yaml in current directory
  onionrotate init

  # Create ~/.config/onionrotate/config.yaml
  onionrotate init --global

  # Create config file at a specific path
  onionrotate init -o myconfig.yaml

  # Force overwrite existing file
  onionrotate init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")
	cmd.Flags().Bool("global", false,
		"Write the file to the XDG config directory")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	global, err := cmd.Flags().GetBool("global")
	if err != nil {
		return err
	}
	if global {
		if cmd.Flags().Changed("output") {
			return fmt.Errorf("--global and --output cannot be used together")
		}
		outputPath = filepath.Join(config.XDGConfigDir(), config.XDGConfigFile)
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may later hold a control port password.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - Tor proxy and control port addresses")
	fmt.Fprintln(out, "  - Control port password or cookie file")
	fmt.Fprintln(out, "  - Rotation mode, interval and limit")

	return nil
}
