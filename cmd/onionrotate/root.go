package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for onionrotate.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onionrotate",
		Short: "Rotate and verify the Tor exit identity",
		Long: `onionrotate rotates the identity of a local Tor daemon and verifies every
rotation by looking up the public egress address through the Tor proxy.

It makes sure the daemon is running before the first rotation, restarting
it through the system service manager when needed. Rotations are requested
over the control port; if that fails the daemon is reloaded instead.

Rotations happen either on demand (manual mode, press ENTER) or on a fixed
interval (auto mode), optionally stopping after a number of changes.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
