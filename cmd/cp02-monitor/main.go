// Cp02-monitor is a desk companion for the CP-02 charging hub.
//
// It finds the hub on the local network by probing for its metrics
// endpoint, remembers the confirmed address across runs, and polls the
// endpoint into a live per-port power display.
//
// Usage:
//
//	cp02-monitor [command] [flags]
//
// Running without arguments launches the live watch screen.
// See 'cp02-monitor --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ypwhs/cp02-monitor/internal/logging"
	"github.com/ypwhs/cp02-monitor/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cp02-monitor",
	Short: "CP-02 Charging Hub Monitor",
	Long: `A terminal monitor for the CP-02 charging hub.

Discovers the hub on the local network, remembers its address across runs,
and polls its metrics endpoint into a live per-port power display.

If no command is specified, the watch screen launches automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch the watch screen
		return runWatch(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cp02-monitor %s\n", version.Full())
	},
}
