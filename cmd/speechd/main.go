package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/artasov/speechd"
	"github.com/artasov/speechd/internal/config"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string
	JSONOutput bool
}

// ClientFlags holds daemon connection flags for client commands
type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// buildRoot creates the root command and wires all subcommands
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	clientFlags := &ClientFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createOpCommand(globalFlags, clientFlags, "install", "Fetch the server checkout and start it",
			"Install clones the fast-fast-whisper repository if needed and starts the server.\nAn existing checkout is reused as-is."),
		createOpCommand(globalFlags, clientFlags, "start", "Start the server",
			"Start launches the server, fetching the checkout first only when none exists."),
		createOpCommand(globalFlags, clientFlags, "stop", "Stop the server",
			"Stop runs the platform stop script and waits for the server to go down."),
		createOpCommand(globalFlags, clientFlags, "restart", "Restart the server",
			"Restart stops the server best-effort and starts it again."),
		createOpCommand(globalFlags, clientFlags, "reinstall", "Wipe the checkout and install fresh",
			"Reinstall deletes the existing checkout, fetches it again, and starts the server."),
		createStatusCommand(globalFlags, clientFlags),
		createHealthCommand(globalFlags, clientFlags),
		createModelCommand(globalFlags, clientFlags),
		createSetDirCommand(globalFlags),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "speechd",
		Short: "Local speech server lifecycle manager",
		Long: `Speechd manages the lifecycle of a local fast-fast-whisper server:
provisioning the checkout, running its control scripts, and gating every
operation on the server's health endpoint.

Examples:
  speechd serve                       # Start the daemon
  speechd install                     # Fetch the checkout and start the server
  speechd status                      # Show the current status
  speechd stop --api-url=http://remote:8787  # Stop via a remote daemon`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", config.DefaultPath(), "path to TOML config file (optional)")
	root.PersistentFlags().BoolVar(&flags.JSONOutput, "json", false, "print raw JSON responses")
	return root
}

func addClientFlags(cmd *cobra.Command, flags *ClientFlags, opTimeout time.Duration) {
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "http://"+config.DefaultAPIAddr, "daemon API base URL")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", opTimeout, "API request timeout")
}

// loadConfig loads the config for local (non-daemon) operation.
func loadConfig(flags *GlobalFlags) (*config.Config, error) {
	cfg, err := speechd.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}
