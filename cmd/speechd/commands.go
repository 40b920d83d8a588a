package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/artasov/speechd"
	"github.com/artasov/speechd/internal/history/factory"
	"github.com/artasov/speechd/internal/logger"
)

// createServeCommand creates the serve subcommand
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the speechd daemon",
		Long: `Start the speechd daemon serving the lifecycle API.

Examples:
  speechd serve                     # Start daemon (uses --config)
  speechd serve config.toml         # Start with specific config file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				globalFlags.ConfigPath = args[0]
			}
			return runServeCommand(globalFlags)
		},
	}
}

func runServeCommand(globalFlags *GlobalFlags) error {
	cfg, err := loadConfig(globalFlags)
	if err != nil {
		return err
	}
	logger.Setup(cfg.Log)

	if err := speechd.RegisterMetricsDefault(); err != nil {
		fmt.Printf("Warning: failed to register metrics: %v\n", err)
	}

	mgr := speechd.New(cfg)
	if cfg.HistoryDSN != "" {
		sink, err := factory.NewSinkFromDSN(cfg.HistoryDSN)
		if err != nil {
			return fmt.Errorf("history sink: %w", err)
		}
		mgr.SetHistorySinks(sink)
	}
	defer mgr.CloseHistorySinks()

	// Reconcile with whatever is actually running before serving.
	st := mgr.CheckHealth(context.Background())

	if cfg.AutoStart && st.Installed && !st.Running {
		go func() {
			if _, err := mgr.Start(context.Background()); err != nil {
				fmt.Printf("Warning: auto-start failed: %v\n", err)
			}
		}()
	}

	server := speechd.NewHTTPServer(cfg.APIAddr, "", mgr)
	fmt.Printf("Starting speechd server on %s (install dir: %s)\n", cfg.APIAddr, cfg.RepoDir())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	return server.Close()
}

// createOpCommand creates a lifecycle subcommand (install/start/stop/...).
// It talks to a running daemon when one is reachable and otherwise runs
// the operation in-process.
func createOpCommand(globalFlags *GlobalFlags, clientFlags *ClientFlags, op, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   op,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(clientFlags.APIUrl, clientFlags.APITimeout)
			if client.IsReachable() {
				st, err := client.Op(op)
				if err != nil {
					return err
				}
				return printStatus(st, globalFlags.JSONOutput)
			}
			cfg, err := loadConfig(globalFlags)
			if err != nil {
				return err
			}
			mgr := speechd.New(cfg)
			st, err := runLocalOp(mgr, op)
			if err != nil {
				return err
			}
			return printStatus(st, globalFlags.JSONOutput)
		},
	}
	addClientFlags(cmd, clientFlags, 10*time.Minute)
	return cmd
}

func runLocalOp(mgr *speechd.Manager, op string) (speechd.Status, error) {
	ctx := context.Background()
	switch op {
	case "install":
		return mgr.Install(ctx)
	case "start":
		return mgr.Start(ctx)
	case "stop":
		return mgr.Stop(ctx)
	case "restart":
		return mgr.Restart(ctx)
	case "reinstall":
		return mgr.Reinstall(ctx)
	default:
		return speechd.Status{}, fmt.Errorf("unknown operation: %s", op)
	}
}

// createStatusCommand creates the status subcommand
func createStatusCommand(globalFlags *GlobalFlags, clientFlags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(clientFlags.APIUrl, clientFlags.APITimeout)
			if client.IsReachable() {
				st, err := client.Status()
				if err != nil {
					return err
				}
				return printStatus(st, globalFlags.JSONOutput)
			}
			cfg, err := loadConfig(globalFlags)
			if err != nil {
				return err
			}
			return printStatus(speechd.New(cfg).Status(), globalFlags.JSONOutput)
		},
	}
	addClientFlags(cmd, clientFlags, 10*time.Second)
	return cmd
}

// createHealthCommand creates the health subcommand
func createHealthCommand(globalFlags *GlobalFlags, clientFlags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the server health endpoint once",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(clientFlags.APIUrl, clientFlags.APITimeout)
			if client.IsReachable() {
				st, err := client.Health()
				if err != nil {
					return err
				}
				return printStatus(st, globalFlags.JSONOutput)
			}
			cfg, err := loadConfig(globalFlags)
			if err != nil {
				return err
			}
			st := speechd.New(cfg).CheckHealth(context.Background())
			return printStatus(st, globalFlags.JSONOutput)
		},
	}
	addClientFlags(cmd, clientFlags, 10*time.Second)
	return cmd
}

// createModelCommand creates the model subcommand
func createModelCommand(globalFlags *GlobalFlags, clientFlags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model [name]",
		Short: "Check whether a model's weights are downloaded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			client := NewAPIClient(clientFlags.APIUrl, clientFlags.APITimeout)
			if client.IsReachable() {
				downloaded, err := client.ModelDownloaded(name)
				if err != nil {
					return err
				}
				fmt.Printf("%s: downloaded=%v\n", name, downloaded)
				return nil
			}
			cfg, err := loadConfig(globalFlags)
			if err != nil {
				return err
			}
			fmt.Printf("%s: downloaded=%v\n", name, speechd.New(cfg).ModelDownloaded(name))
			return nil
		},
	}
	addClientFlags(cmd, clientFlags, 10*time.Second)
	return cmd
}

// createSetDirCommand creates the set-dir subcommand
func createSetDirCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-dir [path]",
		Short: "Set and persist the install base directory",
		Long: `Set the directory under which the server checkout lives. The choice
is persisted and picked up by future runs and by the daemon.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(globalFlags)
			if err != nil {
				return err
			}
			if err := cfg.SetInstallRoot(args[0]); err != nil {
				return fmt.Errorf("set install dir: %w", err)
			}
			fmt.Printf("Install dir set to %s\n", cfg.RepoDir())
			return nil
		},
	}
}

func printStatus(st speechd.Status, asJSON bool) error {
	if asJSON {
		b, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}
	fmt.Printf("phase:      %s\n", st.Phase)
	fmt.Printf("installed:  %v\n", st.Installed)
	fmt.Printf("running:    %v\n", st.Running)
	fmt.Printf("message:    %s\n", st.Message)
	if st.Error != "" {
		fmt.Printf("error:      %s\n", st.Error)
	}
	if st.LastAction != "" {
		fmt.Printf("last action: %s", st.LastAction)
		if st.LastSuccessAt != nil {
			fmt.Printf(" (at %s)", st.LastSuccessAt.Format(time.RFC3339))
		}
		fmt.Println()
	}
	if st.InstallDir != "" {
		fmt.Printf("install dir: %s\n", st.InstallDir)
	}
	return nil
}
