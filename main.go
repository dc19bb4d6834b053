package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opendesk/launcherd/internal/launchlog"
	"github.com/opendesk/launcherd/internal/registry"
	"github.com/opendesk/launcherd/internal/service"
)

var (
	logLevel  string
	logFormat string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "launcherd",
		Short:         "Process-isolated plugin launcher service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "text or json")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRegistryCmd())
	cmd.RunE = runServe // bare invocation behaves like "serve"

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the service loop over stdin/stdout",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	launchlog.Init(logLevel, logFormat, launchlog.Stderr)

	reg := registry.Load(registry.SearchPaths())
	launchlog.Info().Int("plugins", len(reg.All())).Msg("registry loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := service.New(reg, os.Stdin, os.Stdout, nil)
	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("launcherd: %w", err)
	}
	return nil
}

func newRegistryCmd() *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the plugin registry",
	}
	registryCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every plugin discovered on the search path, in load order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			launchlog.Init(logLevel, logFormat, launchlog.Stderr)
			reg := registry.Load(registry.SearchPaths())
			for _, id := range reg.All() {
				d, _ := reg.Get(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", id, d.Name, d.ExecPath)
			}
			return nil
		},
	})
	return registryCmd
}
