// Command ordersync is the offline-first console for workshop service
// orders. Without a subcommand it starts the interactive console; the
// subcommands run one console command and exit, which suits cron jobs.
//
// Configuration flags (-a, -d, -t, -l, -i, -s, -c) are read by the config
// package from the raw arguments, so cobra leaves them alone.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/ordersync/internal/buildinfo"
	"github.com/dmitrijs2005/ordersync/internal/client/cli"
	"github.com/dmitrijs2005/ordersync/internal/client/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ordersync",
	Short: "Offline-first console for workshop service orders",
	Long: `ordersync keeps clients, service orders, vehicles, line items and expenses
in a local database and pushes every change to the REST backend whenever it
is reachable.`,
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE: withApp(func(ctx context.Context, a *cli.App) error {
		buildinfo.PrintBuildData(os.Stdout)
		return a.Run(ctx)
	}),
}

func init() {
	rootCmd.AddCommand(versionCmd)
	for _, c := range []struct{ name, short string }{
		{"sync", "Push pending changes once and exit"},
		{"status", "Print connectivity and queue status"},
		{"errors", "List changes that ran out of retries"},
		{"reset", "Re-queue changes that ran out of retries"},
	} {
		rootCmd.AddCommand(oneShot(c.name, c.short))
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		buildinfo.PrintBuildData(cmd.OutOrStdout())
	},
}

func oneShot(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:                name,
		Short:              short,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: withApp(func(ctx context.Context, a *cli.App) error {
			return a.RunCommand(ctx, name)
		}),
	}
}

// withApp opens the app from the layered configuration for the duration of
// one command.
func withApp(run func(ctx context.Context, a *cli.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := cli.NewApp(cmd.Context(), config.LoadConfig())
		if err != nil {
			return fmt.Errorf("open ordersync: %w", err)
		}
		defer a.Close()
		return run(cmd.Context(), a)
	}
}
