package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chainlink-analytics/shelfgap/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "shelfgap",
		Short: "Weekly distribution gap snapshot pipeline",
		Long: `Shelfgap materializes each tenant's distribution gap report, publishes an
immutable weekly snapshot of it (at most once per tenant-week), and serves
consecutive-week gap streaks computed from those snapshots.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewMigrateCmd(),
		commands.NewPublishCmd(),
		commands.NewStatusCmd(),
		commands.NewStreaksCmd(),
		commands.NewExportCmd(),
		commands.NewServeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
