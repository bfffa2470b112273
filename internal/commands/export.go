package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chainlink-analytics/shelfgap/internal/exporter"
	"github.com/chainlink-analytics/shelfgap/internal/normalize"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	var (
		tenantID int64
		week     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a published snapshot to object storage as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == 0 || week == "" {
				return fmt.Errorf("--tenant and --week are required")
			}
			return runExport(tenantID, week)
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	cmd.Flags().StringVar(&week, "week", "", "snapshot week (YYYY-MM-DD, any day of the week)")
	return cmd
}

func runExport(tenantID int64, week string) error {
	weekStart, err := parseWeek(week)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Tenant(tenantID) == nil {
		return fmt.Errorf("tenant %d is not configured", tenantID)
	}
	if cfg.Export == nil || !cfg.Export.Enabled {
		return fmt.Errorf("export is not enabled in shelfgap.yaml")
	}

	exp, err := exporter.New(store, *cfg.Export)
	if err != nil {
		return err
	}

	receipt, err := exp.Export(ctx, tenantID, normalize.WeekStart(weekStart))
	if err != nil {
		return err
	}

	color.Green("Exported %d rows to s3://%s/%s", receipt.RowCount, cfg.Export.Bucket, receipt.Key)
	return nil
}
