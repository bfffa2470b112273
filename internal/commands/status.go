package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [tenant-id]",
		Short: "Show recent snapshot runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tenantID int64
			if len(args) > 0 {
				if _, err := fmt.Sscanf(args[0], "%d", &tenantID); err != nil {
					return fmt.Errorf("invalid tenant id %q", args[0])
				}
			}
			return runStatus(tenantID, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show per tenant")
	return cmd
}

func runStatus(tenantID int64, limit int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	tenants := cfg.Tenants
	if tenantID != 0 {
		t := cfg.Tenant(tenantID)
		if t == nil {
			return fmt.Errorf("tenant %d is not configured", tenantID)
		}
		tenants = []types.TenantConfig{*t}
	}

	bold := color.New(color.Bold)
	for _, tenant := range tenants {
		runs, err := store.ListRuns(ctx, tenant.ID, limit)
		if err != nil {
			return fmt.Errorf("listing runs for tenant %d: %w", tenant.ID, err)
		}

		_, _ = bold.Printf("%s (tenant %d)\n", tenant.Name, tenant.ID)
		if len(runs) == 0 {
			fmt.Println("  no snapshots published")
			fmt.Println()
			continue
		}
		for _, run := range runs {
			fmt.Printf("  %s  %6d rows  %-24s  run %s\n",
				run.SnapshotWeekStart.Format("2006-01-02"),
				run.RowCount, run.TriggeredBy, run.RunID)
		}
		fmt.Println()
	}
	return nil
}
