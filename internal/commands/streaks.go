package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chainlink-analytics/shelfgap/internal/streaks"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// NewStreaksCmd creates the streaks command.
func NewStreaksCmd() *cobra.Command {
	var (
		tenantID    int64
		chains      []string
		suppliers   []string
		salespeople []string
		minWeeks    int
		addresses   bool
	)

	cmd := &cobra.Command{
		Use:   "streaks",
		Short: "Show current consecutive-week gap streaks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == 0 {
				return fmt.Errorf("--tenant is required")
			}
			return runStreaks(tenantID, types.StreakFilter{
				Chains:         chains,
				Suppliers:      suppliers,
				Salespeople:    salespeople,
				MinStreakWeeks: minWeeks,
				IncludeAddress: addresses,
			})
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	cmd.Flags().StringSliceVar(&chains, "chain", nil, "restrict to chains")
	cmd.Flags().StringSliceVar(&suppliers, "supplier", nil, "restrict to suppliers")
	cmd.Flags().StringSliceVar(&salespeople, "salesperson", nil, "restrict to salespeople")
	cmd.Flags().IntVar(&minWeeks, "min-weeks", 1, "minimum streak length in weeks")
	cmd.Flags().BoolVar(&addresses, "addresses", false, "include store addresses")
	return cmd
}

func runStreaks(tenantID int64, filter types.StreakFilter) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Tenant(tenantID) == nil {
		return fmt.Errorf("tenant %d is not configured", tenantID)
	}

	rows, err := streaks.NewReader(store).Fetch(ctx, tenantID, filter)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Println("No current gap streaks.")
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Current gap streaks (tenant %d):\n\n", tenantID)
	for _, r := range rows {
		weeks := color.YellowString("%2d wk", r.StreakWeeks)
		if r.StreakWeeks >= 4 {
			weeks = color.RedString("%2d wk", r.StreakWeeks)
		}
		fmt.Printf("  %s  %-20s #%-6s  %-14s  %s (%s)\n",
			weeks, r.ChainName, r.StoreNumber, r.UPC, r.ProductName, r.SalespersonName)
		if filter.IncludeAddress && r.Address != "" {
			fmt.Printf("         %s\n", r.Address)
		}
	}
	return nil
}
