// Package commands implements the CLI subcommands for the shelfgap binary.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/chainlink-analytics/shelfgap/internal/alert"
	"github.com/chainlink-analytics/shelfgap/internal/config"
	"github.com/chainlink-analytics/shelfgap/internal/materializer"
	"github.com/chainlink-analytics/shelfgap/internal/publisher"
	"github.com/chainlink-analytics/shelfgap/internal/warehouse"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// openStore loads shelfgap.yaml from the working directory and connects to
// the warehouse.
func openStore(ctx context.Context) (*types.ProjectConfig, *warehouse.Store, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := warehouse.New(ctx, cfg.Warehouse.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to warehouse: %w", err)
	}
	return cfg, store, nil
}

// buildPublisher wires the publish pipeline from config: materializer,
// alert dispatcher, and publisher.
func buildPublisher(cfg *types.ProjectConfig, store *warehouse.Store) (*publisher.Publisher, error) {
	dispatcher, err := alert.NewDispatcher(cfg.Alerts)
	if err != nil {
		return nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}

	var opts []materializer.Option
	if d := config.RefreshTimeout(cfg); d > 0 {
		opts = append(opts, materializer.WithTimeout(d))
	}
	mat := materializer.New(store, opts...)

	return publisher.New(store, mat, dispatcher.AlertFunc()), nil
}

// parseWeek parses an optional --week value. Empty means the current week.
func parseWeek(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week %q, want YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// defaultTriggeredBy resolves the actor label: flag value, then config, then
// the pipeline default.
func defaultTriggeredBy(cfg *types.ProjectConfig, flag string) string {
	if flag != "" {
		return flag
	}
	if cfg.Publisher != nil && cfg.Publisher.TriggeredBy != "" {
		return cfg.Publisher.TriggeredBy
	}
	return publisher.DefaultTriggeredBy
}

// printResult renders a publish result with color-coded outcome.
func printResult(res types.PublishResult) {
	var label string
	switch res.Outcome {
	case types.OutcomePublished:
		label = color.GreenString("PUBLISHED")
	case types.OutcomeAlreadyPublished:
		label = color.YellowString("ALREADY PUBLISHED")
	case types.OutcomeNothingToPublish:
		label = color.YellowString("NOTHING TO PUBLISH")
	default:
		label = color.RedString("FAILED")
	}

	fmt.Printf("%s tenant %d week %s: %s", label, res.TenantID,
		res.Week.Format("2006-01-02"), res.Message)
	if res.RunID != "" {
		fmt.Printf(" (run %s)", res.RunID)
	}
	if res.DegradedRows > 0 {
		fmt.Printf(" [%d degraded rows]", res.DegradedRows)
	}
	fmt.Println()
}
