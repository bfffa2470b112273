package commands

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chainlink-analytics/shelfgap/internal/publisher"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

const defaultMaxConcurrentTenants = 4

// NewPublishCmd creates the publish command.
func NewPublishCmd() *cobra.Command {
	var (
		tenantID    int64
		all         bool
		week        string
		triggeredBy string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the weekly gap snapshot for one or all tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (tenantID != 0) {
				return fmt.Errorf("exactly one of --tenant or --all is required")
			}
			return runPublish(tenantID, all, week, triggeredBy)
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant id to publish")
	cmd.Flags().BoolVar(&all, "all", false, "publish every configured tenant")
	cmd.Flags().StringVar(&week, "week", "", "snapshot week (YYYY-MM-DD, any day of the week; default current week)")
	cmd.Flags().StringVar(&triggeredBy, "triggered-by", "", "actor label recorded on the run")
	return cmd
}

func runPublish(tenantID int64, all bool, week, triggeredBy string) error {
	weekStart, err := parseWeek(week)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	pub, err := buildPublisher(cfg, store)
	if err != nil {
		return err
	}
	actor := defaultTriggeredBy(cfg, triggeredBy)

	if !all {
		if cfg.Tenant(tenantID) == nil {
			return fmt.Errorf("tenant %d is not configured", tenantID)
		}
		res := pub.Publish(ctx, publisher.Request{
			TenantID:    tenantID,
			Week:        weekStart,
			TriggeredBy: actor,
		})
		printResult(res)
		if res.Outcome.IsError() {
			return fmt.Errorf("publish failed for tenant %d", tenantID)
		}
		return nil
	}

	return publishAll(ctx, cfg, pub, weekStart, actor)
}

// publishAll sweeps every configured tenant with bounded concurrency. One
// tenant failing does not stop the others; the sweep reports the failures
// at the end.
func publishAll(ctx context.Context, cfg *types.ProjectConfig, pub *publisher.Publisher, weekStart time.Time, actor string) error {
	limit := defaultMaxConcurrentTenants
	if cfg.Publisher != nil && cfg.Publisher.MaxConcurrentTenants > 0 {
		limit = cfg.Publisher.MaxConcurrentTenants
	}

	var (
		mu      sync.Mutex
		results []types.PublishResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, tenant := range cfg.Tenants {
		tenant := tenant
		g.Go(func() error {
			res := pub.Publish(gctx, publisher.Request{
				TenantID:    tenant.ID,
				Week:        weekStart,
				TriggeredBy: actor,
			})
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].TenantID < results[j].TenantID })

	failed := 0
	for _, res := range results {
		printResult(res)
		if res.Outcome.IsError() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("publish failed for %d of %d tenants", failed, len(results))
	}
	return nil
}
