// Package exporter writes published snapshot runs to object storage as CSV
// for downstream consumers that cannot query the warehouse directly.
package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/chainlink-analytics/shelfgap/internal/metrics"
	"github.com/chainlink-analytics/shelfgap/internal/warehouse"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// S3API is the subset of the S3 client used by the Exporter.
type S3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DetailSource is the warehouse surface the exporter needs.
type DetailSource interface {
	FindRun(ctx context.Context, tenantID int64, weekStart time.Time) (*types.SnapshotRun, error)
	ReadRunDetails(ctx context.Context, tenantID int64, weekStart time.Time) ([]types.SnapshotDetail, error)
}

// Exporter renders a published snapshot run to CSV and uploads it.
type Exporter struct {
	source DetailSource
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithS3Client sets a custom S3 client (useful for testing).
func WithS3Client(c S3API) Option {
	return func(e *Exporter) { e.client = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Exporter. Without WithS3Client it builds a client from the
// ambient AWS configuration, honoring the endpoint override for
// S3-compatible stores.
func New(source DetailSource, cfg types.ExportConfig, opts ...Option) (*Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("export bucket required")
	}
	e := &Exporter{
		source: source,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		e.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	return e, nil
}

// Export uploads the snapshot run for the given tenant-week. The object key
// is deterministic per tenant-week, so re-exporting an immutable run simply
// overwrites the object with identical content.
func (e *Exporter) Export(ctx context.Context, tenantID int64, weekStart time.Time) (*types.ExportReceipt, error) {
	run, err := e.source.FindRun(ctx, tenantID, weekStart)
	if err != nil {
		metrics.ExportsFailed.Add(1)
		return nil, fmt.Errorf("export: %w", err)
	}
	if run == nil {
		metrics.ExportsFailed.Add(1)
		return nil, fmt.Errorf("export: %w", warehouse.ErrNoRun)
	}

	details, err := e.source.ReadRunDetails(ctx, tenantID, weekStart)
	if err != nil {
		metrics.ExportsFailed.Add(1)
		return nil, fmt.Errorf("export: %w", err)
	}

	body, err := renderCSV(details)
	if err != nil {
		metrics.ExportsFailed.Add(1)
		return nil, fmt.Errorf("export: %w", err)
	}

	key := e.objectKey(tenantID, weekStart)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		metrics.ExportsFailed.Add(1)
		return nil, fmt.Errorf("uploading export: %w", err)
	}

	metrics.ExportsCompleted.Add(1)
	e.logger.Info("snapshot exported",
		"tenant", tenantID, "week", weekStart.Format("2006-01-02"),
		"key", key, "rows", len(details))

	return &types.ExportReceipt{
		TenantID: tenantID,
		Week:     weekStart,
		RunID:    run.RunID,
		Key:      key,
		RowCount: len(details),
	}, nil
}

func (e *Exporter) objectKey(tenantID int64, weekStart time.Time) string {
	key := fmt.Sprintf("tenant-%d/gap-snapshots/%s.csv", tenantID, weekStart.Format("2006-01-02"))
	if e.prefix != "" {
		key = e.prefix + "/" + key
	}
	return key
}

var csvHeader = []string{
	"snapshot_week_start", "run_id", "salesperson_id", "salesperson_name",
	"manager_id", "manager_name", "chain_name", "store_number", "store_name",
	"product_id", "product_name", "supplier_name", "category", "subcategory",
	"upc", "sr_upc", "gap_cases", "in_schematic", "is_gap", "last_purchase_date",
}

func renderCSV(details []types.SnapshotDetail) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, d := range details {
		record := []string{
			d.SnapshotWeekStart.Format("2006-01-02"),
			d.RunID,
			d.SalespersonID, d.SalespersonName,
			d.ManagerID, d.ManagerName,
			d.ChainName, d.StoreNumber, d.StoreName,
			d.ProductID, d.ProductName, d.SupplierName,
			d.Category, d.Subcategory,
			deref(d.UPC), deref(d.SRUPC),
			nullDecimalString(d),
			strconv.FormatBool(d.InSchematic),
			strconv.FormatBool(d.IsGap),
			dateString(d.LastPurchaseDate),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullDecimalString(d types.SnapshotDetail) string {
	if !d.GapCases.Valid {
		return ""
	}
	return d.GapCases.Decimal.String()
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
