// Package types defines the public domain types for the Shelfgap snapshot pipeline.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PublishOutcome classifies the result of a publish attempt.
type PublishOutcome string

// PublishOutcome values enumerate the possible publish results. Only
// OutcomeFailed represents an error condition; the skip outcomes are
// expected operational states.
const (
	OutcomePublished        PublishOutcome = "PUBLISHED"
	OutcomeAlreadyPublished PublishOutcome = "ALREADY_PUBLISHED"
	OutcomeNothingToPublish PublishOutcome = "NOTHING_TO_PUBLISH"
	OutcomeFailed           PublishOutcome = "FAILED"
)

// IsError reports whether the outcome should be rendered as a failure.
func (o PublishOutcome) IsError() bool { return o == OutcomeFailed }

// PublishResult is the structured result of a top-level publish call.
// Message is safe to render verbatim to operators.
type PublishResult struct {
	Outcome  PublishOutcome `json:"outcome"`
	Message  string         `json:"message"`
	TenantID int64          `json:"tenantId"`
	Week     time.Time      `json:"week"`
	RunID    string         `json:"runId,omitempty"`
	RowCount int            `json:"rowCount"`

	// DegradedRows counts detail rows whose gap derivation rested on a UPC
	// that could not be normalized and was stored as NULL.
	DegradedRows int `json:"degradedRows,omitempty"`
}

// SnapshotRun is the header row for one published tenant-week snapshot.
// Runs are immutable after creation and never deleted by the pipeline
// (a zero-detail ghost header is the one repairable exception).
type SnapshotRun struct {
	RunID             string    `json:"runId"`
	TenantID          int64     `json:"tenantId"`
	SnapshotWeekStart time.Time `json:"snapshotWeekStart"`
	TriggeredBy       string    `json:"triggeredBy,omitempty"`
	RowCount          int       `json:"rowCount"`
	RunAt             time.Time `json:"runAt"`
}

// SnapshotDetail is one store x product row within a snapshot run.
type SnapshotDetail struct {
	TenantID          int64     `json:"tenantId"`
	SnapshotWeekStart time.Time `json:"snapshotWeekStart"`
	RunID             string    `json:"runId"`

	SalespersonID   string `json:"salespersonId,omitempty"`
	SalespersonName string `json:"salespersonName,omitempty"`
	ManagerID       string `json:"managerId,omitempty"`
	ManagerName     string `json:"managerName,omitempty"`
	ChainName       string `json:"chainName"`
	StoreNumber     string `json:"storeNumber"`
	StoreName       string `json:"storeName,omitempty"`
	ProductID       string `json:"productId,omitempty"`
	ProductName     string `json:"productName,omitempty"`
	SupplierName    string `json:"supplierName,omitempty"`
	Category        string `json:"category,omitempty"`
	Subcategory     string `json:"subcategory,omitempty"`

	// UPC is the catalog (schematic) key, SRUPC the sales-system key.
	// Both are digit-only strings or nil; joins across weeks depend on
	// exact string equality.
	UPC   *string `json:"upc"`
	SRUPC *string `json:"srUpc"`

	GapCases         decimal.NullDecimal `json:"gapCases"`
	InSchematic      bool                `json:"inSchematic"`
	IsGap            bool                `json:"isGap"`
	LastPurchaseDate *time.Time          `json:"lastPurchaseDate,omitempty"`
}

// GapRow is one row of the materialized gap report as read from the
// warehouse view. UPC-like and boolean-like fields keep their raw wire
// form; the publisher owns canonicalization.
type GapRow struct {
	SalespersonID   string
	SalespersonName string
	ManagerID       string
	ManagerName     string
	ChainName       string
	StoreNumber     string
	StoreName       string
	ProductID       string
	ProductName     string
	SupplierName    string
	Category        string
	Subcategory     string

	DGUPC any // catalog UPC as materialized (string, int, or float artifact)
	SRUPC any // sales UPC as materialized; nil/blank means no sale observed

	InSchematic      any // 1/0/"1"/"0"/bool depending on the view's lineage
	GapCases         decimal.NullDecimal
	LastPurchaseDate *time.Time
}

// GapFilter restricts on-screen gap report reads. The zero value means
// unfiltered; the publish path always uses the zero value.
type GapFilter struct {
	Salesperson string
	Chain       string
	Supplier    string
}

// IsUnfiltered reports whether the filter selects the whole tenant dataset.
func (f GapFilter) IsUnfiltered() bool {
	return f.Salesperson == "" && f.Chain == "" && f.Supplier == ""
}

// StreakRow is one current-gap streak as exposed by the warehouse streak
// view, optionally enriched with a store address from the customer registry.
type StreakRow struct {
	TenantID          int64     `json:"tenantId"`
	SnapshotWeekStart time.Time `json:"snapshotWeekStart"`
	FirstGapWeek      time.Time `json:"firstGapWeek"`
	LastGapWeek       time.Time `json:"lastGapWeek"`
	SalespersonName   string    `json:"salespersonName"`
	ChainName         string    `json:"chainName"`
	StoreNumber       string    `json:"storeNumber"`
	StoreName         string    `json:"storeName"`
	Address           string    `json:"address,omitempty"`
	UPC               string    `json:"upc"`
	ProductName       string    `json:"productName"`
	SupplierName      string    `json:"supplierName"`
	StreakWeeks       int       `json:"streakWeeks"`
}

// StreakFilter narrows a streak read. Empty lists mean no restriction.
type StreakFilter struct {
	Chains         []string `json:"chains,omitempty"`
	Suppliers      []string `json:"suppliers,omitempty"`
	Salespeople    []string `json:"salespeople,omitempty"`
	MinStreakWeeks int      `json:"minStreakWeeks,omitempty"`
	IncludeAddress bool     `json:"includeAddress,omitempty"`
}

// StoreKey identifies a store within a tenant for address lookup.
type StoreKey struct {
	ChainName   string
	StoreNumber string
}

// ExportReceipt describes a completed snapshot export.
type ExportReceipt struct {
	TenantID int64     `json:"tenantId"`
	Week     time.Time `json:"week"`
	RunID    string    `json:"runId"`
	Key      string    `json:"key"`
	RowCount int       `json:"rowCount"`
}

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// AlertConfig defines an alert sink configuration.
type AlertConfig struct {
	Type AlertType `yaml:"type" json:"type"`
	URL  string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path string    `yaml:"path,omitempty" json:"path,omitempty"`
}

// Alert represents an operator-visible event to be dispatched.
type Alert struct {
	Level     AlertLevel     `json:"level"`
	TenantID  int64          `json:"tenantId,omitempty"`
	Week      string         `json:"week,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
