// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	PublishAttempts       = expvar.NewInt("publish_attempts")
	PublishesCompleted    = expvar.NewInt("publishes_completed")
	PublishesSkipped      = expvar.NewInt("publishes_skipped")
	PublishFailures       = expvar.NewInt("publish_failures")
	RowsPublished         = expvar.NewInt("rows_published")
	NormalizationFailures = expvar.NewInt("normalization_failures")
	StreakQueries         = expvar.NewInt("streak_queries")
	ExportsCompleted      = expvar.NewInt("exports_completed")
	ExportsFailed         = expvar.NewInt("exports_failed")
	AlertsDispatched      = expvar.NewInt("alerts_dispatched")
	AlertsFailed          = expvar.NewInt("alerts_failed")
)
