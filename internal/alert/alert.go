// Package alert implements alert dispatching to multiple sinks.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chainlink-analytics/shelfgap/internal/metrics"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to configured sinks.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig) (*Dispatcher, error) {
	d := &Dispatcher{logger: slog.Default()}
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// SetLogger overrides the default logger.
func (d *Dispatcher) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l
	}
}

// Dispatch sends an alert to all configured sinks. A failing sink is logged
// and does not stop delivery to the remaining sinks.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			metrics.AlertsFailed.Add(1)
			d.logger.Error("alert delivery failed", "sink", sink.Name(), "error", err)
			continue
		}
		metrics.AlertsDispatched.Add(1)
	}
}

// AlertFunc returns a callback suitable for the publisher's alert hook.
func (d *Dispatcher) AlertFunc() func(types.Alert) {
	return func(a types.Alert) {
		d.Dispatch(context.Background(), a)
	}
}

func newSink(cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(), nil
	case types.AlertWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}
