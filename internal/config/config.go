// Package config handles loading and validation of shelfgap.yaml project
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

// Load reads and parses shelfgap.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, "shelfgap.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn is required")
	}
	if len(cfg.Tenants) == 0 {
		return fmt.Errorf("at least one tenant is required")
	}
	seen := make(map[int64]bool, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		if t.ID <= 0 {
			return fmt.Errorf("tenant id must be positive, got %d", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate tenant id %d", t.ID)
		}
		seen[t.ID] = true
	}
	if cfg.Publisher != nil && cfg.Publisher.RefreshTimeout != "" {
		if _, err := time.ParseDuration(cfg.Publisher.RefreshTimeout); err != nil {
			return fmt.Errorf("publisher.refreshTimeout: %w", err)
		}
	}
	if cfg.Export != nil && cfg.Export.Enabled && cfg.Export.Bucket == "" {
		return fmt.Errorf("export.bucket is required when export is enabled")
	}
	for _, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertWebhook:
			if a.URL == "" {
				return fmt.Errorf("alert webhook url is required")
			}
		case types.AlertFile:
			if a.Path == "" {
				return fmt.Errorf("alert file path is required")
			}
		default:
			return fmt.Errorf("unknown alert type %q", a.Type)
		}
	}
	return nil
}

// RefreshTimeout returns the configured aggregation timeout, or zero when
// unset. Validation has already rejected unparseable values.
func RefreshTimeout(cfg *types.ProjectConfig) time.Duration {
	if cfg.Publisher == nil || cfg.Publisher.RefreshTimeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(cfg.Publisher.RefreshTimeout)
	return d
}
