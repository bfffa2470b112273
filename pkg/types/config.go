package types

// TenantConfig registers one tenant with the pipeline.
type TenantConfig struct {
	ID   int64  `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// WarehouseConfig holds warehouse connection settings.
type WarehouseConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	APIKey         string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	MaxRequestBody int64  `yaml:"maxRequestBody,omitempty" json:"maxRequestBody,omitempty"`
}

// PublisherConfig tunes the publish pipeline.
type PublisherConfig struct {
	// TriggeredBy is the default actor label recorded on header rows when
	// the caller does not supply one.
	TriggeredBy string `yaml:"triggeredBy,omitempty" json:"triggeredBy,omitempty"`
	// MaxConcurrentTenants bounds the publish --all sweep. Zero means 4.
	MaxConcurrentTenants int `yaml:"maxConcurrentTenants,omitempty" json:"maxConcurrentTenants,omitempty"`
	// RefreshTimeout bounds the warehouse aggregation call, e.g. "5m".
	RefreshTimeout string `yaml:"refreshTimeout,omitempty" json:"refreshTimeout,omitempty"`
}

// ExportConfig configures snapshot CSV exports to object storage.
type ExportConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Bucket       string `yaml:"bucket" json:"bucket"`
	Region       string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"` // MinIO/LocalStack
	UsePathStyle bool   `yaml:"usePathStyle,omitempty" json:"usePathStyle,omitempty"`
	Prefix       string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// ProjectConfig represents the top-level shelfgap.yaml configuration.
type ProjectConfig struct {
	Warehouse WarehouseConfig  `yaml:"warehouse"`
	Tenants   []TenantConfig   `yaml:"tenants"`
	Server    *ServerConfig    `yaml:"server,omitempty"`
	Publisher *PublisherConfig `yaml:"publisher,omitempty"`
	Export    *ExportConfig    `yaml:"export,omitempty"`
	Alerts    []AlertConfig    `yaml:"alerts,omitempty"`
}

// Tenant returns the tenant config with the given id, or nil.
func (c *ProjectConfig) Tenant(id int64) *TenantConfig {
	for i := range c.Tenants {
		if c.Tenants[i].ID == id {
			return &c.Tenants[i]
		}
	}
	return nil
}
