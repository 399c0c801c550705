package config

import (
	"time"
)

// Config represents the complete application configuration. Values are layered:
// defaults from SetDefaults, then the user config file, then ARTSWAP_*
// environment variables (optionally seeded from a .env file).
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Index    IndexConfig    `mapstructure:"index"`
	Images   ImagesConfig   `mapstructure:"images"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`

	RateLimits      map[string]int `mapstructure:"rate_limits"`
	RateLimitMargin float64        `mapstructure:"rate_limit_margin"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxCards bounds one POST /v1/match batch; zero means unlimited.
	MaxCards int `mapstructure:"max_cards"`
	// ImageRoots restricts the directories a request may name. Empty allows any.
	ImageRoots []string `mapstructure:"image_roots"`
}

// StoreConfig selects the card index database.
// Driver is one of libsql (default), sqlite or postgres.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// IndexConfig selects where replacement candidates come from.
type IndexConfig struct {
	// Driver is "store" (the imported card table) or "web".
	Driver    string         `mapstructure:"driver"`
	CacheSize int            `mapstructure:"cache_size"`
	CacheTTL  time.Duration  `mapstructure:"cache_ttl"`
	Web       WebIndexConfig `mapstructure:"web"`
}

// WebIndexConfig describes an HTML card search page.
type WebIndexConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	SearchPath     string        `mapstructure:"search_path"`
	QueryParam     string        `mapstructure:"query_param"`
	ResultSelector string        `mapstructure:"result_selector"`
	NameSelector   string        `mapstructure:"name_selector"`
	IDSelector     string        `mapstructure:"id_selector"`
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ImagesConfig controls image discovery and the fallback image.
type ImagesConfig struct {
	Extensions      []string `mapstructure:"extensions"`
	PlaceholderPath string   `mapstructure:"placeholder_path"`
	PlaceholderSize int      `mapstructure:"placeholder_size"`
	// MaxDirs bounds how many directory listings stay cached between runs.
	MaxDirs int `mapstructure:"max_dirs"`
	// MaxFiles aborts a directory scan that finds more image files.
	MaxFiles int `mapstructure:"max_files"`
}

// PipelineConfig tunes the build and resolve stages.
type PipelineConfig struct {
	BuildWorkers   int           `mapstructure:"build_workers"`
	ResolveWorkers int           `mapstructure:"resolve_workers"`
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout"`
	Disambiguation string        `mapstructure:"disambiguation"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
