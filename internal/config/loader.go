// Package config provides centralized configuration management for artswap.
//
// Settings are collected by viper (defaults, config file, environment) and
// decoded into a typed Config with mapstructure hooks for durations, comma
// separated lists and floats.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/artswap/artswap/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every known key on v so environment variables can
// override them.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_cards", 500)
	v.SetDefault("server.image_roots", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Index defaults
	v.SetDefault("index.driver", "store")
	v.SetDefault("index.cache_size", 1024)
	v.SetDefault("index.cache_ttl", "10m")
	v.SetDefault("index.web.base_url", "")
	v.SetDefault("index.web.search_path", "/search")
	v.SetDefault("index.web.query_param", "q")
	v.SetDefault("index.web.result_selector", ".card-result")
	v.SetDefault("index.web.name_selector", "")
	v.SetDefault("index.web.id_selector", "")
	v.SetDefault("index.web.timeout", "10s")
	v.SetDefault("index.web.user_agent", appid.Get().BinaryName)

	// Image defaults
	v.SetDefault("images.extensions", []string{".png", ".jpg", ".jpeg", ".webp"})
	v.SetDefault("images.placeholder_path", "")
	v.SetDefault("images.placeholder_size", 421)
	v.SetDefault("images.max_dirs", 16)
	v.SetDefault("images.max_files", 200000)

	// Pipeline defaults
	v.SetDefault("pipeline.build_workers", 0)
	v.SetDefault("pipeline.resolve_workers", 1)
	v.SetDefault("pipeline.lookup_timeout", "0s")
	v.SetDefault("pipeline.disambiguation", "first")

	// Rate limit overrides (optional)
	v.SetDefault("rate_limits", map[string]int{})
	v.SetDefault("rate_limit_margin", 0.9)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)
}

// Load decodes the settings held by v into a Config and makes it the current
// configuration. It is safe to call again on reload.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Store.Driver {
	case "libsql", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid store.driver %q (want libsql, sqlite or postgres)", cfg.Store.Driver)
	}
	switch cfg.Index.Driver {
	case "store":
	case "web":
		if strings.TrimSpace(cfg.Index.Web.BaseURL) == "" {
			return fmt.Errorf("index.web.base_url is required when index.driver is web")
		}
	default:
		return fmt.Errorf("invalid index.driver %q (want store or web)", cfg.Index.Driver)
	}
	switch cfg.Pipeline.Disambiguation {
	case "first", "exact":
	default:
		return fmt.Errorf("invalid pipeline.disambiguation %q (want first or exact)", cfg.Pipeline.Disambiguation)
	}
	if cfg.Pipeline.BuildWorkers < 0 || cfg.Pipeline.ResolveWorkers < 0 {
		return fmt.Errorf("pipeline workers must not be negative")
	}
	if cfg.Server.MaxCards < 0 {
		return fmt.Errorf("server.max_cards must not be negative")
	}
	if cfg.Images.MaxDirs < 0 || cfg.Images.MaxFiles < 0 {
		return fmt.Errorf("images.max_dirs and images.max_files must not be negative")
	}
	if cfg.RateLimitMargin < 0 || cfg.RateLimitMargin > 1 {
		return fmt.Errorf("rate_limit_margin must be within 0..1")
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "libsql"
	}
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	cfg.Index.Driver = strings.ToLower(strings.TrimSpace(cfg.Index.Driver))
	if cfg.Index.Driver == "" {
		cfg.Index.Driver = "store"
	}

	cfg.Pipeline.Disambiguation = strings.ToLower(strings.TrimSpace(cfg.Pipeline.Disambiguation))
	if cfg.Pipeline.Disambiguation == "" {
		cfg.Pipeline.Disambiguation = "first"
	}

	exts := make([]string, 0, len(cfg.Images.Extensions))
	for _, ext := range cfg.Images.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	cfg.Images.Extensions = exts

	roots := make([]string, 0, len(cfg.Server.ImageRoots))
	for _, root := range cfg.Server.ImageRoots {
		if root = strings.TrimSpace(root); root != "" {
			roots = append(roots, filepath.Clean(root))
		}
	}
	cfg.Server.ImageRoots = roots

	if strings.TrimSpace(cfg.Images.PlaceholderPath) == "" {
		cfg.Images.PlaceholderPath = DefaultPlaceholderPath()
	}
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(appid.Get().ConfigName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appid.Get().ConfigName)
}

// DefaultCacheDir returns the XDG-compliant cache directory for the app.
func DefaultCacheDir() string {
	return gfconfig.GetAppCacheDir(appid.Get().ConfigName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	binaryName := appid.Get().BinaryName
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}

// DefaultPlaceholderPath returns where the generated error image lives.
func DefaultPlaceholderPath() string {
	cacheDir := DefaultCacheDir()
	if strings.TrimSpace(cacheDir) == "" {
		return ""
	}
	return filepath.Join(cacheDir, "artswap-placeholder.png")
}

// BindEnv makes every key overridable as ARTSWAP_<SECTION>_<KEY>.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(appid.Get().EnvPrefixNoUnderscore())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
