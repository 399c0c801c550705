package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/appid"
	"github.com/artswap/artswap/internal/config"
	"github.com/artswap/artswap/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := appid.Get()

		log.Info("=== ArtSwap Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = config.DefaultConfigPath() + " (not found)"
		}

		log.Info("Configuration:")
		log.Info("  Config File:    "+configFile, zap.String("config_file", configFile))
		log.Info("  Server:         "+fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info("")

		log.Info("Store:")
		log.Info("  Driver:         "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		log.Info("  Location:       "+storeLocation(cfg), zap.String("db_location", storeLocation(cfg)))
		if strings.TrimSpace(cfg.Store.AuthToken) != "" {
			log.Info("  Auth Token:     (set)")
		}
		log.Info("")

		log.Info("Index:")
		log.Info("  Driver:         "+cfg.Index.Driver, zap.String("index_driver", cfg.Index.Driver))
		log.Info(fmt.Sprintf("  Cache Size:     %d", cfg.Index.CacheSize))
		if cfg.Index.Driver == "web" {
			web := cfg.Index.Web
			log.Info("  Base URL:       " + web.BaseURL)
			log.Info("  Search:         " + web.SearchPath + "?" + web.QueryParam + "=")
			log.Info("  Result Select:  " + web.ResultSelector)
			log.Info("  Timeout:        " + web.Timeout.String())
			log.Info(fmt.Sprintf("  Rate Margin:    %.2f", cfg.RateLimitMargin))
		}
		log.Info("")

		log.Info("Pipeline:")
		log.Info("  Policy:         "+cfg.Pipeline.Disambiguation, zap.String("policy", cfg.Pipeline.Disambiguation))
		log.Info(fmt.Sprintf("  Build Workers:  %d", cfg.Pipeline.BuildWorkers))
		log.Info(fmt.Sprintf("  Resolve Workers: %d", cfg.Pipeline.ResolveWorkers))
		log.Info("  Extensions:     " + strings.Join(cfg.Images.Extensions, ", "))
		log.Info("  Placeholder:    " + cfg.Images.PlaceholderPath)
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
