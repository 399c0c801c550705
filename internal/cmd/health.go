package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/core/imagefs"
	errwrap "github.com/artswap/artswap/internal/errors"
	"github.com/artswap/artswap/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Run a self-health check: configuration, card store and placeholder image
must all be usable before "match" or "serve" can succeed.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration valid",
			zap.String("index", cfg.Index.Driver),
			zap.String("policy", cfg.Pipeline.Disambiguation))

		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			ExitWithCode(logger, ExitCodeFor(err), "Card store unavailable", err)
			return
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup
		if err := db.CheckHealth(cmd.Context()); err != nil {
			ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Card store unavailable", err)
			return
		}
		count, _ := db.CountCards(cmd.Context())
		logger.Info("✅ Card store reachable",
			zap.String("store", storeLocation(cfg)),
			zap.Int("cards", count))

		placeholder, err := imagefs.EnsurePlaceholder(cfg.Images.PlaceholderPath, cfg.Images.PlaceholderSize)
		if err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Placeholder image unavailable", err)
			return
		}
		logger.Info("✅ Placeholder image ready", zap.String("path", placeholder.Path))

		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
