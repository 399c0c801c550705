package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/appid"
	errwrap "github.com/artswap/artswap/internal/errors"
	"github.com/artswap/artswap/internal/metrics"
	"github.com/artswap/artswap/internal/observability"
	"github.com/artswap/artswap/internal/server"
	"github.com/artswap/artswap/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP matching server",
	Long: `Start the HTTP server exposing POST /v1/match and GET /v1/cards, with
graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file and purge the card index cache
    (restart to apply store or index changes)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		identity := appid.Get()
		namespace := identity.TelemetryNamespace()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		observability.InitServerLogger(identity.BinaryName, cfg.Logging, namespace)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}

		handle, err := openIndex(ctx, cfg)
		if err != nil {
			return err
		}

		pipeline, err := buildPipeline(cfg, handle.Index, logger, "http")
		if err != nil {
			_ = handle.Close()
			return err
		}

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("index", cfg.Index.Driver),
			zap.String("store", storeLocation(cfg)),
			zap.Int("max_cards", cfg.Server.MaxCards),
			zap.Strings("image_roots", cfg.Server.ImageRoots),
			zap.Bool("metrics", cfg.Metrics.Enabled))

		handlers.InitHealthManager(versionInfo.Version)
		if cfg.Health.Enabled {
			hm := handlers.GetHealthManager()
			hm.RegisterChecker("signal_handlers", signalHealthChecker{})
			hm.RegisterChecker("app_identity", identityHealthChecker{identity: identity})
			hm.RegisterChecker("store", storeHealthChecker{store: handle.Store})
			if cfg.Index.Driver == "store" {
				hm.RegisterChecker("card_index", cardCountHealthChecker{counter: handle.Store})
			}
			hm.RegisterChecker("placeholder", placeholderHealthChecker{path: cfg.Images.PlaceholderPath})
			if len(cfg.Server.ImageRoots) > 0 {
				hm.RegisterChecker("image_roots", imageRootsHealthChecker{roots: cfg.Server.ImageRoots})
			}
			if cfg.Metrics.Enabled {
				hm.RegisterChecker("telemetry", telemetryHealthChecker{})
			}
		}
		handlers.SetAppIdentity(&identity)

		srv := server.New(cfg.Server, newMatchHandler(cfg, pipeline, handle.Index))

		startedAt := time.Now()
		metrics.SetServerStartTime(startedAt.Unix())
		uptimeCtx, stopUptime := context.WithCancel(ctx)
		defer stopUptime()
		go reportUptime(uptimeCtx, startedAt)

		// Shutdown handlers run LIFO: server, then store, then logger.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			stopUptime()
			if err := handle.Close(); err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "store close failed")
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if errors.As(err, &notFound) {
					logger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			if _, err := loadConfig(); err != nil {
				logger.Error("Reloaded config is invalid", zap.Error(err))
				return err
			}
			if handle.Cache != nil {
				handle.Cache.Purge()
				logger.Info("Card index cache purged")
			}

			logger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...", zap.String("addr", srv.Addr()))
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		return nil
	},
}

// reportUptime refreshes the uptime gauge until ctx ends.
func reportUptime(ctx context.Context, startedAt time.Time) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetServerUptime(int64(time.Since(startedAt).Seconds()))
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
