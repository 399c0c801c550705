package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/artswap/artswap/internal/config"
	"github.com/artswap/artswap/internal/core"
	"github.com/artswap/artswap/internal/core/cardindex"
	"github.com/artswap/artswap/internal/core/engine"
	"github.com/artswap/artswap/internal/core/imagefs"
	"github.com/artswap/artswap/internal/core/store"
	"github.com/artswap/artswap/internal/metrics"
	"github.com/artswap/artswap/internal/server/handlers"
)

// indexHandle owns the card index selected by config and the resources
// behind it.
type indexHandle struct {
	Index core.CardIndex
	Cache *cardindex.Cached
	Store *store.Store
}

// Close releases the store, publishing cache counters first.
func (h *indexHandle) Close() error {
	if h == nil {
		return nil
	}
	if h.Cache != nil {
		metrics.RecordCacheStats(h.Cache.Stats())
	}
	if h.Store != nil {
		return h.Store.Close()
	}
	return nil
}

// openIndex builds the configured card index. The store is always opened
// because the web index persists its rate limit windows there.
func openIndex(ctx context.Context, cfg *config.Config) (*indexHandle, error) {
	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var index core.CardIndex
	switch cfg.Index.Driver {
	case "web":
		web := cfg.Index.Web
		limiter := &cardindex.RateLimiter{Store: db, Margin: cfg.RateLimitMargin}
		limiter.ApplyOverrides(cfg.RateLimits)
		index = &cardindex.WebIndex{
			BaseURL:        web.BaseURL,
			SearchPath:     web.SearchPath,
			QueryParam:     web.QueryParam,
			ResultSelector: web.ResultSelector,
			NameSelector:   web.NameSelector,
			IDSelector:     web.IDSelector,
			UserAgent:      web.UserAgent,
			Client:         &http.Client{Timeout: web.Timeout},
			Limiter:        limiter,
		}
	default:
		index = db
	}

	handle := &indexHandle{Index: index, Store: db}
	if cfg.Index.CacheSize > 0 {
		cached := cardindex.NewCached(index, cfg.Index.CacheSize, cfg.Index.CacheTTL)
		handle.Index = cached
		handle.Cache = cached
	}
	return handle, nil
}

// buildPipeline wires the builder and resolver from config. The placeholder
// image is written on first use.
func buildPipeline(cfg *config.Config, index core.CardIndex, logger core.Logger, source string) (*engine.Pipeline, error) {
	policy, err := engine.PolicyByName(cfg.Pipeline.Disambiguation)
	if err != nil {
		return nil, err
	}

	placeholder, err := imagefs.EnsurePlaceholder(cfg.Images.PlaceholderPath, cfg.Images.PlaceholderSize)
	if err != nil {
		return nil, fmt.Errorf("prepare placeholder image: %w", err)
	}

	locator := imagefs.NewLocator(cfg.Images.Extensions)
	locator.MaxDirs = cfg.Images.MaxDirs
	locator.MaxFiles = cfg.Images.MaxFiles
	return &engine.Pipeline{
		Builder: &engine.Builder{
			Locator:       locator,
			Logger:        logger,
			Workers:       cfg.Pipeline.BuildWorkers,
			LookupTimeout: cfg.Pipeline.LookupTimeout,
		},
		Resolver: &engine.Resolver{
			Index:       index,
			Locator:     locator,
			Placeholder: placeholder,
			Policy:      policy,
			Logger:      logger,
			Workers:     cfg.Pipeline.ResolveWorkers,
		},
		Logger:   logger,
		Recorder: metrics.RunRecorder{Source: source},
	}, nil
}

// newMatchHandler serves pipeline over HTTP within the server limits of cfg.
func newMatchHandler(cfg *config.Config, pipeline *engine.Pipeline, index core.CardIndex) *handlers.MatchHandler {
	return &handlers.MatchHandler{
		Runner:   pipeline,
		Index:    index,
		MaxCards: cfg.Server.MaxCards,
		Roots:    cfg.Server.ImageRoots,
	}
}
