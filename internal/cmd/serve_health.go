package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/artswap/artswap/internal/appid"
	"github.com/artswap/artswap/internal/core/store"
	errwrap "github.com/artswap/artswap/internal/errors"
	"github.com/artswap/artswap/internal/observability"
	"github.com/artswap/artswap/internal/server/handlers"
)

// signalHealthChecker reports the signal handlers as ready once registered.
type signalHealthChecker struct{}

func (signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// storeHealthChecker pings the card store backing the index.
type storeHealthChecker struct {
	store *store.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if err := s.store.CheckHealth(ctx); err != nil {
		return errwrap.WrapDatabaseError(ctx, err, "card store unavailable")
	}
	return nil
}

type cardCounter interface {
	CountCards(ctx context.Context) (int, error)
}

// cardCountHealthChecker degrades while the card table is empty: every match
// would fall back to the placeholder.
type cardCountHealthChecker struct {
	counter cardCounter
}

func (c cardCountHealthChecker) CheckHealth(ctx context.Context) error {
	n, err := c.counter.CountCards(ctx)
	if err != nil {
		return errwrap.WrapDatabaseError(ctx, err, "count cards")
	}
	if n == 0 {
		return fmt.Errorf("no cards imported, run \"index import\": %w", handlers.ErrDegraded)
	}
	return nil
}

// placeholderHealthChecker confirms the fallback image is still on disk.
type placeholderHealthChecker struct {
	path string
}

func (p placeholderHealthChecker) CheckHealth(ctx context.Context) error {
	info, err := os.Stat(p.path)
	if err != nil {
		return fmt.Errorf("placeholder image: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("placeholder image %s is a directory", p.path)
	}
	return nil
}

// imageRootsHealthChecker degrades when a configured image root is gone.
type imageRootsHealthChecker struct {
	roots []string
}

func (i imageRootsHealthChecker) CheckHealth(ctx context.Context) error {
	for _, root := range i.roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("image root %s is not a readable directory: %w", root, handlers.ErrDegraded)
		}
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	identity appid.Identity
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.identity.BinaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.identity.EnvPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.identity.ConfigName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}
