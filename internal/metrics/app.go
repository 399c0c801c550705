package metrics

import (
	"time"

	"github.com/artswap/artswap/internal/core"
	"github.com/artswap/artswap/internal/observability"
)

// Pipeline and server metrics following Prometheus conventions
var (
	// Match run metrics
	MatchRunsTotal        = "app_match_runs_total"
	MatchRunDuration      = "app_match_run_duration_ms"
	ArtworksTotal         = "app_artworks_total"
	IndexErrorsTotal      = "app_index_errors_total"
	GameImagesMissing     = "app_game_images_missing_total"
	ReplacementsMissing   = "app_replacements_missing_total"
	CardsImportedTotal    = "app_cards_imported_total"
	IndexCacheHitsTotal   = "app_index_cache_hits_total"
	IndexCacheMissesTotal = "app_index_cache_misses_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RunRecorder forwards pipeline outcomes to the telemetry system. Source
// labels where the run came from ("cli" or "http").
type RunRecorder struct {
	Source string
}

// RecordRun records one completed match run.
func (r RunRecorder) RecordRun(summary core.RunSummary, elapsed time.Duration) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}

	source := r.Source
	if source == "" {
		source = "cli"
	}

	_ = sys.Counter(MatchRunsTotal, 1, map[string]string{"source": source})
	_ = sys.Histogram(MatchRunDuration, elapsed, map[string]string{"source": source})

	for status, count := range map[core.MatchStatus]int{
		core.StatusMatched:   summary.Matched,
		core.StatusAmbiguous: summary.Ambiguous,
		core.StatusUnmatched: summary.Unmatched,
	} {
		if count == 0 {
			continue
		}
		_ = sys.Counter(ArtworksTotal, float64(count), map[string]string{
			"source": source,
			"status": string(status),
		})
	}
	if summary.IndexErrors > 0 {
		_ = sys.Counter(IndexErrorsTotal, float64(summary.IndexErrors), map[string]string{"source": source})
	}
	if summary.GameImagesMissing > 0 {
		_ = sys.Counter(GameImagesMissing, float64(summary.GameImagesMissing), map[string]string{"source": source})
	}
	if summary.ReplacementsMissing > 0 {
		_ = sys.Counter(ReplacementsMissing, float64(summary.ReplacementsMissing), map[string]string{"source": source})
	}
}

// RecordImport records cards written to the index store.
func RecordImport(written int) {
	if observability.TelemetrySystem != nil && written > 0 {
		_ = observability.TelemetrySystem.Counter(CardsImportedTotal, float64(written), nil)
	}
}

// RecordCacheStats publishes the cached index hit and miss counters.
func RecordCacheStats(hits, misses int64) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(IndexCacheHitsTotal, float64(hits), nil)
	_ = observability.TelemetrySystem.Gauge(IndexCacheMissesTotal, float64(misses), nil)
}

// RecordHealthCheck records one health check outcome (healthy, degraded or
// unhealthy).
func RecordHealthCheck(checkName, status string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, float64(seconds), nil)
	}
}
