package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artswap/artswap/internal/core"
	"github.com/artswap/artswap/internal/observability"
)

// Without a telemetry system every recorder is a no-op.
func TestRecordersWithoutTelemetry(t *testing.T) {
	prev := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = prev })

	require.NotPanics(t, func() {
		RunRecorder{}.RecordRun(core.RunSummary{Total: 2, Matched: 1, Unmatched: 1, IndexErrors: 1}, time.Second)
		RecordImport(3)
		RecordCacheStats(1, 2)
		RecordHealthCheck("store", "healthy", time.Millisecond)
		RecordError("NOT_FOUND", 404)
		RecordErrorByEndpoint("/v1/match", "INVALID_INPUT")
		RecordPanic("/v1/match")
		RecordHTTPRequest(HTTPRequest{Method: "POST", Route: "/v1/match", Status: 500})
		SetServerStartTime(time.Now().Unix())
		SetServerUptime(5)
	})
}

func TestHTTPRequestErrorClass(t *testing.T) {
	cases := map[int]string{
		200: "",
		304: "",
		400: "client_error",
		404: "client_error",
		500: "server_error",
		503: "server_error",
	}
	for status, want := range cases {
		require.Equal(t, want, HTTPRequest{Status: status}.ErrorClass(), "status %d", status)
	}
}
