package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/metrics"
	"github.com/artswap/artswap/internal/observability"
)

// statusRecorder remembers the status and body size a handler produced.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// RoutePattern returns the chi route that served r. Outside a router the
// known artswap paths map to themselves and anything else to /unknown.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	switch path := r.URL.Path; {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/", path == "/version", path == "/metrics", path == "/v1/match", path == "/v1/cards":
		return path
	default:
		return "/unknown"
	}
}

// RequestMetrics records every request through metrics.RecordHTTPRequest
// and logs it with its request ID.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil && observability.ServerLogger == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		req := metrics.HTTPRequest{
			Method:       r.Method,
			Route:        RoutePattern(r),
			Status:       rec.status,
			Duration:     time.Since(start),
			RequestSize:  max(r.ContentLength, 0),
			ResponseSize: rec.written,
		}
		metrics.RecordHTTPRequest(req)

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", req.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", req.Route),
				zap.Int("status", req.Status),
				zap.Duration("duration", req.Duration),
				zap.Int64("request_size", req.RequestSize),
				zap.Int64("response_size", req.ResponseSize),
				zap.String("request_id", GetRequestID(r.Context())))
		}
	})
}
