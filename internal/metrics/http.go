package metrics

import (
	"strconv"
	"time"

	"github.com/artswap/artswap/internal/observability"
)

// HTTP metric names. Requests are labelled by route pattern, never by raw
// path.
const (
	HTTPRequestsTotal    = "http_requests_total"
	HTTPRequestDuration  = "http_request_duration_ms"
	HTTPRequestSize      = "http_request_size_bytes"
	HTTPResponseSize     = "http_response_size_bytes"
	HTTPErrorsTotal      = "http_errors_total"
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
)

// HTTPRequest is one served request as seen by the metrics middleware.
type HTTPRequest struct {
	Method       string
	Route        string
	Status       int
	Duration     time.Duration
	RequestSize  int64
	ResponseSize int64
}

// ErrorClass buckets a status into client_error, server_error or "".
func (r HTTPRequest) ErrorClass() string {
	switch {
	case r.Status >= 500:
		return "server_error"
	case r.Status >= 400:
		return "client_error"
	default:
		return ""
	}
}

// RecordHTTPRequest emits the request counter, latency histogram, size
// gauges and, for 4xx/5xx, the error counter.
func RecordHTTPRequest(req HTTPRequest) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}

	status := strconv.Itoa(req.Status)
	labels := map[string]string{"method": req.Method, "endpoint": req.Route, "status": status}
	_ = sys.Counter(HTTPRequestsTotal, 1, labels)
	_ = sys.Histogram(HTTPRequestDuration, req.Duration, labels)

	sizeLabels := map[string]string{"method": req.Method, "endpoint": req.Route}
	_ = sys.Gauge(HTTPRequestSize, float64(req.RequestSize), sizeLabels)
	_ = sys.Gauge(HTTPResponseSize, float64(req.ResponseSize), sizeLabels)

	if class := req.ErrorClass(); class != "" {
		_ = sys.Counter(HTTPErrorsTotal, 1, map[string]string{
			"method":     req.Method,
			"endpoint":   req.Route,
			"status":     status,
			"error_type": class,
		})
	}
}

// RecordError counts an error envelope written to a client.
func RecordError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ErrorsTotalName, 1, map[string]string{
			"error_code":  errorCode,
			"http_status": strconv.Itoa(httpStatus),
		})
	}
}

// RecordErrorByEndpoint counts an error envelope against its route.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ErrorsByEndpointName, 1, map[string]string{
			"endpoint":   endpoint,
			"error_code": errorCode,
		})
	}
}

// RecordPanic counts a handler panic caught by the recovery middleware.
// route is the matched pattern, or "" when unknown.
func RecordPanic(route string) {
	if observability.TelemetrySystem != nil {
		var labels map[string]string
		if route != "" {
			labels = map[string]string{"endpoint": route}
		}
		_ = observability.TelemetrySystem.Counter(PanicsTotalName, 1, labels)
	}
}
