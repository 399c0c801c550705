package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/artswap/artswap/internal/metrics"
	"github.com/artswap/artswap/internal/observability"
)

// Recovery turns a handler panic into a 500 envelope and logs the stack. The
// panic value is never sent to the client. If the handler already wrote its
// headers the response is left as is.
//
// The envelope is encoded here rather than through internal/errors, which
// imports this package for GetRequestID.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newStatusRecorder(w)
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			requestID := GetRequestID(r.Context())
			route := RoutePattern(r)
			metrics.RecordPanic(route)
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Handler panicked",
					zap.String("panic", fmt.Sprint(v)),
					zap.String("endpoint", route),
					zap.String("request_id", requestID),
					zap.Bool("headers_written", rec.wroteHeader),
					zap.ByteString("stack", debug.Stack()))
			}
			if rec.wroteHeader {
				return
			}

			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", "internal server error").
				WithCorrelationID(requestID)
			rec.Header().Set("Content-Type", "application/json")
			rec.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(rec).Encode(map[string]any{
				"error": map[string]string{
					"code":       envelope.Code,
					"message":    envelope.Message,
					"request_id": envelope.CorrelationID,
				},
			})
		}()

		next.ServeHTTP(rec, r)
	})
}
