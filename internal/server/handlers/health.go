package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/artswap/artswap/internal/errors"
	"github.com/artswap/artswap/internal/metrics"
)

// Check statuses, from best to worst.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ErrDegraded marks a check failure that still lets the server take traffic,
// e.g. an empty card index. Wrap it to add detail.
var ErrDegraded = stderrors.New("degraded")

// HealthChecker is a component the health endpoints report on.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckResult is the outcome of one registered check.
type CheckResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// HealthResponse is returned by every health endpoint.
type HealthResponse struct {
	Status    string        `json:"status"`
	Endpoint  string        `json:"endpoint"`
	Version   string        `json:"version,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []CheckResult `json:"checks,omitempty"`
}

type namedChecker struct {
	name    string
	checker HealthChecker
}

// healthEndpoint describes one health route. Liveness skips the checks: a
// process that can answer is alive even if the store is down.
type healthEndpoint struct {
	name    string
	timeout time.Duration
	checks  bool
}

var (
	endpointHealth  = healthEndpoint{name: "aggregate", timeout: 5 * time.Second, checks: true}
	endpointLive    = healthEndpoint{name: "live"}
	endpointReady   = healthEndpoint{name: "ready", timeout: 5 * time.Second, checks: true}
	endpointStartup = healthEndpoint{name: "startup", timeout: 3 * time.Second, checks: true}
)

// HealthManager runs registered checks in registration order.
type HealthManager struct {
	version string

	mu       sync.RWMutex
	checkers []namedChecker
}

// NewHealthManager creates a manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{version: version}
}

// RegisterChecker adds checker, replacing any earlier one with the same name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	for i := range hm.checkers {
		if hm.checkers[i].name == name {
			hm.checkers[i].checker = checker
			return
		}
	}
	hm.checkers = append(hm.checkers, namedChecker{name: name, checker: checker})
}

// Check runs every checker and folds the results into one status. Checks
// not reached before ctx ends count as degraded.
func (hm *HealthManager) Check(ctx context.Context) (string, []CheckResult) {
	hm.mu.RLock()
	checkers := append([]namedChecker(nil), hm.checkers...)
	hm.mu.RUnlock()

	overall := StatusHealthy
	results := make([]CheckResult, 0, len(checkers))
	for _, c := range checkers {
		result := CheckResult{Name: c.name, Status: StatusHealthy}
		if ctx.Err() != nil {
			result.Status = StatusDegraded
			result.Detail = "not run: " + ctx.Err().Error()
		} else {
			start := time.Now()
			err := c.checker.CheckHealth(ctx)
			elapsed := time.Since(start)
			result.DurationMS = elapsed.Milliseconds()
			switch {
			case err == nil:
			case stderrors.Is(err, ErrDegraded):
				result.Status = StatusDegraded
				result.Detail = err.Error()
			default:
				result.Status = StatusUnhealthy
				result.Detail = err.Error()
			}
			metrics.RecordHealthCheck(c.name, result.Status, elapsed)
		}
		overall = worse(overall, result.Status)
		results = append(results, result)
	}
	return overall, results
}

func worse(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func (hm *HealthManager) serve(w http.ResponseWriter, r *http.Request, p healthEndpoint) {
	resp := HealthResponse{Status: StatusHealthy, Endpoint: p.name, Version: hm.version, Timestamp: time.Now().UTC()}
	if p.checks {
		ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
		defer cancel()
		resp.Status, resp.Checks = hm.Check(ctx)
	}

	if resp.Status == StatusUnhealthy {
		apperrors.RespondWithError(w, r, healthEnvelope(p.name+" health check failed", resp))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func healthEnvelope(message string, resp HealthResponse) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(apperrors.CodeServiceUnavailable, message)

	failing := make([]string, 0, len(resp.Checks))
	checks := make(map[string]string, len(resp.Checks))
	for _, c := range resp.Checks {
		checks[c.Name] = c.Status
		if c.Status != StatusHealthy {
			failing = append(failing, c.Name)
		}
	}
	envelope = envelope.WithDetails(map[string]interface{}{
		"endpoint": resp.Endpoint,
		"status":   resp.Status,
		"checks":   checks,
	})
	if withCtx, err := envelope.WithContext(map[string]interface{}{"failing_checks": failing}); err == nil {
		envelope = withCtx
	}
	return envelope
}

var globalHealthManager *HealthManager

// InitHealthManager installs the manager behind the package-level handlers.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the installed manager, or nil.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func serveGlobal(w http.ResponseWriter, r *http.Request, p healthEndpoint) {
	if globalHealthManager == nil {
		apperrors.RespondWithError(w, r, healthEnvelope("health manager not initialized", HealthResponse{Endpoint: p.name, Status: "unknown"}))
		return
	}
	globalHealthManager.serve(w, r, p)
}

// HealthHandler serves GET /health with per-check detail.
func HealthHandler(w http.ResponseWriter, r *http.Request) { serveGlobal(w, r, endpointHealth) }

// LivenessHandler serves GET /health/live.
func LivenessHandler(w http.ResponseWriter, r *http.Request) { serveGlobal(w, r, endpointLive) }

// ReadinessHandler serves GET /health/ready.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) { serveGlobal(w, r, endpointReady) }

// StartupHandler serves GET /health/startup.
func StartupHandler(w http.ResponseWriter, r *http.Request) { serveGlobal(w, r, endpointStartup) }
