package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/artswap/artswap/internal/errors"
)

type stubChecker struct {
	err   error
	delay time.Duration
	calls int
}

func (s *stubChecker) CheckHealth(ctx context.Context) error {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.err
}

func withManager(t *testing.T, hm *HealthManager) {
	t.Helper()
	prev := globalHealthManager
	globalHealthManager = hm
	t.Cleanup(func() { globalHealthManager = prev })
}

func get(t *testing.T, handler http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthReportsChecksInOrder(t *testing.T) {
	hm := NewHealthManager("1.2.3")
	hm.RegisterChecker("store", &stubChecker{})
	hm.RegisterChecker("card_index", &stubChecker{err: fmt.Errorf("no cards imported: %w", ErrDegraded)})
	hm.RegisterChecker("app_identity", &stubChecker{})
	withManager(t, hm)

	rec := get(t, HealthHandler, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "aggregate", resp.Endpoint)
	assert.Equal(t, "1.2.3", resp.Version)
	require.Len(t, resp.Checks, 3)
	assert.Equal(t, []string{"store", "card_index", "app_identity"},
		[]string{resp.Checks[0].Name, resp.Checks[1].Name, resp.Checks[2].Name})
	assert.Equal(t, StatusDegraded, resp.Checks[1].Status)
	assert.Contains(t, resp.Checks[1].Detail, "no cards imported")
}

func TestReadinessFailsOnUnhealthyCheck(t *testing.T) {
	hm := NewHealthManager("dev")
	hm.RegisterChecker("store", &stubChecker{err: errors.New("database is locked")})
	withManager(t, hm)

	rec := get(t, ReadinessHandler, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, apperrors.CodeServiceUnavailable, body.Error.Code)
	assert.Equal(t, "ready", body.Error.Details["endpoint"])
	checks, ok := body.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, StatusUnhealthy, checks["store"])
}

func TestLivenessSkipsChecks(t *testing.T) {
	store := &stubChecker{err: errors.New("down")}
	hm := NewHealthManager("dev")
	hm.RegisterChecker("store", store)
	withManager(t, hm)

	rec := get(t, LivenessHandler, "/health/live")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, store.calls)
}

func TestRegisterCheckerReplacesByName(t *testing.T) {
	hm := NewHealthManager("dev")
	hm.RegisterChecker("store", &stubChecker{err: errors.New("down")})
	hm.RegisterChecker("store", &stubChecker{})

	status, results := hm.Check(context.Background())
	assert.Equal(t, StatusHealthy, status)
	require.Len(t, results, 1)
}

func TestCheckDeadlineDegradesRemainingChecks(t *testing.T) {
	hm := NewHealthManager("dev")
	hm.RegisterChecker("slow", &stubChecker{delay: time.Second})
	later := &stubChecker{}
	hm.RegisterChecker("later", later)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	status, results := hm.Check(ctx)

	// The slow check itself fails with the deadline; the next never runs.
	assert.Equal(t, StatusUnhealthy, status)
	assert.Equal(t, StatusUnhealthy, results[0].Status)
	assert.Equal(t, StatusDegraded, results[1].Status)
	assert.Contains(t, results[1].Detail, "not run")
	assert.Zero(t, later.calls)
}

func TestHealthWithoutManager(t *testing.T) {
	withManager(t, nil)

	for _, handler := range []http.HandlerFunc{HealthHandler, LivenessHandler, ReadinessHandler, StartupHandler} {
		rec := get(t, handler, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	}
}
