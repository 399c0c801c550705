package cardindex

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/artswap/artswap/internal/core"
)

// RateLimiter enforces per-host request windows for remote card indexes.
type RateLimiter struct {
	Store  RateLimitStore
	Limits map[string]RateLimit
	Clock  func() time.Time
	Margin float64
}

// RateLimit represents a rate limit window.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// RateLimitStore persists rate limit state between runs.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, host string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, host string, state *core.RateLimitState) error
}

// DefaultLimit applies to any host without an explicit entry.
var DefaultLimit = RateLimit{RequestsPerWindow: 60, WindowDuration: time.Minute}

// DefaultLimits holds known card database hosts.
var DefaultLimits = map[string]RateLimit{
	"db.ygoprodeck.com": {RequestsPerWindow: 20, WindowDuration: time.Second},
	"yugipedia.com":     {RequestsPerWindow: 60, WindowDuration: time.Minute},
}

// Allow reports whether a request to endpoint may be sent now, and how long to
// wait otherwise.
func (r *RateLimiter) Allow(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	if r == nil || r.Store == nil {
		return true, 0, nil
	}

	state, err := r.load(ctx, endpoint)
	if err != nil {
		return true, 0, err
	}

	now := r.now()
	if state.BackoffUntil != nil && now.Before(*state.BackoffUntil) {
		return false, state.BackoffUntil.Sub(now), nil
	}

	limit := r.limitFor(endpoint)
	windowEnd := state.WindowStart.Add(limit.WindowDuration)
	if now.After(windowEnd) {
		return true, 0, nil
	}
	if state.RequestCount >= limit.RequestsPerWindow {
		return false, windowEnd.Sub(now), nil
	}
	return true, 0, nil
}

// Record counts one request against the current window, starting a new window
// when the previous one has elapsed.
func (r *RateLimiter) Record(ctx context.Context, endpoint string) error {
	if r == nil || r.Store == nil {
		return nil
	}

	state, err := r.load(ctx, endpoint)
	if err != nil {
		return err
	}

	now := r.now()
	limit := r.limitFor(endpoint)
	if state.WindowStart.IsZero() || now.After(state.WindowStart.Add(limit.WindowDuration)) {
		state.WindowStart = now
		state.RequestCount = 0
	}
	state.RequestCount++

	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// Record429 applies a backoff window after the host answered 429.
func (r *RateLimiter) Record429(ctx context.Context, endpoint string, retryAfter time.Duration) error {
	if r == nil || r.Store == nil {
		return nil
	}

	state, err := r.load(ctx, endpoint)
	if err != nil {
		return err
	}

	now := r.now()
	state.Last429At = &now
	if retryAfter > 0 {
		until := now.Add(retryAfter)
		state.BackoffUntil = &until
	}

	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// ApplyOverrides merges per-host request overrides (per minute).
func (r *RateLimiter) ApplyOverrides(overrides map[string]int) {
	if r == nil || len(overrides) == 0 {
		return
	}

	if r.Limits == nil {
		r.Limits = make(map[string]RateLimit, len(DefaultLimits)+len(overrides))
		for key, limit := range DefaultLimits {
			r.Limits[key] = limit
		}
	}

	for endpoint, value := range overrides {
		endpoint = strings.ToLower(strings.TrimSpace(endpoint))
		if endpoint == "" || value <= 0 {
			continue
		}
		r.Limits[endpoint] = RateLimit{RequestsPerWindow: value, WindowDuration: time.Minute}
	}
}

// ApplySafetyMargin scales every limit by a ratio in (0, 1].
func (r *RateLimiter) ApplySafetyMargin(margin float64) {
	if r == nil || margin <= 0 || margin > 1 {
		return
	}
	r.Margin = margin
}

func (r *RateLimiter) load(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &core.RateLimitState{}
	}
	return state, nil
}

func (r *RateLimiter) limitFor(endpoint string) RateLimit {
	limits := r.Limits
	if limits == nil {
		limits = DefaultLimits
	}
	limit, ok := limits[strings.ToLower(endpoint)]
	if !ok {
		limit = DefaultLimit
	}
	return r.applyMargin(limit)
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *RateLimiter) applyMargin(limit RateLimit) RateLimit {
	if r.Margin <= 0 || r.Margin > 1 {
		return limit
	}
	adjusted := int(math.Floor(float64(limit.RequestsPerWindow) * r.Margin))
	if adjusted < 1 {
		adjusted = 1
	}
	limit.RequestsPerWindow = adjusted
	return limit
}
