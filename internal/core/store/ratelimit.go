package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artswap/artswap/internal/core"
)

const rateLimitColumns = `host, request_count, window_start, backoff_until, last_429_at`

// RateLimitEntry is the stored request window of one card index host.
type RateLimitEntry struct {
	Host  string
	State core.RateLimitState
}

// RateLimitQuery selects hosts. Exactly one selector is honoured, in the
// order All, Host, Prefix.
type RateLimitQuery struct {
	All    bool
	Host   string
	Prefix string
}

// ErrNoRateLimitSelector is returned for a query that selects nothing.
var ErrNoRateLimitSelector = errors.New("must specify --all, --host, or --prefix")

func (q RateLimitQuery) Validate() error {
	_, _, err := q.filter()
	return err
}

func (q RateLimitQuery) filter() (string, []any, error) {
	switch {
	case q.All:
		return "", nil, nil
	case strings.TrimSpace(q.Host) != "":
		return "WHERE host = ?", []any{strings.TrimSpace(q.Host)}, nil
	case strings.TrimSpace(q.Prefix) != "":
		return "WHERE host LIKE ?", []any{strings.TrimSpace(q.Prefix) + "%"}, nil
	default:
		return "", nil, ErrNoRateLimitSelector
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRateLimit(row rowScanner) (RateLimitEntry, error) {
	var (
		entry        RateLimitEntry
		windowStart  int64
		backoffUntil sql.NullInt64
		last429At    sql.NullInt64
	)
	if err := row.Scan(&entry.Host, &entry.State.RequestCount, &windowStart, &backoffUntil, &last429At); err != nil {
		return RateLimitEntry{}, err
	}
	entry.State.WindowStart = time.Unix(windowStart, 0).UTC()
	entry.State.BackoffUntil = unixPtr(backoffUntil)
	entry.State.Last429At = unixPtr(last429At)
	return entry, nil
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func (s *Store) ready(ctx context.Context) (context.Context, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, nil
}

// GetRateLimit returns the stored window for host, or nil when none exists.
func (s *Store) GetRateLimit(ctx context.Context, host string) (*core.RateLimitState, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("host is required")
	}

	row := s.DB.QueryRowContext(ctx, s.rebind(`SELECT `+rateLimitColumns+` FROM rate_limits WHERE host = ?`), host)
	entry, err := scanRateLimit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch rate limit for %s: %w", host, err)
	}
	return &entry.State, nil
}

// UpdateRateLimit upserts the window for host.
func (s *Store) UpdateRateLimit(ctx context.Context, host string, state *core.RateLimitState) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return errors.New("host is required")
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}

	_, err = s.DB.ExecContext(ctx, s.rebind(`
		INSERT INTO rate_limits (`+rateLimitColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			request_count = excluded.request_count,
			window_start = excluded.window_start,
			backoff_until = excluded.backoff_until,
			last_429_at = excluded.last_429_at
	`), host, state.RequestCount, state.WindowStart.UTC().Unix(), nullUnix(state.BackoffUntil), nullUnix(state.Last429At))
	if err != nil {
		return fmt.Errorf("store rate limit for %s: %w", host, err)
	}
	return nil
}

// ListRateLimits returns the selected windows ordered by host.
func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	where, args, err := q.filter()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(`SELECT `+rateLimitColumns+` FROM rate_limits `+where+` ORDER BY host`), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	entries := []RateLimitEntry{}
	for rows.Next() {
		entry, err := scanRateLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	return entries, nil
}

// CountRateLimits counts the selected windows.
func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	where, args, err := q.filter()
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM rate_limits `+where), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

// ResetRateLimits deletes the selected windows and reports how many went.
func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	where, args, err := q.filter()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, s.rebind(`DELETE FROM rate_limits `+where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return result.RowsAffected()
}
