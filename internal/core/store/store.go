package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tursodatabase/go-libsql"
	_ "modernc.org/sqlite"

	"github.com/artswap/artswap/internal/config"
)

const (
	driverLibsql   = "libsql"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	// database/sql name registered by pgx/v5/stdlib.
	sqlDriverPgx = "pgx"
)

var localPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout = 5000",
}

// Store wraps the card index database.
type Store struct {
	DB     *sql.DB
	driver string
}

// Open initializes a store connection using the provided configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = driverLibsql
	}

	if ctx == nil {
		ctx = context.Background()
	}

	switch driver {
	case driverLibsql:
		dsn, err := buildLibsqlDSN(cfg)
		if err != nil {
			return nil, err
		}
		return openLocal(ctx, driverLibsql, driverLibsql, dsn, isRemoteLibsql(dsn))
	case driverSQLite:
		dsn, err := buildSQLiteDSN(cfg)
		if err != nil {
			return nil, err
		}
		return openLocal(ctx, driverSQLite, driverSQLite, dsn, false)
	case driverPostgres, sqlDriverPgx:
		dsn := strings.TrimSpace(cfg.URL)
		if dsn == "" {
			return nil, errors.New("store url is required for postgres")
		}
		db, err := sql.Open(sqlDriverPgx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres store: %w", err)
		}
		return &Store{DB: db, driver: driverPostgres}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

func openLocal(ctx context.Context, driver, sqlDriver, dsn string, remote bool) (*Store, error) {
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	if !remote {
		// One connection keeps :memory: databases shared and serialises writers.
		db.SetMaxOpenConns(1)
		for _, pragma := range localPragmas {
			if err := applyPragma(ctx, db, pragma); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
	}

	return &Store{DB: db, driver: driver}, nil
}

// applyPragma runs pragma through QueryRow because some drivers refuse Exec
// for statements that return a row.
func applyPragma(ctx context.Context, db *sql.DB, pragma string) error {
	var value any
	err := db.QueryRowContext(ctx, pragma).Scan(&value)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("apply pragma %q: %w", pragma, err)
	}
	return nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// CheckHealth pings the database; it backs the store health check.
func (s *Store) CheckHealth(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	return s.DB.PingContext(ctx)
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func buildLibsqlDSN(cfg config.StoreConfig) (string, error) {
	if dsn := strings.TrimSpace(cfg.URL); dsn != "" {
		return addAuthToken(dsn, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("store path or url is required")
	}

	if path == ":memory:" {
		return path, nil
	}

	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		if err := ensureStoreDir(localPath); err != nil {
			return "", err
		}
		return path, nil
	}

	if strings.HasPrefix(path, "libsql:") {
		return path, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

// buildSQLiteDSN returns a plain path for modernc sqlite; file: URIs are
// passed through.
func buildSQLiteDSN(cfg config.StoreConfig) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = strings.TrimSpace(cfg.URL)
	}
	if path == "" {
		return "", errors.New("store path is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		if err := ensureStoreDir(localPath); err != nil {
			return "", err
		}
		return path, nil
	}
	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}

func isRemoteLibsql(dsn string) bool {
	for _, prefix := range []string{"libsql:", "http:", "https:", "ws:", "wss:"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

func addAuthToken(dsn string, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}

	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func extractFilePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}

	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}

	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	if strings.TrimSpace(path) == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
