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

// SearchCards returns every card whose name contains name, ignoring case and
// repeated whitespace. An exact name match sorts first; the rest keep import
// order. Failures are returned as *core.IndexError.
func (s *Store) SearchCards(ctx context.Context, name string) ([]core.Card, error) {
	if s == nil || s.DB == nil {
		return nil, core.NewIndexError(core.IndexUnavailable, "search", name, errors.New("store is not initialized"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := NameKey(name)
	if key == "" {
		return []core.Card{}, nil
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(`
		SELECT id, name, passcode, source
		FROM cards
		WHERE name_key LIKE ? ESCAPE '\'
		ORDER BY CASE WHEN name_key = ? THEN 0 ELSE 1 END, seq
	`), "%"+escapeLike(key)+"%", key)
	if err != nil {
		return nil, core.NewIndexError(s.classify(ctx, err), "search", name, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	cards, err := scanCards(rows)
	if err != nil {
		return nil, core.NewIndexError(core.IndexDecode, "search", name, err)
	}
	return cards, nil
}

// ImportCards upserts cards keyed by CardKey. New cards are appended to the
// import order; existing cards keep their position. Returns the number of
// cards written.
func (s *Store) ImportCards(ctx context.Context, cards []core.Card) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM cards`).Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("read import order: %w", err)
	}
	seq := maxSeq.Int64

	stmt := s.rebind(`
		INSERT INTO cards (id, name, name_key, passcode, source, seq, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_key = excluded.name_key,
			passcode = excluded.passcode,
			source = excluded.source,
			updated_at = excluded.updated_at
	`)

	now := time.Now().UTC().Unix()
	written := 0
	for _, card := range cards {
		name := strings.TrimSpace(card.Name)
		if name == "" {
			continue
		}
		seq++
		if _, err := tx.ExecContext(ctx, stmt,
			CardKey(card), name, NameKey(name),
			strings.TrimSpace(card.Passcode), strings.TrimSpace(card.Source),
			seq, now,
		); err != nil {
			return 0, fmt.Errorf("import card %q: %w", name, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return written, nil
}

// ListCards returns cards in import order.
func (s *Store) ListCards(ctx context.Context, limit, offset int) ([]core.Card, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(`
		SELECT id, name, passcode, source
		FROM cards
		ORDER BY seq
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	cards, err := scanCards(rows)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// CountCards returns the number of indexed cards.
func (s *Store) CountCards(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return count, nil
}

// ClearCards removes every card, optionally only those from source.
func (s *Store) ClearCards(ctx context.Context, source string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result sql.Result
		err    error
	)
	if source = strings.TrimSpace(source); source != "" {
		result, err = s.DB.ExecContext(ctx, s.rebind(`DELETE FROM cards WHERE source = ?`), source)
	} else {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM cards`)
	}
	if err != nil {
		return 0, fmt.Errorf("clear cards: %w", err)
	}
	return result.RowsAffected()
}

// NameKey is the case- and whitespace-insensitive form names are matched on.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// CardKey identifies a card row: its ID, else its passcode, else its name.
func CardKey(card core.Card) string {
	if id := strings.TrimSpace(card.ID); id != "" {
		return "id:" + id
	}
	if passcode := strings.TrimSpace(card.Passcode); passcode != "" {
		return "passcode:" + passcode
	}
	return "name:" + NameKey(card.Name)
}

func scanCards(rows *sql.Rows) ([]core.Card, error) {
	cards := []core.Card{}
	for rows.Next() {
		var (
			id   string
			card core.Card
		)
		if err := rows.Scan(&id, &card.Name, &card.Passcode, &card.Source); err != nil {
			return nil, err
		}
		card.ID = displayID(id)
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

// displayID strips the key prefix so only real IDs surface on cards.
func displayID(key string) string {
	if id, ok := strings.CutPrefix(key, "id:"); ok {
		return id
	}
	return ""
}

func escapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}

// classify separates a broken connection from a failing statement.
func (s *Store) classify(ctx context.Context, err error) core.IndexErrorKind {
	if ctx.Err() != nil || errors.Is(err, sql.ErrConnDone) {
		return core.IndexUnavailable
	}
	if pingErr := s.DB.PingContext(ctx); pingErr != nil {
		return core.IndexUnavailable
	}
	return core.IndexQuery
}
