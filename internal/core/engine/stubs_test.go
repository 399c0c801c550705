package engine

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/artswap/artswap/internal/core"
	"github.com/artswap/artswap/internal/core/imagefs"
)

// stubLocator resolves cards by exact name against a fixed set of file names
// per directory.
type stubLocator struct {
	files map[string]map[string]string
	fail  map[string]error
	panic map[string]bool
	delay time.Duration
	calls atomic.Int64
}

func (s *stubLocator) FindImageFile(ctx context.Context, card core.Card, dir string) (core.ImageFile, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return core.ImageFile{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.panic[card.Name] {
		panic("locator exploded")
	}
	if err := s.fail[card.Name]; err != nil {
		return core.ImageFile{}, err
	}
	name, ok := s.files[dir][card.Name]
	if !ok {
		return core.ImageFile{}, core.ErrImageNotFound
	}
	return core.NewImageFile(filepath.Join(dir, name)), nil
}

// countingLocator counts how often cached listings are dropped.
type countingLocator struct {
	*imagefs.Locator
	forgets int
}

func (c *countingLocator) Forget(dir string) {
	c.forgets++
	c.Locator.Forget(dir)
}

// stubIndex returns fixed candidates per name.
type stubIndex struct {
	mu      sync.Mutex
	results map[string][]core.Card
	errs    map[string]error
	delays  map[string]time.Duration
	seen    []string
}

func (s *stubIndex) SearchCards(ctx context.Context, name string) ([]core.Card, error) {
	s.mu.Lock()
	s.seen = append(s.seen, name)
	delay := s.delays[name]
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err := s.errs[name]; err != nil {
		return nil, err
	}
	return s.results[name], nil
}

func (s *stubIndex) searched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.seen))
	copy(out, s.seen)
	return out
}

func names(values ...string) []core.Card {
	cards := make([]core.Card, 0, len(values))
	for _, v := range values {
		cards = append(cards, core.Card{Name: v})
	}
	return cards
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	obs, logs := observer.New(zapcore.InfoLevel)
	return zap.New(obs), logs
}

func messages(logs *observer.ObservedLogs) []string {
	entries := logs.All()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func fixedClock() func() time.Time {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(250 * time.Millisecond)
		return now
	}
}
