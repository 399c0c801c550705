package cardindex

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/artswap/artswap/internal/core"
)

// DefaultCacheSize is used when no positive size is configured.
const DefaultCacheSize = 1024

// Cached memoises successful searches of an underlying index for up to ttl.
// Failed searches are never cached so a transient outage does not stick.
type Cached struct {
	next  core.CardIndex
	cache *expirable.LRU[string, []core.Card]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached wraps next with an LRU of size entries. Entries older than ttl
// are refetched; a non-positive ttl keeps them until evicted or purged.
func NewCached(next core.CardIndex, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cached{next: next, cache: expirable.NewLRU[string, []core.Card](size, nil, ttl)}
}

// SearchCards returns cached candidates for name or queries the wrapped index.
func (c *Cached) SearchCards(ctx context.Context, name string) ([]core.Card, error) {
	key := cacheKey(name)
	if cards, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return cloneCards(cards), nil
	}
	c.misses.Add(1)

	cards, err := c.next.SearchCards(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneCards(cards))
	return cards, nil
}

// Stats returns hit and miss counters.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge drops every cached entry, e.g. after the card table was reimported.
func (c *Cached) Purge() {
	c.cache.Purge()
}

func cacheKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func cloneCards(cards []core.Card) []core.Card {
	out := make([]core.Card, len(cards))
	copy(out, cards)
	return out
}
