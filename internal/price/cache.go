package price

import (
	"context"
	"sync"
	"time"
)

// QuoteResolver is anything that prices a symbol without failing, usually a *Resolver.
type QuoteResolver interface {
	Resolve(ctx context.Context, symbol string) Quote
}

// Entry is a cached resolution, including unresolved ones.
type Entry struct {
	Quote     Quote     `json:"quote"`
	FetchedAt time.Time `json:"fetched_at"`
}

// EntryStore holds cache entries. It must be safe for concurrent use.
type EntryStore interface {
	Load(ctx context.Context, symbol string) (Entry, bool)
	Store(ctx context.Context, symbol string, e Entry)
}

// Cache memoizes a resolver per symbol for a fixed TTL. Stale entries are refreshed, never served.
type Cache struct {
	resolver QuoteResolver
	entries  EntryStore
	ttl      time.Duration
	now      func() time.Time
}

type CacheOption func(*Cache)

// WithEntryStore replaces the default in-memory entries, e.g. with a redis-backed store.
func WithEntryStore(s EntryStore) CacheOption {
	return func(c *Cache) { c.entries = s }
}

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(resolver QuoteResolver, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		resolver: resolver,
		entries:  NewMemoryEntries(),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the live cached quote for symbol, or resolves it once and caches the result.
func (c *Cache) Get(ctx context.Context, symbol string) Quote {
	now := c.now()
	if e, ok := c.entries.Load(ctx, symbol); ok && now.Sub(e.FetchedAt) < c.ttl {
		return e.Quote
	}

	q := c.resolver.Resolve(ctx, symbol)
	c.entries.Store(ctx, symbol, Entry{Quote: q, FetchedAt: now})
	return q
}

type MemoryEntries struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryEntries() *MemoryEntries {
	return &MemoryEntries{entries: make(map[string]Entry)}
}

func (m *MemoryEntries) Load(_ context.Context, symbol string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[symbol]
	return e, ok
}

func (m *MemoryEntries) Store(_ context.Context, symbol string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[symbol] = e
}
