package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"crossref/internal/logging"
	"crossref/internal/services"
)

const defaultMaxPageSize = 100

// Option customises Cache construction.
type Option func(*Cache)

// WithMaxPageSize caps how many items a single FetchPage call may request.
func WithMaxPageSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxPage = n
		}
	}
}

// WithLogger attaches a logger; the cache tags it with its component name.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logging.NewComponentLogger(logger, "listing")
	}
}

// Cache grows per-source listings incrementally and serves prefixes of them
// without touching the network when enough items are already held. State is
// process-lifetime only.
type Cache struct {
	fetcher Fetcher
	maxPage int
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[entryKey]*entry

	hits    atomic.Int64
	fetches atomic.Int64
}

type entryKey struct {
	kind Kind
	key  string
}

type entry struct {
	// sem admits one fetcher at a time; later callers re-check after it commits.
	sem       chan struct{}
	items     []Video
	cursor    string
	exhausted bool
	updatedAt time.Time
}

// Stats summarises cache activity.
type Stats struct {
	Entries int   `json:"entries"`
	Items   int   `json:"items"`
	Hits    int64 `json:"hits"`
	Fetches int64 `json:"fetches"`
}

// EntryInfo describes one cached listing.
type EntryInfo struct {
	Kind      Kind      `json:"kind"`
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	Exhausted bool      `json:"exhausted"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// NewCache builds a Cache that fills entries through fetcher.
func NewCache(fetcher Fetcher, opts ...Option) (*Cache, error) {
	if fetcher == nil {
		return nil, errors.New("listing: fetcher is nil")
	}
	c := &Cache{
		fetcher: fetcher,
		maxPage: defaultMaxPageSize,
		logger:  logging.NewComponentLogger(nil, "listing"),
		entries: make(map[entryKey]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ensure returns the newest min(desired, available) items for (kind, key),
// fetching only the items not already cached. Cached items are never
// re-fetched, and an exhausted entry is served as-is forever.
func (c *Cache) Ensure(ctx context.Context, kind Kind, key string, desired int) ([]Video, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "listing", "ensure", "empty key", nil)
	}
	if desired <= 0 {
		return []Video{}, nil
	}

	e := c.entry(kind, key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	logger := logging.WithContext(ctx, c.logger).With(
		logging.String(logging.FieldSourceKind, string(kind)),
		logging.String(logging.FieldSourceKey, key),
	)

	if len(e.items) >= desired || e.exhausted {
		c.hits.Add(1)
		logger.Debug("listing served from cache",
			logging.Int("desired", desired),
			logging.Int("cached", len(e.items)),
			logging.Bool("exhausted", e.exhausted),
		)
		return e.prefix(desired), nil
	}

	for len(e.items) < desired && !e.exhausted {
		limit := min(desired-len(e.items), c.maxPage)
		start := time.Now()
		page, err := c.fetcher.FetchPage(ctx, kind, key, e.cursor, limit)
		if err != nil {
			// Earlier pages of this call stay committed.
			return nil, fmt.Errorf("listing %s %q: %w", kind, key, err)
		}
		c.fetches.Add(1)

		e.items = append(e.items, page.Items...)
		e.cursor = page.NextCursor
		if page.received() < limit || page.NextCursor == "" {
			e.exhausted = true
		}
		e.updatedAt = time.Now()

		logger.Debug("listing page fetched",
			logging.Int("requested", limit),
			logging.Int("received", page.received()),
			logging.Int("kept", len(page.Items)),
			logging.Int("cached", len(e.items)),
			logging.Bool("exhausted", e.exhausted),
			logging.Duration("latency", time.Since(start)),
		)
	}

	return e.prefix(desired), nil
}

// Stats returns cache activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := Stats{
		Entries: len(c.entries),
		Hits:    c.hits.Load(),
		Fetches: c.fetches.Load(),
	}
	for _, info := range c.snapshotLocked() {
		stats.Items += info.Count
	}
	return stats
}

// Entries lists every cached listing ordered by kind then key.
func (c *Cache) Entries() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Purge drops every entry. In-flight fetches finish against their detached
// entries and are discarded.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[entryKey]*entry)
	c.logger.Info("listing cache purged", logging.Int("entries", n))
	return n
}

func (c *Cache) entry(kind Kind, key string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := entryKey{kind: kind, key: key}
	e, ok := c.entries[k]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		c.entries[k] = e
	}
	return e
}

// snapshotLocked never blocks on a busy entry; one being filled right now is
// reported by key only.
func (c *Cache) snapshotLocked() []EntryInfo {
	infos := make([]EntryInfo, 0, len(c.entries))
	for k, e := range c.entries {
		select {
		case e.sem <- struct{}{}:
			infos = append(infos, EntryInfo{
				Kind:      k.kind,
				Key:       k.key,
				Count:     len(e.items),
				Exhausted: e.exhausted,
				UpdatedAt: e.updatedAt,
			})
			<-e.sem
		default:
			infos = append(infos, EntryInfo{Kind: k.kind, Key: k.key})
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Kind != infos[j].Kind {
			return infos[i].Kind < infos[j].Kind
		}
		return infos[i].Key < infos[j].Key
	})
	return infos
}

func (e *entry) prefix(desired int) []Video {
	n := min(desired, len(e.items))
	out := make([]Video, n)
	copy(out, e.items[:n])
	return out
}
