package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Kind selects one of the cache tables.
type Kind string

const (
	KindMT  Kind = "mt"
	KindLLM Kind = "llm"
)

// Kinds lists every cache table.
var Kinds = []Kind{KindMT, KindLLM}

// Entry is one cached payload.
type Entry struct {
	Key       string
	Payload   []byte
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the entry's age reached its TTL at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.CreatedAt.Add(e.TTL))
}

// Backend stores entries. Get returns (nil, nil) on a miss. Put is an
// upsert that replaces payload, TTL and creation time.
type Backend interface {
	Get(ctx context.Context, kind Kind, key string) (*Entry, error)
	Put(ctx context.Context, kind Kind, e Entry) error
	DeleteExpired(ctx context.Context, kind Kind, now time.Time) (int64, error)
	PruneOldest(ctx context.Context, kind Kind, keep int) (int64, error)
}

// Config holds the cache tunables.
type Config struct {
	MTTTL               time.Duration
	LLMTTL              time.Duration
	EnforceTTLOnRead    bool
	MaxEntries          int
	MaintenanceInterval time.Duration
}

// DefaultConfig returns one day TTLs and a 30 minute maintenance interval.
func DefaultConfig() Config {
	return Config{
		MTTTL:               24 * time.Hour,
		LLMTTL:              24 * time.Hour,
		EnforceTTLOnRead:    true,
		MaxEntries:          10000,
		MaintenanceInterval: 30 * time.Minute,
	}
}

// Cache is the response cache facade.
type Cache struct {
	backend Backend
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a cache over backend.
func New(backend Backend, cfg Config, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		cfg:     cfg,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.cfg
}

// Get returns a copy of the payload stored under key. Storage errors are
// logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, kind Kind, key string) ([]byte, bool) {
	e, err := c.backend.Get(ctx, kind, key)
	if err != nil {
		c.logger.Warn("cache read failed", "kind", kind, "error", err)
		return nil, false
	}
	if e == nil {
		return nil, false
	}
	if c.cfg.EnforceTTLOnRead && e.Expired(c.now()) {
		return nil, false
	}
	out := make([]byte, len(e.Payload))
	copy(out, e.Payload)
	return out, true
}

// Put upserts payload under key. A ttl <= 0 selects the kind's default.
func (c *Cache) Put(ctx context.Context, kind Kind, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL(kind)
	}
	e := Entry{Key: key, Payload: payload, CreatedAt: c.now(), TTL: ttl}
	if err := c.backend.Put(ctx, kind, e); err != nil {
		c.logger.Warn("cache write failed", "kind", kind, "error", err)
		return fmt.Errorf("failed to write %s cache entry: %w", kind, err)
	}
	return nil
}

// GetJSON decodes the payload under key into v. Undecodable payloads are
// treated as a miss.
func (c *Cache) GetJSON(ctx context.Context, kind Kind, key string, v any) bool {
	payload, ok := c.Get(ctx, kind, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		c.logger.Warn("cache entry undecodable", "kind", kind, "error", err)
		return false
	}
	return true
}

// PutJSON encodes v and stores it under key.
func (c *Cache) PutJSON(ctx context.Context, kind Kind, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s cache entry: %w", kind, err)
	}
	return c.Put(ctx, kind, key, payload, ttl)
}

// EvictExpired deletes every entry whose age reached its TTL.
func (c *Cache) EvictExpired(ctx context.Context) (int64, error) {
	var total int64
	now := c.now()
	for _, kind := range Kinds {
		n, err := c.backend.DeleteExpired(ctx, kind, now)
		if err != nil {
			return total, fmt.Errorf("failed to evict expired %s entries: %w", kind, err)
		}
		total += n
	}
	return total, nil
}

// PruneIfOversized deletes the oldest entries of each table beyond
// maxEntries. A non-positive maxEntries uses the configured cap.
func (c *Cache) PruneIfOversized(ctx context.Context, maxEntries int) (int64, error) {
	if maxEntries <= 0 {
		maxEntries = c.cfg.MaxEntries
	}
	var total int64
	for _, kind := range Kinds {
		n, err := c.backend.PruneOldest(ctx, kind, maxEntries)
		if err != nil {
			return total, fmt.Errorf("failed to prune %s entries: %w", kind, err)
		}
		total += n
	}
	return total, nil
}

// Maintain runs one eviction and pruning pass, logging failures.
func (c *Cache) Maintain(ctx context.Context) {
	if n, err := c.EvictExpired(ctx); err != nil {
		c.logger.Warn("cache eviction failed", "error", err)
	} else if n > 0 {
		c.logger.Debug("evicted expired cache entries", "count", n)
	}
	if n, err := c.PruneIfOversized(ctx, 0); err != nil {
		c.logger.Warn("cache pruning failed", "error", err)
	} else if n > 0 {
		c.logger.Debug("pruned cache entries", "count", n)
	}
}

// RunMaintenance runs Maintain immediately and then on every interval
// tick until ctx is done.
func (c *Cache) RunMaintenance(ctx context.Context) {
	c.Maintain(ctx)

	interval := c.cfg.MaintenanceInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Maintain(ctx)
		}
	}
}

func (c *Cache) defaultTTL(kind Kind) time.Duration {
	if kind == KindLLM {
		return c.cfg.LLMTTL
	}
	return c.cfg.MTTTL
}
