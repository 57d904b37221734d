package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"codeberg.org/snonux/translateassist/internal/cache"
)

// CacheBackend implements cache.Backend on the cache_mt and cache_llm
// tables. Creation times are unix milliseconds, TTLs whole seconds.
type CacheBackend struct {
	db *DB
}

// NewCacheBackend creates a cache backend on db.
func NewCacheBackend(db *DB) *CacheBackend {
	return &CacheBackend{db: db}
}

func cacheTable(kind cache.Kind) (string, error) {
	switch kind {
	case cache.KindMT:
		return "cache_mt", nil
	case cache.KindLLM:
		return "cache_llm", nil
	}
	return "", fmt.Errorf("unknown cache kind %q", kind)
}

// Get implements cache.Backend.
func (b *CacheBackend) Get(ctx context.Context, kind cache.Kind, key string) (*cache.Entry, error) {
	table, err := cacheTable(kind)
	if err != nil {
		return nil, err
	}

	query, args, err := b.db.SQ.
		Select("key", "payload", "created_at", "ttl").
		From(table).
		Where(sq.Eq{"key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		e         cache.Entry
		payload   string
		createdMs int64
		ttlSecs   int64
	)
	row := b.db.SQL.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&e.Key, &payload, &createdMs, &ttlSecs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	e.Payload = []byte(payload)
	e.CreatedAt = time.UnixMilli(createdMs)
	e.TTL = time.Duration(ttlSecs) * time.Second
	return &e, nil
}

// Put implements cache.Backend.
func (b *CacheBackend) Put(ctx context.Context, kind cache.Kind, e cache.Entry) error {
	table, err := cacheTable(kind)
	if err != nil {
		return err
	}

	q := b.db.SQ.
		Insert(table).
		Columns("key", "payload", "created_at", "ttl").
		Values(e.Key, string(e.Payload), e.CreatedAt.UnixMilli(), ttlSeconds(e.TTL)).
		Suffix("ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, ttl = excluded.ttl, created_at = excluded.created_at")
	if _, err := b.db.exec(ctx, q); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", table, err)
	}
	return nil
}

// DeleteExpired implements cache.Backend.
func (b *CacheBackend) DeleteExpired(ctx context.Context, kind cache.Kind, now time.Time) (int64, error) {
	table, err := cacheTable(kind)
	if err != nil {
		return 0, err
	}

	q := b.db.SQ.
		Delete(table).
		Where(sq.Expr("created_at + ttl * 1000 <= ?", now.UnixMilli()))
	res, err := b.db.exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to evict %s: %w", table, err)
	}
	return res.RowsAffected()
}

// PruneOldest implements cache.Backend.
func (b *CacheBackend) PruneOldest(ctx context.Context, kind cache.Kind, keep int) (int64, error) {
	table, err := cacheTable(kind)
	if err != nil {
		return 0, err
	}

	subquery := fmt.Sprintf(
		"key IN (SELECT key FROM %[1]s ORDER BY created_at ASC, key ASC LIMIT max(0, (SELECT COUNT(*) FROM %[1]s) - ?))",
		table,
	)
	res, err := b.db.exec(ctx, b.db.SQ.Delete(table).Where(sq.Expr(subquery, keep)))
	if err != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return res.RowsAffected()
}

// Count returns the number of rows of kind.
func (b *CacheBackend) Count(ctx context.Context, kind cache.Kind) (int, error) {
	table, err := cacheTable(kind)
	if err != nil {
		return 0, err
	}
	query, args, err := b.db.SQ.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	var n int
	if err := b.db.SQL.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// ttlSeconds rounds ttl up to whole seconds so a positive ttl never
// stores as zero.
func ttlSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Second - 1) / time.Second)
}
