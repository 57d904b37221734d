package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/translateassist/internal/cache"
	"codeberg.org/snonux/translateassist/internal/scheduler"
	"codeberg.org/snonux/translateassist/internal/translation"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "app.db")

	db, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, nil)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.SQL.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open(MemoryPath, nil)
	require.NoError(t, err)
	defer db.Close()

	backend := NewCacheBackend(db)
	require.NoError(t, backend.Put(context.Background(), cache.KindMT, cache.Entry{
		Key: "k", Payload: []byte("v"), CreatedAt: time.Now(), TTL: time.Minute,
	}))
	n, err := backend.Count(context.Background(), cache.KindMT)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCacheBackendRoundTrip(t *testing.T) {
	backend := NewCacheBackend(openTestDB(t))
	ctx := context.Background()
	created := time.UnixMilli(time.Now().UnixMilli())

	got, err := backend.Get(ctx, cache.KindLLM, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, backend.Put(ctx, cache.KindLLM, cache.Entry{
		Key: "k", Payload: []byte(`{"a":1}`), CreatedAt: created, TTL: 60 * time.Second,
	}))
	got, err = backend.Get(ctx, cache.KindLLM, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte(`{"a":1}`), got.Payload)
	assert.Equal(t, 60*time.Second, got.TTL)
	assert.True(t, created.Equal(got.CreatedAt))

	// Upsert replaces payload and TTL.
	require.NoError(t, backend.Put(ctx, cache.KindLLM, cache.Entry{
		Key: "k", Payload: []byte(`{"a":2}`), CreatedAt: created, TTL: 5 * time.Second,
	}))
	got, err = backend.Get(ctx, cache.KindLLM, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), got.Payload)
	assert.Equal(t, 5*time.Second, got.TTL)

	// Tables are separate.
	got, err = backend.Get(ctx, cache.KindMT, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheBackendDeleteExpired(t *testing.T) {
	backend := NewCacheBackend(openTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, backend.Put(ctx, cache.KindMT, cache.Entry{Key: "old", Payload: []byte("x"), CreatedAt: now.Add(-2 * time.Second), TTL: time.Second}))
	require.NoError(t, backend.Put(ctx, cache.KindMT, cache.Entry{Key: "fresh", Payload: []byte("x"), CreatedAt: now, TTL: time.Hour}))

	n, err := backend.DeleteExpired(ctx, cache.KindMT, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := backend.Get(ctx, cache.KindMT, "old")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = backend.Get(ctx, cache.KindMT, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestCacheBackendRoundsSubSecondTTLUp(t *testing.T) {
	backend := NewCacheBackend(openTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, backend.Put(ctx, cache.KindMT, cache.Entry{
		Key: "short", Payload: []byte("x"), CreatedAt: now, TTL: 500 * time.Millisecond,
	}))
	require.NoError(t, backend.Put(ctx, cache.KindMT, cache.Entry{
		Key: "odd", Payload: []byte("x"), CreatedAt: now, TTL: 1500 * time.Millisecond,
	}))

	got, err := backend.Get(ctx, cache.KindMT, "short")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Second, got.TTL)
	assert.False(t, got.Expired(now))

	got, err = backend.Get(ctx, cache.KindMT, "odd")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2*time.Second, got.TTL)

	n, err := backend.DeleteExpired(ctx, cache.KindMT, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTTLSeconds(t *testing.T) {
	assert.Equal(t, int64(0), ttlSeconds(0))
	assert.Equal(t, int64(0), ttlSeconds(-time.Second))
	assert.Equal(t, int64(1), ttlSeconds(time.Millisecond))
	assert.Equal(t, int64(1), ttlSeconds(time.Second))
	assert.Equal(t, int64(86400), ttlSeconds(24*time.Hour))
}

func TestCacheBackendPruneOldest(t *testing.T) {
	backend := NewCacheBackend(openTestDB(t))
	ctx := context.Background()
	base := time.Now()

	for i, key := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, backend.Put(ctx, cache.KindLLM, cache.Entry{
			Key: key, Payload: []byte(key), CreatedAt: base.Add(time.Duration(i) * time.Second), TTL: time.Hour,
		}))
	}

	n, err := backend.PruneOldest(ctx, cache.KindLLM, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, key := range []string{"a", "b"} {
		got, err := backend.Get(ctx, cache.KindLLM, key)
		require.NoError(t, err)
		assert.Nil(t, got, key)
	}
	count, err := backend.Count(ctx, cache.KindLLM)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	n, err = backend.PruneOldest(ctx, cache.KindLLM, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCacheOverSQLite(t *testing.T) {
	c := cache.New(NewCacheBackend(openTestDB(t)), cache.DefaultConfig())
	ctx := context.Background()
	key := cache.MTKey(" Hello ", "EN", "FA", "")

	require.NoError(t, c.PutJSON(ctx, cache.KindMT, key, translation.MTResult{
		Candidates: []translation.SenseCandidate{{Text: "سلام دنیا", Provenance: "google"}},
	}, time.Minute))

	var got translation.MTResult
	require.True(t, c.GetJSON(ctx, cache.KindMT, cache.MTKey("hello", "en", "fa", ""), &got))
	assert.Equal(t, "سلام دنیا", got.Candidates[0].Text)
}

func TestUnknownCacheKind(t *testing.T) {
	backend := NewCacheBackend(openTestDB(t))
	_, err := backend.Get(context.Background(), cache.Kind("other"), "k")
	assert.Error(t, err)
}

func TestMetricsSink(t *testing.T) {
	db := openTestDB(t)
	sink := NewMetricsSink(db)

	sink.Track("mt_ok")
	sink.Track("llm_ok", 0.92)
	sink.Track("llm_ok", 0.8)
	sink.Close()

	counts, err := sink.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"mt_ok": 1, "llm_ok": 2}, counts)

	var value float64
	require.NoError(t, db.SQL.QueryRow(`SELECT value FROM metrics WHERE event = 'llm_ok' ORDER BY id LIMIT 1`).Scan(&value))
	assert.InDelta(t, 0.92, value, 1e-9)

	// Tracking after close is dropped, not a panic.
	sink.Track("late")
	assert.Equal(t, int64(1), sink.Dropped())
	sink.Close()
}

func TestCircuitStore(t *testing.T) {
	store := NewCircuitStore(openTestDB(t))
	ctx := context.Background()
	until := time.UnixMilli(time.Now().Add(time.Minute).UnixMilli())

	require.NoError(t, store.SaveCircuit(ctx, scheduler.FastLLM, until))
	circuits, err := store.LoadCircuits(ctx)
	require.NoError(t, err)
	assert.True(t, until.Equal(circuits[scheduler.FastLLM]))

	later := until.Add(time.Minute)
	require.NoError(t, store.SaveCircuit(ctx, scheduler.FastLLM, later))
	circuits, err = store.LoadCircuits(ctx)
	require.NoError(t, err)
	assert.True(t, later.Equal(circuits[scheduler.FastLLM]))

	require.NoError(t, store.SaveCircuit(ctx, scheduler.FastLLM, time.Time{}))
	circuits, err = store.LoadCircuits(ctx)
	require.NoError(t, err)
	assert.Empty(t, circuits)
}

func TestCircuitStoreRestoresScheduler(t *testing.T) {
	store := NewCircuitStore(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, store.SaveCircuit(ctx, scheduler.CapableLLM, time.Now().Add(time.Minute)))

	s, err := scheduler.New(scheduler.DefaultConfig(), scheduler.WithStateStore(store))
	require.NoError(t, err)
	require.NoError(t, s.Restore(ctx))

	err = s.Do(ctx, scheduler.CapableLLM, 1, func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestGlossary(t *testing.T) {
	g := NewGlossary(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, translation.GlossaryHit{Term: "Model", Domain: "AI/CS", Canonical: "مدل"}))
	require.NoError(t, g.Upsert(ctx, translation.GlossaryHit{Term: "model", Canonical: "نمونه", Note: "general"}))
	require.NoError(t, g.Upsert(ctx, translation.GlossaryHit{Term: "model", Domain: "Business", Canonical: "الگو"}))

	hits, err := g.Find(ctx, " MODEL ", "AI/CS")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "مدل", hits[0].Canonical)
	assert.Equal(t, "نمونه", hits[1].Canonical)

	all, err := g.Find(ctx, "model", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := g.Find(ctx, "dataset", "AI/CS")
	require.NoError(t, err)
	assert.Empty(t, none)

	// Upsert replaces the canonical translation.
	require.NoError(t, g.Upsert(ctx, translation.GlossaryHit{Term: "model", Domain: "AI/CS", Canonical: "مُدل"}))
	hits, err = g.Find(ctx, "model", "AI/CS")
	require.NoError(t, err)
	assert.Equal(t, "مُدل", hits[0].Canonical)

	assert.Error(t, g.Upsert(ctx, translation.GlossaryHit{Term: "", Canonical: "x"}))

	list, err := g.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestHistoryPrunes(t *testing.T) {
	h := NewHistory(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < HistoryLimit+5; i++ {
		require.NoError(t, h.Record(ctx, "term"))
	}
	require.NoError(t, h.Record(ctx, "latest"))

	recent, err := h.Recent(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, recent, HistoryLimit)
	assert.Equal(t, "latest", recent[0])
}
