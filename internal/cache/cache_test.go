package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/translateassist/internal/translation"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T) (*Cache, *MemoryBackend, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)}
	backend := NewMemoryBackend()
	return New(backend, DefaultConfig(), WithClock(clock.Now)), backend, clock
}

type failingBackend struct{}

var errDisk = errors.New("disk I/O error")

func (failingBackend) Get(context.Context, Kind, string) (*Entry, error) { return nil, errDisk }
func (failingBackend) Put(context.Context, Kind, Entry) error            { return errDisk }
func (failingBackend) DeleteExpired(context.Context, Kind, time.Time) (int64, error) {
	return 0, errDisk
}
func (failingBackend) PruneOldest(context.Context, Kind, int) (int64, error) { return 0, errDisk }

func TestMTKeyNormalization(t *testing.T) {
	a := MTKey(" Hello ", "EN", "FA", "")
	b := MTKey("hello", "en", "fa", "")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, MTKey("hello", "en", "fa", "greeting"))
	assert.NotEqual(t, a, MTKey("hello", "en", "de", ""))
	assert.NotEqual(t, a, MTKey("hello world", "en", "fa", ""))
}

func TestMTKeyUnicodeNormalization(t *testing.T) {
	composed := MTKey("caf\u00e9", "fr", "fa", "")
	decomposed := MTKey("cafe\u0301", "fr", "fa", "")
	assert.Equal(t, composed, decomposed)
	assert.Equal(t, MTKey("CAF\u00c9", "FR", "fa", ""), composed)
}

func TestLLMKey(t *testing.T) {
	in := translation.DecisionInput{
		Term:       "Model",
		Source:     "EN",
		Target:     "fa",
		Candidates: []translation.SenseCandidate{{Text: "مدل", Provenance: "google"}},
	}
	same := in
	same.Term = " model "
	same.Source = "en"
	assert.Equal(t, LLMKey(in, TagPrimary), LLMKey(same, TagPrimary))

	assert.NotEqual(t, LLMKey(in, TagPrimary), LLMKey(in, TagEscalated))

	other := in
	other.Candidates = []translation.SenseCandidate{{Text: "نمونه", Provenance: "google"}}
	assert.NotEqual(t, LLMKey(in, TagPrimary), LLMKey(other, TagPrimary))

	withPersona := in
	withPersona.Persona = "ML engineer"
	assert.NotEqual(t, LLMKey(in, TagPrimary), LLMKey(withPersona, TagPrimary))

	// Glossary hits and domain priority do not affect the key.
	withHits := in
	withHits.GlossaryHits = []translation.GlossaryHit{{Term: "model", Canonical: "مدل"}}
	withHits.DomainPriority = []string{"AI/CS"}
	assert.Equal(t, LLMKey(in, TagPrimary), LLMKey(withHits, TagPrimary))
}

func TestRoundTrip(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	key := MTKey("hello", "en", "fa", "")

	require.NoError(t, c.Put(ctx, KindMT, key, []byte(`{"v":1}`), 60*time.Second))
	got, ok := c.Get(ctx, KindMT, key)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"v":1}`), got)

	// Callers receive copies.
	got[0] = 'X'
	again, _ := c.Get(ctx, KindMT, key)
	assert.Equal(t, byte('{'), again[0])

	// Kinds are separate tables.
	_, ok = c.Get(ctx, KindLLM, key)
	assert.False(t, ok)
}

func TestPutUpserts(t *testing.T) {
	c, backend, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, KindMT, "k", []byte("a"), time.Second))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, c.Put(ctx, KindMT, "k", []byte("b"), time.Minute))

	entries := backend.Entries(KindMT)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("b"), entries["k"].Payload)
	assert.Equal(t, time.Minute, entries["k"].TTL)
	assert.Equal(t, clock.Now(), entries["k"].CreatedAt)
}

func TestTTLExpiry(t *testing.T) {
	c, backend, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, KindMT, "k", []byte("v"), time.Second))
	clock.Advance(time.Second)

	_, ok := c.Get(ctx, KindMT, "k")
	assert.False(t, ok, "expired entry must not be served")

	n, err := c.EvictExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, backend.Entries(KindMT))
}

func TestExpiredServedWhenEnforcementDisabled(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	cfg := DefaultConfig()
	cfg.EnforceTTLOnRead = false
	c := New(NewMemoryBackend(), cfg, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, KindLLM, "k", []byte("v"), time.Second))
	clock.Advance(time.Hour)

	_, ok := c.Get(ctx, KindLLM, "k")
	assert.True(t, ok)
}

func TestDefaultTTLPerKind(t *testing.T) {
	c, backend, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, KindMT, "m", []byte("v"), 0))
	require.NoError(t, c.Put(ctx, KindLLM, "l", []byte("v"), 0))
	assert.Equal(t, 24*time.Hour, backend.Entries(KindMT)["m"].TTL)
	assert.Equal(t, 24*time.Hour, backend.Entries(KindLLM)["l"].TTL)
}

func TestPruneIfOversized(t *testing.T) {
	c, backend, clock := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, c.Put(ctx, KindMT, k, []byte(k), time.Hour))
		clock.Advance(time.Second)
	}

	n, err := c.PruneIfOversized(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries := backend.Entries(KindMT)
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, "c")
	assert.Contains(t, entries, "d")
}

func TestFailuresAreSoft(t *testing.T) {
	c := New(failingBackend{}, DefaultConfig())
	ctx := context.Background()

	_, ok := c.Get(ctx, KindMT, "k")
	assert.False(t, ok)

	err := c.Put(ctx, KindMT, "k", []byte("v"), 0)
	assert.ErrorIs(t, err, errDisk)

	var v map[string]any
	assert.False(t, c.GetJSON(ctx, KindMT, "k", &v))

	// Maintenance logs and carries on.
	c.Maintain(ctx)
}

func TestGetJSONUndecodableIsMiss(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, KindLLM, "k", []byte("not json"), 0))

	var d translation.Decision
	assert.False(t, c.GetJSON(ctx, KindLLM, "k", &d))
}

func TestRunMaintenanceStopsWithContext(t *testing.T) {
	c, backend, clock := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, c.Put(ctx, KindMT, "old", []byte("v"), time.Second))
	clock.Advance(2 * time.Second)

	done := make(chan struct{})
	go func() {
		c.RunMaintenance(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(backend.Entries(KindMT)) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunMaintenance did not return after cancel")
	}
}
