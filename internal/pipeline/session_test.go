package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/translateassist/internal/apperr"
	"codeberg.org/snonux/translateassist/internal/translation"
)

func TestSessionFoldsUpdates(t *testing.T) {
	f := newFixture()
	sess := NewSession(f.orchestrator(t))

	var (
		mu      sync.Mutex
		changes int
	)
	sess.OnChange(func(SessionState) {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	sess.Start(context.Background(), helloRequest())
	sess.Wait()

	st := sess.State()
	assert.False(t, st.IsTranslating)
	assert.Len(t, st.Candidates, 2)
	assert.Equal(t, "سلام دنیا", st.Chosen)
	assert.Equal(t, []string{"درود بر جهان"}, st.Alternatives)
	assert.Len(t, st.Examples, 1)
	assert.Empty(t, st.Banner)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, changes)
}

func TestSessionBannerOnFallback(t *testing.T) {
	f := newFixture()
	f.decider.Errors = []error{apperr.MissingCredentials("Gemini")}
	sess := NewSession(f.orchestrator(t))

	sess.Start(context.Background(), helloRequest())
	sess.Wait()

	st := sess.State()
	assert.Equal(t, "Missing API key for Gemini. Add it to the config file.", st.Banner)
	assert.Equal(t, "MT only", st.Explanation)
	assert.False(t, sess.IsTranslating())
}

func TestSessionCancelClearsTranslating(t *testing.T) {
	f := newFixture()
	f.translator.Block = true
	sess := NewSession(f.orchestrator(t))

	sess.Start(context.Background(), helloRequest())
	require.True(t, sess.IsTranslating())

	sess.Cancel()
	assert.False(t, sess.IsTranslating())

	sess.Wait()
	st := sess.State()
	assert.False(t, st.IsTranslating)
	assert.Empty(t, st.Chosen)
}

func TestSessionRestartDropsStaleUpdates(t *testing.T) {
	f := newFixture()
	f.decider.Block = true
	sess := NewSession(f.orchestrator(t))

	sess.Start(context.Background(), helloRequest())

	f2 := newFixture()
	f2.translator.Result = &translation.MTResult{
		Candidates: []translation.SenseCandidate{{Text: "بانک", Provenance: "mock"}},
	}
	sess.orch = f2.orchestrator(t)
	sess.Start(context.Background(), Request{Term: "bank", Target: "fa"})
	sess.Wait()

	st := sess.State()
	assert.Equal(t, "bank", st.Term)
	assert.Equal(t, "بانک", st.Chosen)
	assert.False(t, st.IsTranslating)
}
