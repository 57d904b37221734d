package testutil

import (
	"context"
	"fmt"
	"sync"

	"codeberg.org/snonux/translateassist/internal/translation"
)

// MockTranslator mocks translation.Translator
type MockTranslator struct {
	Result *translation.MTResult
	Err    error
	// Block makes Translate wait for its context to end.
	Block bool

	mu    sync.Mutex
	Calls []string
}

// Translate mocks a machine translation
func (m *MockTranslator) Translate(ctx context.Context, term, source, target, contextText string) (*translation.MTResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, fmt.Sprintf("Translate: %s (%s->%s)", term, source, target))
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		res := *m.Result
		return &res, nil
	}

	// Default mock translation
	return &translation.MTResult{
		Candidates:     []translation.SenseCandidate{{Text: "mock translation of " + term, Provenance: "mock"}},
		DetectedSource: source,
	}, nil
}

// CallCount returns the number of Translate calls
func (m *MockTranslator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockDecider mocks translation.Decider. Call i answers with
// Decisions[i] or Errors[i]; the last entry repeats.
type MockDecider struct {
	Decisions []*translation.Decision
	Errors    []error
	// Block makes Decide wait for its context to end.
	Block bool

	mu     sync.Mutex
	Inputs []translation.DecisionInput
}

// Decide mocks a decision call
func (m *MockDecider) Decide(ctx context.Context, in translation.DecisionInput) (*translation.Decision, error) {
	m.mu.Lock()
	m.Inputs = append(m.Inputs, in)
	n := len(m.Inputs) - 1
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if len(m.Errors) > 0 {
		if err := m.Errors[min(n, len(m.Errors)-1)]; err != nil {
			return nil, err
		}
	}
	if len(m.Decisions) > 0 {
		d := *m.Decisions[min(n, len(m.Decisions)-1)]
		return &d, nil
	}

	// Default decision
	return &translation.Decision{
		Version:     translation.DecisionVersion,
		Decision:    translation.DecisionMT,
		Explanation: "mock decision",
		Confidence:  0.9,
		Warnings:    []string{},
	}, nil
}

// CallCount returns the number of Decide calls
func (m *MockDecider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inputs)
}

// MockExamples mocks translation.ExampleSearcher
type MockExamples struct {
	Examples []translation.Example
	Err      error
}

// Search mocks an example search
func (m *MockExamples) Search(ctx context.Context, term, source, target, contextText string) ([]translation.Example, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Examples, nil
}

// MockGlossary mocks translation.Glossary
type MockGlossary struct {
	Hits map[string][]translation.GlossaryHit
	Err  error
}

// Find mocks a glossary lookup keyed by term
func (m *MockGlossary) Find(ctx context.Context, term, domain string) ([]translation.GlossaryHit, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Hits[term], nil
}

// MockMetrics records tracked events
type MockMetrics struct {
	mu     sync.Mutex
	events []string
}

// Track records event
func (m *MockMetrics) Track(event string, value ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns the recorded events in order
func (m *MockMetrics) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// Count returns how often event was tracked
func (m *MockMetrics) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e == event {
			n++
		}
	}
	return n
}

// MockHistory records submitted terms
type MockHistory struct {
	mu      sync.Mutex
	Entries []string
	Err     error
}

// Record mocks storing a term
func (m *MockHistory) Record(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Entries = append(m.Entries, text)
	return nil
}

// TestDataGenerator generates test data
type TestDataGenerator struct{}

// HelloWorldMT returns the MT result for "Hello, world!" into Persian
func (g *TestDataGenerator) HelloWorldMT() *translation.MTResult {
	return &translation.MTResult{
		Candidates: []translation.SenseCandidate{
			{Text: "سلام دنیا", Provenance: "mock"},
			{Text: "درود بر جهان", Provenance: "mock"},
		},
		DetectedSource: "en",
	}
}

// Decision returns an MT decision for index with confidence
func (g *TestDataGenerator) Decision(index int, confidence float64) *translation.Decision {
	return &translation.Decision{
		Version:     translation.DecisionVersion,
		Decision:    translation.DecisionMT,
		TopIndex:    index,
		Explanation: fmt.Sprintf("candidate %d fits", index),
		Confidence:  confidence,
		Warnings:    []string{},
	}
}
