package translation

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Field limits for user supplied text, in runes.
const (
	MaxTermLength    = 512
	MaxContextLength = 2048
	MaxPersonaLength = 512
)

// Translator produces MT candidates. An empty source lets the provider
// detect the language.
type Translator interface {
	Translate(ctx context.Context, term, source, target, contextText string) (*MTResult, error)
}

// Decider reranks or rewrites MT candidates.
type Decider interface {
	Decide(ctx context.Context, in DecisionInput) (*Decision, error)
}

// ExampleSearcher finds bilingual usage examples.
type ExampleSearcher interface {
	Search(ctx context.Context, term, source, target, contextText string) ([]Example, error)
}

// Glossary looks up domain preferred translations. An empty domain
// matches every domain.
type Glossary interface {
	Find(ctx context.Context, term, domain string) ([]GlossaryHit, error)
}

// MetricsSink records events. Track must never block or fail the caller.
type MetricsSink interface {
	Track(event string, value ...float64)
}

// NopMetrics discards every event.
type NopMetrics struct{}

// Track implements MetricsSink.
func (NopMetrics) Track(string, ...float64) {}

// ValidateInput checks the user supplied fields against their limits.
func ValidateInput(term, contextText, persona string) error {
	if n := utf8.RuneCountInString(term); n > MaxTermLength {
		return fmt.Errorf("term too long (%d > %d characters)", n, MaxTermLength)
	}
	if n := utf8.RuneCountInString(contextText); n > MaxContextLength {
		return fmt.Errorf("context too long (%d > %d characters)", n, MaxContextLength)
	}
	if n := utf8.RuneCountInString(persona); n > MaxPersonaLength {
		return fmt.Errorf("persona too long (%d > %d characters)", n, MaxPersonaLength)
	}
	return nil
}
