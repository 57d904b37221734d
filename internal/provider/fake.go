package provider

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"codeberg.org/snonux/translateassist/internal/translation"
)

// FakeTranslator returns canned candidates without network access.
type FakeTranslator struct{}

// Translate implements translation.Translator.
func (FakeTranslator) Translate(ctx context.Context, term, source, target, contextText string) (*translation.MTResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &translation.MTResult{
		DetectedSource: source,
		Usage:          translation.Usage{Provider: "fake", Units: len([]rune(term))},
	}
	if res.DetectedSource == "" {
		res.DetectedSource = guessSource(term)
	}

	if strings.EqualFold(strings.TrimSpace(term), "hello, world!") {
		res.Candidates = []translation.SenseCandidate{
			{Text: "سلام دنیا", Provenance: "fake-mt"},
			{Text: "درود بر جهان", Provenance: "fake-mt"},
		}
		return res, nil
	}
	res.Candidates = []translation.SenseCandidate{
		{Text: term + " · ترجمه", Provenance: "fake-mt"},
	}
	return res, nil
}

// guessSource returns "en" when at least half of the letters are ASCII.
func guessSource(text string) string {
	var letters, ascii int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if r <= unicode.MaxASCII {
			ascii++
		}
	}
	if letters > 0 && ascii >= max(1, letters/2) {
		return "en"
	}
	return ""
}

// FakeDecider picks the first candidate with high confidence. A persona
// mentioning business turns the decision into a formal rewrite.
type FakeDecider struct {
	Confidence float64
}

// Decide implements translation.Decider.
func (f FakeDecider) Decide(ctx context.Context, in translation.DecisionInput) (*translation.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	confidence := f.Confidence
	if confidence == 0 {
		confidence = 0.92
	}

	hint := ""
	if in.Persona != "" {
		hint = fmt.Sprintf(" (%s)", in.Persona)
	}
	dec := &translation.Decision{
		Version:     translation.DecisionVersion,
		Decision:    translation.DecisionMT,
		TopIndex:    0,
		Explanation: "Chose candidate 0 based on defaults" + hint + ".",
		Confidence:  confidence,
		Warnings:    []string{},
	}
	if strings.Contains(strings.ToLower(in.Persona), "business") && len(in.Candidates) > 0 {
		dec.Decision = translation.DecisionRewrite
		dec.Rewrite = in.Candidates[0].Text + " · رسمی"
	}
	return dec, nil
}

// FakeExamples returns two fixed greetings.
type FakeExamples struct{}

// Search implements translation.ExampleSearcher.
func (FakeExamples) Search(ctx context.Context, term, source, target, contextText string) ([]translation.Example, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []translation.Example{
		{Source: "Hello, world!", Target: "سلام دنیا!", Provenance: "fake"},
		{Source: "A friendly greeting.", Target: "یک سلام دوستانه.", Provenance: "fake"},
	}, nil
}

// FakeGlossary knows a single entry: "model".
type FakeGlossary struct{}

// Find implements translation.Glossary.
func (FakeGlossary) Find(ctx context.Context, term, domain string) ([]translation.GlossaryHit, error) {
	if strings.Contains(strings.ToLower(term), "model") {
		return []translation.GlossaryHit{
			{Term: term, Domain: domain, Canonical: "مدل", Note: "AI/CS preferred"},
		}, nil
	}
	return nil, nil
}
