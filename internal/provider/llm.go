package provider

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"codeberg.org/snonux/translateassist/internal/apperr"
	"codeberg.org/snonux/translateassist/internal/scheduler"
	"codeberg.org/snonux/translateassist/internal/translation"
)

// Generator sends a single prompt to a language model and returns its
// text output.
type Generator interface {
	// Available reports whether the generator can be called at all,
	// typically a missing credentials error.
	Available() error
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Sampling temperatures for decision and repair calls.
const (
	DecisionTemperature float32 = 0.2
	RepairTemperature   float32 = 0
)

// minLLMCost is the smallest quota cost charged for a model call.
const minLLMCost = 200

// LLMDecider implements translation.Decider on top of a Generator. Output
// that does not decode gets one repair attempt.
type LLMDecider struct {
	name     string
	gen      Generator
	sched    *scheduler.Scheduler
	provider scheduler.Provider
	logger   *slog.Logger
}

// NewLLMDecider creates a decider whose calls are admitted under p.
func NewLLMDecider(name string, gen Generator, sched *scheduler.Scheduler, p scheduler.Provider, logger *slog.Logger) *LLMDecider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMDecider{name: name, gen: gen, sched: sched, provider: p, logger: logger}
}

// Decide implements translation.Decider.
func (d *LLMDecider) Decide(ctx context.Context, in translation.DecisionInput) (*translation.Decision, error) {
	if err := d.gen.Available(); err != nil {
		return nil, err
	}

	text, err := d.generate(ctx, DecisionPrompt(in), EstimateCost(in), DecisionTemperature)
	if err != nil {
		return nil, err
	}
	dec, err := DecodeDecision(text)
	if err == nil {
		return dec, nil
	}
	d.logger.Debug("model output did not decode, repairing", "provider", d.name, "error", err)

	repair := RepairPrompt(text)
	fixed, err := d.generate(ctx, repair, max(minLLMCost, utf8.RuneCountInString(repair)/4), RepairTemperature)
	if err != nil {
		return nil, err
	}
	dec, err = DecodeDecision(fixed)
	if err != nil {
		return nil, apperr.InvalidModelOutput(d.name, err)
	}
	return dec, nil
}

func (d *LLMDecider) generate(ctx context.Context, prompt string, cost int, temperature float32) (string, error) {
	return scheduler.Schedule(ctx, d.sched, d.provider, cost, func(ctx context.Context) (string, error) {
		return d.gen.Generate(ctx, prompt, temperature)
	})
}

// EstimateCost approximates the token cost of a decision call as a
// quarter of the input characters, at least 200.
func EstimateCost(in translation.DecisionInput) int {
	chars := utf8.RuneCountInString(in.Term) + utf8.RuneCountInString(in.Context)
	for _, c := range in.Candidates {
		chars += utf8.RuneCountInString(c.Text)
	}
	return max(minLLMCost, chars/4)
}
