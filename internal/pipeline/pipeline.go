package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/snonux/translateassist/internal/apperr"
	"codeberg.org/snonux/translateassist/internal/cache"
	"codeberg.org/snonux/translateassist/internal/translation"
)

// Config tunes the orchestrator.
type Config struct {
	// EscalationThreshold is the confidence below which the capable
	// model is asked again.
	EscalationThreshold float64
	// RetryDelay is the wait before retrying a decision after an
	// unavailable or timeout error.
	RetryDelay time.Duration
	// RequestTimeout bounds glossary and example lookups. Translation and
	// decision calls go through the scheduler, which bounds only the
	// admitted call and leaves queueing to the caller's context.
	RequestTimeout time.Duration
	// DefaultSource is used for glossary and examples when MT neither
	// got nor detected a source language.
	DefaultSource string
	// DefaultDomains is used when a request names no domains.
	DefaultDomains []string
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		EscalationThreshold: 0.65,
		RetryDelay:          2 * time.Second,
		RequestTimeout:      7 * time.Second,
		DefaultSource:       "en",
		DefaultDomains:      []string{"AI/CS", "Business"},
	}
}

// minRetryDelay is the shortest wait before an automatic retry.
const minRetryDelay = time.Second

// HistoryRecorder stores submitted terms.
type HistoryRecorder interface {
	Record(ctx context.Context, text string) error
}

// Deps are the collaborators of an Orchestrator. Translator and Decider
// are required; everything else is optional.
type Deps struct {
	Translator translation.Translator
	Decider    translation.Decider
	// Escalator is called uncached on low confidence or glossary conflict.
	Escalator translation.Decider
	Examples  translation.ExampleSearcher
	Glossary  translation.Glossary
	Metrics   translation.MetricsSink
	// Cache receives escalated decisions under their own tag.
	Cache   *cache.Cache
	History HistoryRecorder
	Logger  *slog.Logger
}

// Orchestrator runs translation requests.
type Orchestrator struct {
	deps  Deps
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSleep replaces the retry wait, mostly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// New creates an orchestrator.
func New(deps Deps, cfg Config, opts ...Option) (*Orchestrator, error) {
	if deps.Translator == nil || deps.Decider == nil {
		return nil, fmt.Errorf("pipeline needs a translator and a decider")
	}
	if deps.Metrics == nil {
		deps.Metrics = translation.NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = "en"
	}

	o := &Orchestrator{deps: deps, cfg: cfg, sleep: sleepContext}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Translate starts req and returns its update stream.
func (o *Orchestrator) Translate(ctx context.Context, req Request) *Stream {
	s := newStream(ctx)
	go func() {
		o.run(s, req)
		s.finish()
	}()
	return s
}

// run is one request; children it spawns outlive it until finish.
func (o *Orchestrator) run(s *Stream, req Request) {
	ctx := s.ctx
	log := o.deps.Logger.With("term", req.Term)

	req.Term = strings.TrimSpace(req.Term)
	req.Context = strings.TrimSpace(req.Context)
	if req.Term == "" {
		o.notice(s, apperr.InvalidRequest("Empty term"))
		return
	}
	if err := translation.ValidateInput(req.Term, req.Context, req.Persona); err != nil {
		o.notice(s, apperr.Validation(err.Error()))
		return
	}
	if len(req.Domains) == 0 {
		req.Domains = o.cfg.DefaultDomains
	}

	if o.deps.History != nil {
		if err := o.deps.History.Record(ctx, req.Term); err != nil {
			log.Debug("failed to record input history", "error", err)
		}
	}

	// MT
	mt, err := o.translate(ctx, req)
	if err != nil {
		if s.Cancelled() || errors.Is(err, context.Canceled) {
			return
		}
		o.deps.Metrics.Track("mt_fail")
		log.Warn("machine translation failed", "error", err)
		o.notice(s, apperr.From(err))
		return
	}
	if len(mt.Candidates) == 0 {
		o.notice(s, apperr.InvalidResponse("MT", errors.New("no candidates")))
		return
	}
	o.deps.Metrics.Track("mt_ok")
	if !s.emit(Update{Kind: UpdateMT, MT: mt}) {
		return
	}

	source := mt.DetectedSource
	if source == "" {
		source = req.Source
	}
	if source == "" {
		source = o.cfg.DefaultSource
	}

	// Glossary
	hits := o.lookupGlossary(ctx, req)

	in := translation.DecisionInput{
		Term:           req.Term,
		Source:         source,
		Target:         req.Target,
		Context:        req.Context,
		Persona:        req.Persona,
		DomainPriority: req.Domains,
		Candidates:     mt.Candidates,
		GlossaryHits:   hits,
	}

	// Decision
	dec, err := o.decide(ctx, o.deps.Decider, in)
	if err != nil {
		if s.Cancelled() || ctx.Err() != nil {
			return
		}
		o.degrade(s, req, source, in, apperr.From(err))
		return
	}

	// Conflict check and escalation
	chosen, _ := dec.Choose(mt.Candidates)
	conflict := false
	if len(hits) > 0 {
		canonical := strings.TrimSpace(hits[0].Canonical)
		conflict = canonical != "" && canonical != chosen
	}
	if conflict {
		if !s.emit(Update{Kind: UpdateNotice, Notice: "Glossary preference differs - review suggested term"}) {
			return
		}
	}
	if dec.Confidence < o.cfg.EscalationThreshold || conflict {
		dec = o.escalate(ctx, in, dec)
		if s.Cancelled() {
			return
		}
	}

	// Finalize
	o.deps.Metrics.Track("llm_ok", dec.Confidence)
	if !s.emit(Update{Kind: UpdateDecision, Decision: dec}) {
		return
	}
	if !s.emit(Update{Kind: UpdateFinal, Outcome: buildOutcome(req, source, mt.Candidates, dec)}) {
		return
	}

	s.spawn(func(ctx context.Context) {
		o.examples(ctx, s, req.Term, source, req.Target, req.Context)
	})
}

// degrade emits the MT only outcome after a failed decision and, for
// transient failures, schedules one delayed retry.
func (o *Orchestrator) degrade(s *Stream, req Request, source string, in translation.DecisionInput, cause *apperr.Error) {
	o.deps.Logger.Warn("decision failed, using MT only", "term", req.Term, "kind", cause.Kind, "error", cause)
	o.deps.Metrics.Track("llm_fallback")

	if !o.notice(s, cause) {
		return
	}
	if !s.emit(Update{Kind: UpdateFinal, Outcome: buildOutcome(req, source, in.Candidates, fallbackDecision())}) {
		return
	}

	delay, retriable := o.retryDelay(cause)
	s.spawn(func(ctx context.Context) {
		if retriable {
			o.retry(ctx, s, req, source, in, delay)
		}
		o.examples(ctx, s, req.Term, source, req.Target, req.Context)
	})
}

func (o *Orchestrator) retry(ctx context.Context, s *Stream, req Request, source string, in translation.DecisionInput, delay time.Duration) {
	if !s.emit(Update{Kind: UpdateNotice, Notice: "Retrying LLM shortly..."}) {
		return
	}
	if err := o.sleep(ctx, delay); err != nil {
		return
	}

	dec, err := o.decide(ctx, o.deps.Decider, in)
	if err != nil {
		if s.Cancelled() || ctx.Err() != nil {
			return
		}
		o.deps.Metrics.Track("llm_auto_recover_fail")
		o.notice(s, apperr.From(err))
		return
	}

	o.deps.Metrics.Track("llm_auto_recover_ok", dec.Confidence)
	if !s.emit(Update{Kind: UpdateDecision, Decision: dec}) {
		return
	}
	s.emit(Update{Kind: UpdateFinal, Outcome: buildOutcome(req, source, in.Candidates, dec)})
}

// retryDelay returns the wait before an automatic retry and whether the
// failure kind allows one.
func (o *Orchestrator) retryDelay(e *apperr.Error) (time.Duration, bool) {
	if !e.Kind.Retriable() {
		return 0, false
	}
	d := o.cfg.RetryDelay
	switch e.Kind {
	case apperr.KindRateLimited:
		if e.RetryAfter > 0 {
			d = e.RetryAfter
		}
	case apperr.KindCircuitOpen:
		d = e.Cooldown
	}
	return max(minRetryDelay, d), true
}

// escalate asks the capable model and returns its decision, or current
// when escalation is unavailable or fails.
func (o *Orchestrator) escalate(ctx context.Context, in translation.DecisionInput, current *translation.Decision) *translation.Decision {
	if o.deps.Escalator == nil {
		return current
	}
	o.deps.Metrics.Track("llm_escalate_attempt", current.Confidence)

	dec, err := o.decide(ctx, o.deps.Escalator, in)
	if err != nil {
		o.deps.Metrics.Track("llm_escalate_fail")
		o.deps.Logger.Debug("escalation failed, keeping primary decision", "term", in.Term, "error", err)
		return current
	}
	o.deps.Metrics.Track("llm_escalate_ok", dec.Confidence)

	if o.deps.Cache != nil {
		if err := o.deps.Cache.PutDecision(ctx, in, cache.TagEscalated, dec); err != nil {
			o.deps.Metrics.Track("cache_put_llm_fail")
		}
	}
	return dec
}

func (o *Orchestrator) examples(ctx context.Context, s *Stream, term, source, target, contextText string) {
	list := []translation.Example{}
	if o.deps.Examples != nil {
		callCtx, cancel := o.callContext(ctx)
		found, err := o.deps.Examples.Search(callCtx, term, source, target, contextText)
		cancel()
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			o.deps.Metrics.Track("examples_fail")
			o.deps.Logger.Debug("example search failed", "term", term, "error", err)
		case found != nil:
			list = found
			o.deps.Metrics.Track("examples_ok", float64(len(found)))
		}
	}
	s.emit(Update{Kind: UpdateExamples, Examples: list})
}

func (o *Orchestrator) translate(ctx context.Context, req Request) (*translation.MTResult, error) {
	return o.deps.Translator.Translate(ctx, req.Term, req.Source, req.Target, req.Context)
}

func (o *Orchestrator) lookupGlossary(ctx context.Context, req Request) []translation.GlossaryHit {
	if o.deps.Glossary == nil {
		return []translation.GlossaryHit{}
	}
	domain := ""
	if len(req.Domains) > 0 {
		domain = req.Domains[0]
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	hits, err := o.deps.Glossary.Find(callCtx, req.Term, domain)
	if err != nil {
		o.deps.Metrics.Track("glossary_fail")
		o.deps.Logger.Debug("glossary lookup failed", "term", req.Term, "error", err)
		return []translation.GlossaryHit{}
	}
	if hits == nil {
		hits = []translation.GlossaryHit{}
	}
	return hits
}

func (o *Orchestrator) decide(ctx context.Context, d translation.Decider, in translation.DecisionInput) (*translation.Decision, error) {
	dec, err := d.Decide(ctx, in)
	if err != nil {
		return nil, err
	}
	if dec == nil {
		return nil, apperr.InvalidModelOutput("", errors.New("empty decision"))
	}
	return dec, nil
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.RequestTimeout)
}

// notice emits the banner of e.
func (o *Orchestrator) notice(s *Stream, e *apperr.Error) bool {
	return s.emit(Update{Kind: UpdateNotice, Notice: e.Banner(), Err: e})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
