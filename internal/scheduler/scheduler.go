package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"codeberg.org/snonux/translateassist/internal/apperr"
)

// StateStore persists circuit breaker state across restarts. A zero
// openUntil means the circuit is closed.
type StateStore interface {
	LoadCircuits(ctx context.Context) (map[Provider]time.Time, error)
	SaveCircuit(ctx context.Context, p Provider, openUntil time.Time) error
}

// Scheduler admits provider calls.
type Scheduler struct {
	cfg     Config
	buckets map[Provider]*bucket
	store   StateStore
	logger  *slog.Logger

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStateStore enables circuit persistence.
func WithStateStore(st StateStore) Option {
	return func(s *Scheduler) { s.store = st }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSleep replaces the context aware sleep used for admission waits
// and backoff.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// WithJitter replaces the random jitter source.
func WithJitter(jitter func(limit time.Duration) time.Duration) Option {
	return func(s *Scheduler) { s.jitter = jitter }
}

// New creates a scheduler with one bucket per configured provider.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}

	s := &Scheduler{
		cfg:     cfg,
		buckets: make(map[Provider]*bucket, len(cfg.Limits)),
		logger:  slog.Default(),
		now:     time.Now,
		sleep:   sleepContext,
		jitter:  randomJitter,
	}
	for _, opt := range opts {
		opt(s)
	}

	now := s.now()
	for p, l := range cfg.Limits {
		s.buckets[p] = newBucket(l, now)
	}
	return s, nil
}

// Restore loads persisted circuit state. Circuits whose cooldown already
// elapsed are ignored.
func (s *Scheduler) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	circuits, err := s.store.LoadCircuits(ctx)
	if err != nil {
		return fmt.Errorf("failed to load circuit state: %w", err)
	}

	now := s.now()
	for p, until := range circuits {
		b, ok := s.buckets[p]
		if !ok || !until.After(now) {
			continue
		}
		b.mu.Lock()
		b.circuitOpenUntil = until
		b.mu.Unlock()
		s.logger.Info("restored open circuit", "provider", p, "open_until", until)
	}
	return nil
}

// Snapshot returns the current state of p's bucket after a refill.
func (s *Scheduler) Snapshot(p Provider) (BucketState, bool) {
	b, ok := s.buckets[p]
	if !ok {
		return BucketState{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(s.now())
	return BucketState{
		Requests:         b.requests,
		Cost:             b.cost,
		Daily:            b.daily,
		CircuitOpenUntil: b.circuitOpenUntil,
		Failures:         b.failures,
	}, true
}

// Schedule runs op under p's limits and returns its result.
func Schedule[T any](ctx context.Context, s *Scheduler, p Provider, cost int, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := s.Do(ctx, p, cost, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Do waits for capacity on p, runs op and records the outcome. Throttle
// and timeout failures are followed by a backoff sleep before the typed
// error is returned; they are never retried here.
func (s *Scheduler) Do(ctx context.Context, p Provider, cost int, op func(context.Context) error) error {
	b, ok := s.buckets[p]
	if !ok {
		return apperr.InvalidRequest(fmt.Sprintf("unknown provider %q", p))
	}

	if err := s.admit(ctx, p, b, cost); err != nil {
		return err
	}

	err := s.call(ctx, op)
	if err == nil {
		s.registerSuccess(ctx, p, b)
		return nil
	}
	return s.registerFailure(ctx, p, b, err)
}

func (s *Scheduler) call(ctx context.Context, op func(context.Context) error) error {
	if s.cfg.CallTimeout <= 0 {
		return op(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	return op(cctx)
}

func (s *Scheduler) admit(ctx context.Context, p Provider, b *bucket, cost int) error {
	for {
		b.mu.Lock()
		now := s.now()
		if now.Before(b.circuitOpenUntil) {
			remaining := b.circuitOpenUntil.Sub(now)
			b.mu.Unlock()
			return apperr.CircuitOpen(string(p), remaining)
		}

		b.refill(now)
		need := b.costNeed(cost)
		wait := b.shortfall(need)
		if wait == 0 {
			b.take(need)
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()

		s.logger.Debug("queueing request", "provider", p, "delay", wait)
		if err := s.sleep(ctx, wait); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return apperr.Timeout(string(p), err)
			}
			return apperr.Cancelled(err)
		}
	}
}

func (s *Scheduler) registerSuccess(ctx context.Context, p Provider, b *bucket) {
	b.mu.Lock()
	b.failures = 0
	wasOpen := !b.circuitOpenUntil.IsZero()
	b.circuitOpenUntil = time.Time{}
	b.mu.Unlock()

	if wasOpen {
		s.logger.Info("circuit closed", "provider", p)
		s.persist(ctx, p, time.Time{})
	}
}

func (s *Scheduler) registerFailure(ctx context.Context, p Provider, b *bucket, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return apperr.Cancelled(err)
	}

	classified := apperr.From(err)
	switch classified.Kind {
	case apperr.KindOffline:
		return &apperr.Error{Kind: apperr.KindOffline, Provider: string(p), Cause: err}
	case apperr.KindRateLimited, apperr.KindTimeout:
		delay := s.recordFailure(ctx, p, b, classified.RetryAfter)
		s.logger.Warn("backing off", "provider", p, "delay", delay, "kind", classified.Kind)
		if serr := s.sleep(ctx, delay); errors.Is(serr, context.Canceled) {
			return apperr.Cancelled(serr)
		}
		if classified.Kind == apperr.KindTimeout {
			return apperr.Timeout(string(p), err)
		}
		return apperr.RateLimited(string(p), classified.RetryAfter, err)
	}

	s.recordFailure(ctx, p, b, 0)
	return err
}

// recordFailure bumps the failure count, opens the circuit once the
// threshold is reached and returns the backoff delay for this attempt.
func (s *Scheduler) recordFailure(ctx context.Context, p Provider, b *bucket, hint time.Duration) time.Duration {
	b.mu.Lock()
	b.failures++
	attempt := b.failures
	var opened time.Time
	if attempt >= s.cfg.FailureThreshold {
		until := s.now().Add(s.cfg.CircuitCooldown)
		if until.After(b.circuitOpenUntil) {
			b.circuitOpenUntil = until
			opened = until
		}
	}
	b.mu.Unlock()

	if !opened.IsZero() {
		s.logger.Error("circuit opened", "provider", p, "failures", attempt, "cooldown", s.cfg.CircuitCooldown)
		s.persist(ctx, p, opened)
	}

	if hint > 0 {
		return hint
	}
	return s.backoff(attempt)
}

// backoff returns min(cap, base*2^attempt + jitter).
func (s *Scheduler) backoff(attempt int) time.Duration {
	d := s.cfg.BackoffBase << min(attempt, 30)
	if d <= 0 || d > s.cfg.BackoffCap {
		d = s.cfg.BackoffCap
	}
	d += s.jitter(s.cfg.MaxJitter)
	return min(s.cfg.BackoffCap, d)
}

func (s *Scheduler) persist(ctx context.Context, p Provider, until time.Time) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveCircuit(context.WithoutCancel(ctx), p, until); err != nil {
		s.logger.Warn("failed to persist circuit state", "provider", p, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit) + 1))
}
