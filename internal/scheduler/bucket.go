package scheduler

import (
	"math"
	"sync"
	"time"
)

type bucket struct {
	mu     sync.Mutex
	limits Limits

	requests float64
	cost     float64
	daily    float64

	lastRefill       time.Time
	circuitOpenUntil time.Time
	failures         int
}

func newBucket(l Limits, now time.Time) *bucket {
	return &bucket{
		limits:     l,
		requests:   float64(l.RequestsPerMinute),
		cost:       float64(l.CostPerMinute),
		daily:      float64(l.RequestsPerDay),
		lastRefill: now,
	}
}

// refill must be called with mu held.
func (b *bucket) refill(now time.Time) {
	secs := now.Sub(b.lastRefill).Seconds()
	if secs <= 0 {
		return
	}
	b.lastRefill = now
	b.requests = refillDim(b.requests, b.limits.RequestsPerMinute, secs/60)
	b.cost = refillDim(b.cost, b.limits.CostPerMinute, secs/60)
	b.daily = refillDim(b.daily, b.limits.RequestsPerDay, secs/86400)
}

func refillDim(level float64, capacity int, periods float64) float64 {
	if capacity <= 0 {
		return level
	}
	return math.Min(float64(capacity), level+float64(capacity)*periods)
}

// costNeed clamps the cost to at least one unit and at most the bucket
// capacity so that oversized requests are admitted once the bucket is full.
func (b *bucket) costNeed(cost int) float64 {
	need := float64(max(1, cost))
	if c := b.limits.CostPerMinute; c > 0 && need > float64(c) {
		need = float64(c)
	}
	return need
}

// shortfall returns how long to wait until every dimension can cover the
// request. Zero means admit now. Must be called with mu held.
func (b *bucket) shortfall(costNeed float64) time.Duration {
	wait := math.Max(
		dimWait(b.requests, 1, b.limits.RequestsPerMinute, 60),
		dimWait(b.cost, costNeed, b.limits.CostPerMinute, 60),
	)
	wait = math.Max(wait, dimWait(b.daily, 1, b.limits.RequestsPerDay, 86400))
	if wait <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(wait * float64(time.Second)))
}

func dimWait(level, need float64, capacity int, period float64) float64 {
	if capacity <= 0 || level >= need {
		return 0
	}
	rate := float64(capacity) / period
	return (need - level) / rate
}

func (b *bucket) take(costNeed float64) {
	if b.limits.RequestsPerMinute > 0 {
		b.requests--
	}
	if b.limits.CostPerMinute > 0 {
		b.cost -= costNeed
	}
	if b.limits.RequestsPerDay > 0 {
		b.daily--
	}
}

// BucketState is a point in time copy of a provider bucket.
type BucketState struct {
	Requests         float64
	Cost             float64
	Daily            float64
	CircuitOpenUntil time.Time
	Failures         int
}
