package cache

import (
	"context"

	"codeberg.org/snonux/translateassist/internal/translation"
)

// DefaultSource is used in MT keys when the caller asked for detection.
const DefaultSource = "en"

// CachedTranslator consults the cache before calling the wrapped
// translator and stores fresh results.
type CachedTranslator struct {
	inner   translation.Translator
	cache   *Cache
	metrics translation.MetricsSink
}

// NewCachedTranslator wraps inner. metrics may be nil.
func NewCachedTranslator(inner translation.Translator, c *Cache, metrics translation.MetricsSink) *CachedTranslator {
	if metrics == nil {
		metrics = translation.NopMetrics{}
	}
	return &CachedTranslator{inner: inner, cache: c, metrics: metrics}
}

// Translate implements translation.Translator.
func (t *CachedTranslator) Translate(ctx context.Context, term, source, target, contextText string) (*translation.MTResult, error) {
	readSource := source
	if readSource == "" {
		readSource = DefaultSource
	}
	readKey := MTKey(term, readSource, target, contextText)

	var cached translation.MTResult
	if t.cache.GetJSON(ctx, KindMT, readKey, &cached) {
		t.metrics.Track("cache_hit_mt")
		return &cached, nil
	}

	res, err := t.inner.Translate(ctx, term, source, target, contextText)
	if err != nil {
		return nil, err
	}

	// Writes use the detected source so later explicit requests hit.
	writeSource := readSource
	if res.DetectedSource != "" {
		writeSource = res.DetectedSource
	}
	writeKey := MTKey(term, writeSource, target, contextText)
	t.put(ctx, writeKey, res)
	if source == "" && writeKey != readKey {
		t.put(ctx, readKey, res)
	}
	return res, nil
}

func (t *CachedTranslator) put(ctx context.Context, key string, res *translation.MTResult) {
	if err := t.cache.PutJSON(ctx, KindMT, key, res, 0); err != nil {
		t.metrics.Track("cache_put_mt_fail")
		return
	}
	t.metrics.Track("cache_put_mt")
}

// CachedDecider consults the cache before calling the wrapped decider.
type CachedDecider struct {
	inner   translation.Decider
	cache   *Cache
	metrics translation.MetricsSink
	tag     string
}

// NewCachedDecider wraps inner, keying entries with tag.
func NewCachedDecider(inner translation.Decider, c *Cache, metrics translation.MetricsSink, tag string) *CachedDecider {
	if metrics == nil {
		metrics = translation.NopMetrics{}
	}
	if tag == "" {
		tag = TagPrimary
	}
	return &CachedDecider{inner: inner, cache: c, metrics: metrics, tag: tag}
}

// Decide implements translation.Decider.
func (d *CachedDecider) Decide(ctx context.Context, in translation.DecisionInput) (*translation.Decision, error) {
	key := LLMKey(in, d.tag)

	var cached translation.Decision
	if d.cache.GetJSON(ctx, KindLLM, key, &cached) && cached.Validate() == nil {
		d.metrics.Track("cache_hit_llm")
		return &cached, nil
	}

	dec, err := d.inner.Decide(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := d.cache.PutDecision(ctx, in, d.tag, dec); err != nil {
		d.metrics.Track("cache_put_llm_fail")
	} else {
		d.metrics.Track("cache_put_llm")
	}
	return dec, nil
}

// PutDecision stores dec for in under tag.
func (c *Cache) PutDecision(ctx context.Context, in translation.DecisionInput, tag string, dec *translation.Decision) error {
	return c.PutJSON(ctx, KindLLM, LLMKey(in, tag), dec, 0)
}
