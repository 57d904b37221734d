// Package cache implements the content addressed response cache for MT
// results and LLM decisions. Keys are SHA-256 digests over normalized
// request fields; entries carry their own TTL and are evicted lazily on
// read and periodically by a maintenance loop. The cache is best-effort:
// storage failures degrade to misses and never abort a translation.
package cache
