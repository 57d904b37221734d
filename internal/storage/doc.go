// Package storage persists the local state of translateassist in a
// single SQLite database: the MT and LLM response caches, metrics
// events, circuit breaker state, the user glossary and input history.
// Schema changes are embedded SQL migrations applied on Open.
package storage
