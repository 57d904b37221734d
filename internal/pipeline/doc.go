// Package pipeline runs one translation request end to end: machine
// translation, glossary lookup, the LLM decision with optional escalation,
// and example sentences. Progress is delivered as a stream of updates that
// the caller can cancel at any point; after cancellation nothing more is
// emitted.
//
// A request degrades instead of failing once MT succeeded: decision errors
// produce an MT only outcome and, for transient errors, one delayed retry.
package pipeline
