// Package apperr defines the error taxonomy shared by the scheduler,
// the provider adapters and the translation pipeline. Every failure that
// reaches the pipeline is mapped into an *Error so that callers only ever
// see a short banner text instead of raw transport errors.
package apperr
