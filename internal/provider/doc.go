// Package provider contains the adapters behind the translation ports:
// Google Translate for MT candidates, Gemini and any OpenAI compatible
// endpoint for candidate decisions, and Tatoeba for usage examples. Every
// adapter that talks to a rate limited upstream runs its calls through the
// scheduler. Fake implementations for offline use live in fake.go.
package provider
