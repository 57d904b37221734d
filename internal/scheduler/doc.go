// Package scheduler admits calls to external providers. Every provider
// has its own token bucket with three dimensions (requests per minute,
// cost units per minute and requests per day), an exponential backoff
// policy for throttle and timeout signals, and a circuit breaker that
// rejects calls for a cooldown period after repeated failures.
//
// A Scheduler is safe for concurrent use. Calls for different providers
// never wait on each other.
package scheduler
