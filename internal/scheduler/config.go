package scheduler

import (
	"fmt"
	"time"
)

// Provider identifies a rate limited upstream.
type Provider string

const (
	// FastLLM is the low latency model used for the primary decision.
	FastLLM Provider = "fast-llm"
	// CapableLLM is the stronger model used for escalation.
	CapableLLM Provider = "capable-llm"
	// MachineTranslator is the MT service.
	MachineTranslator Provider = "machine-translator"
)

// Providers lists every known provider in a stable order.
var Providers = []Provider{FastLLM, CapableLLM, MachineTranslator}

// Limits are the bucket capacities of one provider. A value <= 0 disables
// that dimension.
type Limits struct {
	RequestsPerMinute int
	CostPerMinute     int
	RequestsPerDay    int
}

// Config holds the scheduler tunables.
type Config struct {
	Limits           map[Provider]Limits
	CircuitCooldown  time.Duration
	FailureThreshold int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	MaxJitter        time.Duration
	// CallTimeout bounds a single op once it has been admitted. Queueing
	// and backoff are bounded only by the caller's context. Zero disables.
	CallTimeout time.Duration
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		Limits: map[Provider]Limits{
			FastLLM:           {RequestsPerMinute: 30, CostPerMinute: 15000, RequestsPerDay: 14400},
			CapableLLM:        {RequestsPerMinute: 30, CostPerMinute: 6000, RequestsPerDay: 14400},
			MachineTranslator: {RequestsPerMinute: 30, CostPerMinute: 100000, RequestsPerDay: 50000},
		},
		CircuitCooldown:  60 * time.Second,
		FailureThreshold: 3,
		BackoffBase:      300 * time.Millisecond,
		BackoffCap:       8 * time.Second,
		MaxJitter:        250 * time.Millisecond,
		CallTimeout:      7 * time.Second,
	}
}

// Validate checks the config for values the scheduler cannot work with.
func (c Config) Validate() error {
	if len(c.Limits) == 0 {
		return fmt.Errorf("no provider limits configured")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.CircuitCooldown < 0 || c.BackoffBase < 0 || c.BackoffCap < 0 || c.MaxJitter < 0 || c.CallTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}
