// Package policy holds the retry and backoff prototypes owned by admin
// clients. A prototype is an immutable config; New returns fresh mutable
// state for exactly one logical call.
package policy

import (
	"time"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

// Decision is what a retry policy says about one failed attempt.
type Decision int

const (
	// Retry means the failure is transient and budget remains
	Retry Decision = iota
	// Exhausted means the failure is transient but the budget is spent
	Exhausted
	// Permanent means the failure must be returned without retrying
	Permanent
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Exhausted:
		return "exhausted"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Default retry configuration values
const (
	DefaultMaxAttempts = 3
	DefaultMaxElapsed  = 10 * time.Minute
)

// RetryConfig is the retry prototype held by a client.
type RetryConfig struct {
	// MaxAttempts caps the number of failed attempts; 0 disables the cap
	MaxAttempts int
	// MaxElapsed caps wall time since the policy was created; 0 disables the cap
	MaxElapsed time.Duration
	// Classifier decides which failures are transient (DefaultClassifier if nil)
	Classifier Classifier
	// Clock returns the current time (time.Now if nil)
	Clock func() time.Time
}

// DefaultRetryConfig returns the retry prototype used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		MaxElapsed:  DefaultMaxElapsed,
	}
}

// RetryPolicy is the per-call retry state.
type RetryPolicy interface {
	// OnFailure records a failed attempt and decides what happens next.
	OnFailure(s status.Status) Decision
	// IsExhausted reports whether the budget is spent.
	IsExhausted() bool
	// Failures returns how many failures have been recorded.
	Failures() int
}

// New returns fresh retry state. Counters start at zero and the elapsed
// budget starts now.
func (c RetryConfig) New() RetryPolicy {
	clock := c.Clock
	if clock == nil {
		clock = time.Now
	}
	classifier := c.Classifier
	if classifier == nil {
		classifier = DefaultClassifier{}
	}
	return &retryPolicy{
		config:     c,
		classifier: classifier,
		clock:      clock,
		start:      clock(),
	}
}

type retryPolicy struct {
	config     RetryConfig
	classifier Classifier
	clock      func() time.Time
	start      time.Time
	failures   int
}

func (p *retryPolicy) OnFailure(s status.Status) Decision {
	if !p.classifier.IsTransient(s) {
		return Permanent
	}
	p.failures++
	if p.IsExhausted() {
		return Exhausted
	}
	return Retry
}

func (p *retryPolicy) IsExhausted() bool {
	if p.config.MaxAttempts > 0 && p.failures >= p.config.MaxAttempts {
		return true
	}
	if p.config.MaxElapsed > 0 && p.clock().Sub(p.start) > p.config.MaxElapsed {
		return true
	}
	return false
}

func (p *retryPolicy) Failures() int {
	return p.failures
}
