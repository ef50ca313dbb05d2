package policy

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how the wait grows between attempts
type BackoffStrategy string

const (
	// BackoffExponential multiplies the delay after each wait (1s, 2s, 4s, 8s...)
	BackoffExponential BackoffStrategy = "exponential"
	// BackoffLinear increases the delay linearly (1s, 2s, 3s, 4s...)
	BackoffLinear BackoffStrategy = "linear"
	// BackoffConstant uses the same delay for every wait
	BackoffConstant BackoffStrategy = "constant"
)

// Default backoff configuration values
const (
	DefaultBackoffStrategy = BackoffExponential
	DefaultInitialDelay    = 1 * time.Second
	DefaultMaxDelay        = 30 * time.Second
	DefaultMultiplier      = 2.0
	DefaultJitter          = 0.1
)

// BackoffConfig is the backoff prototype held by a client.
type BackoffConfig struct {
	Strategy     BackoffStrategy
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Multiplier applies to the exponential strategy only
	Multiplier float64
	// Jitter is the +/- fraction applied to every delay (0.1 = 10%)
	Jitter float64
}

// DefaultBackoffConfig returns the backoff prototype used when none is configured.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Strategy:     DefaultBackoffStrategy,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		Jitter:       DefaultJitter,
	}
}

// BackoffPolicy is the per-call backoff state.
type BackoffPolicy interface {
	// Next returns the wait before the next attempt and advances the growth state.
	Next() time.Duration
}

// New returns fresh backoff state starting at InitialDelay.
func (c BackoffConfig) New() BackoffPolicy {
	return &backoffPolicy{config: c}
}

type backoffPolicy struct {
	config BackoffConfig
	waits  int
}

func (p *backoffPolicy) Next() time.Duration {
	p.waits++
	delay := p.config.delay(p.waits)

	if p.config.Jitter > 0 {
		// rand/v2 top-level functions are safe for concurrent use
		jitter := time.Duration((rand.Float64()*2 - 1) * p.config.Jitter * float64(delay))
		delay += jitter
	}

	if p.config.MaxDelay > 0 && delay > p.config.MaxDelay {
		delay = p.config.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// delay returns the un-jittered delay for the n-th wait (1-based)
func (c BackoffConfig) delay(n int) time.Duration {
	base := c.InitialDelay
	switch c.Strategy {
	case BackoffLinear:
		return base * time.Duration(n)
	case BackoffConstant:
		return base
	default:
		mult := c.Multiplier
		if mult <= 1 {
			mult = DefaultMultiplier
		}
		d := float64(base) * math.Pow(mult, float64(n-1))
		if d > math.MaxInt64 {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(d)
	}
}
