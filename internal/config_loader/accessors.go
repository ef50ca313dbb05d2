package config_loader

import (
	"fmt"
	"os"
	"time"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/policy"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/transport"
)

// Environment variable for the service endpoint fallback
const EnvEndpoint = "HFADMIN_ENDPOINT"

// -----------------------------------------------------------------------------
// AdminClientConfig Accessors
// -----------------------------------------------------------------------------

// GetEndpoint returns spec.endpoint, falling back to HFADMIN_ENDPOINT
func (c *AdminClientConfig) GetEndpoint() string {
	if c == nil {
		return os.Getenv(EnvEndpoint)
	}
	if c.Spec.Endpoint != "" {
		return c.Spec.Endpoint
	}
	return os.Getenv(EnvEndpoint)
}

// ParseTimeout returns the per-attempt timeout, transport.DefaultTimeout when unset
func (c *AdminClientConfig) ParseTimeout() (time.Duration, error) {
	if c == nil || c.Spec.Timeout == "" {
		return transport.DefaultTimeout, nil
	}
	return ParseDuration(FieldTimeout, c.Spec.Timeout)
}

// HeadersMap returns spec.headers as a map; later entries win
func (c *AdminClientConfig) HeadersMap() map[string]string {
	out := make(map[string]string)
	if c == nil {
		return out
	}
	for _, h := range c.Spec.Headers {
		out[h.Name] = h.Value
	}
	return out
}

// ToPolicies converts the retry, polling and backoff sections into the
// prototype policies every logical call is cloned from.
func (c *AdminClientConfig) ToPolicies() (policy.Policies, error) {
	p := policy.Defaults()
	if c == nil {
		return p, nil
	}
	spec := c.Spec

	retryElapsed, err := ParseDuration(FieldRetry+"."+FieldMaxElapsed, spec.Retry.MaxElapsed)
	if err != nil {
		return p, err
	}
	p.Retry = policy.RetryConfig{
		MaxAttempts: spec.Retry.MaxAttempts,
		MaxElapsed:  retryElapsed,
	}
	if spec.Retry.RetryIf != "" {
		classifier, err := policy.NewCELClassifier(spec.Retry.RetryIf)
		if err != nil {
			return p, fmt.Errorf("invalid %s.%s: %w", FieldRetry, FieldRetryIf, err)
		}
		p.Retry.Classifier = classifier
	}

	pollElapsed, err := ParseDuration(FieldPolling+"."+FieldMaxElapsed, spec.Polling.MaxElapsed)
	if err != nil {
		return p, err
	}
	p.Polling = policy.RetryConfig{
		MaxAttempts: spec.Polling.MaxAttempts,
		MaxElapsed:  pollElapsed,
	}

	initial, err := ParseDuration(FieldBackoff+"."+FieldInitialDelay, spec.Backoff.InitialDelay)
	if err != nil {
		return p, err
	}
	maxDelay, err := ParseDuration(FieldBackoff+"."+FieldMaxDelay, spec.Backoff.MaxDelay)
	if err != nil {
		return p, err
	}
	p.Backoff = policy.BackoffConfig{
		Strategy:     policy.BackoffStrategy(spec.Backoff.Strategy),
		InitialDelay: initial,
		MaxDelay:     maxDelay,
		Multiplier:   spec.Backoff.Multiplier,
	}
	if spec.Backoff.Jitter != nil {
		p.Backoff.Jitter = *spec.Backoff.Jitter
	}
	return p, nil
}

// ToClientConfig converts the transport settings into a transport.ClientConfig
func (c *AdminClientConfig) ToClientConfig() (*transport.ClientConfig, error) {
	timeout, err := c.ParseTimeout()
	if err != nil {
		return nil, err
	}
	cfg := transport.DefaultClientConfig()
	cfg.BaseURL = c.GetEndpoint()
	cfg.Timeout = timeout
	cfg.DefaultHeaders = c.HeadersMap()
	if c != nil {
		cfg.RateLimit = c.Spec.RateLimit.QPS
		cfg.RateBurst = c.Spec.RateLimit.Burst
	}
	return cfg, nil
}
