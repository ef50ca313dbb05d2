package policy

import "time"

// DefaultPollingMaxElapsed bounds how long a long-running operation is polled
const DefaultPollingMaxElapsed = 30 * time.Minute

// Policies is the full prototype set a client clones for every logical call.
type Policies struct {
	Retry   RetryConfig
	Backoff BackoffConfig
	// Polling bounds long-running operation polls. Each poll that finds the
	// operation still running counts as one attempt.
	Polling RetryConfig
}

// Defaults returns the prototypes used when a client is built without configuration.
func Defaults() Policies {
	return Policies{
		Retry:   DefaultRetryConfig(),
		Backoff: DefaultBackoffConfig(),
		Polling: RetryConfig{MaxElapsed: DefaultPollingMaxElapsed},
	}
}
