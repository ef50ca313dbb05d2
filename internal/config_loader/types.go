package config_loader

// AdminClientConfig is the complete admin client configuration document
type AdminClientConfig struct {
	APIVersion string          `yaml:"apiVersion" validate:"required,eq=hyperfleet.redhat.com/v1alpha1"`
	Kind       string          `yaml:"kind" validate:"required,eq=AdminClientConfig"`
	Metadata   Metadata        `yaml:"metadata"`
	Spec       AdminClientSpec `yaml:"spec"`
}

// Metadata names the configuration
type Metadata struct {
	Name   string            `yaml:"name" validate:"required"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// AdminClientSpec holds the settings shared by every admin client built
// from the configuration.
type AdminClientSpec struct {
	// Endpoint is the service root; HFADMIN_ENDPOINT is used when empty
	Endpoint   string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	APIVersion string `yaml:"apiVersion,omitempty"`
	Project    string `yaml:"project,omitempty"`
	// Timeout bounds a single attempt, e.g. "30s"
	Timeout string   `yaml:"timeout,omitempty" validate:"omitempty,duration"`
	Headers []Header `yaml:"headers,omitempty" validate:"dive"`

	Retry       RetrySpec       `yaml:"retry"`
	Polling     PollingSpec     `yaml:"polling"`
	Backoff     BackoffSpec     `yaml:"backoff"`
	Stream      StreamSpec      `yaml:"stream"`
	Concurrency ConcurrencySpec `yaml:"concurrency"`
	RateLimit   RateLimitSpec   `yaml:"rateLimit"`
}

// Header is a header sent with every request
type Header struct {
	Name  string `yaml:"name" validate:"required"`
	Value string `yaml:"value"`
}

// RetrySpec configures the retry policy of unary calls
type RetrySpec struct {
	MaxAttempts int    `yaml:"maxAttempts,omitempty" validate:"gte=0"`
	MaxElapsed  string `yaml:"maxElapsed,omitempty" validate:"omitempty,duration"`
	// RetryIf is a CEL expression over code, code_name and message deciding
	// which failures are transient
	RetryIf string `yaml:"retryIf,omitempty"`
}

// PollingSpec bounds long-running operation polling
type PollingSpec struct {
	MaxAttempts int    `yaml:"maxAttempts,omitempty" validate:"gte=0"`
	MaxElapsed  string `yaml:"maxElapsed,omitempty" validate:"omitempty,duration"`
}

// BackoffSpec configures the wait between attempts
type BackoffSpec struct {
	Strategy     string   `yaml:"strategy,omitempty" validate:"omitempty,backoffstrategy"`
	InitialDelay string   `yaml:"initialDelay,omitempty" validate:"omitempty,duration"`
	MaxDelay     string   `yaml:"maxDelay,omitempty" validate:"omitempty,duration"`
	Multiplier   float64  `yaml:"multiplier,omitempty" validate:"omitempty,gte=1"`
	Jitter       *float64 `yaml:"jitter,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// StreamSpec sizes the buffers of object readers and writers
type StreamSpec struct {
	ReadBufferSize  int `yaml:"readBufferSize,omitempty" validate:"gte=0"`
	WriteBufferSize int `yaml:"writeBufferSize,omitempty" validate:"gte=0"`
}

// ConcurrencySpec bounds asynchronous calls
type ConcurrencySpec struct {
	MaxInFlight int64 `yaml:"maxInFlight,omitempty" validate:"gte=0"`
}

// RateLimitSpec throttles outgoing requests; QPS 0 disables the limit
type RateLimitSpec struct {
	QPS   float64 `yaml:"qps,omitempty" validate:"gte=0"`
	Burst int     `yaml:"burst,omitempty" validate:"gte=0"`
}
