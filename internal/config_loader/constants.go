package config_loader

// Field path constants for configuration structure.
// These are used to build error paths without hardcoding strings.

// Top-level field names
const (
	FieldSpec     = "spec"
	FieldMetadata = "metadata"
)

// Spec section field names
const (
	FieldEndpoint    = "endpoint"
	FieldTimeout     = "timeout"
	FieldHeaders     = "headers"
	FieldRetry       = "retry"
	FieldPolling     = "polling"
	FieldBackoff     = "backoff"
	FieldStream      = "stream"
	FieldConcurrency = "concurrency"
	FieldRateLimit   = "rateLimit"
)

// Retry and backoff field names
const (
	FieldRetryIf      = "retryIf"
	FieldMaxElapsed   = "maxElapsed"
	FieldInitialDelay = "initialDelay"
	FieldMaxDelay     = "maxDelay"
)

// Defaults applied to fields left empty
const (
	DefaultAPIVersion = "v1"
	DefaultTimeout    = "60s"
)
