package config_loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/policy"
)

// -----------------------------------------------------------------------------
// Validation Errors
// -----------------------------------------------------------------------------

// ValidationError represents a validation error with context
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors holds multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError
}

func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, e := range ve.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("validation failed with %d error(s):\n  - %s", len(ve.Errors), strings.Join(msgs, "\n  - "))
}

func (ve *ValidationErrors) Add(path, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Path: path, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// -----------------------------------------------------------------------------
// Validator
// -----------------------------------------------------------------------------

// Validator performs semantic validation on AdminClientConfig.
// It checks what struct tags cannot: CEL expressions and relations between fields.
type Validator struct {
	config *AdminClientConfig
	errors *ValidationErrors
}

// newValidator creates a new Validator for the given config
func newValidator(config *AdminClientConfig) *Validator {
	return &Validator{
		config: config,
		errors: &ValidationErrors{},
	}
}

// Validate performs all semantic validations and returns any errors.
func Validate(config *AdminClientConfig) error {
	return newValidator(config).Validate()
}

// Validate runs every semantic check
func (v *Validator) Validate() error {
	if v.config == nil {
		return fmt.Errorf("config is nil")
	}

	v.validateRetryExpression()
	v.validateBackoffDelays()
	v.validateRateLimit()

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// validateRetryExpression compiles spec.retry.retryIf
func (v *Validator) validateRetryExpression() {
	expr := strings.TrimSpace(v.config.Spec.Retry.RetryIf)
	if expr == "" {
		return
	}
	if _, err := policy.NewCELClassifier(expr); err != nil {
		v.errors.Add(fmt.Sprintf("%s.%s.%s", FieldSpec, FieldRetry, FieldRetryIf), err.Error())
	}
}

// validateBackoffDelays checks maxDelay is not below initialDelay
func (v *Validator) validateBackoffDelays() {
	backoff := v.config.Spec.Backoff
	if backoff.MaxDelay == "" {
		return
	}
	initial := policy.DefaultInitialDelay
	if backoff.InitialDelay != "" {
		initial = mustParse(backoff.InitialDelay)
	}
	if maxDelay := mustParse(backoff.MaxDelay); maxDelay < initial {
		v.errors.Add(fmt.Sprintf("%s.%s.%s", FieldSpec, FieldBackoff, FieldMaxDelay),
			fmt.Sprintf("%s is below %s %s", maxDelay, FieldInitialDelay, initial))
	}
}

// validateRateLimit requires a burst when a rate is set
func (v *Validator) validateRateLimit() {
	rl := v.config.Spec.RateLimit
	if rl.QPS > 0 && rl.Burst == 0 {
		v.errors.Add(fmt.Sprintf("%s.%s", FieldSpec, FieldRateLimit), "burst must be at least 1 when qps is set")
	}
}

// ParseDuration parses a config duration, treating empty as zero
func ParseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}
