package config_loader

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/policy"
)

// -----------------------------------------------------------------------------
// Struct Validator (go-playground/validator integration)
// -----------------------------------------------------------------------------

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

// extractYamlTagName extracts the yaml tag name from a struct field.
// Returns the Go field name if no yaml tag is defined.
func extractYamlTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// getStructValidator returns a singleton validator instance with custom validations registered
func getStructValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New()

		// Register custom field-level validations
		//nolint:errcheck // these validations are known-good, errors would only occur on invalid config
		_ = structValidator.RegisterValidation("duration", validateDuration)
		//nolint:errcheck // these validations are known-good, errors would only occur on invalid config
		_ = structValidator.RegisterValidation("backoffstrategy", validateBackoffStrategy)

		// Use yaml tag names for field names in errors
		structValidator.RegisterTagNameFunc(extractYamlTagName)
	})
	return structValidator
}

// validateDuration accepts positive Go duration strings such as "500ms" or "2m"
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// validateBackoffStrategy accepts the supported backoff strategies
func validateBackoffStrategy(fl validator.FieldLevel) bool {
	switch policy.BackoffStrategy(fl.Field().String()) {
	case policy.BackoffExponential, policy.BackoffLinear, policy.BackoffConstant:
		return true
	default:
		return false
	}
}

// ValidateStruct validates a struct using go-playground/validator tags.
// Returns a ValidationErrors with all validation failures.
func ValidateStruct(s interface{}) *ValidationErrors {
	v := getStructValidator()
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors := &ValidationErrors{}

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrors.Add(formatFieldPath(e.Namespace()), formatErrorMessage(e))
		}
	} else {
		validationErrors.Add("", err.Error())
	}

	return validationErrors
}

// formatErrorMessage describes a failed tag for the user
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "eq":
		return fmt.Sprintf("invalid value %q (expected: %q)", e.Value(), e.Param())
	case "url":
		return fmt.Sprintf("%q is not a valid URL", e.Value())
	case "duration":
		return fmt.Sprintf("%q is not a valid positive duration (e.g. 500ms, 30s, 2m)", e.Value())
	case "backoffstrategy":
		return fmt.Sprintf("%q is invalid (allowed: %s, %s, %s)", e.Value(),
			policy.BackoffExponential, policy.BackoffLinear, policy.BackoffConstant)
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	default:
		return fmt.Sprintf("failed validation %s", e.Tag())
	}
}

// formatFieldPath converts validator namespace to our path format
// e.g., "AdminClientConfig.spec.backoff.strategy" -> "spec.backoff.strategy"
func formatFieldPath(namespace string) string {
	parts := strings.SplitN(namespace, ".", 2)
	if len(parts) < 2 {
		return namespace
	}
	return parts[1]
}
