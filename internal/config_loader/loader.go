package config_loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/policy"
	apperrors "github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/errors"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

// API version constants
const (
	APIVersionV1Alpha1 = "hyperfleet.redhat.com/v1alpha1"
	ExpectedKind       = "AdminClientConfig"
)

// Environment variable for config file path
const EnvConfigPath = "HFADMIN_CONFIG_PATH"

// SupportedAPIVersions contains all supported apiVersion values
var SupportedAPIVersions = []string{
	APIVersionV1Alpha1,
}

// -----------------------------------------------------------------------------
// Loader Options (Functional Options Pattern)
// -----------------------------------------------------------------------------

// LoaderOption configures the loader behavior
type LoaderOption func(*loaderConfig)

type loaderConfig struct {
	skipSemanticValidation bool
	endpoint               string
}

// WithSkipSemanticValidation skips CEL and delay-ordering validation
func WithSkipSemanticValidation() LoaderOption {
	return func(c *loaderConfig) {
		c.skipSemanticValidation = true
	}
}

// WithEndpoint overrides spec.endpoint (e.g. from a command-line flag)
func WithEndpoint(endpoint string) LoaderOption {
	return func(c *loaderConfig) {
		c.endpoint = endpoint
	}
}

// -----------------------------------------------------------------------------
// Public API
// -----------------------------------------------------------------------------

// ConfigPathFromEnv returns the config file path from the HFADMIN_CONFIG_PATH environment variable
func ConfigPathFromEnv() string {
	return os.Getenv(EnvConfigPath)
}

// Load loads an admin client configuration from a YAML file.
// If filePath is empty, it will read from HFADMIN_CONFIG_PATH environment variable.
func Load(filePath string, opts ...LoaderOption) (*AdminClientConfig, error) {
	if filePath == "" {
		filePath = ConfigPathFromEnv()
	}
	if filePath == "" {
		return nil, apperrors.ConfigNotFound("config file path is required (pass as parameter or set %s environment variable)", EnvConfigPath)
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.ConfigNotFound("failed to read config file %q: %v", filePath, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filePath, err)
	}
	return Parse(data, opts...)
}

// Parse parses admin client configuration from YAML bytes
func Parse(data []byte, opts ...LoaderOption) (*AdminClientConfig, error) {
	cfg := &loaderConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var config AdminClientConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if cfg.endpoint != "" {
		config.Spec.Endpoint = cfg.endpoint
	}

	if err := runValidationPipeline(&config, cfg); err != nil {
		return nil, err
	}
	applyDefaults(&config)

	return &config, nil
}

// Default returns the configuration used when no file is given
func Default() *AdminClientConfig {
	config := &AdminClientConfig{
		APIVersion: APIVersionV1Alpha1,
		Kind:       ExpectedKind,
		Metadata:   Metadata{Name: "default"},
	}
	applyDefaults(config)
	return config
}

// -----------------------------------------------------------------------------
// Validation Pipeline
// -----------------------------------------------------------------------------

// validatorFunc is a function that validates a config and returns an error
type validatorFunc func(*AdminClientConfig) error

// runValidationPipeline executes all validators in sequence
func runValidationPipeline(config *AdminClientConfig, cfg *loaderConfig) error {
	coreValidators := []validatorFunc{
		validateAPIVersionAndKind,
		validateStructure,
	}

	for _, v := range coreValidators {
		if err := v(config); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	// Semantic validation (optional, can be skipped for performance)
	if !cfg.skipSemanticValidation {
		if err := Validate(config); err != nil {
			return fmt.Errorf("semantic validation failed: %w", err)
		}
	}

	return nil
}

func validateAPIVersionAndKind(config *AdminClientConfig) error {
	if config.APIVersion == "" {
		return fmt.Errorf("apiVersion is required")
	}
	if !IsSupportedAPIVersion(config.APIVersion) {
		return fmt.Errorf("unsupported apiVersion %q (supported: %v)", config.APIVersion, SupportedAPIVersions)
	}
	if config.Kind != ExpectedKind {
		return fmt.Errorf("invalid kind %q (expected: %q)", config.Kind, ExpectedKind)
	}
	return nil
}

func validateStructure(config *AdminClientConfig) error {
	if errs := ValidateStruct(config); errs != nil && errs.HasErrors() {
		return errs
	}
	return nil
}

// IsSupportedAPIVersion checks if the given apiVersion is supported
func IsSupportedAPIVersion(apiVersion string) bool {
	for _, v := range SupportedAPIVersions {
		if v == apiVersion {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Defaults
// -----------------------------------------------------------------------------

func applyDefaults(config *AdminClientConfig) {
	spec := &config.Spec

	if spec.APIVersion == "" {
		spec.APIVersion = DefaultAPIVersion
	}
	if spec.Timeout == "" {
		spec.Timeout = DefaultTimeout
	}

	if spec.Retry.MaxAttempts == 0 {
		spec.Retry.MaxAttempts = policy.DefaultMaxAttempts
	}
	if spec.Retry.MaxElapsed == "" {
		spec.Retry.MaxElapsed = policy.DefaultMaxElapsed.String()
	}
	if spec.Polling.MaxAttempts == 0 && spec.Polling.MaxElapsed == "" {
		spec.Polling.MaxElapsed = policy.DefaultPollingMaxElapsed.String()
	}

	if spec.Backoff.Strategy == "" {
		spec.Backoff.Strategy = string(policy.DefaultBackoffStrategy)
	}
	if spec.Backoff.InitialDelay == "" {
		spec.Backoff.InitialDelay = policy.DefaultInitialDelay.String()
	}
	if spec.Backoff.MaxDelay == "" {
		spec.Backoff.MaxDelay = maxDuration(policy.DefaultMaxDelay, mustParse(spec.Backoff.InitialDelay)).String()
	}
	if spec.Backoff.Multiplier == 0 {
		spec.Backoff.Multiplier = policy.DefaultMultiplier
	}
	if spec.Backoff.Jitter == nil {
		jitter := policy.DefaultJitter
		spec.Backoff.Jitter = &jitter
	}
}

// mustParse parses a duration already checked by the struct validator
func mustParse(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
