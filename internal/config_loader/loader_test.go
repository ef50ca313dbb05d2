package config_loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/policy"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/transport"
	apperrors "github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/errors"
)

const fullConfigYAML = `
apiVersion: hyperfleet.redhat.com/v1alpha1
kind: AdminClientConfig
metadata:
  name: test-client
  labels:
    team: storage
spec:
  endpoint: "https://storage.example.com"
  apiVersion: v1
  project: my-project
  timeout: 15s
  headers:
    - name: X-Goog-User-Project
      value: my-project
  retry:
    maxAttempts: 5
    maxElapsed: 2m
    retryIf: 'code_name == "Unavailable" || message.contains("rateLimitExceeded")'
  polling:
    maxAttempts: 20
    maxElapsed: 5m
  backoff:
    strategy: linear
    initialDelay: 100ms
    maxDelay: 2s
    multiplier: 1.5
    jitter: 0
  stream:
    readBufferSize: 65536
    writeBufferSize: 524288
  concurrency:
    maxInFlight: 4
  rateLimit:
    qps: 10
    burst: 5
`

const minimalConfigYAML = `
apiVersion: hyperfleet.redhat.com/v1alpha1
kind: AdminClientConfig
metadata:
  name: minimal
spec:
  endpoint: "http://localhost:4443"
`

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "admin-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fullConfigYAML), 0o600))

	config, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, APIVersionV1Alpha1, config.APIVersion)
	assert.Equal(t, ExpectedKind, config.Kind)
	assert.Equal(t, "test-client", config.Metadata.Name)
	assert.Equal(t, "storage", config.Metadata.Labels["team"])
	assert.Equal(t, "https://storage.example.com", config.Spec.Endpoint)
	assert.Equal(t, "my-project", config.Spec.Project)
	assert.Equal(t, 5, config.Spec.Retry.MaxAttempts)
	assert.Equal(t, 524288, config.Spec.Stream.WriteBufferSize)
	assert.Equal(t, int64(4), config.Spec.Concurrency.MaxInFlight)
	require.NotNil(t, config.Spec.Backoff.Jitter)
	assert.Zero(t, *config.Spec.Backoff.Jitter, "explicit zero jitter is kept")
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "admin-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(minimalConfigYAML), 0o600))
	t.Setenv(EnvConfigPath, configPath)

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "minimal", config.Metadata.Name)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvConfigPath)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, apperrors.ErrorConfigNotFound, svcErr.Code)
}

func TestParseAppliesDefaults(t *testing.T) {
	config, err := Parse([]byte(minimalConfigYAML))
	require.NoError(t, err)

	spec := config.Spec
	assert.Equal(t, DefaultAPIVersion, spec.APIVersion)
	assert.Equal(t, DefaultTimeout, spec.Timeout)
	assert.Equal(t, policy.DefaultMaxAttempts, spec.Retry.MaxAttempts)
	assert.Equal(t, policy.DefaultMaxElapsed.String(), spec.Retry.MaxElapsed)
	assert.Equal(t, policy.DefaultPollingMaxElapsed.String(), spec.Polling.MaxElapsed)
	assert.Equal(t, string(policy.BackoffExponential), spec.Backoff.Strategy)
	assert.Equal(t, policy.DefaultInitialDelay.String(), spec.Backoff.InitialDelay)
	assert.Equal(t, policy.DefaultMaxDelay.String(), spec.Backoff.MaxDelay)
	assert.Equal(t, policy.DefaultMultiplier, spec.Backoff.Multiplier)
	require.NotNil(t, spec.Backoff.Jitter)
	assert.Equal(t, policy.DefaultJitter, *spec.Backoff.Jitter)
}

func TestParseDefaultMaxDelayFollowsInitialDelay(t *testing.T) {
	config, err := Parse([]byte(minimalConfigYAML + `
  backoff:
    initialDelay: 1m
`))
	require.NoError(t, err)
	assert.Equal(t, time.Minute.String(), config.Spec.Backoff.MaxDelay)
}

func TestParseWithEndpointOverride(t *testing.T) {
	config, err := Parse([]byte(minimalConfigYAML), WithEndpoint("http://override:8080"))
	require.NoError(t, err)
	assert.Equal(t, "http://override:8080", config.GetEndpoint())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			yaml:    "apiVersion: [",
			wantErr: "YAML parse error",
		},
		{
			name: "missing apiVersion",
			yaml: `
kind: AdminClientConfig
metadata:
  name: x
`,
			wantErr: "apiVersion is required",
		},
		{
			name: "unsupported apiVersion",
			yaml: `
apiVersion: hyperfleet.redhat.com/v2
kind: AdminClientConfig
metadata:
  name: x
`,
			wantErr: "unsupported apiVersion",
		},
		{
			name: "wrong kind",
			yaml: `
apiVersion: hyperfleet.redhat.com/v1alpha1
kind: AdapterConfig
metadata:
  name: x
`,
			wantErr: `invalid kind "AdapterConfig"`,
		},
		{
			name: "missing metadata name",
			yaml: `
apiVersion: hyperfleet.redhat.com/v1alpha1
kind: AdminClientConfig
`,
			wantErr: "metadata.name: is required",
		},
		{
			name:    "invalid endpoint",
			yaml:    strings.Replace(minimalConfigYAML, "http://localhost:4443", "not a url", 1),
			wantErr: "spec.endpoint",
		},
		{
			name: "invalid timeout",
			yaml: minimalConfigYAML + `  timeout: soon
`,
			wantErr: `spec.timeout: "soon" is not a valid positive duration`,
		},
		{
			name: "negative duration",
			yaml: minimalConfigYAML + `  retry:
    maxElapsed: -5s
`,
			wantErr: "spec.retry.maxElapsed",
		},
		{
			name: "invalid backoff strategy",
			yaml: minimalConfigYAML + `  backoff:
    strategy: fibonacci
`,
			wantErr: `spec.backoff.strategy: "fibonacci" is invalid`,
		},
		{
			name: "multiplier below one",
			yaml: minimalConfigYAML + `  backoff:
    multiplier: 0.5
`,
			wantErr: "spec.backoff.multiplier: must be at least 1",
		},
		{
			name: "jitter above one",
			yaml: minimalConfigYAML + `  backoff:
    jitter: 1.5
`,
			wantErr: "spec.backoff.jitter: must be at most 1",
		},
		{
			name: "header without name",
			yaml: minimalConfigYAML + `  headers:
    - value: x
`,
			wantErr: "spec.headers[0].name: is required",
		},
		{
			name: "negative max attempts",
			yaml: minimalConfigYAML + `  retry:
    maxAttempts: -1
`,
			wantErr: "spec.retry.maxAttempts: must be at least 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToPolicies(t *testing.T) {
	config, err := Parse([]byte(fullConfigYAML))
	require.NoError(t, err)

	p, err := config.ToPolicies()
	require.NoError(t, err)

	assert.Equal(t, 5, p.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Minute, p.Retry.MaxElapsed)
	require.NotNil(t, p.Retry.Classifier)
	assert.True(t, p.Retry.Classifier.IsTransient(status.New(codes.Unavailable, "")))
	assert.True(t, p.Retry.Classifier.IsTransient(status.New(codes.PermissionDenied, "rateLimitExceeded")))
	assert.False(t, p.Retry.Classifier.IsTransient(status.New(codes.NotFound, "")))

	assert.Equal(t, 20, p.Polling.MaxAttempts)
	assert.Equal(t, 5*time.Minute, p.Polling.MaxElapsed)

	assert.Equal(t, policy.BackoffLinear, p.Backoff.Strategy)
	assert.Equal(t, 100*time.Millisecond, p.Backoff.InitialDelay)
	assert.Equal(t, 2*time.Second, p.Backoff.MaxDelay)
	assert.Equal(t, 1.5, p.Backoff.Multiplier)
	assert.Zero(t, p.Backoff.Jitter)
}

func TestToPoliciesDefaults(t *testing.T) {
	p, err := Default().ToPolicies()
	require.NoError(t, err)

	defaults := policy.Defaults()
	assert.Equal(t, defaults.Retry.MaxAttempts, p.Retry.MaxAttempts)
	assert.Equal(t, defaults.Retry.MaxElapsed, p.Retry.MaxElapsed)
	assert.Nil(t, p.Retry.Classifier)
	assert.Equal(t, defaults.Polling.MaxElapsed, p.Polling.MaxElapsed)
	assert.Equal(t, defaults.Backoff, p.Backoff)
}

func TestParseTimeout(t *testing.T) {
	config, err := Parse([]byte(fullConfigYAML))
	require.NoError(t, err)

	timeout, err := config.ParseTimeout()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, timeout)

	var empty *AdminClientConfig
	timeout, err = empty.ParseTimeout()
	require.NoError(t, err)
	assert.Equal(t, transport.DefaultTimeout, timeout)
}

func TestToClientConfig(t *testing.T) {
	config, err := Parse([]byte(fullConfigYAML))
	require.NoError(t, err)

	cfg, err := config.ToClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, map[string]string{"X-Goog-User-Project": "my-project"}, cfg.DefaultHeaders)
	assert.Equal(t, float64(10), cfg.RateLimit)
	assert.Equal(t, 5, cfg.RateBurst)
}

func TestGetEndpointFallsBackToEnv(t *testing.T) {
	t.Setenv(EnvEndpoint, "http://from-env:4443")

	assert.Equal(t, "http://from-env:4443", Default().GetEndpoint())

	config, err := Parse([]byte(minimalConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4443", config.GetEndpoint())
}
