package client_factory

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/config_loader"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// CreateExecutor creates the call executor from the retry, polling and
// backoff sections of the config. Metrics are registered with reg when it is
// not nil.
func CreateExecutor(config *config_loader.AdminClientConfig, log logger.Logger, reg prometheus.Registerer) (*executor.Executor, error) {
	policies, err := config.ToPolicies()
	if err != nil {
		return nil, fmt.Errorf("failed to build call policies: %w", err)
	}
	return executor.New(log,
		executor.WithPolicies(policies),
		executor.WithMetrics(executor.NewMetrics(reg)),
	), nil
}

// CreateLauncher creates the launcher bounding asynchronous calls
func CreateLauncher(config *config_loader.AdminClientConfig, exec *executor.Executor) *executor.Launcher {
	return executor.NewLauncher(config.Spec.Concurrency.MaxInFlight, exec.Metrics())
}
