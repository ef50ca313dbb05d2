package client_factory

import (
	"fmt"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/config_loader"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/transport"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// CreateTransportClient creates the HTTP transport from the config
func CreateTransportClient(config *config_loader.AdminClientConfig, log logger.Logger, opts ...transport.ClientOption) (transport.Client, error) {
	clientConfig, err := config.ToClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build transport config: %w", err)
	}
	if clientConfig.BaseURL == "" {
		return nil, fmt.Errorf("endpoint is required (set spec.endpoint or the %s environment variable)", config_loader.EnvEndpoint)
	}
	return transport.NewClient(log, append([]transport.ClientOption{transport.WithConfig(clientConfig)}, opts...)...), nil
}
