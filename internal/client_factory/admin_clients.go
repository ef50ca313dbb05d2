package client_factory

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/config_loader"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/instanceadmin"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/storage"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/transport"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// CreateStorageClient creates a storage client over t using the stream and
// API version settings of the config.
func CreateStorageClient(config *config_loader.AdminClientConfig, t transport.Client, exec *executor.Executor, launcher *executor.Launcher) *storage.Client {
	opts := []storage.Option{storage.WithLauncher(launcher)}
	if config.Spec.APIVersion != "" {
		opts = append(opts, storage.WithAPIVersion(config.Spec.APIVersion))
	}
	if size := config.Spec.Stream.ReadBufferSize; size > 0 {
		opts = append(opts, storage.WithReadBufferSize(size))
	}
	if size := config.Spec.Stream.WriteBufferSize; size > 0 {
		opts = append(opts, storage.WithWriteBufferSize(size))
	}
	return storage.NewClient(t, exec, opts...)
}

// CreateInstanceAdmin creates an instance admin client for spec.project over stub
func CreateInstanceAdmin(config *config_loader.AdminClientConfig, stub instanceadmin.Stub, exec *executor.Executor, launcher *executor.Launcher) *instanceadmin.InstanceAdmin {
	return instanceadmin.New(stub, exec, config.Spec.Project, instanceadmin.WithLauncher(launcher))
}

// Clients bundles the clients built from one configuration. They share the
// executor and launcher, so retry policies and the async bound apply across
// all of them.
type Clients struct {
	Executor  *executor.Executor
	Launcher  *executor.Launcher
	Transport transport.Client
	Storage   *storage.Client
}

// CreateClients builds the executor, transport and storage client from config
func CreateClients(config *config_loader.AdminClientConfig, log logger.Logger, reg prometheus.Registerer, opts ...transport.ClientOption) (*Clients, error) {
	exec, err := CreateExecutor(config, log, reg)
	if err != nil {
		return nil, err
	}
	t, err := CreateTransportClient(config, log, opts...)
	if err != nil {
		return nil, err
	}
	launcher := CreateLauncher(config, exec)
	return &Clients{
		Executor:  exec,
		Launcher:  launcher,
		Transport: t,
		Storage:   CreateStorageClient(config, t, exec, launcher),
	}, nil
}
