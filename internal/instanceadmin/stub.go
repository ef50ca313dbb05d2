package instanceadmin

import (
	"context"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/iam"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/lro"
)

// Stub is the RPC surface of the instance admin service. Each method is a
// single attempt; retries, backoff and polling are the InstanceAdmin's job.
// Names passed to a Stub are always fully qualified.
type Stub interface {
	CreateInstance(ctx context.Context, req *CreateInstanceRequest) (*lro.Operation, error)
	UpdateInstance(ctx context.Context, req *UpdateInstanceRequest) (*lro.Operation, error)
	GetInstance(ctx context.Context, name string) (*Instance, error)
	ListInstances(ctx context.Context, req *ListInstancesRequest) (*ListInstancesResponse, error)
	DeleteInstance(ctx context.Context, name string) error

	CreateCluster(ctx context.Context, req *CreateClusterRequest) (*lro.Operation, error)
	UpdateCluster(ctx context.Context, cluster *Cluster) (*lro.Operation, error)
	GetCluster(ctx context.Context, name string) (*Cluster, error)
	ListClusters(ctx context.Context, req *ListClustersRequest) (*ListClustersResponse, error)
	DeleteCluster(ctx context.Context, name string) error

	GetOperation(ctx context.Context, name string) (*lro.Operation, error)

	GetIamPolicy(ctx context.Context, resource string) (*iam.Policy, error)
	SetIamPolicy(ctx context.Context, resource string, policy *iam.Policy) (*iam.Policy, error)
	TestIamPermissions(ctx context.Context, resource string, permissions []string) ([]string, error)
}
