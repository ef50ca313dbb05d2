// Package instanceadmin manages instances, clusters and their IAM policies
// through an RPC Stub. Mutations that take effect asynchronously return a
// long-running operation which the client polls to completion.
package instanceadmin

import (
	"context"
	"slices"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/iam"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/lro"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// AllInstances lists clusters across every instance of the project
const AllInstances = "-"

// InstanceAdmin performs instance admin operations for one project. It is
// safe for concurrent use.
type InstanceAdmin struct {
	stub     Stub
	exec     *executor.Executor
	launcher *executor.Launcher
	log      logger.Logger

	project     string
	projectName string
}

// Option configures an InstanceAdmin
type Option func(*InstanceAdmin)

// WithLauncher sets the launcher used by the Async operations
func WithLauncher(l *executor.Launcher) Option {
	return func(a *InstanceAdmin) {
		a.launcher = l
	}
}

// New creates an InstanceAdmin for project over stub.
func New(stub Stub, exec *executor.Executor, project string, opts ...Option) *InstanceAdmin {
	a := &InstanceAdmin{
		stub:        stub,
		exec:        exec,
		log:         exec.Logger(),
		project:     project,
		projectName: "projects/" + project,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.launcher == nil {
		a.launcher = executor.NewLauncher(executor.DefaultMaxInFlight, exec.Metrics())
	}
	return a
}

// ProjectID returns the project the client manages
func (a *InstanceAdmin) ProjectID() string {
	return a.project
}

// ProjectName returns "projects/<project>"
func (a *InstanceAdmin) ProjectName() string {
	return a.projectName
}

// InstanceName qualifies an instance ID with the project.
func (a *InstanceAdmin) InstanceName(instanceID string) string {
	if strings.HasPrefix(instanceID, "projects/") {
		return instanceID
	}
	return a.projectName + "/instances/" + instanceID
}

// ClusterName qualifies a cluster ID with the project and instance.
func (a *InstanceAdmin) ClusterName(instanceID, clusterID string) string {
	return a.InstanceName(instanceID) + "/clusters/" + clusterID
}

// LocationName qualifies a zone with the project.
func (a *InstanceAdmin) LocationName(zone string) string {
	if strings.HasPrefix(zone, "projects/") {
		return zone
	}
	return a.projectName + "/locations/" + zone
}

func (a *InstanceAdmin) context(ctx context.Context) context.Context {
	return logger.WithProject(ctx, a.project)
}

// -----------------------------------------------------------------------------
// Instances
// -----------------------------------------------------------------------------

// CreateInstance creates an instance with its initial clusters and waits for
// the operation to finish. Not idempotent: a retried attempt after a lost
// response fails with AlreadyExists.
func (a *InstanceAdmin) CreateInstance(ctx context.Context, config InstanceConfig) (*Instance, error) {
	const method = "instanceadmin.CreateInstance"
	ctx = logger.WithInstance(a.context(ctx), config.InstanceID)

	if err := validateConfig(config); err != nil {
		return nil, withOp(err, method)
	}

	req := &CreateInstanceRequest{
		Parent:     a.projectName,
		InstanceID: config.InstanceID,
		Instance: &Instance{
			DisplayName: config.DisplayName,
			Type:        config.Type,
			Labels:      config.Labels,
		},
		Clusters: make(map[string]*Cluster, len(config.Clusters)),
	}
	for id, cc := range config.Clusters {
		req.Clusters[id] = a.newCluster(cc)
	}

	instance, err := lro.Await[*Instance](ctx, a.exec.NewCall(method), func(ctx context.Context) (*lro.Operation, error) {
		return a.stub.CreateInstance(ctx, req)
	}, a.stub.GetOperation)
	if err != nil {
		return nil, err
	}
	a.log.Infof(ctx, "Created instance %s with %d cluster(s)", instance.Name, len(config.Clusters))
	return instance, nil
}

// CreateInstanceAsync runs CreateInstance on the client's launcher.
func (a *InstanceAdmin) CreateInstanceAsync(ctx context.Context, config InstanceConfig) *executor.Future[*Instance] {
	return executor.Go(a.launcher, ctx, func(ctx context.Context) (*Instance, error) {
		return a.CreateInstance(ctx, config)
	})
}

// UpdateInstance changes the fields of instance named in mask and waits for
// the operation to finish. Idempotent.
func (a *InstanceAdmin) UpdateInstance(ctx context.Context, instance *Instance, mask ...string) (*Instance, error) {
	const method = "instanceadmin.UpdateInstance"
	ctx = logger.WithInstance(a.context(ctx), instance.Name)

	if len(mask) == 0 {
		return nil, withOp(status.New(codes.InvalidArgument, "update mask is empty").Err(), method)
	}
	target := instance.DeepCopy()
	target.Name = a.InstanceName(instance.Name)
	req := &UpdateInstanceRequest{Instance: target, UpdateMask: mask}

	return lro.Await[*Instance](ctx, a.exec.NewCall(method), func(ctx context.Context) (*lro.Operation, error) {
		return a.stub.UpdateInstance(ctx, req)
	}, a.stub.GetOperation)
}

// UpdateInstanceFrom updates the instance with the fields that differ between
// original and updated. When nothing differs no request is sent.
func (a *InstanceAdmin) UpdateInstanceFrom(ctx context.Context, original, updated *Instance) (*Instance, error) {
	mask := DiffInstance(original, updated).Fields()
	if len(mask) == 0 {
		return updated.DeepCopy(), nil
	}
	return a.UpdateInstance(ctx, updated, mask...)
}

// UpdateInstanceAsync runs UpdateInstance on the client's launcher.
func (a *InstanceAdmin) UpdateInstanceAsync(ctx context.Context, instance *Instance, mask ...string) *executor.Future[*Instance] {
	instance = instance.DeepCopy()
	return executor.Go(a.launcher, ctx, func(ctx context.Context) (*Instance, error) {
		return a.UpdateInstance(ctx, instance, mask...)
	})
}

// GetInstance fetches an instance. Idempotent.
func (a *InstanceAdmin) GetInstance(ctx context.Context, instanceID string) (*Instance, error) {
	ctx = logger.WithInstance(a.context(ctx), instanceID)
	name := a.InstanceName(instanceID)
	return executor.Execute(ctx, a.exec.NewCall("instanceadmin.GetInstance"), func(ctx context.Context) (*Instance, error) {
		return a.stub.GetInstance(ctx, name)
	})
}

// ListInstances returns every instance in the project, following page
// tokens. Each page is its own call. Idempotent.
func (a *InstanceAdmin) ListInstances(ctx context.Context) (*InstanceList, error) {
	ctx = a.context(ctx)
	out := &InstanceList{}
	req := &ListInstancesRequest{Parent: a.projectName}
	for {
		page, err := executor.Execute(ctx, a.exec.NewCall("instanceadmin.ListInstances"), func(ctx context.Context) (*ListInstancesResponse, error) {
			return a.stub.ListInstances(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		out.Instances = append(out.Instances, page.Instances...)
		out.FailedLocations = appendUnique(out.FailedLocations, page.FailedLocations...)
		if page.NextPageToken == "" {
			return out, nil
		}
		req = &ListInstancesRequest{Parent: a.projectName, PageToken: page.NextPageToken}
	}
}

// DeleteInstance deletes an instance and its clusters. Not idempotent: a
// retried attempt after a lost response fails with NotFound.
func (a *InstanceAdmin) DeleteInstance(ctx context.Context, instanceID string) error {
	ctx = logger.WithInstance(a.context(ctx), instanceID)
	name := a.InstanceName(instanceID)
	err := executor.Do(ctx, a.exec.NewCall("instanceadmin.DeleteInstance"), func(ctx context.Context) error {
		return a.stub.DeleteInstance(ctx, name)
	})
	if err != nil {
		return err
	}
	a.log.Infof(ctx, "Deleted instance %s", name)
	return nil
}

// -----------------------------------------------------------------------------
// Clusters
// -----------------------------------------------------------------------------

func (a *InstanceAdmin) newCluster(cc ClusterConfig) *Cluster {
	return &Cluster{
		Location:           a.LocationName(cc.Location),
		ServeNodes:         cc.ServeNodes,
		DefaultStorageType: cc.StorageType,
	}
}

// CreateCluster adds a cluster to an instance and waits for the operation to
// finish. Not idempotent: a retried attempt after a lost response fails with
// AlreadyExists.
func (a *InstanceAdmin) CreateCluster(ctx context.Context, instanceID, clusterID string, config ClusterConfig) (*Cluster, error) {
	const method = "instanceadmin.CreateCluster"
	ctx = logger.WithCluster(logger.WithInstance(a.context(ctx), instanceID), clusterID)

	if err := validateConfig(config); err != nil {
		return nil, withOp(err, method)
	}
	if !resourceIDPattern.MatchString(clusterID) {
		return nil, withOp(status.Newf(codes.InvalidArgument, "invalid cluster id %q", clusterID).Err(), method)
	}

	req := &CreateClusterRequest{
		Parent:    a.InstanceName(instanceID),
		ClusterID: clusterID,
		Cluster:   a.newCluster(config),
	}
	cluster, err := lro.Await[*Cluster](ctx, a.exec.NewCall(method), func(ctx context.Context) (*lro.Operation, error) {
		return a.stub.CreateCluster(ctx, req)
	}, a.stub.GetOperation)
	if err != nil {
		return nil, err
	}
	a.log.Infof(ctx, "Created cluster %s in %s", cluster.Name, cluster.Location)
	return cluster, nil
}

// CreateClusterAsync runs CreateCluster on the client's launcher.
func (a *InstanceAdmin) CreateClusterAsync(ctx context.Context, instanceID, clusterID string, config ClusterConfig) *executor.Future[*Cluster] {
	return executor.Go(a.launcher, ctx, func(ctx context.Context) (*Cluster, error) {
		return a.CreateCluster(ctx, instanceID, clusterID, config)
	})
}

// UpdateCluster replaces the mutable fields of a cluster and waits for the
// operation to finish. cluster.Name must be fully qualified. Idempotent.
func (a *InstanceAdmin) UpdateCluster(ctx context.Context, cluster *Cluster) (*Cluster, error) {
	const method = "instanceadmin.UpdateCluster"
	ctx = logger.WithCluster(a.context(ctx), cluster.Name)

	if !strings.HasPrefix(cluster.Name, a.projectName+"/instances/") {
		return nil, withOp(status.Newf(codes.InvalidArgument, "cluster name %q is not qualified with %s", cluster.Name, a.projectName).Err(), method)
	}
	target := *cluster
	if target.Location != "" {
		target.Location = a.LocationName(target.Location)
	}

	return lro.Await[*Cluster](ctx, a.exec.NewCall(method), func(ctx context.Context) (*lro.Operation, error) {
		return a.stub.UpdateCluster(ctx, &target)
	}, a.stub.GetOperation)
}

// UpdateClusterAsync runs UpdateCluster on the client's launcher.
func (a *InstanceAdmin) UpdateClusterAsync(ctx context.Context, cluster *Cluster) *executor.Future[*Cluster] {
	target := *cluster
	return executor.Go(a.launcher, ctx, func(ctx context.Context) (*Cluster, error) {
		return a.UpdateCluster(ctx, &target)
	})
}

// GetCluster fetches a cluster. Idempotent.
func (a *InstanceAdmin) GetCluster(ctx context.Context, instanceID, clusterID string) (*Cluster, error) {
	ctx = logger.WithCluster(logger.WithInstance(a.context(ctx), instanceID), clusterID)
	name := a.ClusterName(instanceID, clusterID)
	return executor.Execute(ctx, a.exec.NewCall("instanceadmin.GetCluster"), func(ctx context.Context) (*Cluster, error) {
		return a.stub.GetCluster(ctx, name)
	})
}

// ListClusters returns the clusters of every instance in the project.
func (a *InstanceAdmin) ListClusters(ctx context.Context) (*ClusterList, error) {
	return a.ListInstanceClusters(ctx, AllInstances)
}

// ListInstanceClusters returns the clusters of one instance, or of all
// instances when instanceID is AllInstances. Each page is its own call.
// Idempotent.
func (a *InstanceAdmin) ListInstanceClusters(ctx context.Context, instanceID string) (*ClusterList, error) {
	ctx = logger.WithInstance(a.context(ctx), instanceID)
	parent := a.InstanceName(instanceID)
	out := &ClusterList{}
	req := &ListClustersRequest{Parent: parent}
	for {
		page, err := executor.Execute(ctx, a.exec.NewCall("instanceadmin.ListClusters"), func(ctx context.Context) (*ListClustersResponse, error) {
			return a.stub.ListClusters(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		out.Clusters = append(out.Clusters, page.Clusters...)
		out.FailedLocations = appendUnique(out.FailedLocations, page.FailedLocations...)
		if page.NextPageToken == "" {
			return out, nil
		}
		req = &ListClustersRequest{Parent: parent, PageToken: page.NextPageToken}
	}
}

// DeleteCluster deletes a cluster. Not idempotent: a retried attempt after a
// lost response fails with NotFound.
func (a *InstanceAdmin) DeleteCluster(ctx context.Context, instanceID, clusterID string) error {
	ctx = logger.WithCluster(logger.WithInstance(a.context(ctx), instanceID), clusterID)
	name := a.ClusterName(instanceID, clusterID)
	err := executor.Do(ctx, a.exec.NewCall("instanceadmin.DeleteCluster"), func(ctx context.Context) error {
		return a.stub.DeleteCluster(ctx, name)
	})
	if err != nil {
		return err
	}
	a.log.Infof(ctx, "Deleted cluster %s", name)
	return nil
}

// -----------------------------------------------------------------------------
// IAM
// -----------------------------------------------------------------------------

// GetIamPolicy fetches the IAM policy of an instance. Idempotent.
func (a *InstanceAdmin) GetIamPolicy(ctx context.Context, instanceID string) (*iam.Policy, error) {
	ctx = logger.WithInstance(a.context(ctx), instanceID)
	resource := a.InstanceName(instanceID)
	return executor.Execute(ctx, a.exec.NewCall("instanceadmin.GetIamPolicy"), func(ctx context.Context) (*iam.Policy, error) {
		return a.stub.GetIamPolicy(ctx, resource)
	})
}

// SetIamPolicy replaces the bindings of an instance's IAM policy. etag must
// come from a previous GetIamPolicy; the server rejects the update with
// Aborted when the policy changed since. Idempotent for a given etag.
func (a *InstanceAdmin) SetIamPolicy(ctx context.Context, instanceID string, bindings iam.Bindings, etag string) (*iam.Policy, error) {
	ctx = logger.WithInstance(a.context(ctx), instanceID)
	resource := a.InstanceName(instanceID)
	policy := &iam.Policy{Etag: etag, Bindings: bindings}
	return executor.Execute(ctx, a.exec.NewCall("instanceadmin.SetIamPolicy"), func(ctx context.Context) (*iam.Policy, error) {
		return a.stub.SetIamPolicy(ctx, resource, policy)
	})
}

// TestIamPermissions returns the subset of permissions the caller holds on
// an instance. Idempotent.
func (a *InstanceAdmin) TestIamPermissions(ctx context.Context, instanceID string, permissions []string) ([]string, error) {
	ctx = logger.WithInstance(a.context(ctx), instanceID)
	resource := a.InstanceName(instanceID)
	return executor.Execute(ctx, a.exec.NewCall("instanceadmin.TestIamPermissions"), func(ctx context.Context) ([]string, error) {
		return a.stub.TestIamPermissions(ctx, resource, permissions)
	})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func withOp(err error, op string) error {
	se := *status.AsError(err)
	se.Op = op
	return &se
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
