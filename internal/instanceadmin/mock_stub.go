package instanceadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/iam"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/lro"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

// MockStub is an in-memory Stub for unit testing.
//
// By default it keeps instances, clusters and IAM policies in maps and
// completes every operation after PollsUntilDone calls to GetOperation.
// Errors queued in Errors[method] are returned, in order, before the method
// runs. Calls records each method invoked.
type MockStub struct {
	mu sync.Mutex

	// PollsUntilDone is how many GetOperation calls see an operation still
	// running before it completes
	PollsUntilDone int
	// PageSize limits list responses; 0 returns everything in one page
	PageSize int
	// Errors queues errors per method name (e.g. "CreateInstance")
	Errors map[string][]error
	// FailOperation completes the named operation kinds (e.g. "CreateCluster")
	// with this status instead of a result
	FailOperation map[string]status.Status
	// Permissions held by the caller, answered by TestIamPermissions
	Permissions []string

	// Calls records every method invoked, in order
	Calls []string

	instances  map[string]*Instance
	clusters   map[string]*Cluster
	policies   map[string]*iam.Policy
	operations map[string]*pendingOperation
	nextOp     int
}

type pendingOperation struct {
	op        *lro.Operation
	pollsLeft int
	complete  func() (any, *status.Status)
}

var _ Stub = (*MockStub)(nil)

// NewMockStub creates an empty MockStub whose operations finish on the first poll.
func NewMockStub() *MockStub {
	return &MockStub{
		PollsUntilDone: 1,
		Errors:         map[string][]error{},
		FailOperation:  map[string]status.Status{},
		instances:      map[string]*Instance{},
		clusters:       map[string]*Cluster{},
		policies:       map[string]*iam.Policy{},
		operations:     map[string]*pendingOperation{},
	}
}

// AddInstance stores an instance directly, bypassing operations
func (m *MockStub) AddInstance(instance *Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[instance.Name] = instance.DeepCopy()
}

// AddCluster stores a cluster directly, bypassing operations
func (m *MockStub) AddCluster(cluster *Cluster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cluster
	m.clusters[cluster.Name] = &c
}

// CallCount returns how many times method was invoked
func (m *MockStub) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// enter records method and pops its next queued error. The caller must hold mu.
func (m *MockStub) enter(ctx context.Context, method string) error {
	m.Calls = append(m.Calls, method)
	if err := ctx.Err(); err != nil {
		return err
	}
	if errs := m.Errors[method]; len(errs) > 0 {
		m.Errors[method] = errs[1:]
		return errs[0]
	}
	return nil
}

// startOperation registers an operation completed later by complete. The
// caller must hold mu.
func (m *MockStub) startOperation(kind string, complete func() (any, *status.Status)) *lro.Operation {
	m.nextOp++
	name := fmt.Sprintf("operations/%s-%d", strings.ToLower(kind), m.nextOp)
	if s, ok := m.FailOperation[kind]; ok {
		complete = func() (any, *status.Status) { return nil, &s }
	}
	p := &pendingOperation{
		op:        &lro.Operation{Name: name},
		pollsLeft: m.PollsUntilDone,
		complete:  complete,
	}
	m.operations[name] = p
	if p.pollsLeft <= 0 {
		m.finish(p)
	}
	out := *p.op
	return &out
}

func (m *MockStub) finish(p *pendingOperation) {
	result, failure := p.complete()
	p.op.Done = true
	if failure != nil {
		p.op.Error = failure
		return
	}
	// Marshal cannot fail for the stub's own types
	p.op.Response, _ = json.Marshal(result)
}

func notFound(name string) error {
	return status.Newf(codes.NotFound, "%s not found", name).Err()
}

func alreadyExists(name string) error {
	return status.Newf(codes.AlreadyExists, "%s already exists", name).Err()
}

// CreateInstance implements Stub
func (m *MockStub) CreateInstance(ctx context.Context, req *CreateInstanceRequest) (*lro.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "CreateInstance"); err != nil {
		return nil, err
	}

	name := req.Parent + "/instances/" + req.InstanceID
	if _, ok := m.instances[name]; ok {
		return nil, alreadyExists(name)
	}
	instance := req.Instance.DeepCopy()
	instance.Name = name
	instance.State = StateCreating
	m.instances[name] = instance

	clusters := make([]*Cluster, 0, len(req.Clusters))
	for id, c := range req.Clusters {
		cluster := *c
		cluster.Name = name + "/clusters/" + id
		cluster.State = StateCreating
		m.clusters[cluster.Name] = &cluster
		clusters = append(clusters, &cluster)
	}

	return m.startOperation("CreateInstance", func() (any, *status.Status) {
		instance.State = StateReady
		for _, c := range clusters {
			c.State = StateReady
		}
		return instance.DeepCopy(), nil
	}), nil
}

// UpdateInstance implements Stub
func (m *MockStub) UpdateInstance(ctx context.Context, req *UpdateInstanceRequest) (*lro.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "UpdateInstance"); err != nil {
		return nil, err
	}

	current, ok := m.instances[req.Instance.Name]
	if !ok {
		return nil, notFound(req.Instance.Name)
	}
	for _, field := range req.UpdateMask {
		switch field {
		case FieldDisplayName:
			current.DisplayName = req.Instance.DisplayName
		case FieldType:
			current.Type = req.Instance.Type
		case FieldLabels:
			current.Labels = req.Instance.DeepCopy().Labels
		default:
			return nil, status.Newf(codes.InvalidArgument, "unknown field %q in update mask", field).Err()
		}
	}

	return m.startOperation("UpdateInstance", func() (any, *status.Status) {
		return current.DeepCopy(), nil
	}), nil
}

// GetInstance implements Stub
func (m *MockStub) GetInstance(ctx context.Context, name string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "GetInstance"); err != nil {
		return nil, err
	}
	instance, ok := m.instances[name]
	if !ok {
		return nil, notFound(name)
	}
	return instance.DeepCopy(), nil
}

// ListInstances implements Stub
func (m *MockStub) ListInstances(ctx context.Context, req *ListInstancesRequest) (*ListInstancesResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "ListInstances"); err != nil {
		return nil, err
	}

	var names []string
	for name := range m.instances {
		if strings.HasPrefix(name, req.Parent+"/instances/") {
			names = append(names, name)
		}
	}
	page, next := m.page(names, req.PageToken)

	resp := &ListInstancesResponse{NextPageToken: next}
	for _, name := range page {
		resp.Instances = append(resp.Instances, m.instances[name].DeepCopy())
	}
	return resp, nil
}

// DeleteInstance implements Stub
func (m *MockStub) DeleteInstance(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "DeleteInstance"); err != nil {
		return err
	}
	if _, ok := m.instances[name]; !ok {
		return notFound(name)
	}
	delete(m.instances, name)
	for cname := range m.clusters {
		if strings.HasPrefix(cname, name+"/clusters/") {
			delete(m.clusters, cname)
		}
	}
	return nil
}

// CreateCluster implements Stub
func (m *MockStub) CreateCluster(ctx context.Context, req *CreateClusterRequest) (*lro.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "CreateCluster"); err != nil {
		return nil, err
	}

	if _, ok := m.instances[req.Parent]; !ok {
		return nil, notFound(req.Parent)
	}
	name := req.Parent + "/clusters/" + req.ClusterID
	if _, ok := m.clusters[name]; ok {
		return nil, alreadyExists(name)
	}
	cluster := *req.Cluster
	cluster.Name = name
	cluster.State = StateCreating
	m.clusters[name] = &cluster

	return m.startOperation("CreateCluster", func() (any, *status.Status) {
		cluster.State = StateReady
		out := cluster
		return &out, nil
	}), nil
}

// UpdateCluster implements Stub
func (m *MockStub) UpdateCluster(ctx context.Context, cluster *Cluster) (*lro.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "UpdateCluster"); err != nil {
		return nil, err
	}

	current, ok := m.clusters[cluster.Name]
	if !ok {
		return nil, notFound(cluster.Name)
	}
	current.ServeNodes = cluster.ServeNodes

	return m.startOperation("UpdateCluster", func() (any, *status.Status) {
		out := *current
		return &out, nil
	}), nil
}

// GetCluster implements Stub
func (m *MockStub) GetCluster(ctx context.Context, name string) (*Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "GetCluster"); err != nil {
		return nil, err
	}
	cluster, ok := m.clusters[name]
	if !ok {
		return nil, notFound(name)
	}
	out := *cluster
	return &out, nil
}

// ListClusters implements Stub. A parent ending in "/instances/-" lists the
// clusters of every instance.
func (m *MockStub) ListClusters(ctx context.Context, req *ListClustersRequest) (*ListClustersResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "ListClusters"); err != nil {
		return nil, err
	}

	prefix := req.Parent + "/clusters/"
	if strings.HasSuffix(req.Parent, "/instances/"+AllInstances) {
		prefix = strings.TrimSuffix(req.Parent, AllInstances)
	}
	var names []string
	for name := range m.clusters {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	page, next := m.page(names, req.PageToken)

	resp := &ListClustersResponse{NextPageToken: next}
	for _, name := range page {
		c := *m.clusters[name]
		resp.Clusters = append(resp.Clusters, &c)
	}
	return resp, nil
}

// DeleteCluster implements Stub
func (m *MockStub) DeleteCluster(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "DeleteCluster"); err != nil {
		return err
	}
	if _, ok := m.clusters[name]; !ok {
		return notFound(name)
	}
	delete(m.clusters, name)
	return nil
}

// GetOperation implements Stub
func (m *MockStub) GetOperation(ctx context.Context, name string) (*lro.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "GetOperation"); err != nil {
		return nil, err
	}

	p, ok := m.operations[name]
	if !ok {
		return nil, notFound(name)
	}
	if !p.op.Done {
		p.pollsLeft--
		if p.pollsLeft <= 0 {
			m.finish(p)
		}
	}
	out := *p.op
	return &out, nil
}

// GetIamPolicy implements Stub
func (m *MockStub) GetIamPolicy(ctx context.Context, resource string) (*iam.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "GetIamPolicy"); err != nil {
		return nil, err
	}
	if _, ok := m.instances[resource]; !ok {
		return nil, notFound(resource)
	}
	return m.policy(resource), nil
}

// SetIamPolicy implements Stub. A non-empty etag must match the stored one.
func (m *MockStub) SetIamPolicy(ctx context.Context, resource string, policy *iam.Policy) (*iam.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "SetIamPolicy"); err != nil {
		return nil, err
	}
	if _, ok := m.instances[resource]; !ok {
		return nil, notFound(resource)
	}

	current := m.policy(resource)
	if policy.Etag != "" && policy.Etag != current.Etag {
		return nil, status.Newf(codes.Aborted, "etag mismatch for %s", resource).Err()
	}
	bindings := iam.NewBindings(policy.Bindings.List()...)
	stored := &iam.Policy{
		Version:  current.Version + 1,
		Etag:     fmt.Sprintf("etag-%d", current.Version+1),
		Bindings: bindings,
	}
	m.policies[resource] = stored
	return m.policy(resource), nil
}

// TestIamPermissions implements Stub
func (m *MockStub) TestIamPermissions(ctx context.Context, resource string, permissions []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, "TestIamPermissions"); err != nil {
		return nil, err
	}
	if _, ok := m.instances[resource]; !ok {
		return nil, notFound(resource)
	}
	var held []string
	for _, p := range permissions {
		if slices.Contains(m.Permissions, p) {
			held = append(held, p)
		}
	}
	return held, nil
}

// policy returns a copy of the stored policy, creating an empty one first
func (m *MockStub) policy(resource string) *iam.Policy {
	p, ok := m.policies[resource]
	if !ok {
		p = &iam.Policy{Etag: "etag-0", Bindings: iam.Bindings{}}
		m.policies[resource] = p
	}
	return &iam.Policy{
		Version:  p.Version,
		Etag:     p.Etag,
		Bindings: iam.NewBindings(p.Bindings.List()...),
	}
}

// page returns the sorted page of names starting at token
func (m *MockStub) page(names []string, token string) ([]string, string) {
	slices.Sort(names)
	start := 0
	if token != "" {
		start, _ = slices.BinarySearch(names, token)
	}
	names = names[start:]
	if m.PageSize <= 0 || len(names) <= m.PageSize {
		return names, ""
	}
	return names[:m.PageSize], names[m.PageSize]
}
