package instanceadmin

import (
	"maps"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/patch"
)

// InstanceType selects the serving tier of an instance
type InstanceType string

const (
	InstanceTypeUnspecified InstanceType = ""
	InstanceTypeProduction  InstanceType = "PRODUCTION"
	InstanceTypeDevelopment InstanceType = "DEVELOPMENT"
)

// StorageType is the disk type backing a cluster
type StorageType string

const (
	StorageTypeUnspecified StorageType = ""
	StorageTypeSSD         StorageType = "SSD"
	StorageTypeHDD         StorageType = "HDD"
)

// State is the lifecycle state reported by the server
type State string

const (
	StateNotKnown State = "STATE_NOT_KNOWN"
	StateReady    State = "READY"
	StateCreating State = "CREATING"
)

// Field names used in update masks
const (
	FieldDisplayName = "displayName"
	FieldType        = "type"
	FieldLabels      = "labels"
	FieldServeNodes  = "serveNodes"
)

// Instance is a named container of clusters.
type Instance struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName,omitempty"`
	State       State             `json:"state,omitempty"`
	Type        InstanceType      `json:"type,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// DeepCopy returns a copy of i that shares no maps with it
func (i *Instance) DeepCopy() *Instance {
	if i == nil {
		return nil
	}
	out := *i
	out.Labels = maps.Clone(i.Labels)
	return &out
}

// Cluster is a group of serving nodes in one location.
type Cluster struct {
	Name               string      `json:"name"`
	Location           string      `json:"location,omitempty"`
	State              State       `json:"state,omitempty"`
	ServeNodes         int32       `json:"serveNodes,omitempty"`
	DefaultStorageType StorageType `json:"defaultStorageType,omitempty"`
}

// InstanceConfig describes an instance to create. Cluster locations are
// zone names; the client qualifies them with the project.
type InstanceConfig struct {
	InstanceID  string                   `json:"instanceId" validate:"required,resourceid"`
	DisplayName string                   `json:"displayName" validate:"required,max=30"`
	Type        InstanceType             `json:"type,omitempty" validate:"omitempty,oneof=PRODUCTION DEVELOPMENT"`
	Labels      map[string]string        `json:"labels,omitempty"`
	Clusters    map[string]ClusterConfig `json:"clusters" validate:"required,min=1,dive,keys,resourceid,endkeys"`
}

// ClusterConfig describes a cluster to create.
type ClusterConfig struct {
	Location    string      `json:"location" validate:"required"`
	ServeNodes  int32       `json:"serveNodes" validate:"gte=0"`
	StorageType StorageType `json:"storageType,omitempty" validate:"omitempty,oneof=SSD HDD"`
}

// CreateInstanceRequest is sent to Stub.CreateInstance
type CreateInstanceRequest struct {
	Parent     string              `json:"parent"`
	InstanceID string              `json:"instanceId"`
	Instance   *Instance           `json:"instance"`
	Clusters   map[string]*Cluster `json:"clusters"`
}

// UpdateInstanceRequest is sent to Stub.UpdateInstance. Only the fields named
// in UpdateMask are changed.
type UpdateInstanceRequest struct {
	Instance   *Instance `json:"instance"`
	UpdateMask []string  `json:"updateMask"`
}

// CreateClusterRequest is sent to Stub.CreateCluster
type CreateClusterRequest struct {
	Parent    string   `json:"parent"`
	ClusterID string   `json:"clusterId"`
	Cluster   *Cluster `json:"cluster"`
}

// ListInstancesRequest is sent to Stub.ListInstances
type ListInstancesRequest struct {
	Parent    string `json:"parent"`
	PageToken string `json:"pageToken,omitempty"`
}

// ListInstancesResponse is one page of instances. FailedLocations names
// locations whose instances could not be listed.
type ListInstancesResponse struct {
	Instances       []*Instance `json:"instances"`
	FailedLocations []string    `json:"failedLocations,omitempty"`
	NextPageToken   string      `json:"nextPageToken,omitempty"`
}

// ListClustersRequest is sent to Stub.ListClusters
type ListClustersRequest struct {
	Parent    string `json:"parent"`
	PageToken string `json:"pageToken,omitempty"`
}

// ListClustersResponse is one page of clusters.
type ListClustersResponse struct {
	Clusters        []*Cluster `json:"clusters"`
	FailedLocations []string   `json:"failedLocations,omitempty"`
	NextPageToken   string     `json:"nextPageToken,omitempty"`
}

// InstanceList is the result of listing every page of instances.
type InstanceList struct {
	Instances       []*Instance
	FailedLocations []string
}

// ClusterList is the result of listing every page of clusters.
type ClusterList struct {
	Clusters        []*Cluster
	FailedLocations []string
}

// DiffInstance returns the patch turning original into updated. Its fields
// form the update mask for UpdateInstance.
func DiffInstance(original, updated *Instance) *patch.Document {
	d := patch.New()
	patch.DiffString(d, FieldDisplayName, original.DisplayName, updated.DisplayName)
	patch.DiffString(d, FieldType, string(original.Type), string(updated.Type))
	patch.DiffMap(d, FieldLabels, original.Labels, updated.Labels)
	return d
}
