// Package iam models access policies as role to member-set bindings.
package iam

import (
	"encoding/json"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Policy is an IAM policy attached to a resource. Etag must be sent back
// unchanged on update so concurrent edits are detected.
type Policy struct {
	Version  int      `json:"version,omitempty"`
	Etag     string   `json:"etag,omitempty"`
	Bindings Bindings `json:"bindings,omitempty"`
}

// Binding grants Role to each of Members
type Binding struct {
	Role    string   `json:"role"`
	Members []string `json:"members"`
}

// Bindings maps a role to the set of members holding it. Roles never map to
// an empty set.
type Bindings map[string]sets.Set[string]

// NewBindings builds Bindings from a list, merging repeated roles.
func NewBindings(bs ...Binding) Bindings {
	out := Bindings{}
	for _, b := range bs {
		out.AddMembers(b.Role, b.Members...)
	}
	return out
}

// AddMember grants role to member
func (b Bindings) AddMember(role, member string) {
	b.AddMembers(role, member)
}

// AddMembers grants role to every member
func (b Bindings) AddMembers(role string, members ...string) {
	if len(members) == 0 {
		return
	}
	set, ok := b[role]
	if !ok {
		set = sets.New[string]()
		b[role] = set
	}
	set.Insert(members...)
}

// RemoveMember revokes role from member
func (b Bindings) RemoveMember(role, member string) {
	b.RemoveMembers(role, member)
}

// RemoveMembers revokes role from every member. The role is dropped once no
// members remain.
func (b Bindings) RemoveMembers(role string, members ...string) {
	set, ok := b[role]
	if !ok {
		return
	}
	set.Delete(members...)
	if set.Len() == 0 {
		delete(b, role)
	}
}

// HasMember reports whether member holds role
func (b Bindings) HasMember(role, member string) bool {
	return b[role].Has(member)
}

// Members returns the sorted members holding role
func (b Bindings) Members(role string) []string {
	set, ok := b[role]
	if !ok {
		return nil
	}
	return sets.List(set)
}

// Roles returns the sorted list of bound roles
func (b Bindings) Roles() []string {
	return sets.List(sets.KeySet(b))
}

// List returns the bindings ordered by role with sorted members
func (b Bindings) List() []Binding {
	out := make([]Binding, 0, len(b))
	for _, role := range b.Roles() {
		out = append(out, Binding{Role: role, Members: sets.List(b[role])})
	}
	return out
}

// MarshalJSON encodes the bindings as a list of {role, members} objects.
func (b Bindings) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.List())
}

// UnmarshalJSON decodes a list of {role, members} objects.
func (b *Bindings) UnmarshalJSON(data []byte) error {
	var list []Binding
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*b = NewBindings(list...)
	return nil
}
