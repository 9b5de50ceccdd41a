// Package scim defines the SCIM 2.0 resources exchanged with the Omni API and
// read from SCIM-formatted identity sources.
package scim

import (
	"encoding/json"
	"strings"
	"time"
)

// Schema URNs used by the Omni SCIM API.
const (
	SchemaUser          = "urn:ietf:params:scim:schemas:core:2.0:User"
	SchemaGroup         = "urn:ietf:params:scim:schemas:core:2.0:Group"
	SchemaListResponse  = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	SchemaPatchOp       = "urn:ietf:params:scim:api:messages:2.0:PatchOp"
	SchemaBulkRequest   = "urn:ietf:params:scim:api:messages:2.0:BulkRequest"
	SchemaBulkResponse  = "urn:ietf:params:scim:api:messages:2.0:BulkResponse"
	SchemaError         = "urn:ietf:params:scim:api:messages:2.0:Error"
	SchemaUserAttribute = "urn:omni:params:1.0:UserAttribute"
)

// Attributes holds custom user attributes. A nil value clears the attribute.
type Attributes map[string]any

// Clone returns a shallow copy of the attribute map.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Meta is the SCIM resource metadata.
type Meta struct {
	ResourceType string     `json:"resourceType,omitempty" yaml:"resourceType,omitempty"`
	Created      *time.Time `json:"created,omitempty" yaml:"created,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty" yaml:"lastModified,omitempty"`
	Version      string     `json:"version,omitempty" yaml:"version,omitempty"`
	Location     string     `json:"location,omitempty" yaml:"location,omitempty"`
}

// Name is the structured SCIM user name.
type Name struct {
	Formatted  string `json:"formatted,omitempty" yaml:"formatted,omitempty"`
	GivenName  string `json:"givenName,omitempty" yaml:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty" yaml:"familyName,omitempty"`
}

// Email is a multi-valued SCIM email entry.
type Email struct {
	Value   string `json:"value" yaml:"value"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Primary bool   `json:"primary,omitempty" yaml:"primary,omitempty"`
}

// Reference points at another resource: a group from a user, or a member from a group.
type Reference struct {
	Value   string `json:"value" yaml:"value"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
	Ref     string `json:"$ref,omitempty" yaml:"$ref,omitempty"`
}

// User is a SCIM 2.0 user with the Omni user-attribute extension.
type User struct {
	Schemas     []string    `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	ID          string      `json:"id,omitempty" yaml:"id,omitempty"`
	ExternalID  string      `json:"externalId,omitempty" yaml:"externalId,omitempty"`
	UserName    string      `json:"userName" yaml:"userName"`
	DisplayName string      `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Name        *Name       `json:"name,omitempty" yaml:"name,omitempty"`
	Emails      []Email     `json:"emails,omitempty" yaml:"emails,omitempty"`
	Active      *bool       `json:"active,omitempty" yaml:"active,omitempty"`
	Groups      []Reference `json:"groups,omitempty" yaml:"groups,omitempty"`
	Attributes  Attributes  `json:"-" yaml:"attributes,omitempty"`
	Meta        *Meta       `json:"meta,omitempty" yaml:"meta,omitempty"`
}

type userAlias User

// MarshalJSON writes the attribute map under the Omni extension URN.
func (u User) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(userAlias(u))
	if err != nil {
		return nil, err
	}
	if u.Attributes == nil {
		return base, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	ext, err := json.Marshal(u.Attributes)
	if err != nil {
		return nil, err
	}
	fields[SchemaUserAttribute] = ext
	return json.Marshal(fields)
}

// UnmarshalJSON reads the attribute map from the Omni extension URN.
func (u *User) UnmarshalJSON(data []byte) error {
	var alias userAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields[SchemaUserAttribute]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &alias.Attributes); err != nil {
			return err
		}
	}

	*u = User(alias)
	return nil
}

// PrimaryEmail returns the primary email, or the first one when none is flagged.
func (u *User) PrimaryEmail() string {
	for _, e := range u.Emails {
		if e.Primary {
			return e.Value
		}
	}
	if len(u.Emails) > 0 {
		return u.Emails[0].Value
	}
	return ""
}

// IsActive reports the active flag; an unset flag counts as active.
func (u *User) IsActive() bool {
	return u.Active == nil || *u.Active
}

// GroupIDs returns the values of the user's group references.
func (u *User) GroupIDs() []string {
	ids := make([]string, 0, len(u.Groups))
	for _, g := range u.Groups {
		if g.Value != "" {
			ids = append(ids, g.Value)
		}
	}
	return ids
}

// Group is a SCIM 2.0 group.
type Group struct {
	Schemas     []string    `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	ID          string      `json:"id,omitempty" yaml:"id,omitempty"`
	DisplayName string      `json:"displayName" yaml:"displayName"`
	Members     []Reference `json:"members,omitempty" yaml:"members,omitempty"`
	Meta        *Meta       `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// HasMember reports whether the group lists the given user id.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m.Value == userID {
			return true
		}
	}
	return false
}

// ListResponse is a page of resources from a SCIM list or search endpoint.
type ListResponse[T any] struct {
	Schemas      []string `json:"schemas,omitempty"`
	TotalResults int      `json:"totalResults"`
	StartIndex   int      `json:"startIndex,omitempty"`
	ItemsPerPage int      `json:"itemsPerPage,omitempty"`
	Resources    []T      `json:"Resources"`
}

// NewListResponse wraps a complete result set in a single-page list response.
func NewListResponse[T any](resources []T) ListResponse[T] {
	if resources == nil {
		resources = []T{}
	}
	return ListResponse[T]{
		Schemas:      []string{SchemaListResponse},
		TotalResults: len(resources),
		StartIndex:   1,
		ItemsPerPage: len(resources),
		Resources:    resources,
	}
}

// PatchOperation is one operation of a SCIM PATCH request.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path,omitempty"`
	Value any    `json:"value,omitempty"`
}

// PatchRequest is a SCIM PATCH request body.
type PatchRequest struct {
	Schemas    []string         `json:"schemas"`
	Operations []PatchOperation `json:"Operations"`
}

// NewPatch builds a PatchRequest from the given operations.
func NewPatch(ops ...PatchOperation) PatchRequest {
	return PatchRequest{
		Schemas:    []string{SchemaPatchOp},
		Operations: ops,
	}
}

// Error is the SCIM error response body.
type Error struct {
	Schemas  []string `json:"schemas,omitempty"`
	Status   string   `json:"status,omitempty"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

// Filter quotes a value for use in a SCIM filter expression.
func Filter(attribute, operator, value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return attribute + " " + operator + ` "` + escaped + `"`
}
