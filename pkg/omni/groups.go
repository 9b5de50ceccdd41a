package omni

import (
	"context"
	"net/http"

	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/scim"
)

const groupsResource = "Groups"

// ListGroups returns every group in the instance.
func (c *Client) ListGroups(ctx context.Context) ([]scim.Group, error) {
	return listAll[scim.Group](ctx, c, groupsResource, "")
}

// GetGroup returns the group with the given id.
func (c *Client) GetGroup(ctx context.Context, id string) (*scim.Group, error) {
	var group scim.Group
	if err := c.get(ctx, groupsResource, id, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// SearchGroups returns groups whose displayName contains query.
func (c *Client) SearchGroups(ctx context.Context, query string) ([]scim.Group, error) {
	return listAll[scim.Group](ctx, c, groupsResource, scim.Filter("displayName", "co", query))
}

// GroupMembers returns the member references of a group.
func (c *Client) GroupMembers(ctx context.Context, id string) ([]scim.Reference, error) {
	group, err := c.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	return group.Members, nil
}

// PatchGroupMembers adds and removes members in a single PATCH request.
// Nothing is sent when both lists are empty.
func (c *Client) PatchGroupMembers(ctx context.Context, id string, add, remove []string) error {
	if id == "" {
		return &errors.ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	ops := make([]scim.PatchOperation, 0, len(remove)+1)
	if len(add) > 0 {
		members := make([]scim.Reference, 0, len(add))
		for _, userID := range add {
			members = append(members, scim.Reference{Value: userID})
		}
		ops = append(ops, scim.PatchOperation{Op: "add", Path: "members", Value: members})
	}
	for _, userID := range remove {
		ops = append(ops, scim.PatchOperation{
			Op:   "remove",
			Path: "members[" + scim.Filter("value", "eq", userID) + "]",
		})
	}

	if err := c.do(ctx, http.MethodPatch, c.endpoint(nil, groupsResource, id), scim.NewPatch(ops...), nil); err != nil {
		return errors.WrapResource("patch", "group", id, err)
	}
	return nil
}

// ReplaceGroup overwrites a group, including its full member list.
func (c *Client) ReplaceGroup(ctx context.Context, group *scim.Group) (*scim.Group, error) {
	if group == nil || group.ID == "" {
		return nil, &errors.ValidationError{Field: "id", Message: "cannot be empty"}
	}

	body := *group
	if len(body.Schemas) == 0 {
		body.Schemas = []string{scim.SchemaGroup}
	}
	body.Meta = nil

	var replaced scim.Group
	if err := c.do(ctx, http.MethodPut, c.endpoint(nil, groupsResource, group.ID), body, &replaced); err != nil {
		return nil, errors.WrapResource("replace", "group", group.ID, err)
	}
	return &replaced, nil
}
