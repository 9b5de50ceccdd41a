package omni

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/scim"
)

const usersResource = "Users"

// ListUsers returns every user in the instance.
func (c *Client) ListUsers(ctx context.Context) ([]scim.User, error) {
	return listAll[scim.User](ctx, c, usersResource, "")
}

// GetUser returns the user with the given id.
func (c *Client) GetUser(ctx context.Context, id string) (*scim.User, error) {
	var user scim.User
	if err := c.get(ctx, usersResource, id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByUserName looks a user up by userName. It returns nil, nil when no user matches.
func (c *Client) FindUserByUserName(ctx context.Context, userName string) (*scim.User, error) {
	if userName == "" {
		return nil, &errors.ValidationError{Field: "userName", Message: "cannot be empty"}
	}

	query := url.Values{}
	query.Set("filter", scim.Filter("userName", "eq", userName))
	query.Set("count", "1")

	var page scim.ListResponse[scim.User]
	if err := c.do(ctx, http.MethodGet, c.endpoint(query, usersResource), nil, &page); err != nil {
		return nil, err
	}

	for i := range page.Resources {
		if strings.EqualFold(page.Resources[i].UserName, userName) {
			return &page.Resources[i], nil
		}
	}
	return nil, nil
}

// SearchUsers returns users whose userName or displayName contains query.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]scim.User, error) {
	filter := scim.Filter("userName", "co", query) + " or " + scim.Filter("displayName", "co", query)
	return listAll[scim.User](ctx, c, usersResource, filter)
}

// CreateUser creates a user and returns it as stored by Omni.
func (c *Client) CreateUser(ctx context.Context, user *scim.User) (*scim.User, error) {
	if user == nil || user.UserName == "" {
		return nil, &errors.ValidationError{Field: "userName", Message: "cannot be empty"}
	}

	body := withUserSchemas(*user)
	body.ID = ""
	body.Meta = nil

	var created scim.User
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, usersResource), body, &created); err != nil {
		return nil, errors.WrapResource("create", "user", user.UserName, err)
	}
	return &created, nil
}

// ReplaceUser overwrites the user with the given id.
func (c *Client) ReplaceUser(ctx context.Context, id string, user *scim.User) (*scim.User, error) {
	if id == "" {
		return nil, &errors.ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if user == nil {
		return nil, &errors.ValidationError{Field: "user", Message: "cannot be nil"}
	}

	body := withUserSchemas(*user)
	body.ID = id
	body.Meta = nil

	var replaced scim.User
	if err := c.do(ctx, http.MethodPut, c.endpoint(nil, usersResource, id), body, &replaced); err != nil {
		return nil, errors.WrapResource("replace", "user", id, err)
	}
	return &replaced, nil
}

// PatchUser applies SCIM patch operations to a user. The returned user is nil
// when Omni answers 204 No Content.
func (c *Client) PatchUser(ctx context.Context, id string, ops ...scim.PatchOperation) (*scim.User, error) {
	if id == "" {
		return nil, &errors.ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if len(ops) == 0 {
		return nil, &errors.ValidationError{Field: "Operations", Message: "at least one operation is required"}
	}

	var patched scim.User
	if err := c.do(ctx, http.MethodPatch, c.endpoint(nil, usersResource, id), scim.NewPatch(ops...), &patched); err != nil {
		return nil, errors.WrapResource("patch", "user", id, err)
	}
	if patched.ID == "" {
		return nil, nil
	}
	return &patched, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return &errors.ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if err := c.do(ctx, http.MethodDelete, c.endpoint(nil, usersResource, id), nil, nil); err != nil {
		return errors.WrapResource("delete", "user", id, err)
	}
	return nil
}

// GetUserAttributes returns the custom attributes of a user. The map is never nil.
func (c *Client) GetUserAttributes(ctx context.Context, id string) (scim.Attributes, error) {
	user, err := c.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Attributes == nil {
		return scim.Attributes{}, nil
	}
	return user.Attributes, nil
}

// SetUserAttributes writes the given attributes. Keys with a nil value are
// removed; keys not present in attrs are left as they are.
func (c *Client) SetUserAttributes(ctx context.Context, id string, attrs scim.Attributes) error {
	if len(attrs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := scim.Attributes{}
	var ops []scim.PatchOperation
	for _, k := range keys {
		if attrs[k] == nil {
			ops = append(ops, scim.PatchOperation{
				Op:   "remove",
				Path: scim.SchemaUserAttribute + ":" + k,
			})
			continue
		}
		set[k] = attrs[k]
	}
	if len(set) > 0 {
		ops = append([]scim.PatchOperation{{
			Op:    "replace",
			Path:  scim.SchemaUserAttribute,
			Value: map[string]any(set),
		}}, ops...)
	}

	_, err := c.PatchUser(ctx, id, ops...)
	return err
}

func withUserSchemas(user scim.User) scim.User {
	if len(user.Schemas) > 0 {
		return user
	}
	user.Schemas = []string{scim.SchemaUser}
	if len(user.Attributes) > 0 {
		user.Schemas = append(user.Schemas, scim.SchemaUserAttribute)
	}
	return user
}
