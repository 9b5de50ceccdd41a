package omni

import (
	"context"
	"net/http"
	"strconv"

	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/scim"
)

const bulkResource = "Bulk"

// Bulk sends one SCIM bulk request.
func (c *Client) Bulk(ctx context.Context, req scim.BulkRequest) (*scim.BulkResponse, error) {
	if len(req.Operations) == 0 {
		return nil, &errors.ValidationError{Field: "Operations", Message: "at least one operation is required"}
	}
	if len(req.Operations) > constants.MaxBulkOperations {
		return nil, &errors.ValidationError{
			Field:   "Operations",
			Value:   len(req.Operations),
			Message: "exceeds " + strconv.Itoa(constants.MaxBulkOperations) + " operations",
		}
	}
	if len(req.Schemas) == 0 {
		req.Schemas = []string{scim.SchemaBulkRequest}
	}

	var resp scim.BulkResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, bulkResource), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BulkCreateUsers creates users through the bulk endpoint, splitting into
// as many requests as needed. Each operation's bulkId is the userName.
func (c *Client) BulkCreateUsers(ctx context.Context, users []scim.User) (*scim.BulkResponse, error) {
	ops := make([]scim.BulkOperation, 0, len(users))
	for i, u := range users {
		if u.UserName == "" {
			return nil, &errors.ValidationError{
				Field:   "userName",
				Value:   i,
				Message: "user at index " + strconv.Itoa(i) + " has no userName",
			}
		}
		body := withUserSchemas(u)
		body.ID = ""
		body.Meta = nil
		ops = append(ops, scim.BulkOperation{
			Method: http.MethodPost,
			BulkID: u.UserName,
			Path:   "/" + usersResource,
			Data:   body,
		})
	}
	return c.bulkChunked(ctx, ops)
}

// BulkUpdateUsers replaces users through the bulk endpoint. Every user needs an id.
func (c *Client) BulkUpdateUsers(ctx context.Context, users []scim.User) (*scim.BulkResponse, error) {
	ops := make([]scim.BulkOperation, 0, len(users))
	for i, u := range users {
		if u.ID == "" {
			return nil, &errors.ValidationError{
				Field:   "id",
				Value:   i,
				Message: "user at index " + strconv.Itoa(i) + " has no id",
			}
		}
		body := withUserSchemas(u)
		body.Meta = nil
		ops = append(ops, scim.BulkOperation{
			Method: http.MethodPut,
			BulkID: u.ID,
			Path:   "/" + usersResource + "/" + u.ID,
			Data:   body,
		})
	}
	return c.bulkChunked(ctx, ops)
}

func (c *Client) bulkChunked(ctx context.Context, ops []scim.BulkOperation) (*scim.BulkResponse, error) {
	if len(ops) == 0 {
		return nil, &errors.ValidationError{Field: "users", Message: "no users to send"}
	}

	merged := &scim.BulkResponse{Schemas: []string{scim.SchemaBulkResponse}}
	for start := 0; start < len(ops); start += constants.MaxBulkOperations {
		end := min(start+constants.MaxBulkOperations, len(ops))

		resp, err := c.Bulk(ctx, scim.NewBulkRequest(ops[start:end]...))
		if err != nil {
			return merged, err
		}
		merged.Operations = append(merged.Operations, resp.Operations...)
	}
	return merged, nil
}
