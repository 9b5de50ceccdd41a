package scim

import "encoding/json"

// BulkOperation is one operation of a SCIM bulk request.
type BulkOperation struct {
	Method  string `json:"method"`
	BulkID  string `json:"bulkId,omitempty"`
	Path    string `json:"path"`
	Version string `json:"version,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// BulkRequest is the body sent to the /Bulk endpoint.
type BulkRequest struct {
	Schemas      []string        `json:"schemas"`
	FailOnErrors int             `json:"failOnErrors,omitempty"`
	Operations   []BulkOperation `json:"Operations"`
}

// NewBulkRequest builds a BulkRequest from the given operations.
func NewBulkRequest(ops ...BulkOperation) BulkRequest {
	return BulkRequest{
		Schemas:    []string{SchemaBulkRequest},
		Operations: ops,
	}
}

// BulkOperationResult is the per-operation outcome of a bulk request.
type BulkOperationResult struct {
	Method   string          `json:"method"`
	BulkID   string          `json:"bulkId,omitempty"`
	Location string          `json:"location,omitempty"`
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Succeeded reports whether the operation returned a 2xx status.
func (r BulkOperationResult) Succeeded() bool {
	return len(r.Status) == 3 && r.Status[0] == '2'
}

// BulkResponse is the body returned by the /Bulk endpoint.
type BulkResponse struct {
	Schemas    []string              `json:"schemas,omitempty"`
	Operations []BulkOperationResult `json:"Operations"`
}

// Failed returns the operations that did not succeed.
func (r *BulkResponse) Failed() []BulkOperationResult {
	var failed []BulkOperationResult
	for _, op := range r.Operations {
		if !op.Succeeded() {
			failed = append(failed, op)
		}
	}
	return failed
}
