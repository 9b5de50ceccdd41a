// Package transport provides the authenticated JSON-over-HTTP layer used by the Omni client.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/scim"
)

// ContentType is the media type of SCIM request and response bodies.
const ContentType = "application/scim+json"

// Client provides HTTP client functionality with authentication.
type Client struct {
	http *http.Client
	auth Authenticator
}

// New creates a new transport client with the specified authenticator.
// A nil httpClient gets the default timeout.
func New(auth Authenticator, httpClient *http.Client) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	return &Client{
		http: httpClient,
		auth: auth,
	}
}

// Do performs an HTTP request with authentication and SCIM headers applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.auth.Apply(req)

	req.Header.Set("Accept", ContentType+", application/json")
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", ContentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, errors.Join(errors.ErrCanceled, ctxErr)
		}
		return nil, errors.WrapResource(strings.ToLower(req.Method), "request", req.URL.Redacted(), err)
	}
	return resp, nil
}

// DoJSON sends body (if non-nil) as JSON and decodes a successful response into target (if non-nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, body, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.WrapParse("json", "request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.WrapResource("create", "request", method+" "+url, err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, target)
}

// DecodeResponse decodes a JSON response into target. Any non-2xx status becomes
// an *errors.APIError carrying the SCIM error detail when the body has one; a
// 401 or 403 is additionally wrapped in an *errors.AuthenticationError.
func DecodeResponse(resp *http.Response, target any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &errors.APIError{
			Provider:   constants.ProviderName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp, body),
		}
		if resp.Request != nil && resp.Request.URL != nil {
			apiErr.Endpoint = resp.Request.Method + " " + resp.Request.URL.Path
		}
		if errors.IsAuthStatus(resp.StatusCode) {
			return &errors.AuthenticationError{
				Provider: constants.ProviderName,
				Method:   "bearer",
				Message:  apiErr.Message,
				Err:      apiErr,
			}
		}
		return apiErr
	}

	if target == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

func errorMessage(resp *http.Response, body []byte) string {
	var scimErr scim.Error
	if err := json.Unmarshal(body, &scimErr); err == nil && scimErr.Detail != "" {
		return scimErr.Detail
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}
