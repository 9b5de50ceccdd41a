// Package omni is a client for the Omni identity platform's SCIM 2.0 API.
//
// All calls go to {baseURL}/api/scim/v2 and authenticate with the API key as a
// bearer token. Non-2xx responses are returned as *errors.APIError; a 404 on a
// single-resource read is returned as *errors.NotFoundError.
package omni

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/omnisync/internal/transport"
	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/logging"
	"github.com/agentstation/omnisync/pkg/scim"
)

// Client talks to one Omni instance.
type Client struct {
	baseURL   string
	transport *transport.Client
	pageSize  int
	logger    *zerolog.Logger
}

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	pageSize   int
	logger     *zerolog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the underlying HTTP client. It takes precedence over WithTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithPageSize sets the page size used when listing resources.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a client for the Omni instance at baseURL.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" || apiKey == "" {
		return nil, errors.NewConfigError("omni",
			constants.EnvBaseURL+" and "+constants.EnvAPIKey+" must be set",
			errors.ErrAPIKeyRequired)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &errors.ValidationError{
			Field:   "base_url",
			Value:   baseURL,
			Message: "must be an absolute http(s) URL",
		}
	}

	o := &options{
		timeout:  constants.DefaultHTTPTimeout,
		pageSize: constants.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.pageSize <= 0 {
		o.pageSize = constants.DefaultPageSize
	}
	if o.pageSize > constants.MaxPageSize {
		o.pageSize = constants.MaxPageSize
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}

	return &Client{
		baseURL:   u.String() + constants.SCIMBasePath,
		transport: transport.New(&transport.BearerAuth{Token: apiKey}, o.httpClient),
		pageSize:  o.pageSize,
		logger:    o.logger,
	}, nil
}

// BaseURL returns the SCIM root the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, target any) error {
	start := time.Now()
	err := c.transport.DoJSON(ctx, method, endpoint, body, target)

	event := c.logger.Debug()
	if err != nil {
		event = event.Err(err)
	}
	event.
		Str("method", method).
		Str("url", endpoint).
		Dur("elapsed", time.Since(start)).
		Msg("omni request")

	return err
}

// get fetches a single resource, mapping a 404 to a NotFoundError.
func (c *Client) get(ctx context.Context, resource, id string, target any) error {
	if id == "" {
		return &errors.ValidationError{Field: "id", Message: "cannot be empty"}
	}
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, resource, id), nil, target)
	if err != nil && errors.IsNotFound(err) {
		return errors.NewNotFoundError(strings.ToLower(strings.TrimSuffix(resource, "s")), id)
	}
	return err
}

// listAll pages through a list endpoint until every result has been read.
func listAll[T any](ctx context.Context, c *Client, resource, filter string) ([]T, error) {
	var all []T
	startIndex := 1

	for {
		query := url.Values{}
		query.Set("startIndex", strconv.Itoa(startIndex))
		query.Set("count", strconv.Itoa(c.pageSize))
		if filter != "" {
			query.Set("filter", filter)
		}

		var page scim.ListResponse[T]
		if err := c.do(ctx, http.MethodGet, c.endpoint(query, resource), nil, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Resources...)

		if len(page.Resources) == 0 || len(all) >= page.TotalResults {
			return all, nil
		}
		startIndex += len(page.Resources)
	}
}
