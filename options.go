package omnisync

import (
	"github.com/agentstation/omnisync/pkg/differ"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/omni"
	"github.com/agentstation/omnisync/pkg/sync"
)

// Option is a function that configures an Omnisync instance.
type Option func(*config) error

type config struct {
	baseURL       string
	apiKey        string
	client        *omni.Client
	clientOptions []omni.Option
	syncOptions   []sync.Option
	differOptions []differ.Option
}

// WithCredentials configures the Omni SCIM base URL and API key.
func WithCredentials(baseURL, apiKey string) Option {
	return func(c *config) error {
		if baseURL == "" {
			return &errors.ConfigError{Component: "omni", Message: "base URL is required"}
		}
		if apiKey == "" {
			return &errors.ConfigError{Component: "omni", Message: "API key is required"}
		}
		c.baseURL = baseURL
		c.apiKey = apiKey
		return nil
	}
}

// WithClient uses an existing Omni client instead of building one from credentials.
func WithClient(client *omni.Client) Option {
	return func(c *config) error {
		if client == nil {
			return &errors.ValidationError{Field: "client", Message: "client cannot be nil"}
		}
		c.client = client
		return nil
	}
}

// WithClientOptions passes options to the Omni client built from credentials.
func WithClientOptions(opts ...omni.Option) Option {
	return func(c *config) error {
		c.clientOptions = append(c.clientOptions, opts...)
		return nil
	}
}

// WithSyncOptions sets defaults for every Sync call. Options passed to Sync
// take precedence.
func WithSyncOptions(opts ...sync.Option) Option {
	return func(c *config) error {
		c.syncOptions = append(c.syncOptions, opts...)
		return nil
	}
}

// WithIgnoredAttributes excludes attribute keys from comparison.
func WithIgnoredAttributes(keys ...string) Option {
	return func(c *config) error {
		c.differOptions = append(c.differOptions, differ.WithIgnoredAttributes(keys...))
		return nil
	}
}
