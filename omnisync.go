// Package omnisync keeps Omni users, group memberships and user attributes
// in line with a CSV or SCIM JSON identity source.
//
// The omnisync command runs its sync through this package; library users
// do the same:
//
//	client, err := omnisync.New(omnisync.WithCredentials(baseURL, apiKey))
//	if err != nil {
//		return err
//	}
//	client.OnUserCreated(func(u scim.User) { log.Println("created", u.UserName) })
//
//	source, err := jsonsource.New("users.json")
//	if err != nil {
//		return err
//	}
//	result, err := client.Sync(ctx, source, sync.WithDryRun(true))
package omnisync

import (
	"context"
	"fmt"

	"github.com/agentstation/omnisync/pkg/differ"
	"github.com/agentstation/omnisync/pkg/omni"
	"github.com/agentstation/omnisync/pkg/sources"
	"github.com/agentstation/omnisync/pkg/sync"
)

// Omnisync reconciles identity sources with one Omni instance and reports
// applied writes to registered hooks.
type Omnisync interface {
	// Client returns the Omni API client
	Client() *omni.Client

	// Sync runs one reconciliation pass of source against Omni
	Sync(ctx context.Context, source sources.Source, opts ...sync.Option) (*sync.Result, error)

	// OnUserCreated registers a callback for users created in Omni
	OnUserCreated(UserCreatedHook)

	// OnUserUpdated registers a callback for profile updates
	OnUserUpdated(UserUpdatedHook)

	// OnGroupUpdated registers a callback for membership changes of a group
	OnGroupUpdated(GroupUpdatedHook)

	// OnAttributesUpdated registers a callback for attribute writes
	OnAttributesUpdated(AttributesUpdatedHook)
}

type omnisync struct {
	config *config
	client *omni.Client
	hooks  *hooks
}

// New creates an Omnisync with the given options. Either WithClient or
// WithCredentials is required.
func New(opts ...Option) (Omnisync, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}

	client := cfg.client
	if client == nil {
		var err error
		client, err = omni.New(cfg.baseURL, cfg.apiKey, cfg.clientOptions...)
		if err != nil {
			return nil, err
		}
	}

	return &omnisync{
		config: cfg,
		client: client,
		hooks:  newHooks(),
	}, nil
}

// Client returns the Omni API client.
func (o *omnisync) Client() *omni.Client {
	return o.client
}

func (o *omnisync) OnUserCreated(fn UserCreatedHook)             { o.hooks.OnUserCreated(fn) }
func (o *omnisync) OnUserUpdated(fn UserUpdatedHook)             { o.hooks.OnUserUpdated(fn) }
func (o *omnisync) OnGroupUpdated(fn GroupUpdatedHook)           { o.hooks.OnGroupUpdated(fn) }
func (o *omnisync) OnAttributesUpdated(fn AttributesUpdatedHook) { o.hooks.OnAttributesUpdated(fn) }

// differ returns the differ configured for this instance.
func (o *omnisync) differ() differ.Differ {
	return differ.New(o.config.differOptions...)
}

var _ Omnisync = (*omnisync)(nil)
