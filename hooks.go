package omnisync

import (
	"strings"
	gosync "sync"

	"github.com/agentstation/omnisync/pkg/differ"
	"github.com/agentstation/omnisync/pkg/scim"
	"github.com/agentstation/omnisync/pkg/sync"
)

// Hook function types for applied writes
type (
	// UserCreatedHook is called when a user is created in Omni
	UserCreatedHook func(user scim.User)

	// UserUpdatedHook is called when a user's profile is updated
	UserUpdatedHook func(update differ.UserUpdate)

	// GroupUpdatedHook is called when a group's members are patched
	GroupUpdatedHook func(update differ.GroupUpdate)

	// AttributesUpdatedHook is called when a user's attributes are written
	AttributesUpdatedHook func(update differ.AttributeUpdate)
)

// hooks manages callbacks for applied writes
type hooks struct {
	mu                  gosync.RWMutex
	onUserCreated       []UserCreatedHook
	onUserUpdated       []UserUpdatedHook
	onGroupUpdated      []GroupUpdatedHook
	onAttributesUpdated []AttributesUpdatedHook
}

func newHooks() *hooks {
	return &hooks{}
}

func (h *hooks) OnUserCreated(fn UserCreatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onUserCreated = append(h.onUserCreated, fn)
}

func (h *hooks) OnUserUpdated(fn UserUpdatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onUserUpdated = append(h.onUserUpdated, fn)
}

func (h *hooks) OnGroupUpdated(fn GroupUpdatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onGroupUpdated = append(h.onGroupUpdated, fn)
}

func (h *hooks) OnAttributesUpdated(fn AttributesUpdatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAttributesUpdated = append(h.onAttributesUpdated, fn)
}

// triggerApplied calls the hooks for every write the run applied, in the
// order the writes happened.
func (h *hooks) triggerApplied(result *sync.Result) {
	if result == nil || result.Changeset == nil || len(result.Applied) == 0 {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c := result.Changeset
	for _, w := range result.Applied {
		switch w.Operation {
		case sync.OpCreateUser:
			if c.Users == nil {
				continue
			}
			for _, u := range c.Users.Added {
				if strings.EqualFold(u.UserName, w.Target) {
					for _, hook := range h.onUserCreated {
						hook(u)
					}
					if len(u.Attributes) > 0 && result.Mode.Attributes() {
						h.attributesOfCreated(c, u.UserName)
					}
					break
				}
			}
		case sync.OpUpdateUser:
			if c.Users == nil {
				continue
			}
			for _, u := range c.Users.Updated {
				if strings.EqualFold(u.UserName, w.Target) {
					for _, hook := range h.onUserUpdated {
						hook(u)
					}
					break
				}
			}
		case sync.OpUpdateGroup:
			if c.Memberships == nil {
				continue
			}
			for _, g := range c.Memberships.Groups {
				if g.DisplayName == w.Target {
					for _, hook := range h.onGroupUpdated {
						hook(g)
					}
					break
				}
			}
		case sync.OpSetAttributes:
			for _, a := range c.Attributes {
				if a.UserID != "" && strings.EqualFold(a.UserName, w.Target) {
					for _, hook := range h.onAttributesUpdated {
						hook(a)
					}
					break
				}
			}
		}
	}
}

// attributesOfCreated reports attributes written as part of a user create.
func (h *hooks) attributesOfCreated(c *differ.Changeset, userName string) {
	for _, a := range c.Attributes {
		if a.UserID == "" && strings.EqualFold(a.UserName, userName) {
			for _, hook := range h.onAttributesUpdated {
				hook(a)
			}
			return
		}
	}
}
