package omni

import (
	"context"
	"sort"
	"time"

	"github.com/agentstation/omnisync/pkg/scim"
)

// Omni exposes no audit endpoint, so history is assembled from the SCIM meta
// block of the resource.

// HistoryEvent is one point in a resource's history.
type HistoryEvent struct {
	Time  time.Time `json:"time" yaml:"time"`
	Event string    `json:"event" yaml:"event"`
}

// History describes what is known about a resource's lifecycle.
type History struct {
	ResourceType string         `json:"resourceType" yaml:"resourceType"`
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Version      string         `json:"version,omitempty" yaml:"version,omitempty"`
	Location     string         `json:"location,omitempty" yaml:"location,omitempty"`
	Events       []HistoryEvent `json:"events" yaml:"events"`
}

// UserHistory returns the history of a user.
func (c *Client) UserHistory(ctx context.Context, id string) (*History, error) {
	user, err := c.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return newHistory("User", user.ID, user.UserName, user.Meta), nil
}

// GroupHistory returns the history of a group.
func (c *Client) GroupHistory(ctx context.Context, id string) (*History, error) {
	group, err := c.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	return newHistory("Group", group.ID, group.DisplayName, group.Meta), nil
}

func newHistory(resourceType, id, name string, meta *scim.Meta) *History {
	h := &History{
		ResourceType: resourceType,
		ID:           id,
		Name:         name,
		Events:       []HistoryEvent{},
	}
	if meta == nil {
		return h
	}

	if meta.ResourceType != "" {
		h.ResourceType = meta.ResourceType
	}
	h.Version = meta.Version
	h.Location = meta.Location

	if meta.Created != nil {
		h.Events = append(h.Events, HistoryEvent{Time: *meta.Created, Event: "created"})
	}
	if meta.LastModified != nil && (meta.Created == nil || !meta.LastModified.Equal(*meta.Created)) {
		h.Events = append(h.Events, HistoryEvent{Time: *meta.LastModified, Event: "modified"})
	}
	sort.SliceStable(h.Events, func(i, j int) bool {
		return h.Events[i].Time.Before(h.Events[j].Time)
	})
	return h
}
