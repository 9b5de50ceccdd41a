package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/omnisync/pkg/differ"
	"github.com/agentstation/omnisync/pkg/errors"
)

// Operations reported in SyncErrors; all but OpLookupUser are writes and
// appear in Result.Applied.
const (
	OpLookupUser    = "look up user"
	OpCreateUser    = "create user"
	OpUpdateUser    = "update user"
	OpUpdateGroup   = "update group"
	OpSetAttributes = "set attributes"
)

// Write identifies one successful write. Target is a userName, or a group
// display name for OpUpdateGroup.
type Write struct {
	Operation string `json:"operation" yaml:"operation"`
	Target    string `json:"target" yaml:"target"`
}

// Result represents the outcome of a sync run.
type Result struct {
	Mode      differ.Mode       `json:"mode" yaml:"mode"`
	DryRun    bool              `json:"dryRun" yaml:"dryRun"`
	Changeset *differ.Changeset `json:"changeset" yaml:"changeset"`

	UsersProcessed    int `json:"usersProcessed" yaml:"usersProcessed"`
	UsersCreated      int `json:"usersCreated" yaml:"usersCreated"`
	UsersUpdated      int `json:"usersUpdated" yaml:"usersUpdated"`
	UsersMissing      int `json:"usersMissing" yaml:"usersMissing"` // not in Omni and not created
	UsersFailed       int `json:"usersFailed" yaml:"usersFailed"`   // remote lookup failed, skipped
	GroupsUpdated     int `json:"groupsUpdated" yaml:"groupsUpdated"`
	AttributesUpdated int `json:"attributesUpdated" yaml:"attributesUpdated"`

	WritesAttempted int `json:"writesAttempted" yaml:"writesAttempted"`
	WritesSucceeded int `json:"writesSucceeded" yaml:"writesSucceeded"`
	WritesFailed    int `json:"writesFailed" yaml:"writesFailed"`

	Applied  []Write  `json:"applied,omitempty" yaml:"applied,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Failures []error  `json:"-" yaml:"-"`

	StartedAt time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// HasChanges returns true if the run planned any writes.
func (r *Result) HasChanges() bool {
	return r.Changeset != nil && r.Changeset.HasChanges()
}

// Err joins every write failure, or returns nil.
func (r *Result) Err() error {
	return errors.Join(r.Failures...)
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	summary := r.summary()
	if r.UsersFailed > 0 {
		summary += fmt.Sprintf(" (%d users skipped, lookup failed)", r.UsersFailed)
	}
	return summary
}

func (r *Result) summary() string {
	if !r.HasChanges() {
		return "No changes detected"
	}

	if r.DryRun {
		return fmt.Sprintf("%s (dry run, nothing written)", r.Changeset.String())
	}

	parts := []string{
		fmt.Sprintf("%d users created", r.UsersCreated),
		fmt.Sprintf("%d users updated", r.UsersUpdated),
		fmt.Sprintf("%d groups updated", r.GroupsUpdated),
		fmt.Sprintf("%d users' attributes updated", r.AttributesUpdated),
	}
	summary := strings.Join(parts, ", ")
	if r.WritesFailed > 0 {
		summary += fmt.Sprintf(" (%d of %d writes failed)", r.WritesFailed, r.WritesAttempted)
	}
	return summary
}
