package differ

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/agentstation/omnisync/pkg/scim"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates a value was added.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates a value was updated.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates a value was removed.
	ChangeTypeRemove ChangeType = "remove"
)

// Profile field paths reported in user updates.
const (
	PathDisplayName = "displayName"
	PathGivenName   = "name.givenName"
	PathFamilyName  = "name.familyName"
	PathEmail       = "emails[primary]"
	PathActive      = "active"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Path     string     `json:"path" yaml:"path"`
	OldValue string     `json:"old,omitempty" yaml:"old,omitempty"`
	NewValue string     `json:"new,omitempty" yaml:"new,omitempty"`
	Type     ChangeType `json:"type" yaml:"type"`
}

// UserUpdate is a profile update for an existing user.
type UserUpdate struct {
	UserName string        `json:"userName" yaml:"userName"`
	ID       string        `json:"id" yaml:"id"`
	Existing scim.User     `json:"-" yaml:"-"`
	Desired  scim.User     `json:"-" yaml:"-"`
	Changes  []FieldChange `json:"changes" yaml:"changes"`
}

// PatchOperations returns the SCIM operations that apply the update.
func (u UserUpdate) PatchOperations() []scim.PatchOperation {
	ops := make([]scim.PatchOperation, 0, len(u.Changes))
	for _, c := range u.Changes {
		op := scim.PatchOperation{Op: "replace", Path: c.Path}
		switch c.Path {
		case PathDisplayName:
			op.Value = u.Desired.DisplayName
		case PathGivenName:
			op.Value = u.Desired.Name.GivenName
		case PathFamilyName:
			op.Value = u.Desired.Name.FamilyName
		case PathEmail:
			op.Path = "emails"
			op.Value = u.Desired.Emails
		case PathActive:
			op.Value = u.Desired.IsActive()
		default:
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

// UserChangeset represents changes to users.
type UserChangeset struct {
	Added     []scim.User  `json:"added" yaml:"added"`
	Updated   []UserUpdate `json:"updated" yaml:"updated"`
	Orphaned  []scim.User  `json:"orphaned" yaml:"orphaned"` // remote only, never removed
	Unchanged int          `json:"unchanged" yaml:"unchanged"`
}

// HasChanges returns true if users need to be created or updated.
func (u *UserChangeset) HasChanges() bool {
	return u != nil && (len(u.Added) > 0 || len(u.Updated) > 0)
}

// Member identifies a user in a membership change. ID is empty for a user
// that will be created by the same run.
type Member struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	UserName string `json:"userName" yaml:"userName"`
}

// GroupUpdate is the membership change of one group.
type GroupUpdate struct {
	GroupID     string   `json:"groupId" yaml:"groupId"`
	DisplayName string   `json:"displayName" yaml:"displayName"`
	Add         []Member `json:"add,omitempty" yaml:"add,omitempty"`
	Remove      []Member `json:"remove,omitempty" yaml:"remove,omitempty"`
}

// MembershipChangeset represents changes to group memberships.
type MembershipChangeset struct {
	Groups        []GroupUpdate `json:"groups" yaml:"groups"`
	UnknownGroups []string      `json:"unknownGroups,omitempty" yaml:"unknownGroups,omitempty"`
	Unchanged     int           `json:"unchanged" yaml:"unchanged"`
}

// HasChanges returns true if any group needs a membership write.
func (m *MembershipChangeset) HasChanges() bool {
	return m != nil && len(m.Groups) > 0
}

// AttributeUpdate is the attribute change of one user.
type AttributeUpdate struct {
	UserName string          `json:"userName" yaml:"userName"`
	UserID   string          `json:"userId,omitempty" yaml:"userId,omitempty"`
	Set      scim.Attributes `json:"set" yaml:"set"` // changed keys only; nil clears
	Changes  []FieldChange   `json:"changes" yaml:"changes"`
}

// NewAttributeUpdate builds an AttributeUpdate from attribute changes, taking
// the new values from source. It returns nil when there are no changes.
func NewAttributeUpdate(userName, userID string, source scim.Attributes, changes []FieldChange) *AttributeUpdate {
	if len(changes) == 0 {
		return nil
	}
	set := make(scim.Attributes, len(changes))
	for _, c := range changes {
		set[c.Path] = source[c.Path]
	}
	return &AttributeUpdate{UserName: userName, UserID: userID, Set: set, Changes: changes}
}

// Changeset represents everything a sync run would write.
type Changeset struct {
	Users       *UserChangeset       `json:"users" yaml:"users"`
	Memberships *MembershipChangeset `json:"memberships" yaml:"memberships"`
	Attributes  []AttributeUpdate    `json:"attributes" yaml:"attributes"`
	Summary     ChangesetSummary     `json:"summary" yaml:"summary"`
}

// ChangesetSummary provides summary statistics for a changeset.
type ChangesetSummary struct {
	UsersAdded        int `json:"usersAdded" yaml:"usersAdded"`
	UsersUpdated      int `json:"usersUpdated" yaml:"usersUpdated"`
	UsersUnchanged    int `json:"usersUnchanged" yaml:"usersUnchanged"`
	UsersOrphaned     int `json:"usersOrphaned" yaml:"usersOrphaned"`
	GroupsUpdated     int `json:"groupsUpdated" yaml:"groupsUpdated"`
	MembersAdded      int `json:"membersAdded" yaml:"membersAdded"`
	MembersRemoved    int `json:"membersRemoved" yaml:"membersRemoved"`
	UnknownGroups     int `json:"unknownGroups" yaml:"unknownGroups"`
	AttributesUpdated int `json:"attributesUpdated" yaml:"attributesUpdated"`
	TotalChanges      int `json:"totalChanges" yaml:"totalChanges"`
}

// NewChangeset assembles a changeset and computes its summary. Nil parts are
// replaced with empty ones.
func NewChangeset(users *UserChangeset, memberships *MembershipChangeset, attributes []AttributeUpdate) *Changeset {
	if users == nil {
		users = &UserChangeset{Added: []scim.User{}, Updated: []UserUpdate{}, Orphaned: []scim.User{}}
	}
	if memberships == nil {
		memberships = &MembershipChangeset{Groups: []GroupUpdate{}, UnknownGroups: []string{}}
	}
	if attributes == nil {
		attributes = []AttributeUpdate{}
	}
	sort.Slice(attributes, func(i, j int) bool { return attributes[i].UserName < attributes[j].UserName })

	c := &Changeset{Users: users, Memberships: memberships, Attributes: attributes}
	c.Summary = calculateSummary(c)
	return c
}

func calculateSummary(c *Changeset) ChangesetSummary {
	s := ChangesetSummary{
		UsersAdded:        len(c.Users.Added),
		UsersUpdated:      len(c.Users.Updated),
		UsersUnchanged:    c.Users.Unchanged,
		UsersOrphaned:     len(c.Users.Orphaned),
		GroupsUpdated:     len(c.Memberships.Groups),
		UnknownGroups:     len(c.Memberships.UnknownGroups),
		AttributesUpdated: len(c.Attributes),
	}
	for _, g := range c.Memberships.Groups {
		s.MembersAdded += len(g.Add)
		s.MembersRemoved += len(g.Remove)
	}
	s.TotalChanges = s.UsersAdded + s.UsersUpdated + s.GroupsUpdated + s.AttributesUpdated
	return s
}

// HasChanges returns true if the changeset contains any writes.
func (c *Changeset) HasChanges() bool {
	return c.Summary.TotalChanges > 0
}

// IsEmpty returns true if the changeset contains no writes.
func (c *Changeset) IsEmpty() bool {
	return c.Summary.TotalChanges == 0
}

// String returns a human-readable summary of the changeset.
func (c *Changeset) String() string {
	if c.IsEmpty() {
		return "No changes detected"
	}

	var parts []string

	if c.Users.HasChanges() {
		userParts := []string{}
		if n := len(c.Users.Added); n > 0 {
			userParts = append(userParts, fmt.Sprintf("%d to create", n))
		}
		if n := len(c.Users.Updated); n > 0 {
			userParts = append(userParts, fmt.Sprintf("%d to update", n))
		}
		parts = append(parts, fmt.Sprintf("Users: %s", strings.Join(userParts, ", ")))
	}

	if c.Memberships.HasChanges() {
		parts = append(parts, fmt.Sprintf("Groups: %d to update (+%d/-%d members)",
			c.Summary.GroupsUpdated, c.Summary.MembersAdded, c.Summary.MembersRemoved))
	}

	if n := len(c.Attributes); n > 0 {
		parts = append(parts, fmt.Sprintf("Attributes: %d users to update", n))
	}

	return strings.Join(parts, "; ")
}

// Print writes the changeset in a human-readable format.
func (c *Changeset) Print(w io.Writer) {
	if c.IsEmpty() && len(c.Users.Orphaned) == 0 && len(c.Memberships.UnknownGroups) == 0 {
		_, _ = fmt.Fprintln(w, "✅ No changes detected")
		return
	}

	c.Users.Print(w)
	c.Memberships.Print(w)

	if len(c.Attributes) > 0 {
		_, _ = fmt.Fprintf(w, "\n🏷️  Attribute Updates (%d):\n", len(c.Attributes))
		for _, a := range c.Attributes {
			_, _ = fmt.Fprintf(w, "  • %s:\n", a.UserName)
			printChanges(w, a.Changes)
		}
	}
}

// Print writes user changes in a human-readable format.
func (u *UserChangeset) Print(w io.Writer) {
	if len(u.Added) > 0 {
		_, _ = fmt.Fprintf(w, "\n➕ Users To Create (%d):\n", len(u.Added))
		for _, user := range u.Added {
			_, _ = fmt.Fprintf(w, "  • %s", user.UserName)
			if user.DisplayName != "" {
				_, _ = fmt.Fprintf(w, " (%s)", user.DisplayName)
			}
			_, _ = fmt.Fprintln(w)
		}
	}

	if len(u.Updated) > 0 {
		_, _ = fmt.Fprintf(w, "\n🔄 Users To Update (%d):\n", len(u.Updated))
		for _, update := range u.Updated {
			_, _ = fmt.Fprintf(w, "  • %s:\n", update.UserName)
			printChanges(w, update.Changes)
		}
	}

	if len(u.Orphaned) > 0 {
		_, _ = fmt.Fprintf(w, "\n⚠️  Users Not In Source (%d, left untouched):\n", len(u.Orphaned))
		for _, user := range u.Orphaned {
			_, _ = fmt.Fprintf(w, "  • %s\n", user.UserName)
		}
	}
}

// Print writes membership changes in a human-readable format.
func (m *MembershipChangeset) Print(w io.Writer) {
	if len(m.Groups) > 0 {
		_, _ = fmt.Fprintf(w, "\n👥 Group Membership Updates (%d):\n", len(m.Groups))
		for _, g := range m.Groups {
			_, _ = fmt.Fprintf(w, "  • %s (%s):\n", g.DisplayName, g.GroupID)
			for _, member := range g.Add {
				_, _ = fmt.Fprintf(w, "    + %s\n", member.UserName)
			}
			for _, member := range g.Remove {
				_, _ = fmt.Fprintf(w, "    - %s\n", member.UserName)
			}
		}
	}

	if len(m.UnknownGroups) > 0 {
		_, _ = fmt.Fprintf(w, "\n⚠️  Unknown Groups (%d, skipped):\n", len(m.UnknownGroups))
		for _, ref := range m.UnknownGroups {
			_, _ = fmt.Fprintf(w, "  • %s\n", ref)
		}
	}
}

func printChanges(w io.Writer, changes []FieldChange) {
	for _, change := range changes {
		switch change.Type {
		case ChangeTypeAdd:
			_, _ = fmt.Fprintf(w, "    - %s: %s\n", change.Path, change.NewValue)
		case ChangeTypeRemove:
			_, _ = fmt.Fprintf(w, "    - %s: %s → (cleared)\n", change.Path, change.OldValue)
		default:
			_, _ = fmt.Fprintf(w, "    - %s: %s → %s\n", change.Path, change.OldValue, change.NewValue)
		}
	}
}

// Filter returns the part of the changeset the mode applies. Outside ModeAll
// nothing is created, so changes that depend on a new user are dropped.
func (c *Changeset) Filter(mode Mode) *Changeset {
	if mode == ModeAll {
		return c
	}

	users := &UserChangeset{
		Added:     []scim.User{},
		Updated:   []UserUpdate{},
		Orphaned:  c.Users.Orphaned,
		Unchanged: c.Users.Unchanged,
	}

	var memberships *MembershipChangeset
	if mode.Groups() {
		memberships = c.Memberships.existingOnly()
	} else {
		memberships = &MembershipChangeset{Groups: []GroupUpdate{}, UnknownGroups: c.Memberships.UnknownGroups}
	}

	attributes := []AttributeUpdate{}
	if mode.Attributes() {
		attributes = existingAttributes(c.Attributes)
	}

	return NewChangeset(users, memberships, attributes)
}

// WithoutCreates drops user creation and everything that depends on it.
func (c *Changeset) WithoutCreates() *Changeset {
	users := *c.Users
	users.Added = []scim.User{}
	return NewChangeset(&users, c.Memberships.existingOnly(), existingAttributes(c.Attributes))
}

func (m *MembershipChangeset) existingOnly() *MembershipChangeset {
	out := &MembershipChangeset{
		Groups:        []GroupUpdate{},
		UnknownGroups: m.UnknownGroups,
		Unchanged:     m.Unchanged,
	}
	for _, g := range m.Groups {
		kept := GroupUpdate{GroupID: g.GroupID, DisplayName: g.DisplayName, Remove: g.Remove}
		for _, member := range g.Add {
			if member.ID != "" {
				kept.Add = append(kept.Add, member)
			}
		}
		if len(kept.Add) == 0 && len(kept.Remove) == 0 {
			out.Unchanged++
			continue
		}
		out.Groups = append(out.Groups, kept)
	}
	return out
}

func existingAttributes(updates []AttributeUpdate) []AttributeUpdate {
	out := []AttributeUpdate{}
	for _, a := range updates {
		if a.UserID != "" {
			out = append(out, a)
		}
	}
	return out
}
