// Package differ compares the identity state declared by a source with the
// state held by Omni and describes the writes needed to reconcile them.
package differ

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/agentstation/omnisync/pkg/scim"
)

// Differ handles change detection between source and remote identities.
type Differ interface {
	// Users matches source users to remote users by userName and compares profiles.
	Users(source, remote []scim.User) *UserChangeset

	// Memberships compares desired group refs per userName with remote groups.
	// userIDs maps userName to remote user id; an empty id marks a user that
	// does not exist yet.
	Memberships(desired map[string][]string, remoteGroups []scim.Group, userIDs map[string]string) *MembershipChangeset

	// Attributes compares the attributes declared by the source with the
	// remote ones. Keys absent from source are never reported.
	Attributes(source, remote scim.Attributes) []FieldChange
}

type differ struct {
	ignoredAttributes map[string]bool
	foldUserNames     bool
}

// New creates a Differ with default settings.
func New(opts ...Option) Differ {
	d := &differ{
		ignoredAttributes: make(map[string]bool),
		foldUserNames:     true,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *differ) key(userName string) string {
	if d.foldUserNames {
		return strings.ToLower(userName)
	}
	return userName
}

// Users implements Differ.
func (d *differ) Users(source, remote []scim.User) *UserChangeset {
	changeset := &UserChangeset{
		Added:    []scim.User{},
		Updated:  []UserUpdate{},
		Orphaned: []scim.User{},
	}

	remoteMap := make(map[string]scim.User, len(remote))
	for _, u := range remote {
		remoteMap[d.key(u.UserName)] = u
	}

	sourceKeys := make(map[string]bool, len(source))
	for _, u := range source {
		k := d.key(u.UserName)
		sourceKeys[k] = true

		existing, ok := remoteMap[k]
		if !ok {
			changeset.Added = append(changeset.Added, u)
			continue
		}
		if update := d.user(existing, u); update != nil {
			changeset.Updated = append(changeset.Updated, *update)
		} else {
			changeset.Unchanged++
		}
	}

	for _, u := range remote {
		if !sourceKeys[d.key(u.UserName)] {
			changeset.Orphaned = append(changeset.Orphaned, u)
		}
	}

	sort.Slice(changeset.Added, func(i, j int) bool { return changeset.Added[i].UserName < changeset.Added[j].UserName })
	sort.Slice(changeset.Updated, func(i, j int) bool { return changeset.Updated[i].UserName < changeset.Updated[j].UserName })
	sort.Slice(changeset.Orphaned, func(i, j int) bool { return changeset.Orphaned[i].UserName < changeset.Orphaned[j].UserName })

	return changeset
}

// user compares the profile fields the source declares. Fields the source
// leaves empty keep their remote value.
func (d *differ) user(existing, desired scim.User) *UserUpdate {
	var changes []FieldChange
	next := existing

	if desired.DisplayName != "" && desired.DisplayName != existing.DisplayName {
		changes = append(changes, change(PathDisplayName, existing.DisplayName, desired.DisplayName))
		next.DisplayName = desired.DisplayName
	}

	if desired.Name != nil {
		var current scim.Name
		if existing.Name != nil {
			current = *existing.Name
		}
		name := current
		if desired.Name.GivenName != "" && desired.Name.GivenName != current.GivenName {
			changes = append(changes, change(PathGivenName, current.GivenName, desired.Name.GivenName))
			name.GivenName = desired.Name.GivenName
		}
		if desired.Name.FamilyName != "" && desired.Name.FamilyName != current.FamilyName {
			changes = append(changes, change(PathFamilyName, current.FamilyName, desired.Name.FamilyName))
			name.FamilyName = desired.Name.FamilyName
		}
		if name != current {
			next.Name = &name
		}
	}

	if email := desired.PrimaryEmail(); email != "" && !strings.EqualFold(email, existing.PrimaryEmail()) {
		changes = append(changes, change(PathEmail, existing.PrimaryEmail(), email))
		next.Emails = []scim.Email{{Value: email, Type: "work", Primary: true}}
	}

	if desired.Active != nil && *desired.Active != existing.IsActive() {
		changes = append(changes, change(PathActive, strconv.FormatBool(existing.IsActive()), strconv.FormatBool(*desired.Active)))
		active := *desired.Active
		next.Active = &active
	}

	if len(changes) == 0 {
		return nil
	}

	return &UserUpdate{
		UserName: existing.UserName,
		ID:       existing.ID,
		Existing: existing,
		Desired:  next,
		Changes:  changes,
	}
}

// Memberships implements Differ.
func (d *differ) Memberships(desired map[string][]string, remoteGroups []scim.Group, userIDs map[string]string) *MembershipChangeset {
	changeset := &MembershipChangeset{
		Groups:        []GroupUpdate{},
		UnknownGroups: []string{},
	}

	byID := make(map[string]*scim.Group, len(remoteGroups))
	byName := make(map[string]*scim.Group, len(remoteGroups))
	for i := range remoteGroups {
		g := &remoteGroups[i]
		byID[g.ID] = g
		byName[strings.ToLower(g.DisplayName)] = g
	}

	ids := make(map[string]string, len(userIDs))
	for userName, id := range userIDs {
		ids[d.key(userName)] = id
	}

	unknown := make(map[string]bool)
	updates := make(map[string]*GroupUpdate)
	update := func(g *scim.Group) *GroupUpdate {
		if u, ok := updates[g.ID]; ok {
			return u
		}
		u := &GroupUpdate{GroupID: g.ID, DisplayName: g.DisplayName}
		updates[g.ID] = u
		return u
	}

	for userName, refs := range desired {
		userID, known := ids[d.key(userName)]
		if !known {
			continue
		}
		member := Member{ID: userID, UserName: userName}

		want := make(map[string]bool, len(refs))
		for _, ref := range refs {
			g, ok := byID[ref]
			if !ok {
				g, ok = byName[strings.ToLower(ref)]
			}
			if !ok {
				unknown[ref] = true
				continue
			}
			want[g.ID] = true
			if userID == "" || !g.HasMember(userID) {
				u := update(g)
				u.Add = append(u.Add, member)
			}
		}

		if userID == "" {
			continue
		}
		for i := range remoteGroups {
			g := &remoteGroups[i]
			if !want[g.ID] && g.HasMember(userID) {
				u := update(g)
				u.Remove = append(u.Remove, member)
			}
		}
	}

	for _, u := range updates {
		sortMembers(u.Add)
		sortMembers(u.Remove)
		changeset.Groups = append(changeset.Groups, *u)
	}
	sort.Slice(changeset.Groups, func(i, j int) bool {
		a, b := changeset.Groups[i], changeset.Groups[j]
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.GroupID < b.GroupID
	})

	for ref := range unknown {
		changeset.UnknownGroups = append(changeset.UnknownGroups, ref)
	}
	sort.Strings(changeset.UnknownGroups)

	changeset.Unchanged = len(remoteGroups) - len(changeset.Groups)

	return changeset
}

// Attributes implements Differ.
func (d *differ) Attributes(source, remote scim.Attributes) []FieldChange {
	keys := make([]string, 0, len(source))
	for k := range source {
		if !d.ignoredAttributes[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var changes []FieldChange
	for _, k := range keys {
		want := source[k]
		have, exists := remote[k]

		switch {
		case want == nil && (!exists || have == nil):
			continue
		case want == nil:
			changes = append(changes, FieldChange{Path: k, OldValue: formatValue(have), Type: ChangeTypeRemove})
		case !exists || have == nil:
			changes = append(changes, FieldChange{Path: k, NewValue: formatValue(want), Type: ChangeTypeAdd})
		case !cmp.Equal(want, have, cmpopts.EquateEmpty()):
			changes = append(changes, FieldChange{Path: k, OldValue: formatValue(have), NewValue: formatValue(want), Type: ChangeTypeUpdate})
		}
	}
	return changes
}

func change(path, oldValue, newValue string) FieldChange {
	t := ChangeTypeUpdate
	if oldValue == "" {
		t = ChangeTypeAdd
	}
	return FieldChange{Path: path, OldValue: oldValue, NewValue: newValue, Type: t}
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func sortMembers(members []Member) {
	sort.Slice(members, func(i, j int) bool { return members[i].UserName < members[j].UserName })
}
