// Package sources reads the desired identity state from a local identity
// source: a SCIM JSON document or a pair of users/groups CSV files.
//
// Readers live in subpackages and register themselves by Kind:
//
//	import _ "github.com/agentstation/omnisync/pkg/sources/all"
//
//	src, err := sources.Open(sources.KindCSV, "users.csv", "groups.csv")
//	if err != nil {
//	    return err
//	}
//	snapshot, err := src.Load(ctx)
package sources

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/scim"
)

// Kind identifies a source format.
type Kind string

// String returns the string representation of a source kind.
func (k Kind) String() string {
	return string(k)
}

// Supported source kinds.
const (
	KindCSV  Kind = "csv"
	KindJSON Kind = "json"
)

// Kinds returns all supported source kinds.
func Kinds() []Kind {
	return []Kind{KindCSV, KindJSON}
}

// ParseKind parses a source kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Kinds(), k) {
		return k, nil
	}
	return "", &errors.ValidationError{
		Field:   "source",
		Value:   s,
		Message: fmt.Sprintf("must be one of %v", Kinds()),
	}
}

// Source loads a Snapshot of the desired identity state.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
	Kind() Kind
	String() string
}

// User is a user as declared by the source.
type User struct {
	scim.User

	// GroupRefs are the group ids (or display names) the user should belong to.
	GroupRefs []string
	// ManagesGroups makes GroupRefs the complete membership of the user: the
	// CSV and JSON readers set it for every user. Users without it keep
	// whatever membership they have.
	ManagesGroups bool
	// Row is the 1-based record number in the source file, for diagnostics.
	Row int
}

// Group is a group as declared by the source.
type Group struct {
	ID          string
	DisplayName string
	// Members are source user ids or userNames.
	Members []string
}

// Ref returns the identifier used to look the group up remotely.
func (g Group) Ref() string {
	if g.ID != "" {
		return g.ID
	}
	return g.DisplayName
}

// Snapshot is everything a source declares.
type Snapshot struct {
	Kind     Kind
	Users    []User
	Groups   []Group
	Warnings []string
}

// Warnf records a non-fatal problem found while loading.
func (s *Snapshot) Warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// User returns the source user with the given userName.
func (s *Snapshot) User(userName string) (User, bool) {
	for _, u := range s.Users {
		if strings.EqualFold(u.UserName, userName) {
			return u, true
		}
	}
	return User{}, false
}

// Memberships returns, per userName, the sorted group refs each managed user
// should belong to. Group member lists and per-user group refs are combined.
// A group member matches a user by userName, by source id, or by the user's
// remote id in remoteIDs (keyed by userName as in the source; may be nil).
// Group members that match no managed source user are returned as warnings.
func (s *Snapshot) Memberships(remoteIDs map[string]string) (map[string][]string, []string) {
	var warnings []string
	byKey := make(map[string]string, len(s.Users)*2)
	desired := make(map[string]map[string]struct{}, len(s.Users))

	for _, u := range s.Users {
		if !u.ManagesGroups {
			continue
		}
		byKey[strings.ToLower(u.UserName)] = u.UserName
		if u.ID != "" {
			byKey[u.ID] = u.UserName
		}
		if id := remoteIDs[u.UserName]; id != "" {
			byKey[id] = u.UserName
		}
		set := make(map[string]struct{}, len(u.GroupRefs))
		for _, ref := range u.GroupRefs {
			set[ref] = struct{}{}
		}
		desired[u.UserName] = set
	}

	for _, g := range s.Groups {
		for _, member := range g.Members {
			userName, ok := byKey[member]
			if !ok {
				userName, ok = byKey[strings.ToLower(member)]
			}
			if !ok {
				warnings = append(warnings, fmt.Sprintf("group %s: member %q matches no user in the source", g.Ref(), member))
				continue
			}
			desired[userName][g.Ref()] = struct{}{}
		}
	}

	out := make(map[string][]string, len(desired))
	for userName, set := range desired {
		refs := make([]string, 0, len(set))
		for ref := range set {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		out[userName] = refs
	}
	return out, warnings
}

// CheckFiles returns an IOError naming every path that does not exist.
// Empty paths are ignored.
func CheckFiles(paths ...string) error {
	var missing []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &errors.IOError{
		Operation: "open",
		Path:      strings.Join(missing, ", "),
		Message:   "file not found",
		Err:       os.ErrNotExist,
	}
}

// Factory creates a Source from its file paths.
type Factory func(usersPath, groupsPath string) (Source, error)

var (
	mu        sync.RWMutex
	factories = make(map[Kind]Factory)
)

// Register makes a source kind available to Open. It is called from the
// init function of each reader package.
func Register(kind Kind, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
}

// Open creates the Source for kind.
func Open(kind Kind, usersPath, groupsPath string) (Source, error) {
	mu.RLock()
	factory, ok := factories[kind]
	mu.RUnlock()

	if !ok {
		return nil, &errors.ValidationError{
			Field:   "source",
			Value:   kind,
			Message: "no reader registered for source kind " + kind.String(),
		}
	}
	return factory(usersPath, groupsPath)
}
