// Package jsonsource reads identities from a SCIM 2.0 JSON document.
//
// The document is either a list response ({"Resources": [...]}) or a bare
// array of users. A user's groups[].value entries are the groups it should
// belong to (a user without groups belongs to none), and the urn:omni:params:1.0:UserAttribute object holds its
// desired attributes.
package jsonsource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/logging"
	"github.com/agentstation/omnisync/pkg/scim"
	"github.com/agentstation/omnisync/pkg/sources"
)

func init() {
	sources.Register(sources.KindJSON, func(usersPath, _ string) (sources.Source, error) {
		return New(usersPath)
	})
}

// Source reads a SCIM JSON file.
type Source struct {
	path string
}

// New creates a JSON source for the file at path.
func New(path string) (*Source, error) {
	if path == "" {
		return nil, &errors.ValidationError{Field: "users", Message: "a users JSON file is required"}
	}
	return &Source{path: path}, nil
}

// Kind implements sources.Source.
func (s *Source) Kind() sources.Kind {
	return sources.KindJSON
}

// String implements sources.Source.
func (s *Source) String() string {
	return "json(" + s.path + ")"
}

// Load reads and decodes the document.
func (s *Source) Load(ctx context.Context) (*sources.Snapshot, error) {
	if err := sources.CheckFiles(s.path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, errors.WrapIO("read", s.path, err)
	}

	snapshot, err := Parse(data)
	if err != nil {
		if parseErr, ok := err.(*errors.ParseError); ok {
			parseErr.File = s.path
		}
		return nil, err
	}

	logger := logging.FromContext(ctx)
	for _, w := range snapshot.Warnings {
		logger.Warn().Str("source", s.String()).Msg(w)
	}
	logger.Debug().
		Int("users", len(snapshot.Users)).
		Int("groups", len(snapshot.Groups)).
		Msg("loaded json source")

	return snapshot, nil
}

// Parse decodes a SCIM document held in memory.
func Parse(data []byte) (*sources.Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, &errors.ParseError{Format: "json", Message: "invalid JSON document"}
	}

	root := gjson.ParseBytes(data)
	resources := root
	if root.IsObject() {
		resources = root.Get("Resources")
		if !resources.Exists() {
			return nil, &errors.ParseError{Format: "json", Message: `expected a "Resources" array or a top-level array of users`}
		}
	}
	if !resources.IsArray() {
		return nil, &errors.ParseError{Format: "json", Message: "users must be a JSON array"}
	}

	snapshot := &sources.Snapshot{Kind: sources.KindJSON}
	groups := make(map[string]int)
	seen := make(map[string]int)

	for i, item := range resources.Array() {
		row := i + 1
		if !item.IsObject() {
			snapshot.Warnf("resource %d: not an object, skipped", row)
			continue
		}

		var user scim.User
		if err := json.Unmarshal([]byte(item.Raw), &user); err != nil {
			snapshot.Warnf("resource %d: %v, skipped", row, err)
			continue
		}
		if user.UserName == "" {
			snapshot.Warnf("resource %d: missing userName, skipped", row)
			continue
		}
		key := strings.ToLower(user.UserName)
		if first, dup := seen[key]; dup {
			snapshot.Warnf("resource %d: duplicate userName %s (first in resource %d), skipped", row, user.UserName, first)
			continue
		}
		seen[key] = row

		// a user without "groups" belongs to no group
		u := sources.User{
			User:          user,
			ManagesGroups: true,
			Row:           row,
		}
		for _, ref := range user.Groups {
			id := ref.Value
			if id == "" {
				id = ref.Display
			}
			if id == "" {
				snapshot.Warnf("resource %d: group reference without value for %s, skipped", row, user.UserName)
				continue
			}
			u.GroupRefs = append(u.GroupRefs, id)

			if _, ok := groups[id]; !ok {
				groups[id] = len(snapshot.Groups)
				snapshot.Groups = append(snapshot.Groups, sources.Group{ID: ref.Value, DisplayName: ref.Display})
			}
		}

		snapshot.Users = append(snapshot.Users, u)
	}

	if len(snapshot.Users) == 0 && len(resources.Array()) > 0 {
		return nil, &errors.ParseError{Format: "json", Message: fmt.Sprintf("none of the %d resources is a usable user", len(resources.Array()))}
	}
	return snapshot, nil
}
