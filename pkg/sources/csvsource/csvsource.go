// Package csvsource reads identities from a users CSV file and a groups CSV file.
//
// users.csv columns (header names are case-insensitive, order is free):
//
//	id, userName, displayName, givenName, familyName, email, active, userAttributes, groups
//
// groups.csv columns:
//
//	id, displayName, members
//
// userAttributes is a JSON object; groups and members are JSON arrays. Fields
// exported by spreadsheets with doubled quotes ("" for ") are accepted.
package csvsource

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/logging"
	"github.com/agentstation/omnisync/pkg/scim"
	"github.com/agentstation/omnisync/pkg/sources"
)

func init() {
	sources.Register(sources.KindCSV, func(usersPath, groupsPath string) (sources.Source, error) {
		return New(usersPath, groupsPath)
	})
}

// Source reads users.csv and groups.csv.
type Source struct {
	usersPath  string
	groupsPath string
}

// New creates a CSV source. Both paths are required.
func New(usersPath, groupsPath string) (*Source, error) {
	if usersPath == "" {
		return nil, &errors.ValidationError{Field: "users", Message: "a users CSV file is required"}
	}
	if groupsPath == "" {
		return nil, &errors.ValidationError{Field: "groups", Message: "--groups is required when using CSV source"}
	}
	return &Source{usersPath: usersPath, groupsPath: groupsPath}, nil
}

// Kind implements sources.Source.
func (s *Source) Kind() sources.Kind {
	return sources.KindCSV
}

// String implements sources.Source.
func (s *Source) String() string {
	return fmt.Sprintf("csv(users=%s, groups=%s)", s.usersPath, s.groupsPath)
}

// Load reads both files. Row-level problems are logged and recorded as
// snapshot warnings; only unreadable or structurally broken files fail the load.
func (s *Source) Load(ctx context.Context) (*sources.Snapshot, error) {
	if err := sources.CheckFiles(s.usersPath, s.groupsPath); err != nil {
		return nil, err
	}

	snapshot := &sources.Snapshot{Kind: sources.KindCSV}

	if err := readFile(s.usersPath, func(r *table) error {
		return readUsers(r, snapshot)
	}); err != nil {
		return nil, err
	}
	if err := readFile(s.groupsPath, func(r *table) error {
		return readGroups(r, snapshot)
	}); err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	for _, w := range snapshot.Warnings {
		logger.Warn().Str("source", s.String()).Msg(w)
	}
	logger.Debug().
		Int("users", len(snapshot.Users)).
		Int("groups", len(snapshot.Groups)).
		Msg("loaded csv source")

	return snapshot, nil
}

// LoadUsers reads a users file on its own, for bulk operations that have no
// group file.
func LoadUsers(path string) (*sources.Snapshot, error) {
	if err := sources.CheckFiles(path); err != nil {
		return nil, err
	}

	snapshot := &sources.Snapshot{Kind: sources.KindCSV}
	if err := readFile(path, func(r *table) error {
		return readUsers(r, snapshot)
	}); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// table is a csv.Reader that knows its header.
type table struct {
	*csv.Reader
	path    string
	columns map[string]int
}

func (t *table) field(record []string, name string) string {
	i, ok := t.columns[strings.ToLower(name)]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (t *table) has(name string) bool {
	_, ok := t.columns[strings.ToLower(name)]
	return ok
}

func (t *table) line() int {
	line, _ := t.FieldPos(0)
	return line
}

func readFile(path string, fn func(*table) error) error {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return &errors.ParseError{Format: "csv", File: path, Message: "file is empty"}
	}
	if err != nil {
		return csvError(path, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	return fn(&table{Reader: r, path: path, columns: columns})
}

func csvError(path string, err error) error {
	parseErr := &errors.ParseError{Format: "csv", File: path, Message: err.Error(), Err: err}
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		parseErr.Line = csvErr.Line
		parseErr.Column = csvErr.Column
		parseErr.Message = csvErr.Err.Error()
	}
	return parseErr
}

func readUsers(t *table, snapshot *sources.Snapshot) error {
	if !t.has("userName") {
		return &errors.ParseError{Format: "csv", File: t.path, Message: "missing required column userName"}
	}

	seen := make(map[string]int)
	for {
		record, err := t.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return csvError(t.path, err)
		}
		line := t.line()

		userName := t.field(record, "userName")
		if userName == "" {
			snapshot.Warnf("%s:%d: missing userName, row skipped", t.path, line)
			continue
		}
		if first, dup := seen[strings.ToLower(userName)]; dup {
			snapshot.Warnf("%s:%d: duplicate userName %s (first on line %d), row skipped", t.path, line, userName, first)
			continue
		}
		seen[strings.ToLower(userName)] = line

		u := sources.User{
			User: scim.User{
				ID:          t.field(record, "id"),
				UserName:    userName,
				DisplayName: t.field(record, "displayName"),
			},
			ManagesGroups: true,
			Row:           line,
		}

		given, family := t.field(record, "givenName"), t.field(record, "familyName")
		if given != "" || family != "" {
			u.Name = &scim.Name{GivenName: given, FamilyName: family}
		}
		if email := t.field(record, "email"); email != "" {
			u.Emails = []scim.Email{{Value: email, Type: "work", Primary: true}}
		}
		if raw := t.field(record, "active"); raw != "" {
			active, err := parseBool(raw)
			if err != nil {
				snapshot.Warnf("%s:%d: invalid active value %q for %s, ignored", t.path, line, raw, userName)
			} else {
				u.Active = &active
			}
		}
		if raw := t.field(record, "userAttributes"); raw != "" {
			var attrs map[string]any
			if err := decodeField(raw, &attrs); err != nil {
				snapshot.Warnf("%s:%d: invalid userAttributes JSON for %s, skipped: %v", t.path, line, userName, err)
			} else {
				u.Attributes = attrs
			}
		}
		if raw := t.field(record, "groups"); raw != "" {
			refs, err := decodeList(raw)
			if err != nil {
				snapshot.Warnf("%s:%d: invalid groups JSON for %s, skipped: %v", t.path, line, userName, err)
			} else {
				u.GroupRefs = refs
			}
		}

		snapshot.Users = append(snapshot.Users, u)
	}
}

func readGroups(t *table, snapshot *sources.Snapshot) error {
	if !t.has("id") && !t.has("displayName") {
		return &errors.ParseError{Format: "csv", File: t.path, Message: "missing column id or displayName"}
	}

	for {
		record, err := t.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return csvError(t.path, err)
		}
		line := t.line()

		g := sources.Group{
			ID:          t.field(record, "id"),
			DisplayName: t.field(record, "displayName"),
		}
		if g.Ref() == "" {
			snapshot.Warnf("%s:%d: group has neither id nor displayName, row skipped", t.path, line)
			continue
		}
		if raw := t.field(record, "members"); raw != "" {
			members, err := decodeList(raw)
			if err != nil {
				snapshot.Warnf("%s:%d: invalid members JSON for group %s, skipped: %v", t.path, line, g.Ref(), err)
			} else {
				g.Members = members
			}
		}

		snapshot.Groups = append(snapshot.Groups, g)
	}
}

// decodeField decodes a JSON cell, retrying with spreadsheet quote escaping undone.
func decodeField(raw string, v any) error {
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	cleaned := unescapeQuotes(raw)
	if cleaned == raw {
		return err
	}
	return json.Unmarshal([]byte(cleaned), v)
}

func unescapeQuotes(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, `""`, `"`)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// decodeList decodes a JSON array of strings, numbers or {"value": ...} objects.
func decodeList(raw string) ([]string, error) {
	var items []any
	if err := decodeField(raw, &items); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		case map[string]any:
			if value, ok := v["value"].(string); ok && value != "" {
				out = append(out, value)
			}
		default:
			return nil, fmt.Errorf("unsupported list item %v", item)
		}
	}
	return out, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(raw)
}
