package jsonsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/sources"
)

const listResponse = `{
  "schemas": ["urn:ietf:params:scim:api:messages:2.0:ListResponse"],
  "totalResults": 2,
  "Resources": [
    {
      "schemas": ["urn:ietf:params:scim:schemas:core:2.0:User", "urn:omni:params:1.0:UserAttribute"],
      "userName": "jane@example.com",
      "displayName": "Jane Doe",
      "active": true,
      "emails": [{"value": "jane@example.com", "primary": true}],
      "groups": [{"display": "Engineering", "value": "g-eng"}, {"display": "Admins", "value": "g-admin"}],
      "urn:omni:params:1.0:UserAttribute": {"team": "data", "tags": ["a", "b"]}
    },
    {
      "userName": "john@example.com",
      "displayName": "John Roe"
    }
  ]
}`

func TestParseListResponse(t *testing.T) {
	snapshot, err := Parse([]byte(listResponse))
	require.NoError(t, err)
	assert.Equal(t, sources.KindJSON, snapshot.Kind)
	require.Len(t, snapshot.Users, 2)

	jane := snapshot.Users[0]
	assert.Equal(t, "Jane Doe", jane.DisplayName)
	assert.True(t, jane.ManagesGroups)
	assert.Equal(t, []string{"g-eng", "g-admin"}, jane.GroupRefs)
	assert.Equal(t, "data", jane.Attributes["team"])
	assert.Equal(t, []any{"a", "b"}, jane.Attributes["tags"])

	// no "groups" key means no groups
	john := snapshot.Users[1]
	assert.True(t, john.ManagesGroups)
	assert.Empty(t, john.GroupRefs)

	require.Len(t, snapshot.Groups, 2)
	assert.Equal(t, "Engineering", snapshot.Groups[0].DisplayName)

	memberships, warnings := snapshot.Memberships(nil)
	assert.Empty(t, warnings)
	assert.Equal(t, map[string][]string{
		"jane@example.com": {"g-admin", "g-eng"},
		"john@example.com": {},
	}, memberships)
}

func TestParseBareArray(t *testing.T) {
	snapshot, err := Parse([]byte(`[{"userName":"jane@example.com","groups":[]}]`))
	require.NoError(t, err)
	require.Len(t, snapshot.Users, 1)
	assert.True(t, snapshot.Users[0].ManagesGroups)

	memberships, _ := snapshot.Memberships(nil)
	assert.Equal(t, []string{}, memberships["jane@example.com"])
}

func TestParseSkipsBadResources(t *testing.T) {
	snapshot, err := Parse([]byte(`{"Resources":[
		42,
		{"displayName":"No Name"},
		{"userName":"jane@example.com"},
		{"userName":"jane@example.com"}
	]}`))
	require.NoError(t, err)
	assert.Len(t, snapshot.Users, 1)
	assert.Len(t, snapshot.Warnings, 3)
}

func TestParseDuplicateUserNamesIgnoreCase(t *testing.T) {
	snapshot, err := Parse([]byte(`{"Resources":[
		{"userName":"Alice@example.com","displayName":"Alice"},
		{"userName":"alice@example.com","displayName":"Alice Again"}
	]}`))
	require.NoError(t, err)
	require.Len(t, snapshot.Users, 1)
	assert.Equal(t, "Alice@example.com", snapshot.Users[0].UserName)
	require.Len(t, snapshot.Warnings, 1)
	assert.Contains(t, snapshot.Warnings[0], "duplicate userName alice@example.com")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid json", data: `{"Resources": [`},
		{name: "missing resources", data: `{"users": []}`},
		{name: "resources not array", data: `{"Resources": {}}`},
		{name: "no usable users", data: `[{"displayName":"x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			var parseErr *errors.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(path, []byte(listResponse), constants.FilePermissions))

	src, err := sources.Open(sources.KindJSON, path, "")
	require.NoError(t, err)
	assert.Equal(t, "json("+path+")", src.String())

	snapshot, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot.Users, 2)
}

func TestLoadErrorsNameFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")

	src, err := New(path)
	require.NoError(t, err)

	_, err = src.Load(context.Background())
	var ioErr *errors.IOError
	require.ErrorAs(t, err, &ioErr)

	require.NoError(t, os.WriteFile(path, []byte("nope"), constants.FilePermissions))
	_, err = src.Load(context.Background())
	var parseErr *errors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, path, parseErr.File)
}
