package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/omnisync"
	apptest "github.com/agentstation/omnisync/internal/cmd/application"
	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/logging"
	"github.com/agentstation/omnisync/pkg/omni"
	"github.com/agentstation/omnisync/pkg/omni/omnitest"
	"github.com/agentstation/omnisync/pkg/scim"
)

const usersJSON = `{
  "Resources": [
    {
      "userName": "jane@example.com",
      "displayName": "Jane Doe",
      "groups": [{"value": "g-eng"}],
      "urn:omni:params:1.0:UserAttribute": {"team": "data"}
    },
    {
      "userName": "new@example.com",
      "displayName": "New Person",
      "groups": [{"display": "Engineering"}]
    }
  ]
}`

func setup(t *testing.T, format string) (*omnitest.Server, *apptest.Mock, string) {
	t.Helper()

	server := omnitest.NewServer(t)
	server.AddUser(scim.User{ID: "u-jane", UserName: "jane@example.com", DisplayName: "Jane Doe", Attributes: scim.Attributes{"team": "ops"}})
	server.AddGroup(scim.Group{ID: "g-eng", DisplayName: "Engineering", Members: []scim.Reference{{Value: "u-jane"}}})

	app := &apptest.Mock{
		OmniFunc: func() (*omni.Client, error) {
			return omni.New(server.URL, omnitest.APIKey, omni.WithLogger(logging.NewNopLogger()))
		},
		OutputFormatFunc: func() string { return format },
	}

	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(usersJSON), constants.FilePermissions))
	return server, app, path
}

func execute(t *testing.T, app *apptest.Mock, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSyncJSON(t *testing.T) {
	server, app, path := setup(t, "json")

	out, err := execute(t, app, "--source", "json", "--users", path)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "all", result["mode"])
	assert.InDelta(t, 1, result["usersCreated"], 0)
	assert.InDelta(t, 1, result["groupsUpdated"], 0)
	assert.InDelta(t, 0, result["writesFailed"], 0)

	created, ok := server.UserByName("new@example.com")
	require.True(t, ok)
	eng, _ := server.Group("g-eng")
	assert.True(t, eng.HasMember(created.ID))

	jane, _ := server.User("u-jane")
	assert.Equal(t, "data", jane.Attributes["team"])

	// second pass has nothing left to do
	before := len(server.Writes())
	_, err = execute(t, app, "--source", "json", "--users", path)
	require.NoError(t, err)
	assert.Len(t, server.Writes(), before)
}

func TestSyncRunsThroughFacade(t *testing.T) {
	server, app, path := setup(t, "json")

	var created []string
	app.OmnisyncFunc = func() (omnisync.Omnisync, error) {
		client, err := app.Omni()
		if err != nil {
			return nil, err
		}
		facade, err := omnisync.New(omnisync.WithClient(client))
		if err != nil {
			return nil, err
		}
		facade.OnUserCreated(func(u scim.User) { created = append(created, u.UserName) })
		return facade, nil
	}

	_, err := execute(t, app, "--source", "json", "--users", path)
	require.NoError(t, err)
	assert.Equal(t, []string{"new@example.com"}, created)

	_, ok := server.UserByName("new@example.com")
	assert.True(t, ok)
}

func TestSyncDryRunTable(t *testing.T) {
	server, app, path := setup(t, "table")

	out, err := execute(t, app, "--source", "json", "--users", path, "--dry-run")
	require.NoError(t, err)
	assert.Empty(t, server.Writes())

	assert.Contains(t, out, "Using JSON data source")
	assert.Contains(t, out, "Running full sync")
	assert.Contains(t, out, "[dry run]")
	assert.Contains(t, out, "new@example.com")
	assert.Contains(t, out, "dry run, nothing written")
}

func TestSyncModes(t *testing.T) {
	server, app, path := setup(t, "json")

	out, err := execute(t, app, "--source", "json", "--users", path, "--mode", "attributes")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.InDelta(t, 1, result["usersMissing"], 0)
	assert.InDelta(t, 1, result["attributesUpdated"], 0)

	_, ok := server.UserByName("new@example.com")
	assert.False(t, ok)
	writes := server.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "/Users/u-jane", writes[0].Path)
}

func TestSyncWriteFailureFailsCommand(t *testing.T) {
	server, app, path := setup(t, "table")
	server.Fail(http.MethodPatch, "/Groups/", http.StatusInternalServerError, "boom")

	out, err := execute(t, app, "--source", "json", "--users", path)
	require.Error(t, err)

	var syncErr *errors.SyncError
	assert.ErrorAs(t, err, &syncErr)
	assert.Contains(t, out, "1 of 3 writes failed")
}

func TestSyncCSVMembersByRemoteID(t *testing.T) {
	server := omnitest.NewServer(t)
	server.AddUser(scim.User{ID: "omni-42", UserName: "jane@example.com"})
	server.AddGroup(scim.Group{ID: "g-eng", DisplayName: "Engineering", Members: []scim.Reference{{Value: "omni-42"}}})
	app := &apptest.Mock{
		OmniFunc: func() (*omni.Client, error) {
			return omni.New(server.URL, omnitest.APIKey, omni.WithLogger(logging.NewNopLogger()))
		},
		OutputFormatFunc: func() string { return "json" },
	}

	// users.csv without an id column; groups.csv lists members by Omni id
	dir := t.TempDir()
	users := filepath.Join(dir, "users.csv")
	groups := filepath.Join(dir, "groups.csv")
	require.NoError(t, os.WriteFile(users, []byte("userName\njane@example.com\n"), constants.FilePermissions))
	require.NoError(t, os.WriteFile(groups, []byte("id,displayName,members\ng-eng,Engineering,\"[\"\"omni-42\"\"]\"\n"), constants.FilePermissions))

	out, err := execute(t, app, "--source", "csv", "--users", users, "--groups", groups, "--mode", "groups")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Nil(t, result["warnings"])
	assert.Empty(t, server.Writes())
	eng, _ := server.Group("g-eng")
	assert.True(t, eng.HasMember("omni-42"))
}

func TestSyncJSONUserWithoutGroupsLeavesGroups(t *testing.T) {
	server, app, _ := setup(t, "json")
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"userName":"jane@example.com"}]`), constants.FilePermissions))

	_, err := execute(t, app, "--source", "json", "--users", path, "--mode", "groups")
	require.NoError(t, err)

	eng, _ := server.Group("g-eng")
	assert.False(t, eng.HasMember("u-jane"))
	require.Len(t, server.Writes(), 1)
	assert.Equal(t, "/Groups/g-eng", server.Writes()[0].Path)
}

func TestSyncFlagErrors(t *testing.T) {
	tests := []struct {
		name  string
		args  func(path string) []string
		check func(t *testing.T, err error)
	}{
		{
			name: "missing required flags",
			args: func(string) []string { return nil },
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "required flag(s)")
			},
		},
		{
			name: "unknown source",
			args: func(path string) []string { return []string{"--source", "ldap", "--users", path} },
			check: func(t *testing.T, err error) {
				assert.True(t, errors.IsValidationError(err))
			},
		},
		{
			name: "unknown mode",
			args: func(path string) []string { return []string{"--source", "json", "--users", path, "--mode", "everything"} },
			check: func(t *testing.T, err error) {
				assert.True(t, errors.IsValidationError(err))
			},
		},
		{
			name: "csv needs groups",
			args: func(path string) []string { return []string{"--source", "csv", "--users", path} },
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "--groups is required when using CSV source")
			},
		},
		{
			name: "missing users file",
			args: func(path string) []string {
				return []string{"--source", "json", "--users", filepath.Join(filepath.Dir(path), "nope.json")}
			},
			check: func(t *testing.T, err error) {
				var ioErr *errors.IOError
				assert.ErrorAs(t, err, &ioErr)
			},
		},
		{
			name: "bad concurrency",
			args: func(path string) []string { return []string{"--source", "json", "--users", path, "--concurrency", "0"} },
			check: func(t *testing.T, err error) {
				assert.True(t, errors.IsValidationError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, app, path := setup(t, "json")
			_, err := execute(t, app, tt.args(path)...)
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, server.Writes())
		})
	}
}
