package users

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apptest "github.com/agentstation/omnisync/internal/cmd/application"
	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/logging"
	"github.com/agentstation/omnisync/pkg/omni"
	"github.com/agentstation/omnisync/pkg/omni/omnitest"
	"github.com/agentstation/omnisync/pkg/scim"
	"github.com/agentstation/omnisync/pkg/sources/jsonsource"
)

func setup(t *testing.T, format string) (*omnitest.Server, *apptest.Mock) {
	t.Helper()

	server := omnitest.NewServer(t)
	server.AddUser(scim.User{ID: "u-jane", UserName: "jane@example.com", DisplayName: "Jane Doe", Attributes: scim.Attributes{"team": "data"}})
	server.AddUser(scim.User{ID: "u-john", UserName: "john@example.com", DisplayName: "John Roe"})

	app := &apptest.Mock{
		OmniFunc: func() (*omni.Client, error) {
			return omni.New(server.URL, omnitest.APIKey, omni.WithLogger(logging.NewNopLogger()))
		},
		OutputFormatFunc: func() string { return format },
	}
	return server, app
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), constants.FilePermissions))
	return path
}

func TestGetUserByID(t *testing.T) {
	t.Run("all users", func(t *testing.T) {
		_, app := setup(t, "json")
		out, err := execute(t, NewGetUserByIDCommand(app))
		require.NoError(t, err)

		var users []scim.User
		require.NoError(t, json.Unmarshal([]byte(out), &users))
		assert.Len(t, users, 2)
	})

	t.Run("one user", func(t *testing.T) {
		_, app := setup(t, "json")
		out, err := execute(t, NewGetUserByIDCommand(app), "u-jane")
		require.NoError(t, err)

		var user scim.User
		require.NoError(t, json.Unmarshal([]byte(out), &user))
		assert.Equal(t, "jane@example.com", user.UserName)
		assert.Equal(t, "data", user.Attributes["team"])
	})

	t.Run("table", func(t *testing.T) {
		_, app := setup(t, "table")
		out, err := execute(t, NewGetUserByIDCommand(app), "u-jane")
		require.NoError(t, err)
		assert.Contains(t, out, "Jane Doe")
		assert.NotContains(t, out, "john@example.com")
	})

	t.Run("not found", func(t *testing.T) {
		_, app := setup(t, "json")
		_, err := execute(t, NewGetUserByIDCommand(app), "u-nobody")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("too many args", func(t *testing.T) {
		_, app := setup(t, "json")
		_, err := execute(t, NewGetUserByIDCommand(app), "a", "b")
		assert.Error(t, err)
	})

	t.Run("configuration error", func(t *testing.T) {
		app := &apptest.Mock{OmniFunc: func() (*omni.Client, error) {
			return omni.New("", "")
		}}
		_, err := execute(t, NewGetUserByIDCommand(app))
		assert.True(t, errors.IsAPIKeyError(err))
		assert.Contains(t, err.Error(), "OMNI_BASE_URL and OMNI_API_KEY must be set")
	})
}

func TestSearchUsers(t *testing.T) {
	_, app := setup(t, "json")
	out, err := execute(t, NewSearchUsersCommand(app), "--query", "jane")
	require.NoError(t, err)

	var users []scim.User
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "u-jane", users[0].ID)

	_, err = execute(t, NewSearchUsersCommand(app))
	assert.ErrorContains(t, err, `required flag(s) "query" not set`)
}

func TestGetUserAttributes(t *testing.T) {
	_, app := setup(t, "json")
	out, err := execute(t, NewGetUserAttributesCommand(app), "u-jane")
	require.NoError(t, err)
	assert.JSONEq(t, `{"team":"data"}`, out)

	out, err = execute(t, NewGetUserAttributesCommand(app), "u-john")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, out)
}

func TestExportUsersJSON(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		// format flag is ignored: export is always JSON
		_, app := setup(t, "table")
		out, err := execute(t, NewExportUsersJSONCommand(app))
		require.NoError(t, err)

		var list scim.ListResponse[scim.User]
		require.NoError(t, json.Unmarshal([]byte(out), &list))
		assert.Equal(t, 2, list.TotalResults)
	})

	t.Run("file can be read back as a json source", func(t *testing.T) {
		_, app := setup(t, "json")
		path := filepath.Join(t.TempDir(), "users.json")

		out, err := execute(t, NewExportUsersJSONCommand(app), "--file", path)
		require.NoError(t, err)
		assert.Empty(t, out)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		snapshot, err := jsonsource.Parse(data)
		require.NoError(t, err)
		require.Len(t, snapshot.Users, 2)
		jane, ok := snapshot.User("jane@example.com")
		require.True(t, ok)
		assert.Equal(t, "data", jane.Attributes["team"])
	})
}

func TestGetUserHistory(t *testing.T) {
	_, app := setup(t, "json")
	out, err := execute(t, NewGetUserHistoryCommand(app), "u-jane")
	require.NoError(t, err)

	var history omni.History
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	assert.Equal(t, "jane@example.com", history.Name)
	require.NotEmpty(t, history.Events)
	assert.Equal(t, "created", history.Events[0].Event)
}

func TestBulkCreateUsers(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		server, app := setup(t, "json")
		path := writeFile(t, "new.json", `[
			{"userName": "ann@example.com", "displayName": "Ann"},
			{"userName": "bob@example.com", "urn:omni:params:1.0:UserAttribute": {"team": "ops"}}
		]`)

		out, err := execute(t, NewBulkCreateUsersCommand(app), path)
		require.NoError(t, err)

		var resp scim.BulkResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Len(t, resp.Operations, 2)
		assert.Empty(t, resp.Failed())

		bob, ok := server.UserByName("bob@example.com")
		require.True(t, ok)
		assert.Equal(t, "ops", bob.Attributes["team"])
	})

	t.Run("csv", func(t *testing.T) {
		server, app := setup(t, "json")
		path := writeFile(t, "new.csv", "userName,displayName\nann@example.com,Ann\n")

		_, err := execute(t, NewBulkCreateUsersCommand(app), path)
		require.NoError(t, err)
		_, ok := server.UserByName("ann@example.com")
		assert.True(t, ok)
	})

	t.Run("partial failure", func(t *testing.T) {
		_, app := setup(t, "table")
		path := writeFile(t, "new.json", `[{"userName": "ann@example.com"}, {"userName": "jane@example.com"}]`)

		out, err := execute(t, NewBulkCreateUsersCommand(app), path)
		assert.EqualError(t, err, "1 of 2 bulk operations failed")
		assert.Contains(t, out, "409")
	})

	t.Run("empty file", func(t *testing.T) {
		server, app := setup(t, "json")
		path := writeFile(t, "empty.csv", "userName\n")

		_, err := execute(t, NewBulkCreateUsersCommand(app), path)
		assert.True(t, errors.IsValidationError(err))
		assert.Empty(t, server.Writes())
	})

	t.Run("missing file", func(t *testing.T) {
		_, app := setup(t, "json")
		_, err := execute(t, NewBulkCreateUsersCommand(app), filepath.Join(t.TempDir(), "nope.json"))
		var ioErr *errors.IOError
		assert.ErrorAs(t, err, &ioErr)
	})
}

func TestBulkUpdateUsers(t *testing.T) {
	t.Run("resolves ids by user name", func(t *testing.T) {
		server, app := setup(t, "json")
		path := writeFile(t, "update.csv", "userName,displayName\njane@example.com,Jane Smith\n")

		_, err := execute(t, NewBulkUpdateUsersCommand(app), path)
		require.NoError(t, err)

		jane, _ := server.User("u-jane")
		assert.Equal(t, "Jane Smith", jane.DisplayName)

		writes := server.Writes()
		require.Len(t, writes, 1)
		assert.Equal(t, http.MethodPost, writes[0].Method)
		assert.Equal(t, "/Bulk", writes[0].Path)
	})

	t.Run("unknown user writes nothing", func(t *testing.T) {
		server, app := setup(t, "json")
		path := writeFile(t, "update.json", `{"Resources": [{"userName": "ghost@example.com"}]}`)

		_, err := execute(t, NewBulkUpdateUsersCommand(app), path)
		assert.True(t, errors.IsNotFound(err))
		assert.Contains(t, err.Error(), "ghost@example.com")
		assert.Empty(t, server.Writes())
	})
}

func TestNewCommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range NewCommands(&apptest.Mock{}) {
		names[cmd.Name()] = true
		assert.Equal(t, GroupID, cmd.GroupID)
	}
	for _, name := range []string{
		"get-user-by-id", "search-users", "get-user-attributes",
		"bulk-create-users", "bulk-update-users", "export-users-json", "get-user-history",
	} {
		assert.True(t, names[name], name)
	}
}
