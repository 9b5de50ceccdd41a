package groups

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apptest "github.com/agentstation/omnisync/internal/cmd/application"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/logging"
	"github.com/agentstation/omnisync/pkg/omni"
	"github.com/agentstation/omnisync/pkg/omni/omnitest"
	"github.com/agentstation/omnisync/pkg/scim"
)

func setup(t *testing.T, format string) (*omnitest.Server, *apptest.Mock) {
	t.Helper()

	server := omnitest.NewServer(t)
	server.AddUser(scim.User{ID: "u-jane", UserName: "jane@example.com"})
	server.AddUser(scim.User{ID: "u-john", UserName: "john@example.com"})
	server.AddGroup(scim.Group{ID: "g-eng", DisplayName: "Engineering", Members: []scim.Reference{{Value: "u-jane", Display: "jane@example.com"}, {Value: "u-john"}}})
	server.AddGroup(scim.Group{ID: "g-sales", DisplayName: "Sales"})

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

func TestGetGroupByID(t *testing.T) {
	t.Run("all groups", func(t *testing.T) {
		_, app := setup(t, "json")
		out, err := execute(t, NewGetGroupByIDCommand(app))
		require.NoError(t, err)

		var groups []scim.Group
		require.NoError(t, json.Unmarshal([]byte(out), &groups))
		assert.Len(t, groups, 2)
	})

	t.Run("one group as yaml", func(t *testing.T) {
		_, app := setup(t, "yaml")
		out, err := execute(t, NewGetGroupByIDCommand(app), "g-eng")
		require.NoError(t, err)
		assert.Contains(t, out, "displayName: Engineering")
	})

	t.Run("wide table", func(t *testing.T) {
		_, app := setup(t, "wide")
		out, err := execute(t, NewGetGroupByIDCommand(app), "g-sales")
		require.NoError(t, err)
		assert.Contains(t, out, "Sales")
		assert.NotContains(t, out, "Engineering")
	})

	t.Run("not found", func(t *testing.T) {
		_, app := setup(t, "json")
		_, err := execute(t, NewGetGroupByIDCommand(app), "g-none")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("invalid format", func(t *testing.T) {
		_, app := setup(t, "xml")
		_, err := execute(t, NewGetGroupByIDCommand(app))
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestSearchGroups(t *testing.T) {
	_, app := setup(t, "json")
	out, err := execute(t, NewSearchGroupsCommand(app), "--query", "eng")
	require.NoError(t, err)

	var groups []scim.Group
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "g-eng", groups[0].ID)
}

func TestGetGroupMembers(t *testing.T) {
	_, app := setup(t, "json")
	out, err := execute(t, NewGetGroupMembersCommand(app), "g-eng")
	require.NoError(t, err)

	var members []scim.Reference
	require.NoError(t, json.Unmarshal([]byte(out), &members))
	require.Len(t, members, 2)
	assert.Equal(t, "u-jane", members[0].Value)

	_, err = execute(t, NewGetGroupMembersCommand(app))
	assert.Error(t, err)
}

func TestExportGroupsJSON(t *testing.T) {
	_, app := setup(t, "yaml")
	path := filepath.Join(t.TempDir(), "groups.json")

	_, err := execute(t, NewExportGroupsJSONCommand(app), "-f", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var list scim.ListResponse[scim.Group]
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, 2, list.TotalResults)

	_, err = execute(t, NewExportGroupsJSONCommand(app), "-f", filepath.Join(t.TempDir(), "missing", "groups.json"))
	var ioErr *errors.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestGetGroupHistory(t *testing.T) {
	_, app := setup(t, "json")
	out, err := execute(t, NewGetGroupHistoryCommand(app), "g-eng")
	require.NoError(t, err)

	var history omni.History
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	assert.Equal(t, "Engineering", history.Name)
	assert.Equal(t, "Group", history.ResourceType)
}
