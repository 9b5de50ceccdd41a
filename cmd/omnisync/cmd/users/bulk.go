package users

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/omnisync/cmd/application"
	"github.com/agentstation/omnisync/internal/cmd/cmdutil"
	"github.com/agentstation/omnisync/internal/cmd/output"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/omni"
	"github.com/agentstation/omnisync/pkg/scim"
	"github.com/agentstation/omnisync/pkg/sources"
	"github.com/agentstation/omnisync/pkg/sources/csvsource"
	"github.com/agentstation/omnisync/pkg/sources/jsonsource"
)

// NewBulkCreateUsersCommand creates the bulk-create-users command.
func NewBulkCreateUsersCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "bulk-create-users FILE",
		GroupID: GroupID,
		Short:   "Create multiple users in a single request",
		Long: `Create every user in FILE through the SCIM bulk endpoint.

FILE is a SCIM list response or array of users (.json), or a users CSV
file with the same columns the sync command reads (.csv).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, app, args[0], func(ctx context.Context, client *omni.Client, users []scim.User) (*scim.BulkResponse, error) {
				return client.BulkCreateUsers(ctx, users)
			})
		},
	}
}

// NewBulkUpdateUsersCommand creates the bulk-update-users command.
func NewBulkUpdateUsersCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "bulk-update-users FILE",
		GroupID: GroupID,
		Short:   "Update multiple users in a single request",
		Long: `Replace every user in FILE through the SCIM bulk endpoint.

Users without an id are looked up by userName first; the command fails
before writing anything if one of them does not exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, app, args[0], func(ctx context.Context, client *omni.Client, users []scim.User) (*scim.BulkResponse, error) {
				if err := resolveIDs(ctx, client, users); err != nil {
					return nil, err
				}
				return client.BulkUpdateUsers(ctx, users)
			})
		},
	}
}

type bulkFunc func(context.Context, *omni.Client, []scim.User) (*scim.BulkResponse, error)

func runBulk(cmd *cobra.Command, app application.Application, path string, fn bulkFunc) error {
	format, err := cmdutil.OutputFormat(app)
	if err != nil {
		return err
	}

	snapshot, err := readUsersFile(path)
	if err != nil {
		return err
	}
	logger := app.Logger()
	for _, w := range snapshot.Warnings {
		logger.Warn().Str("file", path).Msg(w)
	}
	if len(snapshot.Users) == 0 {
		return &errors.ValidationError{Field: "FILE", Value: path, Message: "contains no users"}
	}

	client, err := app.Omni()
	if err != nil {
		return err
	}

	users := make([]scim.User, len(snapshot.Users))
	for i, u := range snapshot.Users {
		users[i] = u.User
	}

	resp, err := fn(cmd.Context(), client, users)
	if err != nil {
		return err
	}
	if err := output.Bulk(cmd.OutOrStdout(), resp, format); err != nil {
		return err
	}

	if failed := resp.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d bulk operations failed", len(failed), len(resp.Operations))
	}
	logger.Info().Int("users", len(users)).Msg("bulk request completed")
	return nil
}

// readUsersFile reads users from a JSON or CSV file, chosen by extension.
func readUsersFile(path string) (*sources.Snapshot, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return csvsource.LoadUsers(path)
	}

	if err := sources.CheckFiles(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	snapshot, err := jsonsource.Parse(data)
	if err != nil {
		var parseErr *errors.ParseError
		if errors.As(err, &parseErr) {
			parseErr.File = path
		}
		return nil, err
	}
	return snapshot, nil
}

// resolveIDs fills in missing ids by looking users up by userName.
func resolveIDs(ctx context.Context, client *omni.Client, users []scim.User) error {
	var missing []string
	for i := range users {
		if users[i].ID != "" {
			continue
		}
		existing, err := client.FindUserByUserName(ctx, users[i].UserName)
		if err != nil {
			return err
		}
		if existing == nil {
			missing = append(missing, users[i].UserName)
			continue
		}
		users[i].ID = existing.ID
	}

	if len(missing) > 0 {
		return &errors.NotFoundError{Resource: "user", ID: strings.Join(missing, ", ")}
	}
	return nil
}
