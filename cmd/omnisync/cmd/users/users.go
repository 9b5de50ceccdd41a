// Package users provides the user commands: lookup, search, attributes,
// bulk create/update, export and history.
package users

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/omnisync/cmd/application"
	"github.com/agentstation/omnisync/internal/cmd/cmdutil"
	"github.com/agentstation/omnisync/internal/cmd/output"
	"github.com/agentstation/omnisync/pkg/scim"
)

// GroupID is the cobra command group the user commands are listed under.
const GroupID = "users"

// NewCommands returns every user command.
func NewCommands(app application.Application) []*cobra.Command {
	return []*cobra.Command{
		NewGetUserByIDCommand(app),
		NewSearchUsersCommand(app),
		NewGetUserAttributesCommand(app),
		NewBulkCreateUsersCommand(app),
		NewBulkUpdateUsersCommand(app),
		NewExportUsersJSONCommand(app),
		NewGetUserHistoryCommand(app),
	}
}

// NewGetUserByIDCommand creates the get-user-by-id command.
func NewGetUserByIDCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "get-user-by-id [ID]",
		GroupID: GroupID,
		Short:   "Get a user by ID (or all users if no ID is provided)",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Omni()
			if err != nil {
				return err
			}
			format, err := cmdutil.OutputFormat(app)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				users, err := client.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				return output.Users(cmd.OutOrStdout(), users, format)
			}

			user, err := client.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if format.IsTable() {
				return output.Users(cmd.OutOrStdout(), []scim.User{*user}, format)
			}
			return output.Any(cmd.OutOrStdout(), user, format)
		},
	}
}

// NewSearchUsersCommand creates the search-users command.
func NewSearchUsersCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search-users --query QUERY",
		GroupID: GroupID,
		Short:   "Search users by user name or display name",
		Args:    cobra.NoArgs,
	}
	query := cmdutil.AddQueryFlag(cmd, "user names and display names")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		client, err := app.Omni()
		if err != nil {
			return err
		}
		format, err := cmdutil.OutputFormat(app)
		if err != nil {
			return err
		}

		users, err := client.SearchUsers(cmd.Context(), *query)
		if err != nil {
			return err
		}
		return output.Users(cmd.OutOrStdout(), users, format)
	}
	return cmd
}

// NewGetUserAttributesCommand creates the get-user-attributes command.
func NewGetUserAttributesCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "get-user-attributes ID",
		GroupID: GroupID,
		Short:   "Get a user's custom attributes",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Omni()
			if err != nil {
				return err
			}
			format, err := cmdutil.OutputFormat(app)
			if err != nil {
				return err
			}

			attrs, err := client.GetUserAttributes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.Attributes(cmd.OutOrStdout(), attrs, format)
		},
	}
}

// NewExportUsersJSONCommand creates the export-users-json command.
func NewExportUsersJSONCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export-users-json",
		GroupID: GroupID,
		Short:   "Export all users as JSON",
		Args:    cobra.NoArgs,
	}
	file := cmdutil.AddFileFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		client, err := app.Omni()
		if err != nil {
			return err
		}

		users, err := client.ListUsers(cmd.Context())
		if err != nil {
			return err
		}

		w, closeFn, err := cmdutil.Writer(cmd, *file)
		if err != nil {
			return err
		}
		if err := output.Any(w, scim.NewListResponse(users), output.FormatJSON); err != nil {
			_ = closeFn()
			return err
		}
		if err := closeFn(); err != nil {
			return err
		}

		app.Logger().Info().Int("users", len(users)).Str("file", *file).Msg("exported users")
		return nil
	}
	return cmd
}

// NewGetUserHistoryCommand creates the get-user-history command.
func NewGetUserHistoryCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "get-user-history ID",
		GroupID: GroupID,
		Short:   "Get history of changes for a user",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Omni()
			if err != nil {
				return err
			}
			format, err := cmdutil.OutputFormat(app)
			if err != nil {
				return err
			}

			history, err := client.UserHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.History(cmd.OutOrStdout(), history, format)
		},
	}
}
