// Package groups provides the group commands: lookup, search, members,
// export and history.
package groups

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/omnisync/cmd/application"
	"github.com/agentstation/omnisync/internal/cmd/cmdutil"
	"github.com/agentstation/omnisync/internal/cmd/output"
	"github.com/agentstation/omnisync/pkg/scim"
)

// GroupID is the cobra command group the group commands are listed under.
const GroupID = "groups"

// NewCommands returns every group command.
func NewCommands(app application.Application) []*cobra.Command {
	return []*cobra.Command{
		NewGetGroupByIDCommand(app),
		NewSearchGroupsCommand(app),
		NewGetGroupMembersCommand(app),
		NewExportGroupsJSONCommand(app),
		NewGetGroupHistoryCommand(app),
	}
}

// NewGetGroupByIDCommand creates the get-group-by-id command.
func NewGetGroupByIDCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "get-group-by-id [ID]",
		GroupID: GroupID,
		Short:   "Get a group by ID (or all groups if no ID is provided)",
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
				groups, err := client.ListGroups(cmd.Context())
				if err != nil {
					return err
				}
				return output.Groups(cmd.OutOrStdout(), groups, format)
			}

			group, err := client.GetGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if format.IsTable() {
				return output.Groups(cmd.OutOrStdout(), []scim.Group{*group}, format)
			}
			return output.Any(cmd.OutOrStdout(), group, format)
		},
	}
}

// NewSearchGroupsCommand creates the search-groups command.
func NewSearchGroupsCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search-groups --query QUERY",
		GroupID: GroupID,
		Short:   "Search groups by display name",
		Args:    cobra.NoArgs,
	}
	query := cmdutil.AddQueryFlag(cmd, "group display names")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		client, err := app.Omni()
		if err != nil {
			return err
		}
		format, err := cmdutil.OutputFormat(app)
		if err != nil {
			return err
		}

		groups, err := client.SearchGroups(cmd.Context(), *query)
		if err != nil {
			return err
		}
		return output.Groups(cmd.OutOrStdout(), groups, format)
	}
	return cmd
}

// NewGetGroupMembersCommand creates the get-group-members command.
func NewGetGroupMembersCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "get-group-members ID",
		GroupID: GroupID,
		Short:   "Get all members of a group",
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

			members, err := client.GroupMembers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.Members(cmd.OutOrStdout(), members, format)
		},
	}
}

// NewExportGroupsJSONCommand creates the export-groups-json command.
func NewExportGroupsJSONCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export-groups-json",
		GroupID: GroupID,
		Short:   "Export all groups as JSON",
		Args:    cobra.NoArgs,
	}
	file := cmdutil.AddFileFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		client, err := app.Omni()
		if err != nil {
			return err
		}

		groups, err := client.ListGroups(cmd.Context())
		if err != nil {
			return err
		}

		w, closeFn, err := cmdutil.Writer(cmd, *file)
		if err != nil {
			return err
		}
		if err := output.Any(w, scim.NewListResponse(groups), output.FormatJSON); err != nil {
			_ = closeFn()
			return err
		}
		if err := closeFn(); err != nil {
			return err
		}

		app.Logger().Info().Int("groups", len(groups)).Str("file", *file).Msg("exported groups")
		return nil
	}
	return cmd
}

// NewGetGroupHistoryCommand creates the get-group-history command.
func NewGetGroupHistoryCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "get-group-history ID",
		GroupID: GroupID,
		Short:   "Get history of changes for a group",
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

			history, err := client.GroupHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.History(cmd.OutOrStdout(), history, format)
		},
	}
}
