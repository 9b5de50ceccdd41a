package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/omnisync/cmd/omnisync/cmd/groups"
	synccmd "github.com/agentstation/omnisync/cmd/omnisync/cmd/sync"
	"github.com/agentstation/omnisync/cmd/omnisync/cmd/users"
	"github.com/agentstation/omnisync/internal/cmd/cmdutil"
	"github.com/agentstation/omnisync/internal/cmd/output"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(synccmd.NewCommand(a))
	rootCmd.AddCommand(users.NewCommands(a)...)
	rootCmd.AddCommand(groups.NewCommands(a)...)
	rootCmd.AddCommand(a.NewVersionCommand())
}

// versionInfo is the structured form of the version command output.
type versionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
	BuiltBy string `json:"built_by" yaml:"built_by"`
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{Version: a.version, Commit: a.commit, Date: a.date, BuiltBy: a.builtBy}

			if a.config.Format != "" {
				format, err := cmdutil.OutputFormat(a)
				if err != nil {
					return err
				}
				return output.Any(cmd.OutOrStdout(), info, format)
			}

			cmd.Printf("omnisync %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
			return nil
		},
	}
}
