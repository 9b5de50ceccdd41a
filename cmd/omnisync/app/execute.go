package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/omnisync/internal/cmd/cmdutil"
	"github.com/agentstation/omnisync/pkg/logging"
)

// Execute runs the omnisync CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "omnisync",
		Short:   "Sync users, groups and attributes with Omni",
		Version: a.version,
		Long: `omnisync reconciles a local identity source (SCIM JSON, or users and
groups CSV files) with the users, group memberships and user attributes held
by Omni, and provides commands to inspect and export Omni users and groups.

Connection settings are read from OMNI_BASE_URL and OMNI_API_KEY, which may
be placed in a .env or .env.local file in the working directory.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	if a.out != nil {
		rootCmd.SetOut(a.out)
	}
	if a.errOut != nil {
		rootCmd.SetErr(a.errOut)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "users", Title: "User Commands:"},
		&cobra.Group{ID: "groups", Title: "Group Commands:"},
	)

	// Flag defaults come from the loaded config so env and file values survive.
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.omnisync.yaml)")
	flags.BoolVarP(&a.config.Verbose, "verbose", "v", a.config.Verbose, "verbose output (shortcut for --log-level=debug)")
	flags.BoolVarP(&a.config.Quiet, "quiet", "q", a.config.Quiet, "minimal output (shortcut for --log-level=warn)")
	flags.BoolVar(&a.config.NoColor, "no-color", a.config.NoColor, "disable colored output")
	flags.StringVarP(&a.config.Format, "format", "o", a.config.Format, "output format: table, json, yaml, wide")
	flags.StringVar(&a.config.LogLevel, "log-level", a.config.LogLevel, "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.BoolVar(&a.config.Debug, "debug", false, "debug logging plus configuration diagnostics")

	rootCmd.SetVersionTemplate("omnisync {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("config") {
		if err := a.config.reload(cmdutil.MustGetString(cmd, "config")); err != nil {
			return err
		}
	}

	if !a.fixedLogger {
		logger := NewLogger(a.config)
		a.logger = &logger
		logging.SetDefault(logger)
	}
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))

	if a.config.Debug {
		a.logDiagnostics()
	}
	return nil
}

// logDiagnostics reports where configuration came from. Secrets are only
// reported as set or unset.
func (a *App) logDiagnostics() {
	cwd, _ := os.Getwd()
	a.logger.Debug().
		Str("cwd", cwd).
		Strs("env_files", a.config.EnvFiles).
		Str("config_file", a.config.ConfigFile).
		Str("base_url", a.config.BaseURL).
		Bool("api_key_set", a.config.APIKey != "").
		Int("page_size", a.config.PageSize).
		Dur("timeout", a.config.Timeout).
		Msg("configuration")
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
