// Package sync provides the sync command, which reconciles an identity
// source with Omni.
package sync

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/omnisync/cmd/application"
	"github.com/agentstation/omnisync/internal/cmd/cmdutil"
	"github.com/agentstation/omnisync/internal/cmd/emoji"
	"github.com/agentstation/omnisync/internal/cmd/output"
	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/differ"
	"github.com/agentstation/omnisync/pkg/sources"
	syncer "github.com/agentstation/omnisync/pkg/sync"

	// Register the csv and json readers.
	_ "github.com/agentstation/omnisync/pkg/sources/all"
)

// GroupID is the cobra command group the sync command is listed under.
const GroupID = "sync"

// Flags holds the sync command flags.
type Flags struct {
	Source      string
	Users       string
	Groups      string
	Mode        string
	DryRun      bool
	NoCreate    bool
	Concurrency int
	FailFast    bool
	FullListing bool
	Timeout     time.Duration
}

// NewCommand creates the sync command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: GroupID,
		Short:   "Synchronize users, groups, and attributes with Omni",
		Long: `Sync reads users (and, for CSV, groups) from a local identity source and
brings Omni in line with it in a single pass:

  all         create missing users, update profiles, group memberships and attributes
  groups      group memberships of users that already exist in Omni
  attributes  custom attributes of users that already exist in Omni

Users that exist in Omni but not in the source are reported, never deleted.`,
		Example: `  omnisync sync --source json --users users.json --dry-run
  omnisync sync --source csv --users users.csv --groups groups.csv --mode groups`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Source, "source", "", "source type: csv, json")
	cmd.Flags().StringVar(&flags.Users, "users", "", "path to the users file (CSV or JSON)")
	cmd.Flags().StringVar(&flags.Groups, "groups", "", "path to the groups file (required for CSV)")
	cmd.Flags().StringVar(&flags.Mode, "mode", string(differ.ModeAll), "sync mode: all, groups, attributes")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "show the planned changes without writing anything")
	cmd.Flags().BoolVar(&flags.NoCreate, "no-create", false, "do not create users missing from Omni")
	cmd.Flags().IntVar(&flags.Concurrency, "concurrency", constants.DefaultConcurrency, "parallel user lookups while planning")
	cmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "stop at the first failed write")
	cmd.Flags().BoolVar(&flags.FullListing, "full-listing", false, "list every Omni user instead of looking each one up (reports users not in the source)")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", constants.SyncTimeout, "timeout for the whole run (0 for none)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("users")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, flags *Flags) error {
	kind, err := sources.ParseKind(flags.Source)
	if err != nil {
		return err
	}
	mode, err := differ.ParseMode(flags.Mode)
	if err != nil {
		return err
	}
	format, err := cmdutil.OutputFormat(app)
	if err != nil {
		return err
	}

	facade, err := app.Omnisync()
	if err != nil {
		return err
	}
	source, err := sources.Open(kind, flags.Users, flags.Groups)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format.IsTable() {
		printBanner(w, kind, mode, flags.DryRun)
	}

	result, runErr := facade.Sync(cmd.Context(), source,
		syncer.WithMode(mode),
		syncer.WithDryRun(flags.DryRun),
		syncer.WithCreateMissing(!flags.NoCreate),
		syncer.WithConcurrency(flags.Concurrency),
		syncer.WithFailFast(flags.FailFast),
		syncer.WithFullListing(flags.FullListing),
		syncer.WithTimeout(flags.Timeout),
	)
	if result == nil {
		return runErr
	}

	if format.IsTable() {
		printResult(w, result)
	} else if err := output.Any(w, result, format); err != nil {
		return err
	}

	return runErr
}

func printBanner(w io.Writer, kind sources.Kind, mode differ.Mode, dryRun bool) {
	switch kind {
	case sources.KindCSV:
		fmt.Fprintf(w, "%s Using CSV data source\n", emoji.Info)
	case sources.KindJSON:
		fmt.Fprintf(w, "%s Using JSON data source\n", emoji.Info)
	}

	switch mode {
	case differ.ModeGroups:
		fmt.Fprintf(w, "%s Running groups-only sync", emoji.Info)
	case differ.ModeAttributes:
		fmt.Fprintf(w, "%s Running attributes-only sync", emoji.Info)
	default:
		fmt.Fprintf(w, "%s Running full sync (users, groups and attributes)", emoji.Info)
	}
	if dryRun {
		fmt.Fprint(w, " [dry run]")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
}

func printResult(w io.Writer, result *syncer.Result) {
	result.Changeset.Print(w)

	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "\n%s %d warnings\n", emoji.Warning, len(result.Warnings))
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}

	symbol := emoji.Success
	switch {
	case result.DryRun && result.HasChanges():
		symbol = emoji.Skipped
	case result.WritesFailed > 0:
		symbol = emoji.Error
	}
	fmt.Fprintf(w, "\n%s %s (%s)\n", symbol, result.Summary(), result.Duration.Round(time.Millisecond))
}
