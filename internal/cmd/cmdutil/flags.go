// Package cmdutil provides shared flags and helpers for omnisync commands.
package cmdutil

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/omnisync/cmd/application"
	"github.com/agentstation/omnisync/internal/cmd/output"
	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/errors"
)

// OutputFormat resolves the output format requested through the app,
// detecting one from the terminal when none was given.
func OutputFormat(app application.Application) (output.Format, error) {
	format, err := output.ParseFormat(app.OutputFormat())
	if err != nil {
		return "", err
	}
	return output.DetectFormat(string(format)), nil
}

// AddQueryFlag adds the required --query flag used by search commands.
func AddQueryFlag(cmd *cobra.Command, what string) *string {
	var query string
	cmd.Flags().StringVar(&query, "query", "", "substring to match against "+what)
	_ = cmd.MarkFlagRequired("query")
	return &query
}

// AddFileFlag adds the --file flag used by export commands.
func AddFileFlag(cmd *cobra.Command) *string {
	var file string
	cmd.Flags().StringVarP(&file, "file", "f", "", "write to this file instead of stdout")
	return &file
}

// Writer returns the file at path, or the command's stdout when path is
// empty. The returned close function must always be called.
func Writer(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, nil, errors.WrapIO("create", path, err)
	}
	return f, f.Close, nil
}

// MustGetString retrieves a string flag value or panics if the flag doesn't exist.
func MustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// MustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
func MustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
