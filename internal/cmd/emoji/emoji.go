// Package emoji provides the status symbols used in omnisync CLI output.
package emoji

const (
	// Success marks a completed write or an active user.
	Success = "✓"

	// Error marks a failed write or an inactive user.
	Error = "✗"

	// Warning marks skipped records and source problems.
	Warning = "!"

	// Skipped marks work a dry run planned but did not perform.
	Skipped = "-"

	// Info prefixes informational lines such as the chosen source.
	Info = "i"
)
