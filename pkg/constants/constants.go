// Package constants provides shared constants used throughout the omnisync codebase.
// This includes timeouts, limits, file permissions, and the fixed values of the
// Omni SCIM API that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to the Omni API
	DefaultHTTPTimeout = 30 * time.Second

	// SyncTimeout is the default upper bound for a complete sync run
	SyncTimeout = 30 * time.Minute

	// ShutdownTimeout is how long main waits for cleanup after a failed command
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// DefaultPageSize is the number of resources requested per SCIM list page
	DefaultPageSize = 100

	// MaxPageSize is the largest page size the CLI will request
	MaxPageSize = 1000

	// DefaultConcurrency is the number of concurrent remote user lookups during sync planning
	DefaultConcurrency = 4

	// MaxConcurrency caps remote user lookups so a large source cannot flood the API
	MaxConcurrency = 32

	// MaxBulkOperations is the number of operations sent per SCIM bulk request
	MaxBulkOperations = 100
)

// Omni API constants
const (
	// SCIMBasePath is the path prefix of the Omni SCIM 2.0 API
	SCIMBasePath = "/api/scim/v2"

	// ProviderName identifies the remote platform in API errors and logs
	ProviderName = "omni"

	// EnvBaseURL is the environment variable holding the Omni base URL
	EnvBaseURL = "OMNI_BASE_URL"

	// EnvAPIKey is the environment variable holding the Omni API key
	EnvAPIKey = "OMNI_API_KEY"
)

// Format constants
const (
	// TimeFormatHuman is a human-readable time format
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"
)
