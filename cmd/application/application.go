// Package application provides the application interface for omnisync commands.
//
// Commands accept this interface rather than the concrete App so they can be
// tested against a Mock that hands out an Omni client pointed at a fake server:
//
//	mock := &application.Mock{
//	    OmniFunc: func() (*omni.Client, error) {
//	        return omni.New(server.URL, omnitest.APIKey)
//	    },
//	}
//	cmd := users.NewGetUserByIDCommand(mock)
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/omnisync"
	"github.com/agentstation/omnisync/pkg/omni"
)

// Application provides what commands need from the running app.
// All methods must be safe for concurrent access.
type Application interface {
	// Omni returns the Omni client, built lazily from OMNI_BASE_URL and
	// OMNI_API_KEY. A missing value is a ConfigError.
	Omni() (*omni.Client, error)

	// Omnisync returns the sync facade over the same client.
	Omnisync() (omnisync.Omnisync, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the requested output format (table, json, yaml, wide),
	// or "" when none was given.
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
