// Package app provides the application context and dependency management
// for the omnisync CLI: configuration, logging and the lazily created Omni
// client shared by every command.
package app

import (
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/omnisync"
	"github.com/agentstation/omnisync/cmd/application"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/omni"
)

// App represents the omnisync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// fixedLogger keeps a logger passed with WithLogger across flag parsing.
	fixedLogger bool

	// out and errOut override the root command's writers (tests).
	out    io.Writer
	errOut io.Writer

	// Omni client and sync facade (lazy-initialized, singletons)
	mu     sync.Mutex
	client *omni.Client
	syncer omnisync.Omnisync
}

// New creates a new App instance with the given version information.
// The app is initialized with configuration from the environment that can
// be customized using functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, errors.WrapResource("load", "config", "", err)
		}
		app.config = config
	}

	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the output format requested with --format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Omni returns the Omni client, creating it on first use.
func (a *App) Omni() (*omni.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	client, err := omni.New(a.config.BaseURL, a.config.APIKey,
		omni.WithPageSize(a.config.PageSize),
		omni.WithTimeout(a.config.Timeout),
		omni.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	a.client = client
	return client, nil
}

// Omnisync returns the sync facade over the shared Omni client, creating it
// on first use.
func (a *App) Omnisync() (omnisync.Omnisync, error) {
	client, err := a.Omni()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.syncer == nil {
		a.syncer, err = omnisync.New(omnisync.WithClient(client))
		if err != nil {
			return nil, err
		}
	}
	return a.syncer, nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		a.fixedLogger = true
		return nil
	}
}

// WithOmni sets a custom Omni client (useful for testing).
func WithOmni(client *omni.Client) Option {
	return func(a *App) error {
		a.client = client
		return nil
	}
}

// WithOutput redirects command output and errors.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) error {
		a.out = out
		a.errOut = errOut
		return nil
	}
}

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)
