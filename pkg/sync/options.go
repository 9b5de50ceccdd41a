// Package sync reconciles an identity source with Omni in a single pass:
// load the source, read the matching remote state, diff, then apply the
// writes in a fixed order (create users, update profiles, patch groups,
// write attributes).
package sync

import (
	"fmt"
	"slices"
	"time"

	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/differ"
	"github.com/agentstation/omnisync/pkg/errors"
)

// Options controls a sync run.
type Options struct {
	Mode          differ.Mode   // Which parts of the changeset are applied
	DryRun        bool          // Plan only, perform no writes
	CreateMissing bool          // Create source users that do not exist remotely (ModeAll only)
	Concurrency   int           // Parallel remote lookups while planning
	FailFast      bool          // Stop at the first failed write
	Timeout       time.Duration // Timeout for the whole run; zero means none
	FullListing   bool          // List every remote user instead of looking each one up; reports orphans
}

// Defaults returns the default sync options.
func Defaults() *Options {
	return &Options{
		Mode:          differ.ModeAll,
		DryRun:        false,
		CreateMissing: true,
		Concurrency:   constants.DefaultConcurrency,
		FailFast:      false,
		Timeout:       0,
		FullListing:   false,
	}
}

// Option is a function that configures sync Options.
type Option func(*Options)

// Apply applies the given options to the sync options.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks if the sync options are valid.
func (o *Options) Validate() error {
	if !slices.Contains(differ.Modes(), o.Mode) {
		return &errors.ValidationError{
			Field:   "Mode",
			Value:   o.Mode,
			Message: fmt.Sprintf("must be one of %v", differ.Modes()),
		}
	}

	if o.Concurrency < 1 || o.Concurrency > constants.MaxConcurrency {
		return &errors.ValidationError{
			Field:   "Concurrency",
			Value:   o.Concurrency,
			Message: fmt.Sprintf("must be between 1 and %d", constants.MaxConcurrency),
		}
	}

	if o.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "Timeout",
			Value:   o.Timeout,
			Message: "timeout must be non-negative",
		}
	}

	return nil
}

// WithMode sets the sync mode.
func WithMode(mode differ.Mode) Option {
	return func(opts *Options) {
		opts.Mode = mode
	}
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(opts *Options) {
		opts.DryRun = dryRun
	}
}

// WithCreateMissing configures creation of users missing from Omni.
func WithCreateMissing(create bool) Option {
	return func(opts *Options) {
		opts.CreateMissing = create
	}
}

// WithConcurrency sets how many remote lookups run in parallel.
func WithConcurrency(n int) Option {
	return func(opts *Options) {
		opts.Concurrency = n
	}
}

// WithFailFast configures fail-fast behavior.
func WithFailFast(failFast bool) Option {
	return func(opts *Options) {
		opts.FailFast = failFast
	}
}

// WithTimeout sets a timeout for the whole run.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// WithFullListing lists all remote users up front instead of per-user lookups.
func WithFullListing(enabled bool) Option {
	return func(opts *Options) {
		opts.FullListing = enabled
	}
}
