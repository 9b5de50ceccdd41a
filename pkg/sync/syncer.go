package sync

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/omnisync/pkg/differ"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/logging"
	"github.com/agentstation/omnisync/pkg/scim"
	"github.com/agentstation/omnisync/pkg/sources"
)

// Client is the part of the Omni API a sync run needs. *omni.Client implements it.
type Client interface {
	ListUsers(ctx context.Context) ([]scim.User, error)
	FindUserByUserName(ctx context.Context, userName string) (*scim.User, error)
	ListGroups(ctx context.Context) ([]scim.Group, error)
	CreateUser(ctx context.Context, user *scim.User) (*scim.User, error)
	PatchUser(ctx context.Context, id string, ops ...scim.PatchOperation) (*scim.User, error)
	PatchGroupMembers(ctx context.Context, id string, add, remove []string) error
	SetUserAttributes(ctx context.Context, id string, attrs scim.Attributes) error
}

// Syncer reconciles one source with one Omni instance.
type Syncer struct {
	source   sources.Source
	client   Client
	differ   differ.Differ
	defaults []Option
}

// New creates a Syncer. The options become the defaults for every Run.
func New(source sources.Source, client Client, opts ...Option) *Syncer {
	return &Syncer{
		source:   source,
		client:   client,
		differ:   differ.New(),
		defaults: opts,
	}
}

// WithDiffer replaces the differ, e.g. to ignore attributes.
func (s *Syncer) WithDiffer(d differ.Differ) *Syncer {
	s.differ = d
	return s
}

// run carries the state of a single Run.
type run struct {
	opts   *Options
	logger zerolog.Logger
	result *Result

	snapshot *sources.Snapshot
	remote   map[string]scim.User // by lowercased userName
	groups   []scim.Group
	created  map[string]string // lowercased userName -> new id
	failed   map[string]bool   // lowercased userNames whose lookup failed
}

// Run performs one reconciliation pass. The returned error is non-nil when
// planning failed (result is nil) or when any user lookup or write failed
// (result holds the details). A user whose lookup failed is left out of the
// run; everyone else is still reconciled.
func (s *Syncer) Run(ctx context.Context, opts ...Option) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	options := Defaults().Apply(s.defaults...).Apply(opts...)
	if err := options.Validate(); err != nil {
		return nil, err
	}

	var cancel context.CancelFunc
	if options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
	} else {
		cancel = func() {}
	}
	defer cancel()

	ctx = logging.WithOperation(ctx, "sync")
	ctx = logging.WithSource(ctx, s.source.String())

	r := &run{
		opts:    options,
		logger:  *logging.FromContext(ctx),
		created: make(map[string]string),
		failed:  make(map[string]bool),
		result: &Result{
			Mode:      options.Mode,
			DryRun:    options.DryRun,
			StartedAt: time.Now(),
		},
	}
	defer func() {
		r.result.Duration = time.Since(r.result.StartedAt)
	}()

	if err := s.plan(ctx, r); err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("mode", options.Mode.String()).
		Bool("dry_run", options.DryRun).
		Str("changes", r.result.Changeset.String()).
		Msg("sync planned")

	if options.DryRun || !r.result.Changeset.HasChanges() {
		return r.result, r.result.Err()
	}

	s.apply(ctx, r)

	r.logger.Info().
		Int("attempted", r.result.WritesAttempted).
		Int("succeeded", r.result.WritesSucceeded).
		Int("failed", r.result.WritesFailed).
		Msg("sync finished")

	return r.result, r.result.Err()
}

func (s *Syncer) plan(ctx context.Context, r *run) error {
	snapshot, err := s.source.Load(ctx)
	if err != nil {
		return err
	}
	r.snapshot = snapshot
	r.result.Warnings = append(r.result.Warnings, snapshot.Warnings...)
	r.result.UsersProcessed = len(snapshot.Users)

	if r.opts.Mode.Groups() {
		groups, err := s.client.ListGroups(ctx)
		if err != nil {
			return errors.WrapResource("list", "groups", "", err)
		}
		r.groups = groups
	}

	remoteList, err := s.resolveUsers(ctx, r)
	if err != nil {
		return err
	}

	sourceUsers := make([]scim.User, 0, len(snapshot.Users))
	userIDs := make(map[string]string, len(snapshot.Users))
	var attributes []differ.AttributeUpdate

	for _, u := range snapshot.Users {
		if r.failed[strings.ToLower(u.UserName)] {
			continue
		}
		sourceUsers = append(sourceUsers, u.User)

		remote, found := r.remote[strings.ToLower(u.UserName)]
		userIDs[u.UserName] = remote.ID

		if !found && !(r.opts.Mode.Users() && r.opts.CreateMissing) {
			r.result.UsersMissing++
			r.warn(u.UserName, "user not found in Omni, skipped")
			continue
		}

		if u.Attributes != nil {
			changes := s.differ.Attributes(u.Attributes, remote.Attributes)
			if update := differ.NewAttributeUpdate(u.UserName, remote.ID, u.Attributes, changes); update != nil {
				attributes = append(attributes, *update)
			}
		}
	}

	var memberships *differ.MembershipChangeset
	if r.opts.Mode.Groups() {
		desired, warnings := snapshot.Memberships(userIDs)
		for _, w := range warnings {
			r.warn("", w)
		}
		memberships = s.differ.Memberships(desired, r.groups, userIDs)
		for _, ref := range memberships.UnknownGroups {
			r.warn("", "group "+ref+" not found in Omni, skipped")
		}
	}

	changeset := differ.NewChangeset(s.differ.Users(sourceUsers, remoteList), memberships, attributes)
	switch {
	case r.opts.Mode != differ.ModeAll:
		changeset = changeset.Filter(r.opts.Mode)
	case !r.opts.CreateMissing:
		changeset = changeset.WithoutCreates()
	}
	r.result.Changeset = changeset

	return nil
}

// resolveUsers fills r.remote and returns the remote users to diff against.
func (s *Syncer) resolveUsers(ctx context.Context, r *run) ([]scim.User, error) {
	r.remote = make(map[string]scim.User, len(r.snapshot.Users))

	if r.opts.FullListing {
		all, err := s.client.ListUsers(ctx)
		if err != nil {
			return nil, errors.WrapResource("list", "users", "", err)
		}
		for _, u := range all {
			r.remote[strings.ToLower(u.UserName)] = u
		}
		return all, nil
	}

	found := make([]*scim.User, len(r.snapshot.Users))
	errs := make([]error, len(r.snapshot.Users))

	p := pool.New().WithMaxGoroutines(r.opts.Concurrency)
	for i, u := range r.snapshot.Users {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			user, err := s.client.FindUserByUserName(ctx, u.UserName)
			if err != nil {
				errs[i] = errors.WrapResource("get", "user", u.UserName, err)
				return
			}
			found[i] = user
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Join(errors.ErrCanceled, err)
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		userName := r.snapshot.Users[i].UserName
		r.failed[strings.ToLower(userName)] = true
		r.result.UsersProcessed--
		r.result.UsersFailed++
		r.result.Failures = append(r.result.Failures, errors.NewSyncError(OpLookupUser, userName, err))
		r.warn(userName, "lookup failed, user skipped: "+err.Error())
	}

	remote := make([]scim.User, 0, len(found))
	for _, u := range found {
		if u == nil {
			continue
		}
		r.remote[strings.ToLower(u.UserName)] = *u
		remote = append(remote, *u)
	}
	return remote, nil
}

func (s *Syncer) apply(ctx context.Context, r *run) {
	c := r.result.Changeset

	for _, u := range c.Users.Added {
		if r.stopped(ctx) {
			return
		}
		s.createUser(ctx, r, u)
	}

	for _, update := range c.Users.Updated {
		if r.stopped(ctx) {
			return
		}
		err := r.write(ctx, OpUpdateUser, update.UserName, func(ctx context.Context) error {
			_, err := s.client.PatchUser(ctx, update.ID, update.PatchOperations()...)
			return err
		})
		if err == nil {
			r.result.UsersUpdated++
		}
	}

	for _, g := range c.Memberships.Groups {
		if r.stopped(ctx) {
			return
		}
		s.patchGroup(ctx, r, g)
	}

	for _, a := range c.Attributes {
		if r.stopped(ctx) {
			return
		}
		if a.UserID == "" {
			// written as part of the create call
			continue
		}
		err := r.write(ctx, OpSetAttributes, a.UserName, func(ctx context.Context) error {
			return s.client.SetUserAttributes(ctx, a.UserID, a.Set)
		})
		if err == nil {
			r.result.AttributesUpdated++
		}
	}
}

func (s *Syncer) createUser(ctx context.Context, r *run, u scim.User) {
	body := u
	body.ID = ""
	body.Groups = nil
	body.Meta = nil
	if r.opts.Mode.Attributes() && len(u.Attributes) > 0 {
		body.Attributes = make(scim.Attributes, len(u.Attributes))
		for k, v := range u.Attributes {
			if v != nil {
				body.Attributes[k] = v
			}
		}
	} else {
		body.Attributes = nil
	}

	var created *scim.User
	err := r.write(ctx, OpCreateUser, u.UserName, func(ctx context.Context) error {
		var err error
		created, err = s.client.CreateUser(ctx, &body)
		return err
	})
	if err != nil || created == nil {
		return
	}

	r.created[strings.ToLower(u.UserName)] = created.ID
	r.result.UsersCreated++
	if len(body.Attributes) > 0 {
		r.result.AttributesUpdated++
	}
}

func (s *Syncer) patchGroup(ctx context.Context, r *run, g differ.GroupUpdate) {
	add := make([]string, 0, len(g.Add))
	for _, m := range g.Add {
		id := m.ID
		if id == "" {
			id = r.created[strings.ToLower(m.UserName)]
		}
		if id == "" {
			r.warn(m.UserName, "user was not created, not added to group "+g.DisplayName)
			continue
		}
		add = append(add, id)
	}
	remove := make([]string, 0, len(g.Remove))
	for _, m := range g.Remove {
		remove = append(remove, m.ID)
	}
	if len(add) == 0 && len(remove) == 0 {
		return
	}

	err := r.write(ctx, OpUpdateGroup, g.DisplayName, func(ctx context.Context) error {
		return s.client.PatchGroupMembers(ctx, g.GroupID, add, remove)
	})
	if err == nil {
		r.result.GroupsUpdated++
	}
}

// write performs one write and records its outcome.
func (r *run) write(ctx context.Context, operation, target string, fn func(context.Context) error) error {
	r.result.WritesAttempted++

	if err := fn(ctx); err != nil {
		syncErr := errors.NewSyncError(operation, target, err)
		r.result.WritesFailed++
		r.result.Failures = append(r.result.Failures, syncErr)
		r.logger.Error().Err(err).Str("write", operation).Str("target", target).Msg("write failed")
		return syncErr
	}

	r.result.WritesSucceeded++
	r.result.Applied = append(r.result.Applied, Write{Operation: operation, Target: target})
	r.logger.Info().Str("write", operation).Str("target", target).Msg("write succeeded")
	return nil
}

// stopped reports whether no further writes should be attempted.
func (r *run) stopped(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		if len(r.result.Failures) == 0 || !errors.IsCanceled(r.result.Failures[len(r.result.Failures)-1]) {
			r.result.Failures = append(r.result.Failures, errors.Join(errors.ErrCanceled, err))
		}
		return true
	}
	return r.opts.FailFast && r.result.WritesFailed > 0
}

func (r *run) warn(userName, message string) {
	if userName != "" {
		message = userName + ": " + message
	}
	r.result.Warnings = append(r.result.Warnings, message)
	event := r.logger.Warn()
	if userName != "" {
		event = event.Str("user_name", userName)
	}
	event.Msg(message)
}
