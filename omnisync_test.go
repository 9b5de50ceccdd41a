package omnisync_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/omnisync"
	"github.com/agentstation/omnisync/pkg/differ"
	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/logging"
	"github.com/agentstation/omnisync/pkg/omni"
	"github.com/agentstation/omnisync/pkg/omni/omnitest"
	"github.com/agentstation/omnisync/pkg/scim"
	"github.com/agentstation/omnisync/pkg/sources"
	"github.com/agentstation/omnisync/pkg/sync"
)

type staticSource struct {
	snapshot *sources.Snapshot
}

func (s staticSource) Load(context.Context) (*sources.Snapshot, error) { return s.snapshot, nil }
func (s staticSource) Kind() sources.Kind                              { return sources.KindJSON }
func (s staticSource) String() string                                  { return "static" }

// recorder collects every hook call.
type recorder struct {
	created    []string
	updated    []string
	groups     []string
	attributes []string
}

func (r *recorder) register(o omnisync.Omnisync) {
	o.OnUserCreated(func(u scim.User) { r.created = append(r.created, u.UserName) })
	o.OnUserUpdated(func(u differ.UserUpdate) { r.updated = append(r.updated, u.UserName) })
	o.OnGroupUpdated(func(g differ.GroupUpdate) { r.groups = append(r.groups, g.DisplayName) })
	o.OnAttributesUpdated(func(a differ.AttributeUpdate) { r.attributes = append(r.attributes, a.UserName) })
}

func setup(t *testing.T, opts ...omnisync.Option) (*omnitest.Server, omnisync.Omnisync, *recorder) {
	t.Helper()

	server := omnitest.NewServer(t)
	server.AddUser(scim.User{ID: "u-jane", UserName: "jane@example.com", DisplayName: "Jane", Attributes: scim.Attributes{"team": "data"}})
	server.AddGroup(scim.Group{ID: "g-eng", DisplayName: "Engineering"})

	opts = append([]omnisync.Option{
		omnisync.WithCredentials(server.URL, omnitest.APIKey),
		omnisync.WithClientOptions(omni.WithLogger(logging.NewNopLogger())),
	}, opts...)
	o, err := omnisync.New(opts...)
	require.NoError(t, err)

	rec := &recorder{}
	rec.register(o)
	return server, o, rec
}

func source() staticSource {
	return staticSource{snapshot: &sources.Snapshot{
		Kind: sources.KindJSON,
		Users: []sources.User{
			{
				User:          scim.User{UserName: "jane@example.com", DisplayName: "Jane Doe", Attributes: scim.Attributes{"team": "ops"}},
				GroupRefs:     []string{"Engineering"},
				ManagesGroups: true,
			},
			{
				User:          scim.User{UserName: "new@example.com", DisplayName: "New Person", Attributes: scim.Attributes{"region": "emea"}},
				GroupRefs:     []string{"g-eng"},
				ManagesGroups: true,
			},
		},
	}}
}

func TestNew(t *testing.T) {
	t.Run("requires credentials or a client", func(t *testing.T) {
		_, err := omnisync.New()
		require.Error(t, err)
	})

	t.Run("rejects empty credentials", func(t *testing.T) {
		_, err := omnisync.New(omnisync.WithCredentials("", "key"))
		require.Error(t, err)
		var cfgErr *errors.ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("uses a given client", func(t *testing.T) {
		client, err := omni.New("https://omni.example.com/api/scim/v2", "key")
		require.NoError(t, err)

		o, err := omnisync.New(omnisync.WithClient(client))
		require.NoError(t, err)
		assert.Same(t, client, o.Client())
	})

	t.Run("rejects a nil client", func(t *testing.T) {
		_, err := omnisync.New(omnisync.WithClient(nil))
		require.Error(t, err)
	})
}

func TestSyncTriggersHooks(t *testing.T) {
	server, o, rec := setup(t)

	result, err := o.Sync(context.Background(), source())
	require.NoError(t, err)
	assert.Len(t, result.Applied, 4)

	assert.Equal(t, []string{"new@example.com"}, rec.created)
	assert.Equal(t, []string{"jane@example.com"}, rec.updated)
	assert.Equal(t, []string{"Engineering"}, rec.groups)
	// attributes of a new user are written with the create
	assert.Equal(t, []string{"new@example.com", "jane@example.com"}, rec.attributes)

	jane, _ := server.User("u-jane")
	assert.Equal(t, "Jane Doe", jane.DisplayName)
	assert.Equal(t, "ops", jane.Attributes["team"])
}

func TestSyncDryRunTriggersNothing(t *testing.T) {
	server, o, rec := setup(t)

	result, err := o.Sync(context.Background(), source(), sync.WithDryRun(true))
	require.NoError(t, err)
	assert.True(t, result.HasChanges())
	assert.Empty(t, result.Applied)
	assert.Empty(t, server.Writes())
	assert.Equal(t, &recorder{}, rec)
}

func TestSyncPartialFailureTriggersAppliedOnly(t *testing.T) {
	server, o, rec := setup(t)
	server.Fail(http.MethodPatch, "/Groups/g-eng", http.StatusInternalServerError, "boom")

	result, err := o.Sync(context.Background(), source())
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Empty(t, rec.groups)
	assert.Equal(t, []string{"new@example.com"}, rec.created)
	assert.Equal(t, []string{"jane@example.com"}, rec.updated)
}

func TestSyncDefaults(t *testing.T) {
	server, o, rec := setup(t,
		omnisync.WithSyncOptions(sync.WithMode(differ.ModeAttributes)),
		omnisync.WithIgnoredAttributes("region"),
	)

	result, err := o.Sync(context.Background(), source())
	require.NoError(t, err)
	assert.Equal(t, differ.ModeAttributes, result.Mode)

	assert.Empty(t, rec.created)
	assert.Empty(t, rec.groups)
	assert.Equal(t, []string{"jane@example.com"}, rec.attributes)
	_, exists := server.UserByName("new@example.com")
	assert.False(t, exists)
}

func TestSyncNilSource(t *testing.T) {
	_, o, _ := setup(t)

	_, err := o.Sync(context.Background(), nil)
	require.Error(t, err)
	var validationErr *errors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}
