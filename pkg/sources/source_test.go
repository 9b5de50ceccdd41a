package sources

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/omnisync/pkg/errors"
	"github.com/agentstation/omnisync/pkg/scim"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, KindCSV, k)

	_, err = ParseKind("xml")
	assert.True(t, errors.IsValidationError(err))
}

func TestMemberships(t *testing.T) {
	snapshot := &Snapshot{
		Users: []User{
			{User: scim.User{ID: "1", UserName: "Jane@example.com"}, ManagesGroups: true, GroupRefs: []string{"g-admin"}},
			{User: scim.User{UserName: "john@example.com"}, ManagesGroups: true},
			{User: scim.User{UserName: "unmanaged@example.com"}, GroupRefs: []string{"g-eng"}},
		},
		Groups: []Group{
			{ID: "g-eng", Members: []string{"1", "JOHN@example.com", "ghost"}},
			{DisplayName: "Sales", Members: []string{"jane@example.com"}},
		},
	}

	memberships, warnings := snapshot.Memberships(nil)

	assert.Equal(t, map[string][]string{
		"Jane@example.com": {"Sales", "g-admin", "g-eng"},
		"john@example.com": {"g-eng"},
	}, memberships)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `"ghost"`)

	// calling again yields the same result
	again, warningsAgain := snapshot.Memberships(nil)
	assert.Equal(t, memberships, again)
	assert.Equal(t, warnings, warningsAgain)
}

func TestMembershipsMatchRemoteIDs(t *testing.T) {
	snapshot := &Snapshot{
		Users: []User{
			{User: scim.User{UserName: "jane@example.com"}, ManagesGroups: true},
			{User: scim.User{ID: "local-7", UserName: "john@example.com"}, ManagesGroups: true},
		},
		Groups: []Group{
			{ID: "g-eng", DisplayName: "Engineering", Members: []string{"omni-42", "omni-43"}},
		},
	}

	memberships, warnings := snapshot.Memberships(map[string]string{
		"jane@example.com": "omni-42",
		"john@example.com": "omni-43",
	})

	assert.Empty(t, warnings)
	assert.Equal(t, map[string][]string{
		"jane@example.com": {"g-eng"},
		"john@example.com": {"g-eng"},
	}, memberships)
}

func TestSnapshotUser(t *testing.T) {
	snapshot := &Snapshot{Users: []User{{User: scim.User{UserName: "jane@example.com"}}}}

	u, ok := snapshot.User("JANE@example.com")
	assert.True(t, ok)
	assert.Equal(t, "jane@example.com", u.UserName)

	_, ok = snapshot.User("john@example.com")
	assert.False(t, ok)
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	missingA := filepath.Join(dir, "a.csv")
	missingB := filepath.Join(dir, "b.csv")

	assert.NoError(t, CheckFiles(dir, ""))

	err := CheckFiles(missingA, dir, missingB)
	var ioErr *errors.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, missingA+", "+missingB, ioErr.Path)
}

func TestOpenUnregistered(t *testing.T) {
	_, err := Open(Kind("xml"), "users.xml", "")
	assert.True(t, errors.IsValidationError(err))
}

func TestGroupRef(t *testing.T) {
	assert.Equal(t, "g-1", Group{ID: "g-1", DisplayName: "Eng"}.Ref())
	assert.Equal(t, "Eng", Group{DisplayName: "Eng"}.Ref())
}
