package scim_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/omnisync/pkg/scim"
)

func TestUserAttributesExtension(t *testing.T) {
	t.Run("unmarshal reads the omni extension", func(t *testing.T) {
		data := []byte(`{
			"id": "u-1",
			"userName": "jane@example.com",
			"groups": [{"value": "g-1", "display": "Sales"}],
			"urn:omni:params:1.0:UserAttribute": {"region": "EMEA", "seats": 3}
		}`)

		var u scim.User
		require.NoError(t, json.Unmarshal(data, &u))
		assert.Equal(t, "u-1", u.ID)
		assert.Equal(t, []string{"g-1"}, u.GroupIDs())
		assert.Equal(t, "EMEA", u.Attributes["region"])
		assert.Equal(t, float64(3), u.Attributes["seats"])
	})

	t.Run("marshal writes the extension only when attributes are set", func(t *testing.T) {
		bare, err := json.Marshal(scim.User{UserName: "bob"})
		require.NoError(t, err)
		assert.NotContains(t, string(bare), scim.SchemaUserAttribute)

		withAttrs, err := json.Marshal(scim.User{UserName: "bob", Attributes: scim.Attributes{"team": nil}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"userName":"bob","urn:omni:params:1.0:UserAttribute":{"team":null}}`, string(withAttrs))
	})

	t.Run("null extension leaves attributes nil", func(t *testing.T) {
		var u scim.User
		require.NoError(t, json.Unmarshal([]byte(`{"userName":"x","urn:omni:params:1.0:UserAttribute":null}`), &u))
		assert.Nil(t, u.Attributes)
	})
}

func TestUserHelpers(t *testing.T) {
	inactive := false
	u := scim.User{
		Emails: []scim.Email{
			{Value: "work@example.com", Type: "work"},
			{Value: "primary@example.com", Primary: true},
		},
		Active: &inactive,
	}
	assert.Equal(t, "primary@example.com", u.PrimaryEmail())
	assert.False(t, u.IsActive())

	assert.True(t, (&scim.User{}).IsActive())
	assert.Equal(t, "", (&scim.User{}).PrimaryEmail())
	assert.Equal(t, "only@example.com", (&scim.User{Emails: []scim.Email{{Value: "only@example.com"}}}).PrimaryEmail())
}

func TestGroupHasMember(t *testing.T) {
	g := scim.Group{Members: []scim.Reference{{Value: "u-1"}, {Value: "u-2"}}}
	assert.True(t, g.HasMember("u-2"))
	assert.False(t, g.HasMember("u-3"))
}

func TestFilterQuoting(t *testing.T) {
	assert.Equal(t, `userName eq "jane@example.com"`, scim.Filter("userName", "eq", "jane@example.com"))
	assert.Equal(t, `displayName co "say \"hi\" \\o/"`, scim.Filter("displayName", "co", `say "hi" \o/`))
}

func TestBulkResponseFailed(t *testing.T) {
	resp := scim.BulkResponse{Operations: []scim.BulkOperationResult{
		{Method: "POST", BulkID: "1", Status: "201"},
		{Method: "POST", BulkID: "2", Status: "409"},
		{Method: "PUT", BulkID: "3", Status: "200"},
	}}
	failed := resp.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "2", failed[0].BulkID)
}

func TestNewListResponse(t *testing.T) {
	empty := scim.NewListResponse[scim.User](nil)
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"schemas":["urn:ietf:params:scim:api:messages:2.0:ListResponse"],"totalResults":0,"startIndex":1,"Resources":[]}`, string(data))

	groups := scim.NewListResponse([]scim.Group{{ID: "g-1", DisplayName: "Sales"}})
	assert.Equal(t, 1, groups.TotalResults)
	assert.Equal(t, 1, groups.ItemsPerPage)
}
