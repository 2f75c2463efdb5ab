package instagram

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igarchive/pkg/models"
)

func TestTimelineVariables(t *testing.T) {
	raw, err := TimelineVariables("natgeo", nil, 50)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &vars))

	assert.Equal(t, "natgeo", vars["username"])
	assert.Equal(t, float64(50), vars["first"])
	assert.Equal(t, false, vars[shareMenuProvider])
	assert.NotContains(t, vars, "after")

	data := vars["data"].(map[string]interface{})
	assert.Equal(t, float64(50), data["count"])
	assert.Equal(t, true, data["include_relationship_info"])
	assert.Equal(t, true, data["latest_besties_reel_media"])
	assert.Equal(t, true, data["latest_reel_media"])

	raw, err = TimelineVariables("natgeo", models.Cursor("QVFD"), 12)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &vars))
	assert.Equal(t, "QVFD", vars["after"])
}

func TestGetTimelineURL(t *testing.T) {
	raw, err := GetTimelineURL("https://example.test/", "123", "natgeo", models.Cursor("c1"), 5)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "example.test", u.Host)
	assert.Equal(t, GraphQLEndpoint, u.Path)
	assert.Equal(t, "123", u.Query().Get("doc_id"))
	assert.Equal(t, "true", u.Query().Get("server_timestamps"))

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(u.Query().Get("variables")), &vars))
	assert.Equal(t, "c1", vars["after"])
	assert.Equal(t, float64(5), vars["first"])
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"natgeo", true},
		{"test.user_01", true},
		{"", false},
		{"has space", false},
		{"dash-name", false},
		{"abcdefghijklmnopqrstuvwxyz12345", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidUsername(tt.username), tt.username)
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"@natgeo", "natgeo"},
		{" natgeo/ ", "natgeo"},
		{"https://www.instagram.com/natgeo/", "natgeo"},
		{"instagram.com/natgeo?hl=en", "natgeo"},
		{"https://www.instagram.com/natgeo/reels", "natgeo"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeUsername(tt.in), tt.in)
	}
}

func TestProfileURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/natgeo/", GetUserProfileURL("natgeo"))
	assert.Empty(t, GetUserProfileURL(""))
}

func TestConnectionToPage(t *testing.T) {
	end := "next"
	conn := &Connection{
		Edges: []Edge{
			{Node: models.Record{"id": "1"}},
			{Node: nil},
			{Node: models.Record{"id": "2"}},
		},
		PageInfo: PageInfo{HasNextPage: true, EndCursor: &end},
	}

	page := conn.ToPage()
	assert.Equal(t, 2, page.Len())
	assert.True(t, page.HasMore)
	assert.Equal(t, "next", *page.NextCursor)

	empty := ""
	conn.PageInfo.EndCursor = &empty
	page = conn.ToPage()
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextCursor)

	conn.PageInfo = PageInfo{HasNextPage: false, EndCursor: &end}
	page = conn.ToPage()
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextCursor)
}
