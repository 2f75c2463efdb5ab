package instagram

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// GraphQLEndpoint is the path of the GraphQL query endpoint
	GraphQLEndpoint = "/graphql/query/"

	// DefaultDocID identifies the user timeline query document
	DefaultDocID = "7898261790222653"

	// TimelineConnection is the response key holding the timeline page
	TimelineConnection = "xdt_api__v1__feed__user_timeline_graphql_connection"

	// shareMenuProvider is a relay flag the web client always sends
	shareMenuProvider = "__relay_internal__pv__PolarisFeedShareMenurelayprovider"
)

// timelineData is the nested "data" block of the query variables
type timelineData struct {
	Count                  int  `json:"count"`
	IncludeRelationship    bool `json:"include_relationship_info"`
	LatestBestiesReelMedia bool `json:"latest_besties_reel_media"`
	LatestReelMedia        bool `json:"latest_reel_media"`
}

// TimelineVariables builds the JSON "variables" parameter for one page
// of username's timeline. after is omitted when nil.
func TimelineVariables(username string, after *string, count int) (string, error) {
	vars := map[string]interface{}{
		"username": username,
		"first":    count,
		"data": timelineData{
			Count:                  count,
			IncludeRelationship:    true,
			LatestBestiesReelMedia: true,
			LatestReelMedia:        true,
		},
		shareMenuProvider: false,
	}
	if after != nil {
		vars["after"] = *after
	}

	b, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("failed to encode variables: %w", err)
	}
	return string(b), nil
}

// GetTimelineURL constructs the GraphQL URL for one page of username's timeline
func GetTimelineURL(baseURL, docID, username string, after *string, count int) (string, error) {
	variables, err := TimelineVariables(username, after, count)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("doc_id", docID)
	params.Set("server_timestamps", "true")
	params.Set("variables", variables)

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), GraphQLEndpoint, params.Encode()), nil
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @, surrounding spaces and trailing slashes,
// and accepts a full profile URL.
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return ""
	}

	for _, prefix := range []string{"https://www.instagram.com/", "https://instagram.com/", "http://www.instagram.com/", "www.instagram.com/", "instagram.com/"} {
		if strings.HasPrefix(username, prefix) {
			username = strings.TrimPrefix(username, prefix)
			break
		}
	}

	username = strings.TrimPrefix(username, "@")
	username = strings.TrimRight(username, "/ ")
	if i := strings.IndexAny(username, "/?"); i >= 0 {
		username = username[:i]
	}

	return username
}
