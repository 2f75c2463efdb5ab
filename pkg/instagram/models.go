package instagram

import "igarchive/pkg/models"

// TimelineResponse is the top-level body of a timeline query
type TimelineResponse struct {
	Data            *TimelineData `json:"data"`
	Status          string        `json:"status"`
	Message         string        `json:"message"`
	RequireLogin    bool          `json:"require_login"`
	RequiresToLogin bool          `json:"requires_to_login"`
}

// TimelineData wraps the timeline connection
type TimelineData struct {
	Connection *Connection `json:"xdt_api__v1__feed__user_timeline_graphql_connection"`
}

// Connection is one page of the timeline
type Connection struct {
	Edges    []Edge   `json:"edges"`
	PageInfo PageInfo `json:"page_info"`
}

// PageInfo contains pagination information. EndCursor may be null.
type PageInfo struct {
	HasNextPage bool    `json:"has_next_page"`
	EndCursor   *string `json:"end_cursor"`
}

// Edge wraps a single post node, kept as raw JSON
type Edge struct {
	Node   models.Record `json:"node"`
	Cursor string        `json:"cursor,omitempty"`
}

// LoginRequired reports whether the body asks the caller to log in
func (r *TimelineResponse) LoginRequired() bool {
	return r.RequireLogin || r.RequiresToLogin
}

// ToPage converts a connection into a Page. Edges without a node are skipped.
// HasMore requires a next page, a non-empty cursor and at least one record,
// so an empty page always terminates pagination.
func (c *Connection) ToPage() *models.Page {
	records := make([]models.Record, 0, len(c.Edges))
	for _, edge := range c.Edges {
		if edge.Node == nil {
			continue
		}
		records = append(records, edge.Node)
	}

	var cursor *string
	if c.PageInfo.EndCursor != nil {
		cursor = models.Cursor(*c.PageInfo.EndCursor)
	}

	page := &models.Page{Records: records}
	if c.PageInfo.HasNextPage && cursor != nil && len(records) > 0 {
		page.HasMore = true
		page.NextCursor = cursor
	}
	return page
}
