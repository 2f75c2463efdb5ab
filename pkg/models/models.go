package models

import "strconv"

// Record is one fetched timeline node, kept as the raw JSON object so that
// fields the archiver does not know about survive a round trip.
type Record map[string]any

// ID returns the value of field as a string identifier.
// ok is false when the field is missing, null, or not a scalar.
func (r Record) ID(field string) (id string, ok bool) {
	v, present := r[field]
	if !present || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, val != ""
	case interface{ String() string }: // json.Number
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}

// Page is one batch returned by the remote source
type Page struct {
	Records    []Record
	NextCursor *string
	HasMore    bool
}

// Len returns the number of records in the page
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Records)
}

// Cursor normalises a raw cursor string: the empty string means absent
func Cursor(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CursorString renders a cursor for logs and terminal output
func CursorString(c *string) string {
	if c == nil {
		return "<start>"
	}
	return *c
}

// CursorEqual reports whether two cursors denote the same position
func CursorEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
