package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordID(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		wantID string
		wantOK bool
	}{
		{"string id", Record{"id": "3141_59"}, "3141_59", true},
		{"json number", Record{"id": json.Number("31415926535897932384")}, "31415926535897932384", true},
		{"float", Record{"id": float64(42)}, "42", true},
		{"int", Record{"id": 7}, "7", true},
		{"empty string", Record{"id": ""}, "", false},
		{"null", Record{"id": nil}, "", false},
		{"missing", Record{"code": "abc"}, "", false},
		{"object", Record{"id": map[string]any{"nested": true}}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := tt.record.ID("id")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestCursorHelpers(t *testing.T) {
	assert.Nil(t, Cursor(""))
	c := Cursor("QVFB")
	if assert.NotNil(t, c) {
		assert.Equal(t, "QVFB", *c)
	}

	assert.Equal(t, "<start>", CursorString(nil))
	assert.Equal(t, "QVFB", CursorString(c))

	assert.True(t, CursorEqual(nil, nil))
	assert.True(t, CursorEqual(c, Cursor("QVFB")))
	assert.False(t, CursorEqual(c, nil))
	assert.False(t, CursorEqual(c, Cursor("other")))
}

func TestPageLen(t *testing.T) {
	var p *Page
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 2, (&Page{Records: []Record{{}, {}}}).Len())
}
