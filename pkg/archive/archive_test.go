package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igarchive/pkg/codec"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/storage"
)

func newTestStore(t *testing.T) (*Store, *logger.TestLogger) {
	t.Helper()
	sm, err := storage.NewManager(t.TempDir(), "")
	require.NoError(t, err)
	tl := logger.NewTestLogger()
	return NewStore(sm, codec.Default(), "id", tl), tl
}

func rec(id string) models.Record {
	return models.Record{"id": id, "caption": "post " + id}
}

func ids(records []models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = fmt.Sprint(r["id"])
	}
	return out
}

func TestMerge(t *testing.T) {
	store, _ := newTestStore(t)

	tests := []struct {
		name      string
		existing  []models.Record
		incoming  []models.Record
		wantIDs   []string
		wantAdded int
	}{
		{
			name:      "into empty",
			existing:  nil,
			incoming:  []models.Record{rec("1"), rec("2")},
			wantIDs:   []string{"1", "2"},
			wantAdded: 2,
		},
		{
			name:      "overlap keeps existing order",
			existing:  []models.Record{rec("1"), rec("2")},
			incoming:  []models.Record{rec("2"), rec("3")},
			wantIDs:   []string{"1", "2", "3"},
			wantAdded: 1,
		},
		{
			name:      "duplicates inside page collapse",
			existing:  []models.Record{rec("1")},
			incoming:  []models.Record{rec("4"), rec("4"), rec("5")},
			wantIDs:   []string{"1", "4", "5"},
			wantAdded: 2,
		},
		{
			name:      "empty page",
			existing:  []models.Record{rec("1")},
			incoming:  nil,
			wantIDs:   []string{"1"},
			wantAdded: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, added := store.Merge(tt.existing, tt.incoming)
			assert.Equal(t, tt.wantIDs, ids(merged))
			assert.Equal(t, tt.wantAdded, added)
		})
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	page := []models.Record{rec("3"), rec("4")}

	once, _ := store.Merge([]models.Record{rec("1"), rec("2")}, page)
	twice, added := store.Merge(once, page)

	assert.Equal(t, once, twice)
	assert.Equal(t, 0, added)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	store, _ := newTestStore(t)
	existing := make([]models.Record, 1, 4)
	existing[0] = rec("1")
	incoming := []models.Record{rec("2")}

	merged, _ := store.Merge(existing, incoming)
	merged[0] = rec("changed")

	assert.Len(t, existing, 1)
	assert.Equal(t, "1", existing[0]["id"])
	assert.Equal(t, []string{"2"}, ids(incoming))
}

func TestMergeNumericAndMissingIDs(t *testing.T) {
	store, _ := newTestStore(t)

	existing := []models.Record{{"id": json.Number("17")}}
	incoming := []models.Record{
		{"id": "17"}, // same identity as the json.Number
		{"caption": "no id"},
		{"caption": "no id"},
		{"caption": "another"},
	}

	merged, added := store.Merge(existing, incoming)
	assert.Len(t, merged, 3)
	assert.Equal(t, 2, added)
}

func TestIdentity(t *testing.T) {
	c := codec.Default()

	assert.Equal(t, "id:42", Identity(c, "id", models.Record{"id": "42"}))
	assert.Equal(t, "id:abc", Identity(c, "code", models.Record{"id": "42", "code": "abc"}))

	a := Identity(c, "id", models.Record{"x": 1, "y": "two"})
	b := Identity(c, "id", models.Record{"y": "two", "x": 1})
	assert.Equal(t, a, b)
	assert.Contains(t, a, "sha256:")
}

func TestLoadMissingIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	records, err := store.Load("acct1")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.False(t, store.Exists("acct1"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	records := []models.Record{
		{"id": "1", "like_count": json.Number("12"), "caption": map[string]any{"text": "café <3"}},
		{"id": "2", "pk": json.Number("3141592653589793238"), "tags": []any{"a", "b"}},
	}

	require.NoError(t, store.Save("acct1", records))
	assert.True(t, store.Exists("acct1"))

	loaded, err := store.Load("acct1")
	require.NoError(t, err)
	assert.Equal(t, records, loaded)

	data, err := os.ReadFile(store.Path("acct1"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "3141592653589793238")
	assert.Contains(t, string(data), "café <3")
}

func TestSaveEmptyWritesArray(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Save("acct1", nil))

	data, err := os.ReadFile(store.Path("acct1"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestLoadLatin1Archive(t *testing.T) {
	store, tl := newTestStore(t)
	// [{"id":"1","caption":"café"}] written as ISO-8859-1
	latin1 := []byte("[{\"id\":\"1\",\"caption\":\"caf\xe9\"}]")
	require.NoError(t, os.WriteFile(store.Path("acct1"), latin1, 0644))

	records, err := store.Load("acct1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "café", records[0]["caption"])

	warnings := tl.GetMessagesByLevel("WARN")
	require.Len(t, warnings, 1)
	assert.Equal(t, "windows-1252", warnings[0].Fields["encoding"])
}

func TestLoadCorruptArchiveIsFatal(t *testing.T) {
	tests := map[string]string{
		"truncated":      `[{"id":"1"`,
		"object":         `{"id":"1"}`,
		"null":           `null`,
		"scalar element": `[{"id":"1"}, 7]`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			store, _ := newTestStore(t)
			require.NoError(t, os.WriteFile(store.Path("acct1"), []byte(content), 0644))

			_, err := store.Load("acct1")
			require.Error(t, err)
			assert.Equal(t, errs.ClassFatal, errs.ClassOf(err))

			data, readErr := os.ReadFile(store.Path("acct1"))
			require.NoError(t, readErr)
			assert.Equal(t, content, string(data))
		})
	}
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Save("acct1", []models.Record{rec("1")}))
	require.NoError(t, store.Delete("acct1"))
	assert.False(t, store.Exists("acct1"))
}
