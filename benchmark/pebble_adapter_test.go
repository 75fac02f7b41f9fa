package benchmark

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pebbleTestAdapter(t *testing.T) *PebbleAdapter {
	t.Helper()
	dir := t.TempDir()
	cfg := BackendConfig{
		Name: "pebble",
		Type: "pebble",
		Path: filepath.Join(dir, "pebble"),
	}
	opts := AdapterOptions{
		ResultsDir: filepath.Join(dir, "results"),
		Predicates: map[string]PredicateConfig{
			"books": {
				NumericField: "rating",
				NumericMin:   4,
				TextField:    "review_text",
				Keywords:     []string{"suspense"},
			},
		},
		UpdateLimit: 10000,
		BatchSize:   2,
	}

	adapter := NewPebbleAdapter(cfg, opts)
	require.NoError(t, adapter.Connect(context.Background()))
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func pebbleBooksDataset(t *testing.T) string {
	t.Helper()
	return writeFixture(t, "books.json", `{"title":"A","rating":5}
{"title":"B","rating":2}
{"title":"C","rating":1,"review_text":"pure suspense"}
{"title":"D","rating":4}
{"title":"E","rating":3}
`)
}

func TestPebbleAdapter_Lifecycle(t *testing.T) {
	ctx := context.Background()
	adapter := pebbleTestAdapter(t)
	dataset := pebbleBooksDataset(t)

	count, err := adapter.InsertData(ctx, dataset, "books")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	require.NoError(t, adapter.ReadData(ctx, "books"))

	// A, C and D satisfy the predicate.
	updated, err := adapter.UpdateData(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	deleted, err := adapter.DeleteData(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	path, err := adapter.ExportData(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, "export_books_pebble.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
}

func TestPebbleAdapter_InsertReplacesCollection(t *testing.T) {
	ctx := context.Background()
	adapter := pebbleTestAdapter(t)
	dataset := pebbleBooksDataset(t)

	_, err := adapter.InsertData(ctx, dataset, "books")
	require.NoError(t, err)
	count, err := adapter.InsertData(ctx, dataset, "books")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Re-import leaves exactly one copy of the dataset.
	updated, err := adapter.UpdateData(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, 3, updated)
}

func TestPebbleAdapter_UpdateLimit(t *testing.T) {
	ctx := context.Background()
	adapter := pebbleTestAdapter(t)
	adapter.opts.UpdateLimit = 1

	_, err := adapter.InsertData(ctx, pebbleBooksDataset(t), "books")
	require.NoError(t, err)

	updated, err := adapter.UpdateData(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	deleted, err := adapter.DeleteData(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestPebbleAdapter_ReadEmptyCollection(t *testing.T) {
	adapter := pebbleTestAdapter(t)
	err := adapter.ReadData(context.Background(), "books")
	assert.ErrorIs(t, err, ErrEmptyCollection)
}

func TestPebbleAdapter_NotConnected(t *testing.T) {
	adapter := NewPebbleAdapter(BackendConfig{Name: "pebble"}, AdapterOptions{}.withDefaults())
	_, err := adapter.InsertData(context.Background(), "nope.json", "books")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, adapter.Close())
}

func TestPebbleAdapter_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	adapter := pebbleTestAdapter(t)

	_, err := adapter.InsertData(ctx, pebbleBooksDataset(t), "books")
	require.NoError(t, err)

	other := writeFixture(t, "other.json", `{"title":"Z","rating":5}
`)
	_, err = adapter.InsertData(ctx, other, "bookshelf")
	require.NoError(t, err)

	// Clearing "bookshelf" must not touch "books".
	require.NoError(t, adapter.ReadData(ctx, "books"))
	updated, err := adapter.UpdateData(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, 3, updated)
}
