package benchmark

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func collectRecords(t *testing.T, path string) []Record {
	t.Helper()
	seq, err := ReadRecords(path)
	require.NoError(t, err)

	var recs []Record
	for rec := range seq {
		recs = append(recs, rec)
	}
	return recs
}

func TestReadRecords_JSONLines(t *testing.T) {
	path := writeFixture(t, "books.json", `{"title":"A","rating":4}
not json at all
{"title":"B","rating":2}

{"title":"C","rating":5,"review_text":"a fantastic suspense story"}
`)

	recs := collectRecords(t, path)
	require.Len(t, recs, 3)
	assert.Equal(t, "A", recs[0]["title"])
	assert.Equal(t, 2.0, recs[1]["rating"])
	assert.Equal(t, "C", recs[2]["title"])
}

func TestReadRecords_CSV(t *testing.T) {
	path := writeFixture(t, "reviews.csv", `Id,Score,Summary
1,5,good stuff
2,,not rated
3,1,awful
`)

	recs := collectRecords(t, path)
	require.Len(t, recs, 3)
	assert.Equal(t, 5.0, recs[0]["Score"])
	assert.Equal(t, "good stuff", recs[0]["Summary"])
	assert.Nil(t, recs[1]["Score"])
	assert.Equal(t, 1.0, recs[2]["Score"])
}

func TestReadRecords_MissingFile(t *testing.T) {
	_, err := ReadRecords(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestPredicateMatches(t *testing.T) {
	pred := PredicateConfig{
		NumericField: "rating",
		NumericMin:   3,
		TextField:    "review_text",
		Keywords:     []string{"Fantastic", "suspense"},
	}

	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"numeric at threshold", Record{"rating": 3.0}, true},
		{"numeric below threshold", Record{"rating": 2.0}, false},
		{"keyword case-insensitive", Record{"review_text": "A FANTASTIC read"}, true},
		{"keyword substring", Record{"review_text": "pure suspense here"}, true},
		{"no match", Record{"review_text": "dull", "rating": 1.0}, false},
		{"numeric as string", Record{"rating": "4"}, true},
		{"missing fields", Record{"title": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pred.Matches(tt.rec))
		})
	}
}

func TestPredicateMatches_Empty(t *testing.T) {
	assert.False(t, PredicateConfig{}.Matches(Record{"rating": 5.0}))
}
