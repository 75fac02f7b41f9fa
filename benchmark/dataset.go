package benchmark

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Record is one dataset document.
type Record map[string]any

// benchmarkUpdatedField is the flag the update step sets on matched
// documents; the delete step removes documents carrying it.
const benchmarkUpdatedField = "benchmark_updated"

const (
	insertProgressEvery = 50000
	exportProgressEvery = 100000

	// datasets carry the occasional very long review line
	maxLineBytes = 16 << 20
)

// ReadRecords streams records from a dataset file. JSON-lines files are
// decoded line by line, anything else is treated as CSV with a header
// row. Unparseable lines and rows are skipped, mirroring the loaders
// this tool replaces.
func ReadRecords(path string) (iter.Seq[Record], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".csv") {
		return csvRecords(f), nil
	}
	return jsonLineRecords(f), nil
}

func jsonLineRecords(f *os.File) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var rec Record
			if err := json.Unmarshal(line, &rec); err != nil {
				continue
			}
			if !yield(rec) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error().Err(err).Str("path", f.Name()).Msg("Dataset read aborted")
		}
	}
}

func csvRecords(f *os.File) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		defer f.Close()

		r := csv.NewReader(f)
		header, err := r.Read()
		if err != nil {
			log.Error().Err(err).Str("path", f.Name()).Msg("Failed to read CSV header")
			return
		}

		for {
			row, err := r.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				// bad row, keep going
				continue
			}

			rec := make(Record, len(header))
			for i, field := range header {
				if i >= len(row) {
					break
				}
				rec[field] = csvValue(row[i])
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// csvValue parses numeric-looking cells so predicates compare numbers,
// not strings. Empty cells become nil, matching the JSON decoder's
// treatment of null.
func csvValue(cell string) any {
	if cell == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	return cell
}

// Matches reports whether the record satisfies the predicate: numeric
// field at or above the minimum, or text field containing any keyword,
// case-insensitive. An empty predicate matches nothing.
func (p PredicateConfig) Matches(rec Record) bool {
	if p.NumericField != "" {
		if v, ok := asFloat(rec[p.NumericField]); ok && v >= p.NumericMin {
			return true
		}
	}
	if p.TextField != "" {
		if s, ok := rec[p.TextField].(string); ok {
			lower := strings.ToLower(s)
			for _, kw := range p.Keywords {
				if strings.Contains(lower, strings.ToLower(kw)) {
					return true
				}
			}
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
