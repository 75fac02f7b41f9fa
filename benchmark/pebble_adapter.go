package benchmark

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
)

// PebbleAdapter implements Adapter on an in-process Pebble instance.
// Documents are stored as JSON values under "<collection>/<seq>" keys,
// so a collection is a contiguous key range.
type PebbleAdapter struct {
	cfg  BackendConfig
	opts AdapterOptions

	db *pebble.DB
	// seq hands out per-collection key suffixes across inserts
	seq map[string]uint64
}

func NewPebbleAdapter(cfg BackendConfig, opts AdapterOptions) *PebbleAdapter {
	return &PebbleAdapter{
		cfg:  cfg,
		opts: opts,
		seq:  make(map[string]uint64),
	}
}

// Connect opens the Pebble store at the configured path.
func (p *PebbleAdapter) Connect(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(p.cfg.Path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := pebble.Open(p.cfg.Path, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open pebble at %s: %w", p.cfg.Path, err)
	}
	p.db = db
	return nil
}

// Close implements Adapter.Close.
func (p *PebbleAdapter) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func collectionBounds(collection string) (lower, upper []byte) {
	lower = []byte(collection + "/")
	upper = []byte(collection + "0") // '0' is '/'+1
	return lower, upper
}

func documentKey(collection string, seq uint64) []byte {
	key := make([]byte, 0, len(collection)+9)
	key = append(key, collection...)
	key = append(key, '/')
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

// InsertData implements Adapter.InsertData. The collection's key range
// is cleared first, then records are written in batches.
func (p *PebbleAdapter) InsertData(ctx context.Context, sourcePath, collection string) (int, error) {
	if p.db == nil {
		return 0, ErrNotConnected
	}

	lower, upper := collectionBounds(collection)
	if err := p.db.DeleteRange(lower, upper, pebble.NoSync); err != nil {
		return 0, fmt.Errorf("failed to clear collection %s: %w", collection, err)
	}
	p.seq[collection] = 0

	records, err := ReadRecords(sourcePath)
	if err != nil {
		return 0, err
	}

	total := 0
	batch := p.db.NewBatch()
	for rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}

		p.seq[collection]++
		if err := batch.Set(documentKey(collection, p.seq[collection]), data, nil); err != nil {
			batch.Close()
			return total, fmt.Errorf("failed to stage document: %w", err)
		}
		total++

		if total%p.opts.BatchSize == 0 {
			if err := batch.Commit(pebble.NoSync); err != nil {
				batch.Close()
				return total, fmt.Errorf("failed to commit batch: %w", err)
			}
			batch = p.db.NewBatch()
		}
		if total%insertProgressEvery == 0 {
			log.Info().Int("count", total).Str("collection", collection).Msg("Insert progress")
		}
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		batch.Close()
		return total, fmt.Errorf("failed to commit batch: %w", err)
	}
	if err := p.db.Flush(); err != nil {
		return total, fmt.Errorf("failed to flush: %w", err)
	}
	return total, nil
}

// ReadData implements Adapter.ReadData: fetch the first document, then
// count predicate matches over a full scan.
func (p *PebbleAdapter) ReadData(ctx context.Context, collection string) error {
	if p.db == nil {
		return ErrNotConnected
	}

	lower, upper := collectionBounds(collection)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	if !iter.First() {
		return fmt.Errorf("%w: %s", ErrEmptyCollection, collection)
	}
	var first Record
	if err := json.Unmarshal(iter.Value(), &first); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}

	predicate := p.opts.predicate(collection)
	count := 0
	for ; iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if predicate.Matches(rec) {
			count++
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	log.Info().Int("count", count).Str("collection", collection).Msg("Documents matching query")
	return nil
}

// UpdateData implements Adapter.UpdateData: flag up to the configured
// limit of predicate-matching documents.
func (p *PebbleAdapter) UpdateData(ctx context.Context, collection string) (int, error) {
	if p.db == nil {
		return 0, ErrNotConnected
	}

	lower, upper := collectionBounds(collection)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	predicate := p.opts.predicate(collection)
	modified := 0
	batch := p.db.NewBatch()
	for iter.First(); iter.Valid(); iter.Next() {
		if modified >= p.opts.UpdateLimit {
			break
		}

		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if !predicate.Matches(rec) {
			continue
		}

		rec[benchmarkUpdatedField] = true
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}

		key := append([]byte(nil), iter.Key()...)
		if err := batch.Set(key, data, nil); err != nil {
			batch.Close()
			return modified, fmt.Errorf("failed to stage update: %w", err)
		}
		modified++
	}
	if err := iter.Error(); err != nil {
		batch.Close()
		return modified, fmt.Errorf("scan failed: %w", err)
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		batch.Close()
		return modified, fmt.Errorf("failed to commit updates: %w", err)
	}
	return modified, nil
}

// DeleteData implements Adapter.DeleteData: remove flagged documents.
func (p *PebbleAdapter) DeleteData(ctx context.Context, collection string) (int, error) {
	if p.db == nil {
		return 0, ErrNotConnected
	}

	lower, upper := collectionBounds(collection)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	deleted := 0
	batch := p.db.NewBatch()
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if updated, ok := rec[benchmarkUpdatedField].(bool); !ok || !updated {
			continue
		}

		key := append([]byte(nil), iter.Key()...)
		if err := batch.Delete(key, nil); err != nil {
			batch.Close()
			return deleted, fmt.Errorf("failed to stage delete: %w", err)
		}
		deleted++
	}
	if err := iter.Error(); err != nil {
		batch.Close()
		return deleted, fmt.Errorf("scan failed: %w", err)
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		batch.Close()
		return deleted, fmt.Errorf("failed to commit deletes: %w", err)
	}
	return deleted, nil
}

// ExportData implements Adapter.ExportData: dump the collection as
// JSON lines.
func (p *PebbleAdapter) ExportData(ctx context.Context, collection string) (string, error) {
	if p.db == nil {
		return "", ErrNotConnected
	}

	path := p.opts.exportPath(collection, p.cfg.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	lower, upper := collectionBounds(collection)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return "", fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	exported := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if _, err := f.Write(iter.Value()); err != nil {
			return "", fmt.Errorf("failed to write export: %w", err)
		}
		if _, err := f.Write([]byte{'\n'}); err != nil {
			return "", fmt.Errorf("failed to write export: %w", err)
		}
		exported++
		if exported%exportProgressEvery == 0 {
			log.Info().Int("count", exported).Str("collection", collection).Msg("Export progress")
		}
	}
	if err := iter.Error(); err != nil {
		return "", fmt.Errorf("scan failed: %w", err)
	}

	log.Info().Int("count", exported).Str("path", path).Msg("Documents exported")
	return path, nil
}
