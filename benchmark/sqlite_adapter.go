package benchmark

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteAdapter implements Adapter on an embedded SQLite database. Each
// collection maps to a table holding one JSON document per row; the
// predicate is evaluated in Go on the decoded documents so the query
// semantics stay identical across backends.
type SQLiteAdapter struct {
	cfg  BackendConfig
	opts AdapterOptions

	db *sql.DB
}

func NewSQLiteAdapter(cfg BackendConfig, opts AdapterOptions) *SQLiteAdapter {
	return &SQLiteAdapter{cfg: cfg, opts: opts}
}

// tableName maps a collection to its backing table. Collection names
// come from configuration, not user input; quoting keeps the SQL valid
// for any reasonable name.
func tableName(collection string) string {
	return `"docs_` + strings.ReplaceAll(collection, `"`, ``) + `"`
}

// Connect opens the database file and verifies it is usable.
func (s *SQLiteAdapter) Connect(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close implements Adapter.Close.
func (s *SQLiteAdapter) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// InsertData implements Adapter.InsertData: recreate the table, then
// load records in batched transactions.
func (s *SQLiteAdapter) InsertData(ctx context.Context, sourcePath, collection string) (int, error) {
	if s.db == nil {
		return 0, ErrNotConnected
	}

	table := tableName(collection)
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return 0, fmt.Errorf("failed to drop table: %w", err)
	}
	create := `CREATE TABLE ` + table + ` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc TEXT NOT NULL,
		updated INTEGER NOT NULL DEFAULT 0
	)`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("failed to create table: %w", err)
	}

	records, err := ReadRecords(sourcePath)
	if err != nil {
		return 0, err
	}

	total := 0
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (doc) VALUES (?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}

	for rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}

		if _, err := stmt.ExecContext(ctx, string(data)); err != nil {
			stmt.Close()
			tx.Rollback()
			return total, fmt.Errorf("failed to insert document: %w", err)
		}
		total++

		if total%s.opts.BatchSize == 0 {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				return total, fmt.Errorf("failed to commit batch: %w", err)
			}
			tx, err = s.db.BeginTx(ctx, nil)
			if err != nil {
				return total, fmt.Errorf("failed to begin transaction: %w", err)
			}
			stmt, err = tx.PrepareContext(ctx, `INSERT INTO `+table+` (doc) VALUES (?)`)
			if err != nil {
				tx.Rollback()
				return total, fmt.Errorf("failed to prepare insert: %w", err)
			}
		}
		if total%insertProgressEvery == 0 {
			log.Info().Int("count", total).Str("collection", collection).Msg("Insert progress")
		}
	}

	stmt.Close()
	if err := tx.Commit(); err != nil {
		return total, fmt.Errorf("failed to commit batch: %w", err)
	}
	return total, nil
}

// ReadData implements Adapter.ReadData.
func (s *SQLiteAdapter) ReadData(ctx context.Context, collection string) error {
	if s.db == nil {
		return ErrNotConnected
	}
	table := tableName(collection)

	var first string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM `+table+` ORDER BY id LIMIT 1`).Scan(&first)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrEmptyCollection, collection)
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	count, err := s.countMatching(ctx, collection)
	if err != nil {
		return err
	}
	log.Info().Int("count", count).Str("collection", collection).Msg("Documents matching query")
	return nil
}

func (s *SQLiteAdapter) countMatching(ctx context.Context, collection string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM `+tableName(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to scan collection: %w", err)
	}
	defer rows.Close()

	predicate := s.opts.predicate(collection)
	count := 0
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return count, err
		}
		var rec Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			continue
		}
		if predicate.Matches(rec) {
			count++
		}
	}
	return count, rows.Err()
}

// UpdateData implements Adapter.UpdateData: flag up to the configured
// limit of predicate-matching documents, patching the stored JSON.
func (s *SQLiteAdapter) UpdateData(ctx context.Context, collection string) (int, error) {
	if s.db == nil {
		return 0, ErrNotConnected
	}
	table := tableName(collection)

	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM `+table+` ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("failed to scan collection: %w", err)
	}

	predicate := s.opts.predicate(collection)
	type patch struct {
		id  int64
		doc string
	}
	var patches []patch
	for rows.Next() {
		if len(patches) >= s.opts.UpdateLimit {
			break
		}
		var (
			id  int64
			doc string
		)
		if err := rows.Scan(&id, &doc); err != nil {
			rows.Close()
			return 0, err
		}
		var rec Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
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
		patches = append(patches, patch{id: id, doc: string(data)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `UPDATE `+table+` SET doc = ?, updated = 1 WHERE id = ?`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare update: %w", err)
	}

	modified := 0
	for _, p := range patches {
		if _, err := stmt.ExecContext(ctx, p.doc, p.id); err != nil {
			stmt.Close()
			tx.Rollback()
			return modified, fmt.Errorf("failed to update document: %w", err)
		}
		modified++
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return modified, fmt.Errorf("failed to commit updates: %w", err)
	}
	return modified, nil
}

// DeleteData implements Adapter.DeleteData.
func (s *SQLiteAdapter) DeleteData(ctx context.Context, collection string) (int, error) {
	if s.db == nil {
		return 0, ErrNotConnected
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+tableName(collection)+` WHERE updated = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

// ExportData implements Adapter.ExportData.
func (s *SQLiteAdapter) ExportData(ctx context.Context, collection string) (string, error) {
	if s.db == nil {
		return "", ErrNotConnected
	}

	path := s.opts.exportPath(collection, s.cfg.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM `+tableName(collection)+` ORDER BY id`)
	if err != nil {
		return "", fmt.Errorf("failed to scan collection: %w", err)
	}
	defer rows.Close()

	exported := 0
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return "", err
		}
		if _, err := f.WriteString(doc + "\n"); err != nil {
			return "", fmt.Errorf("failed to write export: %w", err)
		}
		exported++
		if exported%exportProgressEvery == 0 {
			log.Info().Int("count", exported).Str("collection", collection).Msg("Export progress")
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	log.Info().Int("count", exported).Str("path", path).Msg("Documents exported")
	return path, nil
}
