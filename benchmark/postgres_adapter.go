package benchmark

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// PostgresAdapter implements Adapter against a PostgreSQL server,
// usually one running in the docker container the monitor watches.
// Documents live in a JSONB column, one table per collection; the
// predicate is evaluated in Go like the other backends.
type PostgresAdapter struct {
	cfg  BackendConfig
	opts AdapterOptions

	db *sql.DB
}

func NewPostgresAdapter(cfg BackendConfig, opts AdapterOptions) *PostgresAdapter {
	return &PostgresAdapter{cfg: cfg, opts: opts}
}

// Connect opens the connection pool and verifies the server is
// reachable.
func (p *PostgresAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	p.db = db
	return nil
}

// Close implements Adapter.Close.
func (p *PostgresAdapter) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// InsertData implements Adapter.InsertData.
func (p *PostgresAdapter) InsertData(ctx context.Context, sourcePath, collection string) (int, error) {
	if p.db == nil {
		return 0, ErrNotConnected
	}

	table := tableName(collection)
	if _, err := p.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return 0, fmt.Errorf("failed to drop table: %w", err)
	}
	create := `CREATE TABLE ` + table + ` (
		id SERIAL PRIMARY KEY,
		doc JSONB NOT NULL,
		updated BOOLEAN NOT NULL DEFAULT FALSE
	)`
	if _, err := p.db.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("failed to create table: %w", err)
	}

	records, err := ReadRecords(sourcePath)
	if err != nil {
		return 0, err
	}

	total := 0
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (doc) VALUES ($1)`)
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

		if total%p.opts.BatchSize == 0 {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				return total, fmt.Errorf("failed to commit batch: %w", err)
			}
			tx, err = p.db.BeginTx(ctx, nil)
			if err != nil {
				return total, fmt.Errorf("failed to begin transaction: %w", err)
			}
			stmt, err = tx.PrepareContext(ctx, `INSERT INTO `+table+` (doc) VALUES ($1)`)
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
func (p *PostgresAdapter) ReadData(ctx context.Context, collection string) error {
	if p.db == nil {
		return ErrNotConnected
	}
	table := tableName(collection)

	var first string
	err := p.db.QueryRowContext(ctx, `SELECT doc FROM `+table+` ORDER BY id LIMIT 1`).Scan(&first)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrEmptyCollection, collection)
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `SELECT doc FROM `+table)
	if err != nil {
		return fmt.Errorf("failed to scan collection: %w", err)
	}
	defer rows.Close()

	predicate := p.opts.predicate(collection)
	count := 0
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			continue
		}
		if predicate.Matches(rec) {
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	log.Info().Int("count", count).Str("collection", collection).Msg("Documents matching query")
	return nil
}

// UpdateData implements Adapter.UpdateData.
func (p *PostgresAdapter) UpdateData(ctx context.Context, collection string) (int, error) {
	if p.db == nil {
		return 0, ErrNotConnected
	}
	table := tableName(collection)

	rows, err := p.db.QueryContext(ctx, `SELECT id, doc FROM `+table+` ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("failed to scan collection: %w", err)
	}

	predicate := p.opts.predicate(collection)
	type patch struct {
		id  int64
		doc string
	}
	var patches []patch
	for rows.Next() {
		if len(patches) >= p.opts.UpdateLimit {
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

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `UPDATE `+table+` SET doc = $1, updated = TRUE WHERE id = $2`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare update: %w", err)
	}

	modified := 0
	for _, pt := range patches {
		if _, err := stmt.ExecContext(ctx, pt.doc, pt.id); err != nil {
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
func (p *PostgresAdapter) DeleteData(ctx context.Context, collection string) (int, error) {
	if p.db == nil {
		return 0, ErrNotConnected
	}

	res, err := p.db.ExecContext(ctx, `DELETE FROM `+tableName(collection)+` WHERE updated`)
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
func (p *PostgresAdapter) ExportData(ctx context.Context, collection string) (string, error) {
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

	rows, err := p.db.QueryContext(ctx, `SELECT doc FROM `+tableName(collection)+` ORDER BY id`)
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
