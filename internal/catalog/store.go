package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"snapsheet/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; users must delete the journal database after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store manages batch journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the batch journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// RecordBatch inserts a journal row for a completed batch and moves the
// current-dataset pointer to its dataset in the same transaction.
func (s *Store) RecordBatch(ctx context.Context, batchID, datasetPath string, imageCount, errorCount int) (*Batch, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var id int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			`INSERT INTO batches (batch_id, dataset_path, image_count, error_count, created_at)
             VALUES (?, ?, ?, ?, ?)`,
			batchID, datasetPath, imageCount, errorCount, timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO current_dataset (id, dataset_path, updated_at) VALUES (1, ?, ?)
             ON CONFLICT(id) DO UPDATE SET dataset_path = excluded.dataset_path, updated_at = excluded.updated_at`,
			datasetPath, timestamp,
		); err != nil {
			return fmt.Errorf("update current dataset: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	return &Batch{
		ID:          id,
		BatchID:     batchID,
		DatasetPath: datasetPath,
		ImageCount:  imageCount,
		ErrorCount:  errorCount,
		CreatedAt:   now,
	}, nil
}

// CurrentDataset returns the pointed-to dataset path, or "" when the
// pointer is unset.
func (s *Store) CurrentDataset(ctx context.Context) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, "SELECT dataset_path FROM current_dataset WHERE id = 1").Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read current dataset: %w", err)
	}
	return path, nil
}

// ClearCurrent drops the current-dataset pointer.
func (s *Store) ClearCurrent(ctx context.Context) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM current_dataset WHERE id = 1")
		return err
	})
}

// ListBatches returns journal rows newest first, up to limit (0 means all).
func (s *Store) ListBatches(ctx context.Context, limit int) ([]*Batch, error) {
	query := `SELECT id, batch_id, dataset_path, image_count, error_count, created_at
              FROM batches ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		var (
			b       Batch
			created string
		)
		if err := rows.Scan(&b.ID, &b.BatchID, &b.DatasetPath, &b.ImageCount, &b.ErrorCount, &created); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, created); parseErr == nil {
			b.CreatedAt = ts
		}
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

// PruneMissing removes journal rows whose dataset file no longer exists
// and clears a dangling current-dataset pointer. It returns the number
// of rows removed.
func (s *Store) PruneMissing(ctx context.Context) (int64, error) {
	batches, err := s.ListBatches(ctx, 0)
	if err != nil {
		return 0, err
	}

	var pruned int64
	for _, batch := range batches {
		if _, statErr := os.Stat(batch.DatasetPath); !errors.Is(statErr, fs.ErrNotExist) {
			continue
		}
		err := retryOnBusy(ctx, func() error {
			_, execErr := s.db.ExecContext(ctx, "DELETE FROM batches WHERE id = ?", batch.ID)
			return execErr
		})
		if err != nil {
			return pruned, fmt.Errorf("prune batch %d: %w", batch.ID, err)
		}
		pruned++
	}

	current, err := s.CurrentDataset(ctx)
	if err != nil {
		return pruned, err
	}
	if current != "" {
		if _, statErr := os.Stat(current); errors.Is(statErr, fs.ErrNotExist) {
			if err := s.ClearCurrent(ctx); err != nil {
				return pruned, err
			}
		}
	}
	return pruned, nil
}
