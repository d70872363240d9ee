// Package local is the SQLite record store used when the worker keeps its
// own replica of the synced data.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"syncworker/internal/models"
	"syncworker/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_records (
	category  TEXT NOT NULL,
	record_id TEXT NOT NULL,
	data      BLOB NOT NULL,
	synced_at TIMESTAMP NOT NULL,
	PRIMARY KEY (category, record_id)
)`

type Store struct {
	db *sql.DB
}

var _ store.RecordStore = (*Store)(nil)

// Open opens (or creates) the SQLite database at path. ":memory:" is accepted.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; sqlite serializes anyway and :memory: is per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sync_records table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveRecords(ctx context.Context, category string, records []models.Record) error {
	if !store.ValidCategory(category) {
		return fmt.Errorf("%w: %s", store.ErrUnknownCategory, category)
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_records (category, record_id, data, synced_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (category, record_id) DO UPDATE SET data = excluded.data, synced_at = excluded.synced_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, category, r.ID, r.Data, now); err != nil {
			return fmt.Errorf("save %s record %s: %w", category, r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) CountRecords(ctx context.Context, category string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_records WHERE category = ?`, category).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s records: %w", category, err)
	}
	return n, nil
}

// Get returns the stored payload of one record.
func (s *Store) Get(ctx context.Context, category, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sync_records WHERE category = ? AND record_id = ?`, category, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", category, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
