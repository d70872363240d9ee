package primary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"syncworker/internal/models"
	"syncworker/internal/store"
)

// StoreImpl implements store.RecordStore using PostgreSQL.
type StoreImpl struct {
	db *pgxpool.Pool
}

var _ store.RecordStore = (*StoreImpl)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS sync_records (
	category  TEXT NOT NULL,
	record_id TEXT NOT NULL,
	data      JSONB NOT NULL,
	synced_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (category, record_id)
)`

// NewPrimaryStore creates a new PostgreSQL record store and makes sure its table exists.
func NewPrimaryStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := dbpool.Exec(ctx, schema); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to create sync_records table: %w", err)
	}

	return &StoreImpl{db: dbpool}, nil
}

// SaveRecords upserts records in one batch.
func (s *StoreImpl) SaveRecords(ctx context.Context, category string, records []models.Record) error {
	if !store.ValidCategory(category) {
		return fmt.Errorf("%w: %s", store.ErrUnknownCategory, category)
	}
	if len(records) == 0 {
		return nil
	}
	query := `
		INSERT INTO sync_records (category, record_id, data, synced_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category, record_id) DO UPDATE SET data = EXCLUDED.data, synced_at = EXCLUDED.synced_at`

	now := time.Now()
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, category, r.ID, r.Data, now)
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save %d %s records: %w", len(records), category, err)
	}
	return nil
}

// CountRecords returns how many records of category are stored.
func (s *StoreImpl) CountRecords(ctx context.Context, category string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM sync_records WHERE category = $1`, category).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", category, err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection pool.
func (s *StoreImpl) Close() error {
	s.db.Close()
	return nil
}
