package store

import (
	"context"

	"syncworker/internal/models"
)

// --- Record Store ---

// RecordStore holds the data pulled down by the sync pipeline, keyed by
// category and record id. Saving a record that already exists replaces it.
type RecordStore interface {
	SaveRecords(ctx context.Context, category string, records []models.Record) error
	CountRecords(ctx context.Context, category string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
