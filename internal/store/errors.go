package store

import (
	"errors"

	"syncworker/internal/models"
)

var (
	ErrNotFound        = errors.New("store: resource not found")
	ErrUnknownCategory = errors.New("store: unknown record category")
	ErrUnsupportedDSN  = errors.New("store: unsupported DSN")
)

// ValidCategory reports whether category is one of the synced data categories.
func ValidCategory(category string) bool {
	switch category {
	case models.CategoryProcesses, models.CategorySuppliers, models.CategoryConceptions:
		return true
	}
	return false
}
