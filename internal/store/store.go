package store

import (
	"context"
	"errors"

	"life.tape/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrInvalid  = errors.New("invalid key or id")
)

// Store backs the two logical tables: the app_state key-value table and
// the entries table.
type Store interface {
	GetState(ctx context.Context, key string) (*models.StateRecord, error)
	UpsertState(ctx context.Context, rec *models.StateRecord) error
	DeleteState(ctx context.Context, key string) error

	ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.Entry, error)
	GetEntry(ctx context.Context, id string) (*models.Entry, error)
	InsertEntry(ctx context.Context, entry *models.Entry) error
	UpdateEntry(ctx context.Context, id string, patch models.EntryPatch) (*models.Entry, error)
	DeleteEntry(ctx context.Context, id string) error

	Close() error
}
