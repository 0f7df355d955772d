package storage

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/cyderes/olist-finalizer/internal/config"
	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/table"
)

// Storage interface defines the contract for persisting final tables
type Storage interface {
	StoreTable(ctx context.Context, ds models.Dataset, t *table.Table) error
	UpdateRunStatus(ctx context.Context, status models.RunStatus) error
	GetRunStatus(ctx context.Context) (*models.RunStatus, error)
	Close() error
}

// NewStorage creates the storage for a run. The CSV files are always written;
// any other type adds a mirror that receives the same tables.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	csv := NewCSVStorage(cfg.OutputDir)

	var (
		mirror Storage
		err    error
	)
	switch cfg.Type {
	case config.StorageCSV, "":
		return csv, nil
	case config.StorageSQLite:
		mirror, err = NewSQLiteStorage(ctx, cfg)
	case config.StoragePostgreSQL:
		mirror, err = NewPostgreSQLStorage(ctx, cfg)
	case config.StorageMongoDB:
		mirror, err = NewMongoDBStorage(ctx, cfg)
	case config.StorageDynamoDB:
		mirror, err = NewDynamoDBStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Type, err)
	}
	return NewMultiStorage(csv, mirror), nil
}

// MultiStorage writes to several storages sequentially, stopping at the first error.
type MultiStorage struct {
	stores []Storage
}

// NewMultiStorage fans out to stores in order
func NewMultiStorage(stores ...Storage) *MultiStorage {
	return &MultiStorage{stores: stores}
}

// StoreTable stores the table in every storage
func (m *MultiStorage) StoreTable(ctx context.Context, ds models.Dataset, t *table.Table) error {
	for _, s := range m.stores {
		if err := s.StoreTable(ctx, ds, t); err != nil {
			return err
		}
	}
	return nil
}

// UpdateRunStatus records the status in every storage
func (m *MultiStorage) UpdateRunStatus(ctx context.Context, status models.RunStatus) error {
	for _, s := range m.stores {
		if err := s.UpdateRunStatus(ctx, status); err != nil {
			return err
		}
	}
	return nil
}

// GetRunStatus returns the status held by the last storage
func (m *MultiStorage) GetRunStatus(ctx context.Context) (*models.RunStatus, error) {
	if len(m.stores) == 0 {
		return &models.RunStatus{Status: models.RunStatusNever}, nil
	}
	return m.stores[len(m.stores)-1].GetRunStatus(ctx)
}

// Close closes every storage and combines their errors
func (m *MultiStorage) Close() error {
	var err error
	for _, s := range m.stores {
		err = multierr.Append(err, s.Close())
	}
	return err
}
