package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/table"
)

// CSVStorage writes each final table to a delimited file in a directory.
// Run status is only kept in memory.
type CSVStorage struct {
	dir    string
	status *models.RunStatus
}

// NewCSVStorage creates a CSV storage rooted at dir
func NewCSVStorage(dir string) *CSVStorage {
	return &CSVStorage{dir: dir}
}

// Path returns the file a dataset is written to
func (c *CSVStorage) Path(ds models.Dataset) string {
	return filepath.Join(c.dir, ds.OutputFile)
}

// StoreTable writes the table with a header row and no index column
func (c *CSVStorage) StoreTable(_ context.Context, ds models.Dataset, t *table.Table) error {
	path := c.Path(ds)
	if err := t.WriteFile(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// UpdateRunStatus keeps the latest status
func (c *CSVStorage) UpdateRunStatus(_ context.Context, status models.RunStatus) error {
	c.status = &status
	return nil
}

// GetRunStatus returns the latest status recorded by this process
func (c *CSVStorage) GetRunStatus(_ context.Context) (*models.RunStatus, error) {
	if c.status == nil {
		return &models.RunStatus{Status: models.RunStatusNever}, nil
	}
	s := *c.status
	return &s, nil
}

// Close is a no-op
func (c *CSVStorage) Close() error {
	return nil
}
