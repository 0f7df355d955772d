package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cyderes/olist-finalizer/internal/cleaning"
	"github.com/cyderes/olist-finalizer/internal/config"
	"github.com/cyderes/olist-finalizer/internal/metrics"
	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/storage"
	"github.com/cyderes/olist-finalizer/internal/table"
)

// Datasets are processed and written in this order
var Datasets = []models.Dataset{
	models.ProductsDataset,
	models.OrdersDataset,
	models.ReviewsDataset,
}

// Service runs one cleaning pass over the three datasets
type Service struct {
	config  config.PipelineConfig
	storage storage.Storage
	metrics *metrics.Registry
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new pipeline service
func NewService(cfg config.PipelineConfig, store storage.Storage, reg *metrics.Registry, logger *zap.Logger) *Service {
	return &Service{
		config:  cfg,
		storage: store,
		metrics: reg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run loads every dataset, cleans it and stores the final tables. The
// returned status is also recorded in storage.
func (s *Service) Run(ctx context.Context) (models.RunStatus, error) {
	status := models.RunStatus{
		RunID:     uuid.NewString(),
		StartedAt: s.now().UTC(),
		Status:    models.RunStatusRunning,
	}
	logger := s.logger.With(zap.String("run_id", status.RunID))
	s.logPreviousRun(ctx, logger)

	if err := s.storage.UpdateRunStatus(ctx, status); err != nil {
		return status, fmt.Errorf("failed to record run start: %w", err)
	}

	rows, err := s.process(ctx, logger)

	status.FinishedAt = s.now().UTC()
	s.metrics.RunDurationSec.Set(status.FinishedAt.Sub(status.StartedAt).Seconds())
	s.metrics.LastRunTimestamp.Set(float64(status.FinishedAt.Unix()))
	if err != nil {
		status.Status = models.RunStatusFailure
		status.ErrorMessage = err.Error()
		s.metrics.RunSuccess.Set(0)
		if serr := s.storage.UpdateRunStatus(ctx, status); serr != nil {
			logger.Error("Failed to record run failure", zap.Error(serr))
		}
		return status, err
	}

	status.Status = models.RunStatusSuccess
	status.RowsWritten = rows
	s.metrics.RunSuccess.Set(1)
	if err := s.storage.UpdateRunStatus(ctx, status); err != nil {
		return status, fmt.Errorf("failed to record run success: %w", err)
	}

	logger.Info("Data cleaning complete", zap.Duration("elapsed", status.FinishedAt.Sub(status.StartedAt)))
	return status, nil
}

// logPreviousRun reports the last recorded run. A failed lookup does not
// stop the new run.
func (s *Service) logPreviousRun(ctx context.Context, logger *zap.Logger) {
	prev, err := s.storage.GetRunStatus(ctx)
	if err != nil {
		logger.Warn("Failed to read previous run status", zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.String("previous_run_id", prev.RunID),
		zap.String("previous_status", prev.Status),
	}
	switch prev.Status {
	case models.RunStatusNever:
		logger.Info("No previous run recorded")
	case models.RunStatusRunning:
		logger.Warn("Previous run did not finish", fields...)
	case models.RunStatusFailure:
		logger.Warn("Previous run failed", append(fields, zap.String("previous_error", prev.ErrorMessage))...)
	default:
		logger.Info("Previous run", append(fields, zap.Time("previous_finished_at", prev.FinishedAt))...)
	}
}

func (s *Service) process(ctx context.Context, logger *zap.Logger) (map[string]int, error) {
	logger.Info("Loading cleaned datasets", zap.String("input_dir", s.config.InputDir))
	tables, err := s.load()
	if err != nil {
		return nil, err
	}

	logger.Info("Fixing product dataset remaining nulls")
	if err := s.cleanProducts(logger, tables[models.ProductsDataset.Name]); err != nil {
		return nil, err
	}

	logger.Info("Handling date fields in orders dataset")
	if err := s.cleanOrders(logger, tables[models.OrdersDataset.Name]); err != nil {
		return nil, err
	}

	logger.Info("Enhancing the reviews dataset")
	if err := s.cleanReviews(logger, tables[models.ReviewsDataset.Name]); err != nil {
		return nil, err
	}

	logger.Info("Saving fully cleaned datasets")
	return s.store(ctx, logger, tables)
}

// load reads every input file fully into memory
func (s *Service) load() (map[string]*table.Table, error) {
	tables := make(map[string]*table.Table, len(Datasets))
	for _, ds := range Datasets {
		t, err := table.ReadFile(filepath.Join(s.config.InputDir, ds.InputFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", ds.Name, err)
		}
		tables[ds.Name] = t
	}
	return tables, nil
}

func (s *Service) cleanProducts(logger *zap.Logger, products *table.Table) error {
	reports, err := cleaning.FillProductMedians(products)
	if err != nil {
		return fmt.Errorf("failed to fill product nulls: %w", err)
	}
	for _, r := range reports {
		logger.Info("Filling column nulls with median value",
			zap.String("column", r.Column),
			zap.Float64("median", r.Median),
			zap.Int("filled", r.Filled))
		if r.Filled > 0 && math.IsNaN(r.Median) {
			logger.Warn("Column has no observed values, median is NaN", zap.String("column", r.Column))
		}
		s.metrics.NullsFilled.WithLabelValues(models.ProductsDataset.Name, r.Column).Add(float64(r.Filled))
	}
	return nil
}

func (s *Service) cleanOrders(logger *zap.Logger, orders *table.Table) error {
	report, err := cleaning.EnrichOrders(orders)
	if err != nil {
		return fmt.Errorf("failed to enrich orders: %w", err)
	}
	for col, n := range report.UnparseableDates {
		s.metrics.DatesUnparseable.WithLabelValues(col).Add(float64(n))
	}
	s.metrics.MissingEstimate.Add(float64(report.MissingEstimate))

	logger.Info("Creating additional useful features",
		zap.Int("late_deliveries", report.Late),
		zap.Int("missing_estimate", report.MissingEstimate),
		zap.Any("status_categories", report.Categories))
	return nil
}

func (s *Service) cleanReviews(logger *zap.Logger, reviews *table.Table) error {
	report, err := cleaning.EnrichReviews(reviews)
	if err != nil {
		return fmt.Errorf("failed to enrich reviews: %w", err)
	}
	for col, n := range report.BlankedText {
		s.metrics.NullsFilled.WithLabelValues(models.ReviewsDataset.Name, col).Add(float64(n))
	}
	logger.Debug("Categorized reviews", zap.Any("review_categories", report.Categories))
	return nil
}

// store writes every table; a failure part way leaves earlier outputs in place
func (s *Service) store(ctx context.Context, logger *zap.Logger, tables map[string]*table.Table) (map[string]int, error) {
	rows := make(map[string]int, len(Datasets))
	for _, ds := range Datasets {
		t := tables[ds.Name]
		if err := s.storage.StoreTable(ctx, ds, t); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", ds.Name, err)
		}
		rows[ds.Name] = t.Len()
		s.metrics.RowsProcessed.WithLabelValues(ds.Name).Add(float64(t.Len()))
		logger.Info("Saved dataset",
			zap.String("dataset", ds.Name),
			zap.String("file", ds.OutputFile),
			zap.Int("rows", t.Len()))
	}
	return rows, nil
}
