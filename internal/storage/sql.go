package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/cyderes/olist-finalizer/internal/config"
	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/table"
)

// statusTimeLayout keeps a fixed width so stored times sort lexically.
const statusTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// columnKind is the storage class inferred for a mirrored column
type columnKind int

const (
	kindText columnKind = iota
	kindFloat
)

// dialect captures the differences between the SQL backends. floatType
// must hold a float64 without rounding.
type dialect struct {
	driver      string
	quote       func(string) string
	placeholder func(n int) string
	floatType   string
}

var sqliteDialect = dialect{
	driver: "sqlite",
	quote: func(name string) string {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	},
	placeholder: func(int) string { return "?" },
	floatType:   "REAL",
}

var postgresDialect = dialect{
	driver:      "postgres",
	quote:       pq.QuoteIdentifier,
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	floatType:   "DOUBLE PRECISION",
}

func (d dialect) columnType(k columnKind) string {
	if k == kindFloat {
		return d.floatType
	}
	return "TEXT"
}

// SQLStorage mirrors final tables into a SQL database. Each dataset is
// dropped and recreated on every run.
type SQLStorage struct {
	db          *sql.DB
	dialect     dialect
	prefix      string
	statusTable string
	timeout     time.Duration
}

// NewSQLiteStorage opens (or creates) the SQLite database file
func NewSQLiteStorage(ctx context.Context, cfg config.StorageConfig) (*SQLStorage, error) {
	return newSQLStorage(ctx, sqliteDialect, cfg.SQLitePath, cfg)
}

// NewPostgreSQLStorage connects to PostgreSQL
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*SQLStorage, error) {
	return newSQLStorage(ctx, postgresDialect, cfg.PostgresURI, cfg)
}

func newSQLStorage(ctx context.Context, d dialect, dsn string, cfg config.StorageConfig) (*SQLStorage, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.driver, err)
	}

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.driver, err)
	}

	s := &SQLStorage{
		db:          db,
		dialect:     d,
		prefix:      cfg.TablePrefix,
		statusTable: cfg.TablePrefix + "run_status",
		timeout:     cfg.Timeout,
	}
	if err := s.ensureStatusTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStorage) ensureStatusTable(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		error_message TEXT,
		rows_written TEXT
	)`, s.dialect.quote(s.statusTable))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to create status table: %w", err)
	}
	return nil
}

// TableName returns the SQL table a dataset is mirrored to
func (s *SQLStorage) TableName(ds models.Dataset) string {
	return s.prefix + ds.Name
}

// StoreTable replaces the dataset's table with the given rows in one transaction
func (s *SQLStorage) StoreTable(ctx context.Context, ds models.Dataset, t *table.Table) error {
	name := s.dialect.quote(s.TableName(ds))
	kinds := columnKinds(t)

	defs := []string{s.dialect.quote("row_index") + " INTEGER PRIMARY KEY"}
	cols := []string{s.dialect.quote("row_index")}
	for i, h := range t.Headers {
		defs = append(defs, fmt.Sprintf("%s %s", s.dialect.quote(h), s.dialect.columnType(kinds[i])))
		cols = append(cols, s.dialect.quote(h))
	}
	ph := make([]string, len(cols))
	for i := range ph {
		ph[i] = s.dialect.placeholder(i + 1)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.execTx(ctx, tx, `DROP TABLE IF EXISTS `+name); err != nil {
		return fmt.Errorf("failed to drop %s: %w", name, err)
	}
	if err := s.execTx(ctx, tx, `CREATE TABLE `+name+` (`+strings.Join(defs, ", ")+`)`); err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO `+name+` (`+strings.Join(cols, ", ")+`) VALUES (`+strings.Join(ph, ", ")+`)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for r, row := range t.Rows {
		args := make([]interface{}, 0, len(cols))
		args = append(args, r)
		for i, cell := range row {
			args = append(args, sqlValue(kinds[i], cell))
		}
		if err := s.execStmt(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", r, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	return nil
}

// execTx and execStmt bound a single statement by the storage timeout
func (s *SQLStorage) execTx(ctx context.Context, tx *sql.Tx, query string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	_, err := tx.ExecContext(ctx, query)
	return err
}

func (s *SQLStorage) execStmt(ctx context.Context, stmt *sql.Stmt, args ...interface{}) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	_, err := stmt.ExecContext(ctx, args...)
	return err
}

// columnKinds types a column as float when every non-null cell is numeric
func columnKinds(t *table.Table) []columnKind {
	kinds := make([]columnKind, len(t.Headers))
	for i := range t.Headers {
		kinds[i] = kindFloat
		seen := false
		for _, row := range t.Rows {
			if table.IsNull(row[i]) {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err != nil {
				kinds[i] = kindText
				break
			}
		}
		if !seen {
			kinds[i] = kindText
		}
	}
	return kinds
}

func sqlValue(kind columnKind, cell string) interface{} {
	if kind != kindFloat {
		return cell
	}
	if table.IsNull(cell) {
		return nil
	}
	f, _ := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	return f
}

// UpdateRunStatus upserts the run's status row
func (s *SQLStorage) UpdateRunStatus(ctx context.Context, status models.RunStatus) error {
	rows, err := json.Marshal(status.RowsWritten)
	if err != nil {
		return fmt.Errorf("failed to marshal rows written: %w", err)
	}

	var finished interface{}
	if !status.FinishedAt.IsZero() {
		finished = status.FinishedAt.UTC().Format(statusTimeLayout)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	p := s.dialect.placeholder
	q := fmt.Sprintf(`INSERT INTO %s (run_id, started_at, finished_at, status, error_message, rows_written)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			error_message = excluded.error_message,
			rows_written = excluded.rows_written`,
		s.dialect.quote(s.statusTable), p(1), p(2), p(3), p(4), p(5), p(6))

	_, err = s.db.ExecContext(ctx, q,
		status.RunID,
		status.StartedAt.UTC().Format(statusTimeLayout),
		finished,
		status.Status,
		status.ErrorMessage,
		string(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// GetRunStatus returns the most recently started run
func (s *SQLStorage) GetRunStatus(ctx context.Context) (*models.RunStatus, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`SELECT run_id, started_at, finished_at, status, error_message, rows_written
		FROM %s ORDER BY started_at DESC LIMIT 1`, s.dialect.quote(s.statusTable))

	var (
		status           models.RunStatus
		started          string
		finished, errMsg sql.NullString
		rowsWritten      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, q).Scan(&status.RunID, &started, &finished, &status.Status, &errMsg, &rowsWritten)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.RunStatus{Status: models.RunStatusNever}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run status: %w", err)
	}

	if status.StartedAt, err = time.Parse(statusTimeLayout, started); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if finished.Valid {
		if status.FinishedAt, err = time.Parse(statusTimeLayout, finished.String); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at: %w", err)
		}
	}
	status.ErrorMessage = errMsg.String
	if rowsWritten.Valid && rowsWritten.String != "" {
		if err := json.Unmarshal([]byte(rowsWritten.String), &status.RowsWritten); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rows written: %w", err)
		}
	}
	return &status, nil
}

// Close closes the database handle
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
