// Package store keeps scan history in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when no scan has the requested id.
var ErrNotFound = errors.New("scan not found")

// DefaultListLimit is used when ListScans is called with a non-positive limit.
const DefaultListLimit = 20

// DBPool abstracts pgxpool.Pool so tests can use pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Repository is the scan history used by the CLI.
type Repository interface {
	SaveScan(ctx context.Context, result *schemas.ScanResult) error
	ListScans(ctx context.Context, filter ListFilter) ([]schemas.ScanRecord, error)
	GetScan(ctx context.Context, scanID string) (*schemas.ScanResult, error)
	Close()
}

// ListFilter narrows ListScans.
type ListFilter struct {
	URL   string
	Limit int
}

// Store is the PostgreSQL Repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scans (
    scan_id          UUID PRIMARY KEY,
    url              TEXT NOT NULL,
    scanned_at       TIMESTAMPTZ NOT NULL,
    standard         TEXT NOT NULL,
    wcag_level       TEXT NOT NULL,
    compliance_score INTEGER NOT NULL,
    total_violations INTEGER NOT NULL,
    critical_count   INTEGER NOT NULL,
    serious_count    INTEGER NOT NULL,
    moderate_count   INTEGER NOT NULL,
    minor_count      INTEGER NOT NULL,
    engine_version   TEXT NOT NULL,
    result           JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS scans_url_scanned_at_idx ON scans (url, scanned_at DESC);
CREATE TABLE IF NOT EXISTS violations (
    scan_id          UUID NOT NULL REFERENCES scans (scan_id) ON DELETE CASCADE,
    rule_id          TEXT NOT NULL,
    impact           TEXT NOT NULL,
    risk_tier        TEXT NOT NULL,
    wcag_criterion   TEXT NOT NULL,
    en301549_clause  TEXT NOT NULL,
    node_count       INTEGER NOT NULL,
    element_selector TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS violations_rule_id_idx ON violations (rule_id);
`

const insertScanSQL = `
INSERT INTO scans (scan_id, url, scanned_at, standard, wcag_level, compliance_score,
    total_violations, critical_count, serious_count, moderate_count, minor_count,
    engine_version, result)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

var violationColumns = []string{
	"scan_id", "rule_id", "impact", "risk_tier", "wcag_criterion",
	"en301549_clause", "node_count", "element_selector",
}

// Open connects to databaseURL and prepares the schema.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New creates a store over pool and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveScan stores the scan row and one row per violation in a single transaction.
func (s *Store) SaveScan(ctx context.Context, result *schemas.ScanResult) error {
	if result == nil {
		return fmt.Errorf("cannot save a nil scan result")
	}
	id, err := uuid.Parse(result.ScanID)
	if err != nil {
		return fmt.Errorf("invalid scan id %q: %w", result.ScanID, err)
	}
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode scan result: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	sum := result.Summary
	_, err = tx.Exec(ctx, insertScanSQL,
		id.String(), result.URL, result.Timestamp.UTC(),
		string(result.Standard), string(result.Level), sum.ComplianceScore,
		sum.TotalViolations, sum.ViolationsByImpact.Critical, sum.ViolationsByImpact.Serious,
		sum.ViolationsByImpact.Moderate, sum.ViolationsByImpact.Minor,
		result.EngineVersion, doc,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	if len(result.Violations) > 0 {
		if err := s.copyViolations(ctx, tx, id.String(), result.Violations); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Scan saved.", zap.String("scan_id", result.ScanID), zap.Int("violations", len(result.Violations)))
	return nil
}

func (s *Store) copyViolations(ctx context.Context, tx pgx.Tx, scanID string, violations []schemas.Violation) error {
	rows := make([][]any, len(violations))
	for i, v := range violations {
		var selector string
		if len(v.Nodes) > 0 {
			selector = v.Nodes[0].Selector()
		}
		rows[i] = []any{
			scanID, v.ID, string(v.Impact), string(v.Regulatory.RiskTier),
			v.Regulatory.WCAGCriterion, v.Regulatory.EN301549Clause,
			len(v.Nodes), selector,
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"violations"}, violationColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy violations: %w", err)
	}
	if int(n) != len(violations) {
		return fmt.Errorf("mismatch in copied violations count: expected %d, got %d", len(violations), n)
	}
	return nil
}

// ListScans returns the most recent scans first.
func (s *Store) ListScans(ctx context.Context, filter ListFilter) ([]schemas.ScanRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
        SELECT scan_id, url, scanned_at, standard, wcag_level, compliance_score, total_violations, critical_count
        FROM scans`
	args := []any{limit}
	if filter.URL != "" {
		query += `
        WHERE url = $2`
		args = append(args, filter.URL)
	}
	query += `
        ORDER BY scanned_at DESC
        LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	records := []schemas.ScanRecord{}
	for rows.Next() {
		var (
			r               schemas.ScanRecord
			standard, level string
		)
		if err := rows.Scan(&r.ScanID, &r.URL, &r.Timestamp, &standard, &level,
			&r.ComplianceScore, &r.TotalViolations, &r.CriticalCount); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Standard = schemas.Standard(standard)
		r.Level = schemas.Level(level)
		r.Timestamp = r.Timestamp.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// GetScan loads the full stored result.
func (s *Store) GetScan(ctx context.Context, scanID string) (*schemas.ScanResult, error) {
	id, err := uuid.Parse(scanID)
	if err != nil {
		return nil, fmt.Errorf("invalid scan id %q: %w", scanID, err)
	}

	var doc []byte
	err = s.pool.QueryRow(ctx, `SELECT result FROM scans WHERE scan_id = $1`, id.String()).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", scanID, err)
	}

	var result schemas.ScanResult
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, fmt.Errorf("stored scan %s is corrupt: %w", scanID, err)
	}
	return &result, nil
}
