package db

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ANSSI-FR/route-leaks/internal/enginelog"
	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	enginelog.Info("Successfully connected to PostgreSQL for route-leak detection history")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	enginelog.Info("Route-leak detection schema initialized")
	return nil
}

// SaveDetectionRun persists one detection run (a single invocation of
// the Leak Detector over a pair of stores under one parameter set) and
// its leak records in a single transaction.
func (s *PostgresStore) SaveDetectionRun(ctx context.Context, runID string, params models.Params, leaks map[uint32]models.LeakRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertRunSQL := `
		INSERT INTO detection_runs
		(run_id, pfx_peak_min_value, cfl_peak_min_value, max_nb_peaks, percent_similarity, percent_std, leak_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (run_id) DO UPDATE
		SET leak_count = EXCLUDED.leak_count;
	`
	_, err = tx.Exec(ctx, insertRunSQL, runID,
		params.PfxPeakMinValue, params.CflPeakMinValue, params.MaxNbPeaks,
		params.PercentSimilarity, params.PercentStd, len(leaks))
	if err != nil {
		return fmt.Errorf("failed to insert detection_runs: %v", err)
	}

	insertLeakSQL := `
		INSERT INTO leak_records (run_id, asn, leak_days)
		VALUES ($1, $2, $3);
	`
	for asn, record := range leaks {
		_, err = tx.Exec(ctx, insertLeakSQL, runID, asn, record.LeakDayIdentifiers())
		if err != nil {
			return fmt.Errorf("failed to insert leak_records for AS %d: %v", asn, err)
		}
	}

	return tx.Commit(ctx)
}

// SaveFitResult persists one parameter's chosen value from a Parameter
// Fitter sweep.
func (s *PostgresStore) SaveFitResult(ctx context.Context, runID string, result models.FitResult) error {
	sql := `
		INSERT INTO fit_results (run_id, param, value, r2_score, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (run_id, param) DO UPDATE
		SET value = EXCLUDED.value, r2_score = EXCLUDED.r2_score;
	`
	_, err := s.pool.Exec(ctx, sql, runID, result.Param, result.Value, result.R2Score)
	return err
}

// SaveClassificationRun persists the label counts from one Model
// Runner classification pass.
func (s *PostgresStore) SaveClassificationRun(ctx context.Context, runID string, result models.ClassificationResult) error {
	sql := `
		INSERT INTO classification_runs (run_id, peak_count, normal_count, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (run_id) DO UPDATE
		SET peak_count = EXCLUDED.peak_count, normal_count = EXCLUDED.normal_count;
	`
	_, err := s.pool.Exec(ctx, sql, runID, len(result[models.LabelPeak]), len(result[models.LabelNormal]))
	return err
}

// RecentRun summarizes one persisted detection run for history listings.
type RecentRun struct {
	RunID     string `json:"runId"`
	LeakCount int    `json:"leakCount"`
	CreatedAt string `json:"createdAt"`
}

// GetRecentRuns lists the most recent detection runs, most recent
// first.
func (s *PostgresStore) GetRecentRuns(ctx context.Context, limit int) ([]RecentRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	sql := `
		SELECT run_id, leak_count, created_at::text
		FROM detection_runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RecentRun
	for rows.Next() {
		var r RecentRun
		if err := rows.Scan(&r.RunID, &r.LeakCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if runs == nil {
		runs = []RecentRun{}
	}
	return runs, nil
}

// GetPool exposes the connection pool for the shadow runner and other
// subsystems.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
