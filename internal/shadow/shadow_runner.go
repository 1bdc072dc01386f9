package shadow

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ANSSI-FR/route-leaks/internal/detect"
	"github.com/ANSSI-FR/route-leaks/internal/enginelog"
	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

// ShadowRunner compares a candidate parameter set (e.g. one freshly
// produced by the Parameter Fitter) against the currently configured
// "production" parameter set, over the same input series, without
// affecting the live detection result. Grounded directly on
// internal/shadow/shadow_runner.go's production-vs-shadow comparison
// and shadow_results persistence shape.
type ShadowRunner struct {
	pool       *pgxpool.Pool
	runID      string
	production models.Params
	candidate  models.Params
}

// ShadowResult captures the diff between a detection run under the
// production parameters and the same run under a candidate set.
type ShadowResult struct {
	RunID             string    `json:"runId"`
	ProductionLeaks   int       `json:"productionLeaks"`
	CandidateLeaks    int       `json:"candidateLeaks"`
	DeltaLeaks        int       `json:"deltaLeaks"`
	OnlyInProduction  []uint32  `json:"onlyInProduction,omitempty"`
	OnlyInCandidate   []uint32  `json:"onlyInCandidate,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// NewShadowRunner creates a runner comparing production against
// candidate over whatever input RunComparison is given.
func NewShadowRunner(pool *pgxpool.Pool, runID string, production, candidate models.Params) *ShadowRunner {
	return &ShadowRunner{pool: pool, runID: runID, production: production, candidate: candidate}
}

// RunComparison runs detection twice — once under production
// parameters, once under the candidate set — and persists the
// divergence to the shadow_results table, never affecting the caller's
// own (production) result.
func (sr *ShadowRunner) RunComparison(ctx context.Context, pfx, cfl models.Store, startDate string) (*ShadowResult, error) {
	prodLeaks, err := detect.Detect(pfx, cfl, sr.production, startDate)
	if err != nil {
		return nil, err
	}
	candLeaks, err := detect.Detect(pfx, cfl, sr.candidate, startDate)
	if err != nil {
		return nil, err
	}

	result := &ShadowResult{
		RunID:           sr.runID,
		ProductionLeaks: len(prodLeaks),
		CandidateLeaks:  len(candLeaks),
		DeltaLeaks:      len(candLeaks) - len(prodLeaks),
		CreatedAt:       time.Now(),
	}
	for asn := range prodLeaks {
		if _, ok := candLeaks[asn]; !ok {
			result.OnlyInProduction = append(result.OnlyInProduction, asn)
		}
	}
	for asn := range candLeaks {
		if _, ok := prodLeaks[asn]; !ok {
			result.OnlyInCandidate = append(result.OnlyInCandidate, asn)
		}
	}

	if result.DeltaLeaks != 0 {
		enginelog.Warn("shadow: run %s diverges: production=%d candidate=%d (delta %d)",
			sr.runID, result.ProductionLeaks, result.CandidateLeaks, result.DeltaLeaks)
	}

	if sr.pool != nil {
		if err := sr.persistShadowResult(ctx, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (sr *ShadowRunner) persistShadowResult(ctx context.Context, result *ShadowResult) error {
	sql := `INSERT INTO shadow_results
		(run_id, production_leaks, candidate_leaks, delta_leaks, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := sr.pool.Exec(ctx, sql,
		result.RunID,
		result.ProductionLeaks,
		result.CandidateLeaks,
		result.DeltaLeaks,
		result.CreatedAt,
	)
	return err
}

// GenerateDriftReport summarizes the persisted comparisons recorded
// under this runner's run ID: how many there are, how many diverged,
// and the mean leak-count delta.
func (sr *ShadowRunner) GenerateDriftReport(ctx context.Context) (totalRuns, divergences int, avgDeltaLeaks float64, err error) {
	sql := `SELECT
		COUNT(*) as total,
		COUNT(*) FILTER (WHERE delta_leaks != 0) as divergences,
		COALESCE(AVG(delta_leaks), 0) as avg_delta
	FROM shadow_results WHERE run_id = $1`

	row := sr.pool.QueryRow(ctx, sql, sr.runID)
	err = row.Scan(&totalRuns, &divergences, &avgDeltaLeaks)
	return
}
