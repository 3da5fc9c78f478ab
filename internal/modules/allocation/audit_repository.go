package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/rs/zerolog"
)

// AuditRepository appends allocation runs, predictions and changes.
// Rows are never updated or deleted.
type AuditRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db database.Querier, log zerolog.Logger) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: log.With().Str("repository", "allocation_audit").Logger(),
	}
}

// WithQuerier returns a copy bound to q.
func (r *AuditRepository) WithQuerier(q database.Querier) *AuditRepository {
	return &AuditRepository{db: q, log: r.log}
}

func (r *AuditRepository) InsertRun(ctx context.Context, run domain.AllocationRun) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO allocation_runs (id, source, pool_total, created_at) VALUES (?, ?, ?, ?)",
		run.ID, string(run.Source), run.PoolTotal, run.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert allocation run %s: %w", run.ID, err)
	}
	return nil
}

func (r *AuditRepository) InsertPredictions(ctx context.Context, preds []domain.Prediction) error {
	for _, p := range preds {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO predictions (run_id, region_id, predicted_risk, recommended_officers, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, p.RunID, p.RegionID, p.PredictedRisk, p.RecommendedOfficers, p.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert prediction for region %d: %w", p.RegionID, err)
		}
	}
	return nil
}

func (r *AuditRepository) InsertChanges(ctx context.Context, changes []domain.AllocationChange) error {
	for _, c := range changes {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO allocation_changes (run_id, region_id, previous_officers, new_officers, delta)
			VALUES (?, ?, ?, ?, ?)
		`, c.RunID, c.RegionID, c.Previous, c.New, c.Delta)
		if err != nil {
			return fmt.Errorf("failed to insert allocation change for region %d: %w", c.RegionID, err)
		}
	}
	return nil
}

// RunSummary is a run with the number of regions it changed.
type RunSummary struct {
	domain.AllocationRun
	ChangedRegions int `json:"changed_regions"`
}

// ListRuns returns the newest runs first.
func (r *AuditRepository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ar.id, ar.source, ar.pool_total, ar.created_at, COUNT(ac.id)
		FROM allocation_runs ar
		LEFT JOIN allocation_changes ac ON ac.run_id = ar.id
		GROUP BY ar.id
		ORDER BY ar.created_at DESC, ar.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocation runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s       RunSummary
			source  string
			created int64
		)
		if err := rows.Scan(&s.ID, &source, &s.PoolTotal, &created, &s.ChangedRegions); err != nil {
			return nil, fmt.Errorf("failed to scan allocation run: %w", err)
		}
		s.Source = domain.RunSource(source)
		s.CreatedAt = time.Unix(created, 0)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation runs: %w", err)
	}
	return out, nil
}

// Changes returns the change rows of one run.
func (r *AuditRepository) Changes(ctx context.Context, runID string) ([]domain.AllocationChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ac.run_id, ac.region_id, COALESCE(rg.name, ''), ac.previous_officers, ac.new_officers, ac.delta
		FROM allocation_changes ac
		LEFT JOIN regions rg ON rg.id = ac.region_id
		WHERE ac.run_id = ?
		ORDER BY ac.region_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []domain.AllocationChange
	for rows.Next() {
		var c domain.AllocationChange
		if err := rows.Scan(&c.RunID, &c.RegionID, &c.RegionName, &c.Previous, &c.New, &c.Delta); err != nil {
			return nil, fmt.Errorf("failed to scan allocation change: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation changes: %w", err)
	}
	return out, nil
}

// PredictionCount returns how many prediction rows a run wrote.
func (r *AuditRepository) PredictionCount(ctx context.Context, runID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions WHERE run_id = ?", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count predictions for run %s: %w", runID, err)
	}
	return n, nil
}
