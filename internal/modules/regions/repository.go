// Package regions stores regions with their risk score and officer counts.
package regions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/islandsafe/patrolplan/internal/config"
	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/rs/zerolog"
)

const regionColumns = `id, name, latitude, longitude, current_risk, police_allocated, recommended_allocation, updated_at`

// Repository handles region persistence. It runs on any Querier so the
// allocation executor can use it inside a transaction.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new region repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "regions").Logger(),
	}
}

// WithQuerier returns a copy bound to q (a transaction or connection).
func (r *Repository) WithQuerier(q database.Querier) *Repository {
	return &Repository{db: q, log: r.log}
}

// List returns all regions ordered by id.
func (r *Repository) List(ctx context.Context) ([]domain.Region, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+regionColumns+" FROM regions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	defer rows.Close()

	var out []domain.Region
	for rows.Next() {
		reg, err := scanRegion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		out = append(out, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regions: %w", err)
	}
	return out, nil
}

// Get returns one region or domain.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int) (*domain.Region, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+regionColumns+" FROM regions WHERE id = ?", id)
	reg, err := scanRegion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("region %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get region %d: %w", id, err)
	}
	return reg, nil
}

// Exists reports whether a region with id exists.
func (r *Repository) Exists(ctx context.Context, id int) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM regions WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check region %d: %w", id, err)
	}
	return n > 0, nil
}

// Update writes every mutable column of reg.
func (r *Repository) Update(ctx context.Context, reg domain.Region) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE regions
		SET name = ?, latitude = ?, longitude = ?, current_risk = ?,
		    police_allocated = ?, recommended_allocation = ?, updated_at = ?
		WHERE id = ?
	`, reg.Name, reg.Coordinates.Lat, reg.Coordinates.Lng, reg.CurrentRisk,
		reg.Allocated, reg.Recommended, time.Now().Unix(), reg.ID)
	if err != nil {
		return fmt.Errorf("failed to update region %d: %w", reg.ID, err)
	}
	return requireOneRow(res, reg.ID)
}

// SetRisk stores a freshly predicted risk score.
func (r *Repository) SetRisk(ctx context.Context, id, risk int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE regions SET current_risk = ?, updated_at = ? WHERE id = ?",
		risk, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set risk for region %d: %w", id, err)
	}
	return requireOneRow(res, id)
}

// SetAllocation stores the allocated count and, when recommended is not
// nil, the recommended count.
func (r *Repository) SetAllocation(ctx context.Context, id, allocated int, recommended *int) error {
	var (
		res sql.Result
		err error
	)
	now := time.Now().Unix()
	if recommended != nil {
		res, err = r.db.ExecContext(ctx,
			"UPDATE regions SET police_allocated = ?, recommended_allocation = ?, updated_at = ? WHERE id = ?",
			allocated, *recommended, now, id)
	} else {
		res, err = r.db.ExecContext(ctx,
			"UPDATE regions SET police_allocated = ?, updated_at = ? WHERE id = ?",
			allocated, now, id)
	}
	if err != nil {
		return fmt.Errorf("failed to set allocation for region %d: %w", id, err)
	}
	return requireOneRow(res, id)
}

// Seed inserts catalog regions that are not yet stored. Existing rows
// are left untouched.
func (r *Repository) Seed(ctx context.Context, specs []config.RegionSpec) (int, error) {
	inserted := 0
	now := time.Now().Unix()
	for _, s := range specs {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO regions (id, name, latitude, longitude, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, s.ID, s.Name, s.Lat, s.Lng, now)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed region %d: %w", s.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if inserted > 0 {
		r.log.Info().Int("inserted", inserted).Msg("Seeded regions")
	}
	return inserted, nil
}

// RegionStats is a region with a summary of its intelligence.
type RegionStats struct {
	domain.Region
	AverageSeverity float64 `json:"average_severity"`
	EventCount      int     `json:"intelligence_count"`
	RecentCount     int     `json:"recent_intelligence_count"`
}

// ListWithStats returns every region with event totals; RecentCount
// covers events created at or after since.
func (r *Repository) ListWithStats(ctx context.Context, since time.Time) ([]RegionStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.latitude, r.longitude, r.current_risk, r.police_allocated,
		       r.recommended_allocation, r.updated_at,
		       COUNT(i.id), COALESCE(AVG(i.severity), 0),
		       COALESCE(SUM(CASE WHEN i.created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM regions r
		LEFT JOIN intelligence i ON i.region_id = r.id
		GROUP BY r.id
		ORDER BY r.id
	`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list regions with stats: %w", err)
	}
	defer rows.Close()

	var out []RegionStats
	for rows.Next() {
		var (
			s       RegionStats
			risk    sql.NullInt64
			updated int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Coordinates.Lat, &s.Coordinates.Lng, &risk,
			&s.Allocated, &s.Recommended, &updated, &s.EventCount, &s.AverageSeverity, &s.RecentCount); err != nil {
			return nil, fmt.Errorf("failed to scan region stats: %w", err)
		}
		s.CurrentRisk = nullableInt(risk)
		s.UpdatedAt = time.Unix(updated, 0)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating region stats: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegion(s scanner) (*domain.Region, error) {
	var (
		reg     domain.Region
		risk    sql.NullInt64
		updated int64
	)
	if err := s.Scan(&reg.ID, &reg.Name, &reg.Coordinates.Lat, &reg.Coordinates.Lng, &risk,
		&reg.Allocated, &reg.Recommended, &updated); err != nil {
		return nil, err
	}
	reg.CurrentRisk = nullableInt(risk)
	reg.UpdatedAt = time.Unix(updated, 0)
	return &reg, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func requireOneRow(res sql.Result, id int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("region %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
