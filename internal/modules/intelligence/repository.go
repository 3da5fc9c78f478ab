// Package intelligence stores and validates intelligence events and
// summarises them per region.
package intelligence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/rs/zerolog"
)

const eventColumns = `id, region_id, type, description, severity, confidence, is_verified, feedback_score, created_at`

// Filter narrows List. Zero values mean "no filter".
type Filter struct {
	RegionID *int
	Type     *domain.EventType
	Offset   int
	Limit    int
}

// Repository handles intelligence persistence.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new intelligence repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "intelligence").Logger(),
	}
}

// WithQuerier returns a copy bound to q.
func (r *Repository) WithQuerier(q database.Querier) *Repository {
	return &Repository{db: q, log: r.log}
}

// Create inserts e and sets its ID.
func (r *Repository) Create(ctx context.Context, e *domain.Event) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO intelligence (region_id, type, description, severity, confidence, is_verified, feedback_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RegionID, string(e.Type), e.Description, e.Severity, e.Confidence, e.Verified, e.FeedbackScore, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert intelligence: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read intelligence id: %w", err)
	}
	e.ID = id
	return nil
}

// Get returns one event or domain.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM intelligence WHERE id = ?", id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("intelligence %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intelligence %d: %w", id, err)
	}
	return e, nil
}

// List returns events newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]domain.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.RegionID != nil {
		where = append(where, "region_id = ?")
		args = append(args, *f.RegionID)
	}
	if f.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*f.Type))
	}

	q := "SELECT " + eventColumns + " FROM intelligence"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	return r.query(ctx, q, args...)
}

// Latest returns the newest limit events for a region.
func (r *Repository) Latest(ctx context.Context, regionID, limit int) ([]domain.Event, error) {
	return r.List(ctx, Filter{RegionID: &regionID, Limit: limit})
}

// All returns every event oldest first.
func (r *Repository) All(ctx context.Context) ([]domain.Event, error) {
	return r.query(ctx, "SELECT "+eventColumns+" FROM intelligence ORDER BY created_at, id")
}

// Update writes the mutable columns of e. CreatedAt and RegionID are
// never changed.
func (r *Repository) Update(ctx context.Context, e domain.Event) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE intelligence
		SET type = ?, description = ?, severity = ?, confidence = ?, is_verified = ?, feedback_score = ?
		WHERE id = ?
	`, string(e.Type), e.Description, e.Severity, e.Confidence, e.Verified, e.FeedbackScore, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update intelligence %d: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("intelligence %d: %w", e.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes an event.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM intelligence WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete intelligence %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("intelligence %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CountSince counts events created strictly after since.
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM intelligence WHERE created_at > ?", since.UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count new intelligence: %w", err)
	}
	return n, nil
}

// CountSimilarSince counts events of the same region and type created
// strictly after since.
func (r *Repository) CountSimilarSince(ctx context.Context, regionID int, t domain.EventType, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM intelligence WHERE region_id = ? AND type = ? AND created_at > ?",
		regionID, string(t), since.UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count similar intelligence: %w", err)
	}
	return n, nil
}

// WindowStats summarises a region's events within a time window.
type WindowStats struct {
	TopType         domain.EventType
	Count           int
	AverageSeverity float64
}

// Window summarises events with from < created_at <= to. TopType is
// empty when there are no events; ties go to the alphabetically first type.
func (r *Repository) Window(ctx context.Context, regionID int, from, to time.Time) (WindowStats, error) {
	var ws WindowStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(severity), 0)
		FROM intelligence
		WHERE region_id = ? AND created_at > ? AND created_at <= ?
	`, regionID, from.UnixMilli(), to.UnixMilli()).Scan(&ws.Count, &ws.AverageSeverity)
	if err != nil {
		return ws, fmt.Errorf("failed to summarise intelligence for region %d: %w", regionID, err)
	}
	if ws.Count == 0 {
		return ws, nil
	}

	var top string
	err = r.db.QueryRowContext(ctx, `
		SELECT type FROM intelligence
		WHERE region_id = ? AND created_at > ? AND created_at <= ?
		GROUP BY type
		ORDER BY COUNT(*) DESC, type
		LIMIT 1
	`, regionID, from.UnixMilli(), to.UnixMilli()).Scan(&top)
	if err != nil {
		return ws, fmt.Errorf("failed to find top intelligence type for region %d: %w", regionID, err)
	}
	ws.TopType = domain.EventType(top)
	return ws, nil
}

// Trends is the reporting profile of one region.
type Trends struct {
	ByType          map[domain.EventType]int `json:"intelligence_by_type"`
	Total           int                      `json:"total_intelligence"`
	AverageSeverity float64                  `json:"average_severity"`
	Verified        int                      `json:"verified_count"`
	Unverified      int                      `json:"unverified_count"`
	RecentActivity  int                      `json:"recent_activity"`
}

// Trends computes totals, per-type counts and activity after recentSince.
func (r *Repository) Trends(ctx context.Context, regionID int, recentSince time.Time) (*Trends, error) {
	t := &Trends{ByType: make(map[domain.EventType]int, len(domain.EventTypes()))}
	for _, et := range domain.EventTypes() {
		t.ByType[et] = 0
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(severity), 0),
		       COALESCE(SUM(is_verified), 0),
		       COALESCE(SUM(CASE WHEN created_at > ? THEN 1 ELSE 0 END), 0)
		FROM intelligence WHERE region_id = ?
	`, recentSince.UnixMilli(), regionID).Scan(&t.Total, &t.AverageSeverity, &t.Verified, &t.RecentActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to compute trends for region %d: %w", regionID, err)
	}
	t.Unverified = t.Total - t.Verified

	rows, err := r.db.QueryContext(ctx,
		"SELECT type, COUNT(*) FROM intelligence WHERE region_id = ? GROUP BY type", regionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count intelligence types for region %d: %w", regionID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		t.ByType[domain.EventType(typ)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating type counts: %w", err)
	}
	return t, nil
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query intelligence: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intelligence: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intelligence: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*domain.Event, error) {
	var (
		e       domain.Event
		typ     string
		created int64
	)
	if err := s.Scan(&e.ID, &e.RegionID, &typ, &e.Description, &e.Severity, &e.Confidence,
		&e.Verified, &e.FeedbackScore, &created); err != nil {
		return nil, err
	}
	e.Type = domain.EventType(typ)
	e.CreatedAt = time.UnixMilli(created)
	return &e, nil
}
