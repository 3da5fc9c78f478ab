package prediction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/rs/zerolog"
)

// Repository stores model versions. Versions are append-only.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new model version repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "model_versions").Logger(),
	}
}

// WithQuerier returns a copy bound to q.
func (r *Repository) WithQuerier(q database.Querier) *Repository {
	return &Repository{db: q, log: r.log}
}

// Insert stores v and sets its ID.
func (r *Repository) Insert(ctx context.Context, v *domain.ModelVersion) error {
	features, err := json.Marshal(v.Features)
	if err != nil {
		return fmt.Errorf("failed to encode feature names: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO model_versions (model_type, accuracy, features, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, v.ModelType, v.Accuracy, string(features), v.Snapshot, v.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert model version: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read model version id: %w", err)
	}
	v.ID = id
	return nil
}

// Latest returns the newest version of modelType, snapshot included.
func (r *Repository) Latest(ctx context.Context, modelType string) (*domain.ModelVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, model_type, accuracy, features, snapshot, created_at
		FROM model_versions
		WHERE model_type = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, modelType)

	var (
		v        domain.ModelVersion
		features string
		created  int64
	)
	err := row.Scan(&v.ID, &v.ModelType, &v.Accuracy, &features, &v.Snapshot, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model type %s: %w", modelType, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest model version: %w", err)
	}
	if err := json.Unmarshal([]byte(features), &v.Features); err != nil {
		return nil, fmt.Errorf("failed to decode feature names of version %d: %w", v.ID, err)
	}
	v.CreatedAt = time.Unix(created, 0)
	return &v, nil
}

// List returns versions newest first, without snapshots.
func (r *Repository) List(ctx context.Context, limit int) ([]domain.ModelVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, model_type, accuracy, features, created_at
		FROM model_versions
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list model versions: %w", err)
	}
	defer rows.Close()

	var out []domain.ModelVersion
	for rows.Next() {
		var (
			v        domain.ModelVersion
			features string
			created  int64
		)
		if err := rows.Scan(&v.ID, &v.ModelType, &v.Accuracy, &features, &created); err != nil {
			return nil, fmt.Errorf("failed to scan model version: %w", err)
		}
		if err := json.Unmarshal([]byte(features), &v.Features); err != nil {
			r.log.Warn().Err(err).Int64("version_id", v.ID).Msg("Unreadable feature list")
		}
		v.CreatedAt = time.Unix(created, 0)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model versions: %w", err)
	}
	return out, nil
}
