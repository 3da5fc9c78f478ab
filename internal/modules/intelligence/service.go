package intelligence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/events"
	"github.com/islandsafe/patrolplan/internal/metrics"
	"github.com/rs/zerolog"
)

// DuplicateWarning is returned with a report when the same region and
// type were reported within DuplicateWindow.
const DuplicateWarning = "Warning: Similar intelligence was reported in the last hour"

// DuplicateWindow is how far back a similar report triggers DuplicateWarning.
const DuplicateWindow = time.Hour

// RecentWindow is the span counted as recent activity in Trends.
const RecentWindow = 7 * 24 * time.Hour

// RegionChecker reports whether a region exists.
type RegionChecker interface {
	Exists(ctx context.Context, id int) (bool, error)
}

// Report is the body of POST /api/intelligence.
type Report struct {
	Confidence  *float64         `json:"confidence,omitempty"`
	Type        domain.EventType `json:"type"`
	Description string           `json:"description"`
	RegionID    int              `json:"parish_id"`
	Severity    int              `json:"severity"`
	Verified    bool             `json:"is_verified"`
}

// ReportResult is what a successful Report returns.
type ReportResult struct {
	Event   *domain.Event `json:"intelligence"`
	Trends  *Trends       `json:"trends"`
	Message string        `json:"message"`
}

// Service validates, stores and announces intelligence.
type Service struct {
	repo    *Repository
	regions RegionChecker
	events  *events.Manager
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// NewService creates a new intelligence service. eventManager and m may be nil.
func NewService(repo *Repository, regions RegionChecker, eventManager *events.Manager, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		regions: regions,
		events:  eventManager,
		metrics: m,
		now:     time.Now,
		log:     log.With().Str("service", "intelligence").Logger(),
	}
}

// Validate checks a report and returns a non-fatal warning message when
// a similar report exists.
func (s *Service) Validate(ctx context.Context, rep Report) (string, error) {
	if rep.RegionID == 0 {
		return "", domain.NewValidationError("parish_id", "is required")
	}
	ok, err := s.regions.Exists(ctx, rep.RegionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &domain.ValidationError{
			Err:     &domain.InvalidRegionError{RegionID: rep.RegionID},
			Field:   "parish_id",
			Message: "region does not exist",
		}
	}
	if !rep.Type.Valid() {
		names := make([]string, 0, len(domain.EventTypes()))
		for _, t := range domain.EventTypes() {
			names = append(names, string(t))
		}
		return "", domain.NewValidationError("type", "must be one of: %s", strings.Join(names, ", "))
	}
	if rep.Severity < domain.MinSeverity || rep.Severity > domain.MaxSeverity {
		return "", domain.NewValidationError("severity", "must be an integer between %d and %d", domain.MinSeverity, domain.MaxSeverity)
	}
	if len(strings.TrimSpace(rep.Description)) < domain.MinDescriptionLength {
		return "", domain.NewValidationError("description", "must be at least %d characters long", domain.MinDescriptionLength)
	}
	if rep.Confidence != nil && (*rep.Confidence < 0 || *rep.Confidence > 1) {
		return "", domain.NewValidationError("confidence", "must be between 0 and 1")
	}

	similar, err := s.repo.CountSimilarSince(ctx, rep.RegionID, rep.Type, s.now().Add(-DuplicateWindow))
	if err != nil {
		return "", err
	}
	if similar > 0 {
		return DuplicateWarning, nil
	}
	return "", nil
}

// Create validates and stores a report, then notifies subscribers of
// the region and everyone else. Notification failures never fail the call.
func (s *Service) Create(ctx context.Context, rep Report) (*ReportResult, error) {
	warning, err := s.Validate(ctx, rep)
	if err != nil {
		return nil, err
	}

	e := &domain.Event{
		RegionID:    rep.RegionID,
		Type:        rep.Type,
		Description: strings.TrimSpace(rep.Description),
		Severity:    rep.Severity,
		Confidence:  domain.DefaultConfidence,
		Verified:    rep.Verified,
		CreatedAt:   s.now(),
	}
	if rep.Confidence != nil {
		e.Confidence = *rep.Confidence
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	s.metrics.IntelligenceReported(string(e.Type))

	s.log.Info().
		Int64("id", e.ID).
		Int("region_id", e.RegionID).
		Str("type", string(e.Type)).
		Int("severity", e.Severity).
		Msg("Intelligence reported")

	if s.events != nil {
		data := &events.IntelligenceData{
			ID:          e.ID,
			RegionID:    e.RegionID,
			Type:        string(e.Type),
			Severity:    e.Severity,
			Description: e.Description,
		}
		s.events.EmitTyped(events.IntelligenceUpdate, "intelligence", data)
		s.events.EmitTyped(events.NewIntelligence, "intelligence", data)
	}

	trends, err := s.repo.Trends(ctx, e.RegionID, s.now().Add(-RecentWindow))
	if err != nil {
		s.log.Warn().Err(err).Int("region_id", e.RegionID).Msg("Failed to compute trends after report")
	}

	return &ReportResult{Event: e, Trends: trends, Message: warning}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Event, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]domain.Event, error) {
	if f.Type != nil && !f.Type.Valid() {
		return nil, domain.NewValidationError("type", "unknown intelligence type %q", string(*f.Type))
	}
	return s.repo.List(ctx, f)
}

// Patch updates feedback, verification and descriptive fields.
func (s *Service) Patch(ctx context.Context, id int64, patch domain.EventPatch) (*domain.Event, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(e)
	if err := s.repo.Update(ctx, *e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Trends returns the reporting profile of a region.
func (s *Service) Trends(ctx context.Context, regionID int) (*Trends, error) {
	ok, err := s.regions.Exists(ctx, regionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("region %d: %w", regionID, domain.ErrNotFound)
	}
	return s.repo.Trends(ctx, regionID, s.now().Add(-RecentWindow))
}
