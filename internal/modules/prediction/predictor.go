package prediction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/events"
	"github.com/islandsafe/patrolplan/internal/metrics"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
	"github.com/islandsafe/patrolplan/internal/modules/regions"
	"github.com/rs/zerolog"
)

const (
	// BaselineRisk is returned for a region with no events.
	BaselineRisk = 20
	// UnknownRisk is returned when the event store cannot be read.
	UnknownRisk = 50
	// DefaultWindow is how many recent events feed a prediction.
	DefaultWindow = 50
)

var (
	ErrNoActiveModel  = errors.New("no active model")
	ErrNoTrainingData = errors.New("no intelligence to train on")
)

// Archiver keeps an off-site copy of each trained model.
type Archiver interface {
	Archive(ctx context.Context, v domain.ModelVersion) error
}

// TrainingResult describes a completed training run.
type TrainingResult struct {
	Version  domain.ModelVersion `json:"version"`
	Accuracy float64             `json:"accuracy"`
	Samples  int                 `json:"samples"`
}

// Predictor scores regions from their recent intelligence and trains the
// severity model.
type Predictor struct {
	intel    *intelligence.Repository
	versions *Repository
	regions  *regions.Repository
	state    *ModelState
	features featureExtractor
	archive  Archiver
	events   *events.Manager
	metrics  *metrics.Metrics
	newModel func() SeverityModel
	window   int
	log      zerolog.Logger
	now      func() time.Time
}

// NewPredictor wires a predictor. A window of zero uses DefaultWindow.
func NewPredictor(
	intel *intelligence.Repository,
	versions *Repository,
	regionRepo *regions.Repository,
	state *ModelState,
	weights allocation.AuxiliaryWeights,
	window int,
	eventManager *events.Manager,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Predictor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Predictor{
		intel:    intel,
		versions: versions,
		regions:  regionRepo,
		state:    state,
		features: featureExtractor{weights: weights},
		events:   eventManager,
		metrics:  m,
		newModel: func() SeverityModel { return NewRidgeModel(DefaultLambda) },
		window:   window,
		log:      log.With().Str("component", "predictor").Logger(),
		now:      time.Now,
	}
}

// SetArchiver enables model archiving after each training.
func (p *Predictor) SetArchiver(a Archiver) {
	p.archive = a
}

func (p *Predictor) State() *ModelState {
	return p.state
}

// PredictRisk returns a 0..100 risk score for a region. It never fails:
// without events it returns BaselineRisk, when the model cannot be used it
// falls back to the mean raw severity, and when the store cannot be read
// it returns UnknownRisk.
func (p *Predictor) PredictRisk(ctx context.Context, regionID int) int {
	evs, err := p.intel.Latest(ctx, regionID, p.window)
	if err != nil {
		p.log.Warn().Err(err).Int("region_id", regionID).Msg("Cannot read intelligence, using neutral risk")
		p.metrics.PredictionFallback("store")
		return UnknownRisk
	}
	if len(evs) == 0 {
		return BaselineRisk
	}

	risk, err := p.modelRisk(evs)
	if err != nil {
		p.log.Warn().Err(err).Int("region_id", regionID).Msg("Model prediction failed, using mean severity")
		p.metrics.PredictionFallback("severity")
		return severityRisk(evs)
	}
	return risk
}

func (p *Predictor) modelRisk(evs []domain.Event) (risk int, err error) {
	model, _ := p.state.Active()
	if model == nil {
		return 0, ErrNoActiveModel
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()

	preds, err := model.Predict(p.features.matrix(evs))
	if err != nil {
		return 0, err
	}
	if len(preds) == 0 {
		return 0, fmt.Errorf("model returned no predictions")
	}
	sum := 0.0
	for _, v := range preds {
		sum += v
	}
	return toRisk(sum / float64(len(preds))), nil
}

// severityRisk is the mean raw severity times ten.
func severityRisk(evs []domain.Event) int {
	sum := 0
	for _, e := range evs {
		sum += e.Severity
	}
	return toRisk(float64(sum) / float64(len(evs)))
}

func toRisk(meanSeverity float64) int {
	if math.IsNaN(meanSeverity) {
		return UnknownRisk
	}
	// Clamp first, then truncate toward zero.
	v := meanSeverity * 10
	if v < 0 {
		return 0
	}
	if v > domain.MaxRisk {
		return domain.MaxRisk
	}
	return int(v)
}

// PredictAll refreshes the stored risk of every region.
func (p *Predictor) PredictAll(ctx context.Context) (map[int]int, error) {
	list, err := p.regions.List(ctx)
	if err != nil {
		return nil, err
	}
	risks := make(map[int]int, len(list))
	for _, reg := range list {
		risk := p.PredictRisk(ctx, reg.ID)
		if err := p.regions.SetRisk(ctx, reg.ID, risk); err != nil {
			return nil, err
		}
		risks[reg.ID] = risk
	}
	if p.events != nil {
		p.events.EmitTyped(events.PredictionsUpdated, "prediction", &events.PredictionsUpdatedData{Risks: risks})
	}
	return risks, nil
}

// Train fits a new model on all events using the pool and returns its
// accuracy.
func (p *Predictor) Train(ctx context.Context) (float64, error) {
	res, err := p.TrainOn(ctx, nil)
	if err != nil {
		return 0, err
	}
	return res.Accuracy, nil
}

// TrainOn fits a new model reading and writing through q (nil uses the
// pool). The active model is only replaced once the version is stored.
func (p *Predictor) TrainOn(ctx context.Context, q database.Querier) (*TrainingResult, error) {
	intel, versions := p.intel, p.versions
	if q != nil {
		intel, versions = intel.WithQuerier(q), versions.WithQuerier(q)
	}

	res, model, err := p.fit(ctx, intel)
	if err != nil {
		p.metrics.TrainingRun(false, 0)
		return nil, err
	}
	if err := versions.Insert(ctx, &res.Version); err != nil {
		p.metrics.TrainingRun(false, 0)
		return nil, err
	}

	version := res.Version
	p.state.SetActive(model, &version)
	p.metrics.TrainingRun(true, res.Accuracy)
	p.log.Info().
		Int64("version_id", version.ID).
		Float64("accuracy", res.Accuracy).
		Int("samples", res.Samples).
		Msg("Model trained")

	if p.events != nil {
		p.events.EmitTyped(events.ModelTrained, "prediction", &events.ModelTrainedData{
			VersionID: version.ID,
			Accuracy:  res.Accuracy,
			Samples:   res.Samples,
		})
	}
	if p.archive != nil {
		if err := p.archive.Archive(ctx, version); err != nil {
			p.log.Warn().Err(err).Int64("version_id", version.ID).Msg("Failed to archive model")
		}
	}
	return res, nil
}

func (p *Predictor) fit(ctx context.Context, intel *intelligence.Repository) (*TrainingResult, SeverityModel, error) {
	evs, err := intel.All(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load training data: %w", err)
	}
	if len(evs) == 0 {
		return nil, nil, ErrNoTrainingData
	}

	x := p.features.matrix(evs)
	y := make([]float64, len(evs))
	for i, e := range evs {
		y[i] = float64(e.Severity)
	}

	model := p.newModel()
	if err := model.Fit(x, y); err != nil {
		return nil, nil, fmt.Errorf("failed to fit model: %w", err)
	}
	preds, err := model.Predict(x)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to score training data: %w", err)
	}
	hits := 0
	for i, v := range preds {
		if int(math.Round(v)) == evs[i].Severity {
			hits++
		}
	}

	snapshot, err := model.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	accuracy := float64(hits) / float64(len(evs))
	return &TrainingResult{
		Version: domain.ModelVersion{
			CreatedAt: p.now(),
			ModelType: ModelTypeRidge,
			Features:  FeatureNames(),
			Snapshot:  snapshot,
			Accuracy:  accuracy,
		},
		Accuracy: accuracy,
		Samples:  len(evs),
	}, model, nil
}

// LoadLatest activates the newest stored model, if any.
func (p *Predictor) LoadLatest(ctx context.Context) error {
	v, err := p.versions.Latest(ctx, ModelTypeRidge)
	if errors.Is(err, domain.ErrNotFound) {
		p.log.Info().Msg("No stored model, predictions use mean severity until first training")
		return nil
	}
	if err != nil {
		return err
	}
	model, err := DecodeRidgeModel(v.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to restore model version %d: %w", v.ID, err)
	}
	p.state.SetActive(model, v)
	p.log.Info().Int64("version_id", v.ID).Float64("accuracy", v.Accuracy).Msg("Loaded stored model")
	return nil
}

// Versions lists stored model versions.
func (p *Predictor) Versions(ctx context.Context, limit int) ([]domain.ModelVersion, error) {
	return p.versions.List(ctx, limit)
}
