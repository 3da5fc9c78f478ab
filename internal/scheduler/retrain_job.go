package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/islandsafe/patrolplan/internal/events"
	"github.com/islandsafe/patrolplan/internal/metrics"
	"github.com/islandsafe/patrolplan/internal/modules/allocation"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
	"github.com/islandsafe/patrolplan/internal/modules/prediction"
	"github.com/rs/zerolog"
)

// Tick outcomes, also used as metric labels.
const (
	OutcomeCooldown     = "cooldown"
	OutcomeInsufficient = "insufficient_data"
	OutcomeTrained      = "trained"
	OutcomeFailed       = "failed"
)

// ConnSource hands out a dedicated connection per cycle.
type ConnSource interface {
	Acquire(ctx context.Context) (*sql.Conn, error)
}

// Trainer fits and activates a new model.
type Trainer interface {
	TrainOn(ctx context.Context, q database.Querier) (*prediction.TrainingResult, error)
}

// Reallocator recomputes and stores the allocation.
type Reallocator interface {
	ReallocateOn(ctx context.Context, sess database.Session) (*allocation.RunResult, error)
}

// RetrainConfig holds the gate thresholds.
type RetrainConfig struct {
	Interval      time.Duration
	MinNewRecords int
}

// RetrainJob retrains the model when enough time has passed and enough new
// intelligence has arrived, then reallocates. It is the only writer of the
// last training time.
type RetrainJob struct {
	mu          sync.Mutex
	conns       ConnSource
	intel       *intelligence.Repository
	trainer     Trainer
	reallocator Reallocator
	state       *prediction.ModelState
	cfg         RetrainConfig
	events      *events.Manager
	metrics     *metrics.Metrics
	now         func() time.Time
	log         zerolog.Logger
}

// NewRetrainJob creates a new retraining job. eventManager and m may be nil.
func NewRetrainJob(
	conns ConnSource,
	intel *intelligence.Repository,
	trainer Trainer,
	reallocator Reallocator,
	state *prediction.ModelState,
	cfg RetrainConfig,
	eventManager *events.Manager,
	m *metrics.Metrics,
	log zerolog.Logger,
) *RetrainJob {
	return &RetrainJob{
		conns:       conns,
		intel:       intel,
		trainer:     trainer,
		reallocator: reallocator,
		state:       state,
		cfg:         cfg,
		events:      eventManager,
		metrics:     m,
		now:         time.Now,
		log:         log.With().Str("job", "retrain").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *RetrainJob) Name() string {
	return "retrain"
}

// Run executes one scheduled tick.
func (j *RetrainJob) Run() error {
	_, err := j.Tick(context.Background())
	return err
}

// Tick checks both gates on a fresh connection and runs a cycle when they
// pass. The connection is released before returning.
func (j *RetrainJob) Tick(ctx context.Context) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	conn, err := j.conns.Acquire(ctx)
	if err != nil {
		return j.fail("acquire", fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Close()

	outcome, err := j.gate(ctx, conn)
	if err != nil {
		return j.fail("gate", err)
	}
	if outcome != "" {
		j.metrics.SchedulerTick(outcome)
		return outcome, nil
	}

	if _, err := j.cycle(ctx, conn); err != nil {
		return j.fail("cycle", err)
	}
	j.metrics.SchedulerTick(OutcomeTrained)
	return OutcomeTrained, nil
}

// fail records a failed tick and announces it on the bus.
func (j *RetrainJob) fail(stage string, err error) (string, error) {
	j.metrics.SchedulerTick(OutcomeFailed)
	j.log.Error().Err(err).Str("stage", stage).Msg("Retrain tick failed")
	if j.events != nil {
		j.events.EmitError("scheduler", err, map[string]any{"job": j.Name(), "stage": stage})
	}
	return OutcomeFailed, err
}

// ShouldRetrain reports whether both gates pass.
func (j *RetrainJob) ShouldRetrain(ctx context.Context, q database.Querier) (bool, error) {
	outcome, err := j.gate(ctx, q)
	return err == nil && outcome == "", err
}

// gate returns the blocking outcome, or "" when a cycle should run.
func (j *RetrainJob) gate(ctx context.Context, q database.Querier) (string, error) {
	last := j.state.LastTraining()
	if j.now().Sub(last) < j.cfg.Interval {
		return OutcomeCooldown, nil
	}

	n, err := j.intel.WithQuerier(q).CountSince(ctx, last)
	if err != nil {
		return "", err
	}
	if n < j.cfg.MinNewRecords {
		j.log.Debug().Int("new_records", n).Int("required", j.cfg.MinNewRecords).Msg("Not enough new intelligence")
		return OutcomeInsufficient, nil
	}
	return "", nil
}

// cycle trains on conn, records the training time and reallocates.
func (j *RetrainJob) cycle(ctx context.Context, conn *sql.Conn) (*prediction.TrainingResult, error) {
	j.log.Info().Msg("Retraining model with new data")

	res, err := j.trainer.TrainOn(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	j.state.MarkTrained(j.now())

	if _, err := j.reallocator.ReallocateOn(ctx, conn); err != nil {
		return res, fmt.Errorf("reallocation after training failed: %w", err)
	}
	j.log.Info().Float64("accuracy", res.Accuracy).Int("samples", res.Samples).Msg("Model retrained")
	return res, nil
}

// RunNow trains and reallocates immediately, ignoring both gates.
func (j *RetrainJob) RunNow(ctx context.Context) (*prediction.TrainingResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	conn, err := j.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	res, err := j.cycle(ctx, conn)
	if errors.Is(err, prediction.ErrNoTrainingData) {
		return nil, &domain.ValidationError{Err: err, Message: err.Error()}
	}
	return res, err
}
