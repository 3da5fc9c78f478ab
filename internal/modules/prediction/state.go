package prediction

import (
	"sync"
	"time"

	"github.com/islandsafe/patrolplan/internal/domain"
)

// ModelState holds the active model and the last successful training
// time. Readers take the read lock; the trainer swaps the model and the
// scheduler records training times.
type ModelState struct {
	mu           sync.RWMutex
	lastTraining time.Time
	model        SeverityModel
	version      *domain.ModelVersion
}

// NewModelState starts the training clock at start.
func NewModelState(start time.Time) *ModelState {
	return &ModelState{lastTraining: start}
}

func (s *ModelState) LastTraining() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTraining
}

// MarkTrained records a completed training cycle.
func (s *ModelState) MarkTrained(t time.Time) {
	s.mu.Lock()
	s.lastTraining = t
	s.mu.Unlock()
}

// Active returns the current model and its version, both nil before the
// first training or load.
func (s *ModelState) Active() (SeverityModel, *domain.ModelVersion) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, s.version
}

// SetActive swaps in a new model.
func (s *ModelState) SetActive(m SeverityModel, v *domain.ModelVersion) {
	s.mu.Lock()
	s.model = m
	s.version = v
	s.mu.Unlock()
}
