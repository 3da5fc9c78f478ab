// Package domain provides the core types shared by the allocation,
// intelligence and prediction modules.
package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxRisk is the upper bound of a region risk score.
	MaxRisk = 100
	// MinSeverity and MaxSeverity bound an event's severity.
	MinSeverity = 1
	MaxSeverity = 10
	// MinDescriptionLength is measured after trimming whitespace.
	MinDescriptionLength = 10
	// DefaultConfidence applies when an event is reported without one.
	DefaultConfidence = 0.5
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Region is a geographic unit that receives officers.
// CurrentRisk is nil until the first prediction.
type Region struct {
	UpdatedAt   time.Time   `json:"updated_at"`
	CurrentRisk *int        `json:"current_risk"`
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
	ID          int         `json:"id"`
	Allocated   int         `json:"police_allocated"`
	Recommended int         `json:"recommended_allocation"`
}

// RiskOrZero returns the current risk, treating an unscored region as 0.
func (r Region) RiskOrZero() int {
	if r.CurrentRisk == nil {
		return 0
	}
	return *r.CurrentRisk
}

// RegionPatch carries the optional fields of a region update.
type RegionPatch struct {
	Name        *string      `json:"name,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	CurrentRisk *int         `json:"current_crime_level,omitempty"`
	Allocated   *int         `json:"police_allocated,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p RegionPatch) Empty() bool {
	return p.Name == nil && p.Coordinates == nil && p.CurrentRisk == nil && p.Allocated == nil
}

// Validate checks field ranges.
func (p RegionPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return NewValidationError("name", "must not be empty")
	}
	if p.CurrentRisk != nil && (*p.CurrentRisk < 0 || *p.CurrentRisk > MaxRisk) {
		return NewValidationError("current_crime_level", "must be between 0 and %d", MaxRisk)
	}
	if p.Allocated != nil && *p.Allocated < 0 {
		return NewValidationError("police_allocated", "must be >= 0")
	}
	return nil
}

// Apply copies the set fields onto r.
func (p RegionPatch) Apply(r *Region) {
	if p.Name != nil {
		r.Name = strings.TrimSpace(*p.Name)
	}
	if p.Coordinates != nil {
		r.Coordinates = *p.Coordinates
	}
	if p.CurrentRisk != nil {
		risk := *p.CurrentRisk
		r.CurrentRisk = &risk
	}
	if p.Allocated != nil {
		r.Allocated = *p.Allocated
	}
}

// RegionRisk is the allocator's view of a region.
type RegionRisk struct {
	Risk     *int
	RegionID int
}

// EventType is the closed set of intelligence categories.
type EventType string

const (
	EventTypeCrime              EventType = "Crime"
	EventTypeEvent              EventType = "Event"
	EventTypePerson             EventType = "Person"
	EventTypeGangActivity       EventType = "Gang Activity"
	EventTypePolice             EventType = "Police"
	EventTypeSuspiciousActivity EventType = "Suspicious Activity"
)

// EventTypes returns every valid event type in display order.
func EventTypes() []EventType {
	return []EventType{
		EventTypeCrime,
		EventTypeEvent,
		EventTypePerson,
		EventTypeGangActivity,
		EventTypePolice,
		EventTypeSuspiciousActivity,
	}
}

// Valid reports whether t is one of EventTypes.
func (t EventType) Valid() bool {
	for _, v := range EventTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// Event is a single intelligence record. CreatedAt never changes.
type Event struct {
	CreatedAt     time.Time `json:"created_at"`
	Type          EventType `json:"type"`
	Description   string    `json:"description"`
	ID            int64     `json:"id"`
	RegionID      int       `json:"parish_id"`
	Severity      int       `json:"severity"`
	Confidence    float64   `json:"confidence"`
	FeedbackScore int       `json:"feedback_score"`
	Verified      bool      `json:"is_verified"`
}

// EventPatch carries the mutable fields of an event.
type EventPatch struct {
	Type          *EventType `json:"type,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Severity      *int       `json:"severity,omitempty"`
	Confidence    *float64   `json:"confidence,omitempty"`
	Verified      *bool      `json:"is_verified,omitempty"`
	FeedbackScore *int       `json:"feedback_score,omitempty"`
}

// Validate checks field ranges.
func (p EventPatch) Validate() error {
	if p.Type != nil && !p.Type.Valid() {
		return NewValidationError("type", "unknown intelligence type %q", string(*p.Type))
	}
	if p.Description != nil && len(strings.TrimSpace(*p.Description)) < MinDescriptionLength {
		return NewValidationError("description", "must be at least %d characters", MinDescriptionLength)
	}
	if p.Severity != nil && (*p.Severity < MinSeverity || *p.Severity > MaxSeverity) {
		return NewValidationError("severity", "must be between %d and %d", MinSeverity, MaxSeverity)
	}
	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		return NewValidationError("confidence", "must be between 0 and 1")
	}
	if p.FeedbackScore != nil && (*p.FeedbackScore < -2 || *p.FeedbackScore > 2) {
		return NewValidationError("feedback_score", "must be between -2 and 2")
	}
	return nil
}

// Apply copies the set fields onto e.
func (p EventPatch) Apply(e *Event) {
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Severity != nil {
		e.Severity = *p.Severity
	}
	if p.Confidence != nil {
		e.Confidence = *p.Confidence
	}
	if p.Verified != nil {
		e.Verified = *p.Verified
	}
	if p.FeedbackScore != nil {
		e.FeedbackScore = *p.FeedbackScore
	}
}

// ModelVersion is one persisted training result. Versions are never
// updated; the newest one of a type is the active model.
type ModelVersion struct {
	CreatedAt time.Time `json:"created_at"`
	ModelType string    `json:"model_type"`
	Features  []string  `json:"features"`
	Snapshot  []byte    `json:"-"`
	ID        int64     `json:"id"`
	Accuracy  float64   `json:"accuracy"`
}

// RunSource says what produced an allocation run.
type RunSource string

const (
	RunSourceModel RunSource = "model"
	RunSourcePlan  RunSource = "plan"
)

// AllocationRun is the audit header of one allocation write.
type AllocationRun struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Source    RunSource `json:"source"`
	PoolTotal int       `json:"pool_total"`
}

// Prediction is the per-region record of a model run.
type Prediction struct {
	CreatedAt           time.Time `json:"created_at"`
	RunID               string    `json:"run_id"`
	RegionID            int       `json:"parish_id"`
	PredictedRisk       int       `json:"predicted_crime_level"`
	RecommendedOfficers int       `json:"recommended_officers"`
}

// AllocationChange records one region's officer count moving.
type AllocationChange struct {
	RunID      string `json:"run_id,omitempty"`
	RegionName string `json:"parish_name"`
	RegionID   int    `json:"parish_id"`
	Previous   int    `json:"previous_allocation"`
	New        int    `json:"new_allocation"`
	Delta      int    `json:"difference"`
}

// String is used in log lines.
func (c AllocationChange) String() string {
	return fmt.Sprintf("%s %d->%d", c.RegionName, c.Previous, c.New)
}
