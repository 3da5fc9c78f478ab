// Package events provides the in-process event bus used for notifications.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Allocation
	ResourceAllocation EventType = "RESOURCE_ALLOCATION"
	OfficersAllocated  EventType = "OFFICERS_ALLOCATED"
	PredictionsUpdated EventType = "PREDICTIONS_UPDATED"

	// Intelligence
	IntelligenceUpdate EventType = "INTELLIGENCE_UPDATE"
	NewIntelligence    EventType = "NEW_INTELLIGENCE"

	// Model lifecycle
	ModelTrained EventType = "MODEL_TRAINED"

	// System
	SettingsChanged EventType = "SETTINGS_CHANGED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every type the stream endpoints forward.
func AllEventTypes() []EventType {
	return []EventType{
		ResourceAllocation,
		OfficersAllocated,
		PredictionsUpdated,
		IntelligenceUpdate,
		NewIntelligence,
		ModelTrained,
		SettingsChanged,
		ErrorOccurred,
	}
}

// RegionScoped reports whether events of this type concern a single
// region and carry a "parish_id" field.
func (t EventType) RegionScoped() bool {
	return t == OfficersAllocated || t == IntelligenceUpdate
}

// Event represents a system event
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Type      EventType      `json:"type"`
	Module    string         `json:"module"`
}

// RegionID extracts the region of a region-scoped event.
func (e *Event) RegionID() (int, bool) {
	if e.Data == nil {
		return 0, false
	}
	switch v := e.Data["parish_id"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
