package events

// EventData is implemented by every typed payload.
type EventData interface {
	EventType() EventType
}

// ResourceAllocationData carries the full allocation after a write.
type ResourceAllocationData struct {
	Allocations map[int]int `json:"allocations"`
	RunID       string      `json:"run_id"`
	Source      string      `json:"source"`
	PoolTotal   int         `json:"pool_total"`
}

func (d *ResourceAllocationData) EventType() EventType { return ResourceAllocation }

// OfficersAllocatedData is sent once per region after an allocation.
type OfficersAllocatedData struct {
	RegionID int `json:"parish_id"`
	Officers int `json:"officers"`
}

func (d *OfficersAllocatedData) EventType() EventType { return OfficersAllocated }

// PredictionsUpdatedData summarises a prediction refresh.
type PredictionsUpdatedData struct {
	Risks map[int]int `json:"risks"`
}

func (d *PredictionsUpdatedData) EventType() EventType { return PredictionsUpdated }

// IntelligenceData describes a newly reported event. It is emitted as
// both IntelligenceUpdate (to the region) and NewIntelligence (to all).
type IntelligenceData struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	ID          int64  `json:"id"`
	RegionID    int    `json:"parish_id"`
	Severity    int    `json:"severity"`
}

func (d *IntelligenceData) EventType() EventType { return NewIntelligence }

// ModelTrainedData reports a completed training run.
type ModelTrainedData struct {
	VersionID int64   `json:"version_id"`
	Accuracy  float64 `json:"accuracy"`
	Samples   int     `json:"samples"`
}

func (d *ModelTrainedData) EventType() EventType { return ModelTrained }

// SettingsChangedData names the changed key.
type SettingsChangedData struct {
	Key string `json:"key"`
}

func (d *SettingsChangedData) EventType() EventType { return SettingsChanged }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Context map[string]any `json:"context,omitempty"`
	Error   string         `json:"error"`
}

func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
