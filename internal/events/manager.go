package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus for subscribers.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes a map payload and logs it at debug level.
func (m *Manager) Emit(eventType EventType, module string, data map[string]any) {
	m.bus.Emit(eventType, module, data)

	if m.log.GetLevel() <= zerolog.DebugLevel {
		payload, _ := json.Marshal(data)
		m.log.Debug().
			Str("event_type", string(eventType)).
			Str("module", module).
			RawJSON("data", payload).
			Msg("Event emitted")
	}
}

// EmitTyped publishes typed data under eventType.
func (m *Manager) EmitTyped(eventType EventType, module string, data EventData) {
	m.Emit(eventType, module, toMap(data))
}

// EmitError publishes an ErrorOccurred event.
func (m *Manager) EmitError(module string, err error, context map[string]any) {
	m.EmitTyped(ErrorOccurred, module, &ErrorEventData{Error: err.Error(), Context: context})
}

// toMap converts typed data to the map form carried on the bus so that
// numeric fields arrive the same way a JSON client would see them.
func toMap(data EventData) map[string]any {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
