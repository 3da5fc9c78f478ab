package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewManager(NewBus(log), log)
}

func TestBus_SubscribeAndUnsubscribe(t *testing.T) {
	m := newTestManager()
	var got []*Event

	cancel := m.Bus().Subscribe(OfficersAllocated, func(e *Event) { got = append(got, e) })
	assert.Equal(t, 1, m.Bus().SubscriberCount(OfficersAllocated))

	m.EmitTyped(OfficersAllocated, "allocation", &OfficersAllocatedData{RegionID: 3, Officers: 77})
	m.Emit(ResourceAllocation, "allocation", nil) // not subscribed

	require.Len(t, got, 1)
	assert.Equal(t, OfficersAllocated, got[0].Type)
	assert.Equal(t, "allocation", got[0].Module)
	id, ok := got[0].RegionID()
	assert.True(t, ok)
	assert.Equal(t, 3, id)
	assert.EqualValues(t, 77, got[0].Data["officers"])

	cancel()
	cancel() // idempotent
	assert.Equal(t, 0, m.Bus().SubscriberCount(OfficersAllocated))

	m.EmitTyped(OfficersAllocated, "allocation", &OfficersAllocatedData{RegionID: 3, Officers: 1})
	assert.Len(t, got, 1)
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	m := newTestManager()
	delivered := 0

	m.Bus().Subscribe(NewIntelligence, func(*Event) { panic("boom") })
	m.Bus().Subscribe(NewIntelligence, func(*Event) { delivered++ })

	assert.NotPanics(t, func() {
		m.EmitTyped(NewIntelligence, "intelligence", &IntelligenceData{ID: 1, RegionID: 2})
	})
	assert.Equal(t, 1, delivered)
}

func TestBus_SubscribeMany(t *testing.T) {
	m := newTestManager()
	count := 0

	cancel := m.Bus().SubscribeMany(AllEventTypes(), func(*Event) { count++ })
	m.EmitError("scheduler", errors.New("bad"), map[string]any{"job": "retrain"})
	m.EmitTyped(ModelTrained, "prediction", &ModelTrainedData{VersionID: 1})
	assert.Equal(t, 2, count)

	cancel()
	m.EmitTyped(ModelTrained, "prediction", &ModelTrainedData{VersionID: 2})
	assert.Equal(t, 2, count)
}

func TestEvent_RegionID(t *testing.T) {
	_, ok := (&Event{}).RegionID()
	assert.False(t, ok)

	id, ok := (&Event{Data: map[string]any{"parish_id": 9}}).RegionID()
	assert.True(t, ok)
	assert.Equal(t, 9, id)

	assert.True(t, OfficersAllocated.RegionScoped())
	assert.True(t, IntelligenceUpdate.RegionScoped())
	assert.False(t, NewIntelligence.RegionScoped())
}
