package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/islandsafe/patrolplan/internal/database"
	"github.com/islandsafe/patrolplan/internal/httpjson"
	"github.com/islandsafe/patrolplan/internal/modules/prediction"
)

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status        string          `json:"status"`
	LastTraining  string          `json:"last_training"`
	Database      *database.Stats `json:"database,omitempty"`
	ModelVersion  *int64          `json:"model_version"`
	Uptime        string          `json:"uptime"`
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	RegionCount   int             `json:"region_count"`
	EventCount    int             `json:"intelligence_count"`
	OfficersTotal int             `json:"officers_allocated"`
}

// SystemHandlers serves host and store status.
type SystemHandlers struct {
	db      *database.DB
	state   *prediction.ModelState
	started time.Time
	log     zerolog.Logger

	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
}

// NewSystemHandlers creates the status handlers.
func NewSystemHandlers(db *database.DB, state *prediction.ModelState, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:         db,
		state:      state,
		started:    time.Now(),
		log:        log.With().Str("handler", "system").Logger(),
		cpuPercent: sampleCPU,
		memPercent: sampleMemory,
	}
}

// sampleCPU averages across CPUs over 100ms so the call stays fast.
func sampleCPU() (float64, error) {
	pct, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(pct) == 0 {
		return 0, err
	}
	return pct[0], nil
}

func sampleMemory() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// Snapshot collects the status. Partial failures are logged and leave the
// affected fields zero; the status becomes "degraded".
func (h *SystemHandlers) Snapshot(ctx context.Context) SystemStatusResponse {
	resp := SystemStatusResponse{
		Status:       "healthy",
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		LastTraining: h.state.LastTraining().UTC().Format(time.RFC3339),
	}

	if _, v := h.state.Active(); v != nil {
		id := v.ID
		resp.ModelVersion = &id
	}

	err := h.db.Conn().QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM regions),
			(SELECT COUNT(*) FROM intelligence),
			(SELECT COALESCE(SUM(police_allocated), 0) FROM regions)
	`).Scan(&resp.RegionCount, &resp.EventCount, &resp.OfficersTotal)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query store counts")
		resp.Status = "degraded"
	}

	if stats, err := h.db.GetStats(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get database stats")
		resp.Status = "degraded"
	} else {
		resp.Database = stats
	}

	if v, err := h.cpuPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else {
		resp.CPUPercent = v
	}
	if v, err := h.memPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		resp.MemoryPercent = v
	}

	return resp
}

// HandleSystemStatus handles GET /api/system/status.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, h.log, http.StatusOK, h.Snapshot(r.Context()))
}
