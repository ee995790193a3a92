package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/sharpe/internal/clientdata"
	"github.com/aristath/sharpe/internal/database"
	"github.com/aristath/sharpe/internal/di"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers handles system monitoring and maintenance endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	container   *di.Container
	jobs        *di.JobInstances
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, container *di.Container, jobs *di.JobInstances) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("service", "system").Logger(),
		startupTime: time.Now(),
		container:   container,
		jobs:        jobs,
	}
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string          `json:"status"`
	Version       string          `json:"version"`
	GoVersion     string          `json:"go_version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Goroutines    int             `json:"goroutines"`
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	CacheEnabled  bool            `json:"cache_enabled"`
	Cache         *database.Stats `json:"cache,omitempty"`
	ScheduledJobs int             `json:"scheduled_jobs"`

	LastCacheSweep *clientdata.SweepReport `json:"last_cache_sweep,omitempty"`
}

// CacheCleanupResponse is returned by the manual cache cleanup endpoint
type CacheCleanupResponse struct {
	Status string `json:"status"`
	Job    string `json:"job"`
	// Deleted is keyed by cache table name
	Deleted      map[string]int64 `json:"deleted"`
	TotalDeleted int64            `json:"total_deleted"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "ok",
		Version:       Version,
		GoVersion:     runtime.Version(),
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
	}

	if db := h.container.ClientDataDB; db != nil {
		response.CacheEnabled = true
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get cache database stats")
		} else {
			response.Cache = stats
		}
	}

	if h.jobs != nil && h.jobs.Scheduler != nil {
		response.ScheduledJobs = h.jobs.Scheduler.Entries()
	}
	if h.jobs != nil && h.jobs.ClientDataCleanup != nil {
		if sweep, ok := h.jobs.ClientDataCleanup.LastSweep(); ok {
			response.LastCacheSweep = &sweep
		}
	}

	writeJSON(h.log, w, http.StatusOK, response)
}

// HandleCacheCleanup handles POST /api/system/cache/cleanup
func (h *SystemHandlers) HandleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil || h.jobs.ClientDataCleanup == nil {
		writeJSON(h.log, w, http.StatusConflict, map[string]string{
			"error": "provider cache is disabled",
		})
		return
	}

	job := h.jobs.ClientDataCleanup
	if err := h.jobs.Scheduler.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", job.Name()).Msg("Manual cache cleanup failed")
		writeJSON(h.log, w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	sweep, _ := job.LastSweep()
	writeJSON(h.log, w, http.StatusOK, CacheCleanupResponse{
		Status:       "completed",
		Job:          job.Name(),
		Deleted:      sweep.Deleted,
		TotalDeleted: sweep.Total,
	})
}

// getSystemStats returns the average CPU percentage and RAM usage percentage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// Get CPU percentage (100ms sample)
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		for _, p := range cpuPercent {
			cpuAvg += p
		}
		cpuAvg /= float64(len(cpuPercent))
	}

	return cpuAvg, memStat.UsedPercent
}

func writeJSON(log zerolog.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
