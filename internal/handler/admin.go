package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"scanventory-api/internal/repository"
	"scanventory-api/pkg/response"
)

// StatsProvider is implemented by caches that can report their own statistics.
type StatsProvider interface {
	Stats() map[string]interface{}
}

// ContextStatsProvider is implemented by caches whose statistics need a round trip.
type ContextStatsProvider interface {
	Stats(ctx context.Context) map[string]interface{}
}

// AdminHandler handles operational HTTP requests.
type AdminHandler struct {
	store     repository.Store
	cache     interface{}
	storeType string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler. cache may be nil or any value
// implementing StatsProvider or ContextStatsProvider.
func NewAdminHandler(store repository.Store, cache interface{}, storeType string) *AdminHandler {
	return &AdminHandler{
		store:     store,
		cache:     cache,
		storeType: storeType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Store stats
	storeStats, err := h.store.GetStats(ctx)
	if err == nil {
		storeStats["status"] = "connected"
		stats["store"] = storeStats
	} else {
		stats["store"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	// Cache stats
	switch c := h.cache.(type) {
	case StatsProvider:
		stats["cache"] = c.Stats()
	case ContextStatsProvider:
		stats["cache"] = c.Stats(ctx)
	default:
		stats["cache"] = map[string]interface{}{"status": "not_configured"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
