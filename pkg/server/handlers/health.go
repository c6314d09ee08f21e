package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	lattice "github.com/latticehq/lattice"
)

// Build information, settable at build time via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	engine  *lattice.Engine
	started time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(engine *lattice.Engine) *HealthHandler {
	return &HealthHandler{engine: engine, started: time.Now()}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "lattice",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// LivenessCheck handles GET /live, the Kubernetes liveness probe.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   "lattice",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready. The engine is in-process, so readiness
// reduces to the engine being constructed and its stores answering.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ready",
		"service":   "lattice",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    gin.H{},
	}
	checks := response["checks"].(gin.H)

	if h.engine == nil {
		checks["engine"] = gin.H{"status": "unhealthy", "error": "engine not initialized"}
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	start := time.Now()
	_, err := h.engine.Graph().Statistics(c.Request.Context(), "readiness", "probe")
	checks["graph_store"] = gin.H{
		"status":   "healthy",
		"duration": time.Since(start).String(),
	}
	if err != nil {
		checks["graph_store"] = gin.H{"status": "unhealthy", "error": err.Error()}
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	checks["system"] = gin.H{
		"status": "healthy",
		"uptime": time.Since(h.started).String(),
	}
	c.JSON(http.StatusOK, response)
}

// DetailedHealthCheck handles GET /health/detailed.
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	start := time.Now()
	response := gin.H{
		"status":  "healthy",
		"service": "lattice",
		"version": Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": gin.H{
			"go_version": GoVersion,
		},
		"checks": gin.H{},
	}
	checks := response["checks"].(gin.H)

	if h.engine != nil {
		checks["cache"] = h.engine.CacheStats()

		statsStart := time.Now()
		stats, err := h.engine.Graph().Statistics(c.Request.Context(), "readiness", "probe")
		graphStatus := gin.H{
			"status":      "healthy",
			"duration_ms": time.Since(statsStart).Milliseconds(),
			"operation":   "Statistics",
		}
		if err != nil {
			graphStatus["status"] = "unhealthy"
			graphStatus["error"] = err.Error()
			response["status"] = "unhealthy"
		} else {
			graphStatus["node_count"] = stats.NodeCount
		}
		checks["graph_store"] = graphStatus
	} else {
		checks["engine"] = gin.H{"status": "unhealthy", "error": "engine not initialized"}
		response["status"] = "unhealthy"
	}

	metrics := systemMetrics()
	checks["system"] = gin.H{
		"status":       "healthy",
		"uptime":       time.Since(h.started).String(),
		"memory_usage": metrics.MemoryUsage,
		"goroutines":   metrics.Goroutines,
		"gc_cycles":    metrics.GCCycles,
		"heap_objects": metrics.HeapObjects,
	}

	response["response_time_ms"] = time.Since(start).Milliseconds()
	if response["status"] != "healthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// SystemMetrics holds runtime metrics reported by the detailed health check.
type SystemMetrics struct {
	MemoryUsage string `json:"memory_usage"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
}

func systemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemMetrics{
		MemoryUsage: fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
	}
}
