package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Build information, set with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const (
	serviceName = "recall"

	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	readyTimeout    = 5 * time.Second
	detailedTimeout = 10 * time.Second
)

// ConnectivityChecker reports whether the graph store is reachable.
type ConnectivityChecker interface {
	VerifyConnectivity(ctx context.Context) error
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func (p CheckResult) healthy() bool { return p.Status == statusHealthy }

// HealthResponse is the body of every health endpoint. Optional sections are
// filled by the detailed check only.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	BuildInfo *BuildInfo             `json:"build_info,omitempty"`
	Runtime   *RuntimeStats          `json:"runtime,omitempty"`
	Metrics   *CheckMetrics          `json:"metrics,omitempty"`
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// RuntimeStats is a snapshot of the Go runtime.
type RuntimeStats struct {
	Goroutines   int     `json:"goroutines"`
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	HeapObjects  uint64  `json:"heap_objects"`
	StackInUseMB float64 `json:"stack_in_use_mb"`
	GCCycles     uint32  `json:"gc_cycles"`
}

// CheckMetrics times the detailed check itself.
type CheckMetrics struct {
	ResponseTimeMs int64 `json:"response_time_ms"`
	UptimeSeconds  int64 `json:"uptime_seconds"`
}

// HealthHandler serves the liveness, readiness and diagnostic endpoints.
type HealthHandler struct {
	checker   ConnectivityChecker
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler. checker may be nil, in which case
// readiness always fails.
func NewHealthHandler(checker ConnectivityChecker) *HealthHandler {
	return &HealthHandler{checker: checker, startedAt: time.Now()}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := newHealthResponse(statusHealthy)
	resp.Version = Version
	c.JSON(http.StatusOK, resp)
}

// LivenessCheck handles GET /live. It never touches dependencies.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, newHealthResponse("alive"))
}

// ReadinessCheck handles GET /ready: 503 until the graph store answers.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	db := h.checkDatabase(ctx)
	resp := newHealthResponse("ready")
	resp.Checks = map[string]CheckResult{"database": db}

	code := http.StatusOK
	if !db.healthy() {
		resp.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// DetailedHealthCheck handles GET /health/detailed.
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), detailedTimeout)
	defer cancel()

	start := time.Now()
	db := h.checkDatabase(ctx)

	resp := newHealthResponse(statusHealthy)
	resp.Version = Version
	resp.Checks = map[string]CheckResult{"database": db}
	resp.BuildInfo = &BuildInfo{GitCommit: GitCommit, BuildTime: BuildTime, GoVersion: runtime.Version()}
	resp.Runtime = readRuntimeStats()
	resp.Metrics = &CheckMetrics{
		ResponseTimeMs: time.Since(start).Milliseconds(),
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
	}

	code := http.StatusOK
	if !db.healthy() {
		resp.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckResult {
	if h.checker == nil {
		return CheckResult{Status: statusUnhealthy, Error: "recall client not initialized"}
	}

	start := time.Now()
	err := h.checker.VerifyConnectivity(ctx)
	result := CheckResult{Status: statusHealthy, DurationMs: time.Since(start).Milliseconds()}
	switch {
	case err == nil:
	case ctx.Err() != nil:
		result.Status, result.Error = statusUnhealthy, "database connection timeout"
	default:
		result.Status, result.Error = statusUnhealthy, err.Error()
	}
	return result
}

func newHealthResponse(status string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Service:   serviceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func readRuntimeStats() *RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	const mb = 1 << 20
	return &RuntimeStats{
		Goroutines:   runtime.NumGoroutine(),
		HeapAllocMB:  float64(m.HeapAlloc) / mb,
		HeapObjects:  m.HeapObjects,
		StackInUseMB: float64(m.StackInuse) / mb,
		GCCycles:     m.NumGC,
	}
}
