package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// DoctorResponse represents the diagnostics endpoint response.
type DoctorResponse struct {
	Status     string         `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp  string         `json:"timestamp"`
	Version    string         `json:"version"`
	Checks     []HealthCheck  `json:"checks"`
	System     SystemInfo     `json:"system"`
	Statistics StatisticsInfo `json:"statistics"`
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "pass", "warn", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo represents process information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
	Uptime       string `json:"uptime,omitempty"`
}

// StatisticsInfo represents runtime statistics.
type StatisticsInfo struct {
	OpenSessions int `json:"open_sessions"`
}

// Probe is a named dependency check. A nil error passes.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// DoctorHandler reports detailed diagnostics.
type DoctorHandler struct {
	version  string
	probes   []Probe
	sessions func() int
	started  time.Time
}

// NewDoctorHandler creates a diagnostics handler. sessions reports the number
// of open sessions and may be nil.
func NewDoctorHandler(version string, sessions func() int, probes ...Probe) *DoctorHandler {
	return &DoctorHandler{
		version:  version,
		probes:   probes,
		sessions: sessions,
		started:  time.Now(),
	}
}

// ServeHTTP runs every probe and reports the combined status.
func (h *DoctorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	response := DoctorResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Checks:    make([]HealthCheck, 0, len(h.probes)+1),
	}

	for _, p := range h.probes {
		response.Checks = append(response.Checks, runProbe(ctx, p))
	}
	response.Checks = append(response.Checks, checkMemory())

	hasWarn, hasFail := false, false
	for _, check := range response.Checks {
		switch check.Status {
		case "warn":
			hasWarn = true
		case "fail":
			hasFail = true
		}
	}
	if hasFail {
		response.Status = "unhealthy"
	} else if hasWarn {
		response.Status = "degraded"
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response.System = SystemInfo{
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		MemAlloc:     formatBytes(memStats.Alloc),
		MemSys:       formatBytes(memStats.Sys),
		Uptime:       time.Since(h.started).Round(time.Second).String(),
	}
	if h.sessions != nil {
		response.Statistics.OpenSessions = h.sessions()
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, response)
}

func runProbe(ctx context.Context, p Probe) HealthCheck {
	check := HealthCheck{Name: p.Name, Status: "pass", Message: "ok"}

	start := time.Now()
	err := p.Check(ctx)
	check.Latency = time.Since(start).String()

	if err != nil {
		check.Status = "fail"
		check.Message = err.Error()
	}
	return check
}

func checkMemory() HealthCheck {
	check := HealthCheck{Name: "memory", Status: "pass"}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Warn above 500MB
	if memStats.Alloc > 500*1024*1024 {
		check.Status = "warn"
		check.Message = fmt.Sprintf("High memory usage: %s", formatBytes(memStats.Alloc))
	} else {
		check.Message = fmt.Sprintf("Memory usage: %s", formatBytes(memStats.Alloc))
	}
	return check
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
