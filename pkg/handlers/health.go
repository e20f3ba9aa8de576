package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/anonymizer"
	"github.com/ekaya-inc/emistr-mcp/pkg/logging"
)

// ServiceName is reported by /ping.
const ServiceName = "emistr-mcp"

const healthPingTimeout = 3 * time.Second

// Database is the pool as seen by /health. *datasource.DB satisfies it.
type Database interface {
	Ping(ctx context.Context) error
	Stats() sql.DBStats
}

// HealthResponse is returned by /health. Failure details are logged, never
// returned.
type HealthResponse struct {
	Status        string     `json:"status"`
	Database      string     `json:"database"`
	Anonymization string     `json:"anonymization,omitempty"`
	Pool          *PoolStats `json:"pool,omitempty"`
}

// PoolStats is the connection pool usage at the time of the check.
type PoolStats struct {
	MaxOpen        int   `json:"max_open"`
	Open           int   `json:"open"`
	InUse          int   `json:"in_use"`
	Idle           int   `json:"idle"`
	WaitCount      int64 `json:"wait_count"`
	WaitDurationMs int64 `json:"wait_duration_ms"`
}

func newPoolStats(s sql.DBStats) *PoolStats {
	return &PoolStats{
		MaxOpen:        s.MaxOpenConnections,
		Open:           s.OpenConnections,
		InUse:          s.InUse,
		Idle:           s.Idle,
		WaitCount:      s.WaitCount,
		WaitDurationMs: s.WaitDuration.Milliseconds(),
	}
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	version string
	env     string
	db      Database
	anon    *anonymizer.Anonymizer
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and anon may be nil.
func NewHealthHandler(version, env string, db Database, anon *anonymizer.Anonymizer, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{version: version, env: env, db: db, anon: anon, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests. It answers 503 when the database
// does not respond to a ping.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if h.anon != nil {
		response.Anonymization = "enabled"
		if !h.anon.Enabled() {
			response.Anonymization = "disabled"
		}
	}

	if h.db == nil {
		response.Database = "not_configured"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			response.Status = "degraded"
			response.Database = "unreachable"
			status = http.StatusServiceUnavailable
			h.logger.Warn("Health check failed", zap.String("error", logging.SanitizeError(err)))
		}
		response.Pool = newPoolStats(h.db.Stats())
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to get hostname"); err != nil {
			h.logger.Error("Failed to encode ping error", zap.Error(err))
		}
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.version,
		Service:     ServiceName,
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
