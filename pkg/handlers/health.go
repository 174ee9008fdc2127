package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/config"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// RecordCounter counts the rows stored for one source.
type RecordCounter interface {
	Count(ctx context.Context, src models.Source) (int64, error)
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Records int64  `json:"records"`
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
	cfg     *config.Config
	records RecordCounter
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler with the given configuration.
func NewHealthHandler(cfg *config.Config, records RecordCounter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, records: records, logger: logger}
}

// RegisterRoutes registers the database-backed health route.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
}

// RegisterPublicRoutes registers routes that never touch the database.
func (h *HealthHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/ping", h.Ping)
}

// Health handles GET /health requests.
// Healthy means the World Bank table answers a row count.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.records.Count(r.Context(), models.SourceWorldBank)
	if err != nil {
		h.logger.Error("Health check failed", zap.Error(err))
		WriteJSON(w, r, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
		return
	}
	WriteJSON(w, r, http.StatusOK, HealthResponse{Status: "healthy", Records: n})
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		ErrorResponse(w, r, http.StatusInternalServerError, "hostname", "failed to get hostname")
		return
	}

	WriteJSON(w, r, http.StatusOK, PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-macro",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	})
}
