package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// RunReader reads the most recent validation run.
type RunReader interface {
	LatestRun(ctx context.Context) (*models.ValidationRun, error)
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	RunID        uuid.UUID               `json:"run_id"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   time.Time               `json:"finished_at"`
	QualityScore float64                 `json:"quality_score"`
	Status       string                  `json:"status"`
	Counts       map[models.Source]int64 `json:"counts"`
	Report       json.RawMessage         `json:"report,omitempty"`
}

// StatusHandler serves the outcome of the latest validation run.
type StatusHandler struct {
	runs   RunReader
	logger *zap.Logger
}

func NewStatusHandler(runs RunReader, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{runs: runs, logger: logger}
}

func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.Status)
}

// Status handles GET /status. The full report is included with ?report=true.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.LatestRun(r.Context())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			ErrorResponse(w, r, http.StatusNotFound, "not_found", "no validation run recorded")
			return
		}
		h.logger.Error("Failed to read latest validation run", zap.Error(err))
		ErrorResponse(w, r, http.StatusInternalServerError, "internal_error", "failed to read validation status")
		return
	}

	resp := StatusResponse{
		RunID:        run.ID,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		QualityScore: run.QualityScore,
		Status:       run.Status,
		Counts:       run.Counts,
	}
	if r.URL.Query().Get("report") == "true" && len(run.Report) > 0 {
		resp.Report = json.RawMessage(run.Report)
	}
	WriteJSON(w, r, http.StatusOK, resp)
}
