package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

func sampleRun() *models.ValidationRun {
	finished := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.ValidationRun{
		ID:           uuid.MustParse("5f1c3f7e-2b55-4c44-8d1e-3a0f2f4b9c10"),
		StartedAt:    finished.Add(-time.Minute),
		FinishedAt:   finished,
		QualityScore: 82.5,
		Status:       "GOOD",
		Counts:       map[models.Source]int64{models.SourceWorldBank: 10, models.SourceIMF: 4},
		Report:       []byte(`{"summary":{"overall_status":"GOOD"}}`),
	}
}

func TestStatusHandler_Status(t *testing.T) {
	handler := NewStatusHandler(&fakeRuns{run: sampleRun()}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "GOOD", resp.Status)
	assert.Equal(t, 82.5, resp.QualityScore)
	assert.Equal(t, int64(10), resp.Counts[models.SourceWorldBank])
	assert.Empty(t, resp.Report)
}

func TestStatusHandler_Status_WithReport(t *testing.T) {
	handler := NewStatusHandler(&fakeRuns{run: sampleRun()}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/status?report=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	report := resp["report"].(map[string]any)
	assert.Equal(t, "GOOD", report["summary"].(map[string]any)["overall_status"])
}

func TestStatusHandler_Status_NoRun(t *testing.T) {
	handler := NewStatusHandler(&fakeRuns{}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "not_found", body.Error)
}

func TestStatusHandler_Status_StoreError(t *testing.T) {
	handler := NewStatusHandler(&fakeRuns{err: errors.New("timeout")}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
