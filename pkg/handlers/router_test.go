package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/database"
)

type fakeScopes struct {
	err      error
	opened   int
	released int
}

func (f *fakeScopes) WithScope(ctx context.Context, _ string) (context.Context, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.opened++
	return ctx, func() { f.released++ }, nil
}

var _ database.ScopeProvider = (*fakeScopes)(nil)

func serve(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestNewRouter(t *testing.T) {
	scopes := &fakeScopes{}
	router := NewRouter(RouterDeps{
		Config:   testConfig(),
		Scopes:   scopes,
		Records:  &fakeRecords{count: 42},
		Runs:     &fakeRuns{run: sampleRun()},
		Registry: prometheus.NewRegistry(),
		Logger:   zap.NewNop(),
	})

	resp, body := serve(t, router, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy","records":42}`, body)

	resp, _ = serve(t, router, "/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = serve(t, router, "/ping")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// /ping never takes a database scope.
	assert.Equal(t, 2, scopes.opened)
	assert.Equal(t, 2, scopes.released)

	resp, body = serve(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `ekaya_macro_http_requests_total{code="200",method="GET",route="/health"} 1`)
}

func TestNewRouter_ScopeUnavailable(t *testing.T) {
	router := NewRouter(RouterDeps{
		Config:  testConfig(),
		Scopes:  &fakeScopes{err: errors.New("pool exhausted")},
		Records: &fakeRecords{count: 42},
		Runs:    &fakeRuns{},
		Logger:  zap.NewNop(),
	})

	resp, body := serve(t, router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "database_error")

	resp, _ = serve(t, router, "/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
