package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
)

func newTestFetcher(cfg Config) *Fetcher {
	return New(cfg, zap.NewNop())
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestOpen_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	rc, err := newTestFetcher(Config{}).Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", readAll(t, rc))

	_, err = newTestFetcher(Config{}).Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	rc, err := newTestFetcher(Config{}).Open(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", readAll(t, rc))
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestOpen_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rc, err := newTestFetcher(Config{MaxRedirects: 2}).Open(context.Background(), srv.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, "payload", readAll(t, rc))
}

func TestOpen_TooManyRedirects(t *testing.T) {
	hops := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, fmt.Sprintf("/hop%d", hops), http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(Config{MaxRedirects: DefaultMaxRedirects}).Open(context.Background(), srv.URL)
	assert.ErrorIs(t, err, apperrors.ErrTooManyRedirects)
	assert.Equal(t, DefaultMaxRedirects+1, hops)
}

func TestOpen_RedirectWithoutLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(Config{MaxRedirects: 10}).Open(context.Background(), srv.URL)
	assert.ErrorIs(t, err, apperrors.ErrMissingRedirect)
}

func TestOpen_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(Config{}).Open(context.Background(), srv.URL)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.False(t, statusErr.IsRetryable())
	assert.True(t, (&StatusError{StatusCode: 503}).IsRetryable())
}

func TestOpen_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := newTestFetcher(Config{Timeout: 50 * time.Millisecond}).Open(context.Background(), srv.URL)
	assert.ErrorIs(t, err, apperrors.ErrDownloadTimeout)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, `[{"page":1,"pages":1},[]]`)
	}))
	defer srv.Close()

	var body []any
	require.NoError(t, newTestFetcher(Config{}).GetJSON(context.Background(), srv.URL, &body))
	assert.Len(t, body, 2)
}

func TestBuildURL(t *testing.T) {
	got, err := BuildURL("https://api.worldbank.org/v2", url.Values{"format": {"json"}}, "country", "all", "indicator", "EG.ELC.ACCS.ZS")
	require.NoError(t, err)
	assert.Equal(t, "https://api.worldbank.org/v2/country/all/indicator/EG.ELC.ACCS.ZS?format=json", got)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.csv"))
	assert.True(t, IsRemote("HTTP://example.com/a.csv"))
	assert.False(t, IsRemote("/data/WDICSV.csv"))
	assert.False(t, IsRemote("WDICSV.csv"))
}
