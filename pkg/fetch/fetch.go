// Package fetch opens upstream extracts from HTTP(S) URLs or local paths.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
)

const (
	DefaultTimeout      = 15 * time.Minute
	DefaultMaxRedirects = 10
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Config controls HTTP downloads.
type Config struct {
	// Timeout bounds the whole download, body included.
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
}

// StatusError is returned for a non-2xx, non-redirect response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.StatusCode)
}

// IsRetryable implements retry.RetryableError.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Fetcher downloads extracts.
type Fetcher struct {
	httpClient *http.Client
	cfg        Config
	logger     *zap.Logger
}

// New creates a Fetcher. A zero Timeout or UserAgent and a negative
// MaxRedirects select the defaults.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &Fetcher{
		httpClient: &http.Client{
			// Redirects are followed by hand so the hop limit and missing
			// Location header surface as typed errors.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cfg:    cfg,
		logger: logger.Named("fetch"),
	}
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Open returns a stream over location, an http(s) URL or a local path.
// For URLs the returned body must be closed to release the download deadline.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !IsRemote(location) {
		file, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", location, err)
		}
		return file, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	resp, err := f.get(ctx, location, "")
	if err != nil {
		cancel()
		return nil, err
	}

	return &body{ReadCloser: resp.Body, ctx: ctx, cancel: cancel, url: location}, nil
}

// GetJSON downloads endpoint and decodes its JSON body into v.
func (f *Fetcher) GetJSON(ctx context.Context, endpoint string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	resp, err := f.get(ctx, endpoint, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", endpoint, timeoutErr(ctx, err))
	}
	return nil
}

// get issues a GET and follows redirects up to MaxRedirects hops.
func (f *Fetcher) get(ctx context.Context, location, accept string) (*http.Response, error) {
	current := location
	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		f.logger.Debug("Fetching", zap.String("url", current), zap.Int("hop", hop))

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", current, timeoutErr(ctx, err))
		}

		switch resp.StatusCode {
		case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
			http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
			resp.Body.Close()

			loc := resp.Header.Get("Location")
			if loc == "" {
				return nil, fmt.Errorf("%s: %w", current, apperrors.ErrMissingRedirect)
			}
			if hop >= f.cfg.MaxRedirects {
				return nil, fmt.Errorf("%s after %d hops: %w", location, hop, apperrors.ErrTooManyRedirects)
			}
			next, err := resp.Request.URL.Parse(loc)
			if err != nil {
				return nil, fmt.Errorf("invalid redirect location %q: %w", loc, err)
			}
			current = next.String()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			f.logger.Error("Upstream returned error",
				zap.String("url", current),
				zap.Int("status", resp.StatusCode))
			return nil, &StatusError{URL: current, StatusCode: resp.StatusCode}
		}

		return resp, nil
	}
}

// body ties the download deadline to the response body.
type body struct {
	io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
	url    string
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("failed to read %s: %w", b.url, timeoutErr(b.ctx, err))
	}
	return n, err
}

func (b *body) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// timeoutErr maps a deadline hit to ErrDownloadTimeout.
func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrDownloadTimeout, err)
	}
	return err
}

// BuildURL constructs a URL by parsing the base and joining path segments.
func BuildURL(baseURL string, query url.Values, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}
