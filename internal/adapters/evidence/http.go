// Package evidence fetches report photographs from object storage.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

// DefaultMaxBytes caps a single evidence download.
const DefaultMaxBytes int64 = 10 << 20

// Config configures an HTTPFetcher.
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// HTTPFetcher downloads evidence over HTTP(S). Presigned object-storage URLs
// are fetched like any other URL.
type HTTPFetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

var _ core.EvidenceFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher. Zero values fall back to defaults.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "wheelcity-evidence/1.0"
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
	}
}

// Fetch downloads the bytes behind ref.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref core.EvidenceRef) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, core.ErrEvidenceUnavailable(ref, "invalid reference").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(ref), nil)
	if err != nil {
		return nil, core.ErrEvidenceUnavailable(ref, "building request").WithCause(err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, core.ErrTimeout("evidence fetch timed out").WithCause(err).
				WithDetail("evidence_ref", string(ref))
		}
		return nil, core.ErrEvidenceUnavailable(ref, "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.ErrEvidenceUnavailable(ref, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	if resp.ContentLength > f.maxBytes {
		return nil, core.ErrEvidenceUnavailable(ref, "evidence exceeds size limit")
	}

	// Read one byte past the limit so an oversized body is detected rather
	// than silently truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, core.ErrEvidenceUnavailable(ref, "reading body").WithCause(err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, core.ErrEvidenceUnavailable(ref, "evidence exceeds size limit")
	}
	if len(data) == 0 {
		return nil, core.ErrEvidenceUnavailable(ref, "empty evidence")
	}
	return data, nil
}
