// Package content resolves the raw bytes of a purchased ebook, defending
// against unreliable remote hosts. It performs no side effects beyond the
// network or disk read.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/Devjdias/ecommerceJD/internal/metrics"
)

// ErrUnavailable means the locator could not be resolved to a validated
// payload: local file missing, or every remote attempt exhausted.
var ErrUnavailable = errors.New("content unavailable")

const (
	defaultAttempts    = 3
	defaultMinSize     = 10_000 // bytes; smaller payloads are junk, not PDFs
	defaultTimeout     = 60 * time.Second
	defaultRetryWait   = 3 * time.Second
	defaultDeniedWait  = 5 * time.Second
	defaultRefererBase = "https://archive.org/"
)

// Archive.org serves a block page to obvious automation, so requests carry a
// real browser's header profile.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "application/pdf,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
	"Connection":                "keep-alive",
	"Referer":                   defaultRefererBase,
	"DNT":                       "1",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "same-origin",
}

// Fetcher downloads remote locators with a short fixed retry schedule, or
// reads local ones from LocalDir. The zero values of the tuning fields fall
// back to production defaults; tests shrink the waits.
type Fetcher struct {
	HTTP     *http.Client
	LocalDir string

	Attempts   int
	MinSize    int
	RetryWait  time.Duration // wait after a soft failure
	DeniedWait time.Duration // wait after a 401/403
}

func NewFetcher(localDir string) *Fetcher {
	return &Fetcher{
		HTTP:       &http.Client{Timeout: defaultTimeout},
		LocalDir:   localDir,
		Attempts:   defaultAttempts,
		MinSize:    defaultMinSize,
		RetryWait:  defaultRetryWait,
		DeniedWait: defaultDeniedWait,
	}
}

// Acquire returns the full validated payload for a locator, or
// ErrUnavailable. It never returns partial bytes.
func (f *Fetcher) Acquire(ctx context.Context, locator string) ([]byte, error) {
	if isRemote(locator) {
		return f.download(ctx, locator)
	}
	return f.readLocal(locator)
}

func isRemote(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

func (f *Fetcher) readLocal(name string) ([]byte, error) {
	path := filepath.Join(f.LocalDir, filepath.Base(name))
	blob, err := os.ReadFile(path)
	if err != nil {
		log.Error().Str("path", path).Err(err).Msg("local ebook not readable")
		return nil, fmt.Errorf("%w: local file %s", ErrUnavailable, name)
	}
	log.Info().Str("path", path).Str("size", humanize.Bytes(uint64(len(blob)))).Msg("local ebook loaded")
	return blob, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	attempts := f.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var wait time.Duration
	for attempt := 1; attempt <= attempts; attempt++ {
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		metrics.DownloadAttemptsTotal.Inc()
		blob, retryIn, err := f.attempt(ctx, url, attempt, attempts)
		if err == nil {
			return blob, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		wait = retryIn
	}

	log.Error().Str("url", url).Int("attempts", attempts).Msg("download exhausted all attempts")
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, url)
}

// attempt performs one GET and validates the response. On failure it reports
// how long to wait before the next try.
func (f *Fetcher) attempt(ctx context.Context, url string, attempt, attempts int) ([]byte, time.Duration, error) {
	retryWait := f.RetryWait
	deniedWait := f.DeniedWait

	log.Info().Str("url", url).Int("attempt", attempt).Int("of", attempts).Msg("downloading ebook")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.HTTP.Do(req)
	if err != nil {
		log.Warn().Int("attempt", attempt).Err(err).Msg("download request failed")
		return nil, retryWait, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// validated below
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		log.Warn().Int("attempt", attempt).Int("status", resp.StatusCode).Msg("download access denied")
		return nil, deniedWait, fmt.Errorf("http status %d", resp.StatusCode)
	default:
		log.Warn().Int("attempt", attempt).Int("status", resp.StatusCode).Msg("unexpected download status")
		return nil, retryWait, fmt.Errorf("http status %d", resp.StatusCode)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "pdf") && !strings.Contains(ct, "application/octet-stream") {
		log.Warn().Int("attempt", attempt).Str("content_type", ct).Msg("response is not a PDF")
		return nil, retryWait, fmt.Errorf("unexpected content type %q", ct)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Int("attempt", attempt).Err(err).Msg("download body truncated")
		return nil, retryWait, err
	}

	minSize := f.MinSize
	if minSize == 0 {
		minSize = defaultMinSize
	}
	if len(blob) <= minSize {
		log.Warn().Int("attempt", attempt).Int("bytes", len(blob)).Msg("payload too small to be a valid ebook")
		return nil, retryWait, fmt.Errorf("payload too small (%d bytes)", len(blob))
	}

	log.Info().Str("url", url).Str("size", humanize.Bytes(uint64(len(blob)))).Msg("ebook downloaded")
	return blob, 0, nil
}
