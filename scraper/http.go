package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"kijiji-watcher/utils"
)

// maxBodyBytes caps a single page download.
const maxBodyBytes = 8 << 20

// ErrBodyTooLarge is returned when a page exceeds the download cap.
var ErrBodyTooLarge = errors.New("response body exceeds size cap")

// HTTPError is returned for non-200 responses.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// HTTPFetcher fetches server-rendered pages without a browser.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	maxBody int64
	logger  *utils.Logger
}

// NewHTTPFetcher creates an HTTPFetcher with the given per-request timeout and
// minimum gap between requests.
func NewHTTPFetcher(timeout, minInterval time.Duration, logger *utils.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: newLimiter(minInterval),
		maxBody: maxBodyBytes,
		logger:  logger,
	}
}

// Fetch GETs pageURL and returns the body. Non-200 responses come back as
// *HTTPError; bodies over the size cap as ErrBodyTooLarge.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("http: rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("http: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("http: read %s: %w", pageURL, err)
	}
	if int64(len(body)) > f.maxBody {
		f.logger.Warn("[http] %s is larger than %d bytes, giving up on it", pageURL, f.maxBody)
		return "", fmt.Errorf("http: %s: %w", pageURL, ErrBodyTooLarge)
	}

	f.logger.Debug("[http] Fetched %s (%d bytes)", pageURL, len(body))
	return string(body), nil
}

// Close is a no-op; it lets HTTPFetcher stand in wherever a BrowserFetcher is closed.
func (f *HTTPFetcher) Close() error {
	return nil
}
