package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// Fetcher retrieves the body at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Timeout bounds a single attempt. Zero means no per-attempt timeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// HTTPFetcher is a Fetcher doing GET requests with retries on connection
// errors and 5xx responses.
type HTTPFetcher struct {
	client *retryablehttp.Client
}

// NewHTTPFetcher builds a retrying client over a pooled transport.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.HTTPClient.Timeout = opts.Timeout
	client.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	// *slog.Logger satisfies retryablehttp.LeveledLogger.
	client.Logger = loggerOrDefault(opts.Logger).With("component", "fetch")

	return &HTTPFetcher{client: client}
}

// Fetch returns the response body. Any non-2xx final status is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	return body, nil
}
