// Package marketdata holds the HTTP clients for the quote and news providers.
// The clients perform one request per call; throttling, caching and outcome
// recording are applied around them by the application pipelines.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

var (
	// ErrSymbolNotFound is returned when a provider has no data for a symbol.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrAPIKeyMissing is returned by clients that need a key but have none.
	ErrAPIKeyMissing = errors.New("provider API key not configured")
)

// HTTPStatusError is a non-2xx provider response.
type HTTPStatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("%s returned %d %s", e.URL, e.Status, http.StatusText(e.Status))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// StatusCode reports the provider's response code.
func (e *HTTPStatusError) StatusCode() int { return e.Status }

// Is makes a 404 match ErrSymbolNotFound.
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrSymbolNotFound && e.Status == http.StatusNotFound
}

// getJSON performs a GET and decodes a 2xx body into out.
func getJSON(ctx context.Context, client *http.Client, rawURL, redactedURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "marketguard/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", redactedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPStatusError{
			Status: resp.StatusCode,
			URL:    redactedURL,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", redactedURL, err)
	}
	return nil
}
