package crs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultServiceURL serves PROJ.4 text at {base}/{code}.proj4.
const DefaultServiceURL = "https://epsg.io"

// HTTPSource fetches definitions from a remote projection registry.
type HTTPSource struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPSource creates a source with the given base URL and request timeout.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultServiceURL
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Definition implements DefinitionSource.
func (s *HTTPSource) Definition(ctx context.Context, code int) (string, error) {
	url := fmt.Sprintf("%s/%d.proj4", s.BaseURL, code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProjectionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: received non-OK HTTP status %d from %s", ErrProjectionUnavailable, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrProjectionUnavailable, url, err)
	}
	def := strings.TrimSpace(string(body))
	if !IsProj4(def) {
		return "", fmt.Errorf("%w: %s did not return a proj4 definition", ErrProjectionUnavailable, url)
	}
	return def, nil
}
