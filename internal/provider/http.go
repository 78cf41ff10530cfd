package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// workBatch is the JSON body an upstream work endpoint returns.
type workBatch struct {
	Units float64 `json:"units"`
}

// HTTPFetcher pulls work batches from an upstream HTTP endpoint. The
// endpoint answers GET with {"units": <n>}; zero units means the
// upstream currently has nothing to hand out.
type HTTPFetcher struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPFetcher creates a fetcher for the given upstream URL.
func NewHTTPFetcher(url string, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger.With("component", "http-fetcher"),
	}
}

// Fetch requests one work batch from the upstream.
func (f *HTTPFetcher) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch %s: unexpected status %d", f.url, resp.StatusCode)
	}

	var batch workBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return 0, fmt.Errorf("decode work batch: %w", err)
	}
	if batch.Units < 0 {
		return 0, fmt.Errorf("upstream returned negative units %v", batch.Units)
	}
	return batch.Units, nil
}
