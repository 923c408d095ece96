// Package scrape is a thin client for the caption scraping service, which
// runs long-lived scrape-and-transcribe operations addressed by run id.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Segment is one timestamped transcript span as returned by the service.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// RunResult carries a finished run's segments. Done is false while the run
// is still processing; callers poll again later.
type RunResult struct {
	Done     bool      `json:"done"`
	Segments []Segment `json:"segments"`
}

// StartRun begins a transcript run for an external video id.
func (c *Client) StartRun(ctx context.Context, externalVideoID string) (string, error) {
	externalVideoID = strings.TrimSpace(externalVideoID)
	if externalVideoID == "" {
		return "", fmt.Errorf("externalVideoID is required")
	}

	body := strings.NewReader(fmt.Sprintf(`{"video_id":%q}`, externalVideoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/runs", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return "", fmt.Errorf("scrape: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.RunID == "" {
		return "", fmt.Errorf("scrape: empty run id in response")
	}

	return out.RunID, nil
}

// FetchResults returns a run's transcript segments, or Done=false while the
// run is still in flight.
func (c *Client) FetchResults(ctx context.Context, runID string) (*RunResult, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("runID is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/runs/"+runID, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		// Still processing.
		return &RunResult{Done: false}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return nil, fmt.Errorf("scrape: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out RunResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	out.Done = true

	return &out, nil
}
