// Package catalog is a thin client for the channel catalog service, which
// lists a creator's videos one stable-cursor page at a time.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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
			Timeout: 15 * time.Second,
		},
	}
}

type VideoInfo struct {
	ExternalID  string     `json:"id"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at"`
}

type Page struct {
	Items      []VideoInfo `json:"items"`
	NextCursor *string     `json:"nextCursor"`
	HasMore    bool        `json:"hasMore"`
}

// ListVideos fetches one page of a channel's catalog. A nil cursor starts
// from the beginning.
func (c *Client) ListVideos(ctx context.Context, channelID string, cursor *string) (*Page, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, fmt.Errorf("channelID is required")
	}

	u, err := url.Parse(c.baseURL + "/api/channels/" + url.PathEscape(channelID) + "/videos")
	if err != nil {
		return nil, err
	}

	q := u.Query()
	if cursor != nil && *cursor != "" {
		q.Set("cursor", *cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
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

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("catalog: channel %q not found", channelID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return nil, fmt.Errorf("catalog: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}

	return &page, nil
}
