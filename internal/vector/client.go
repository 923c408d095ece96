// Package vector is a thin client for the vector store. Vectors live in
// per-persona namespaces; upserts are idempotent by vector id, which is what
// makes embedding retries safe.
package vector

import (
	"bytes"
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
			Timeout: 15 * time.Second,
		},
	}
}

type Vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return fmt.Errorf("vector: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Upsert writes vectors into a namespace, overwriting any with the same id.
func (c *Client) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	payload := struct {
		Namespace string   `json:"namespace"`
		Vectors   []Vector `json:"vectors"`
	}{Namespace: namespace, Vectors: vectors}

	return c.post(ctx, "/api/vectors/upsert", payload, nil)
}

// Query returns the topK nearest vectors in a namespace with similarity
// scores, best first.
func (c *Client) Query(ctx context.Context, namespace string, values []float32, topK int) ([]Match, error) {
	payload := struct {
		Namespace string    `json:"namespace"`
		Vector    []float32 `json:"vector"`
		TopK      int       `json:"topK"`
	}{Namespace: namespace, Vector: values, TopK: topK}

	var out struct {
		Matches []Match `json:"matches"`
	}
	if err := c.post(ctx, "/api/vectors/query", payload, &out); err != nil {
		return nil, err
	}

	return out.Matches, nil
}
