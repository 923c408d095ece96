package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertSendsNamespaceAndVectors(t *testing.T) {
	var got struct {
		Namespace string   `json:"namespace"`
		Vectors   []Vector `json:"vectors"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/vectors/upsert", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key")
	err := client.Upsert(context.Background(), "persona-1", []Vector{
		{ID: "c1", Values: []float32{0.1, 0.2}, Metadata: map[string]string{"text": "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, "persona-1", got.Namespace)
	require.Len(t, got.Vectors, 1)
	require.Equal(t, "hello", got.Vectors[0].Metadata["text"])
}

func TestUpsertEmptySliceIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	require.NoError(t, client.Upsert(context.Background(), "persona-1", nil))
}

func TestQueryReturnsMatchesBestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/vectors/query", r.URL.Path)

		var body struct {
			Namespace string    `json:"namespace"`
			Vector    []float32 `json:"vector"`
			TopK      int       `json:"topK"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 10, body.TopK)
		require.Len(t, body.Vector, 3)

		w.Write([]byte(`{"matches": [
			{"id": "a", "score": 0.95, "metadata": {"text": "alpha"}},
			{"id": "b", "score": 0.40, "metadata": {"text": "beta"}}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	matches, err := client.Query(context.Background(), "persona-1", []float32{1, 2, 3}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, 0.95, matches[0].Score)
	require.Equal(t, "beta", matches[1].Metadata["text"])
}

func TestQueryErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "namespace quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Query(context.Background(), "persona-1", []float32{1}, 5)
	require.ErrorContains(t, err, "quota")
}
