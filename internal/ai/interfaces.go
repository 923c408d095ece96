// Package ai defines the capability interfaces for the embedding and
// completion collaborators. Implementations must be safe for concurrent use.
package ai

import "context"

// Message is one turn of a completion conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in one batch call.
	// The returned slice matches the input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// StreamFunc receives completion tokens as they are generated. Returning an
// error stops the stream.
type StreamFunc func(ctx context.Context, chunk []byte) error

// Completer generates chat completions.
type Completer interface {
	// StreamCompletion streams a completion token-by-token through fn and
	// returns the full accumulated text.
	StreamCompletion(ctx context.Context, messages []Message, fn StreamFunc) (string, error)

	// CompleteJSON runs a non-streamed completion in JSON mode and
	// unmarshals the response into out.
	CompleteJSON(ctx context.Context, messages []Message, out any) error
}

// Provider aggregates the AI services for initialization and lifecycle
// management.
type Provider interface {
	Embedder() Embedder
	Completer() Completer
	Close() error
}
