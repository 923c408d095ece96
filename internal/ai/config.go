package ai

import "fmt"

// Config carries the settings shared by the embedding and completion
// services.
type Config struct {
	// APIKey authenticates against the OpenAI-compatible endpoint.
	APIKey string

	// BaseURL overrides the API host; empty uses the provider default.
	BaseURL string

	// CompletionModel is the chat model used for synthesis and citation
	// extraction.
	CompletionModel string

	// EmbeddingModel is the model used for caption and query embeddings.
	EmbeddingModel string
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("ai: APIKey is required")
	}
	if c.CompletionModel == "" {
		return fmt.Errorf("ai: CompletionModel is required")
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("ai: EmbeddingModel is required")
	}
	return nil
}
