// Package openai implements the ai interfaces against OpenAI-compatible
// APIs via langchaingo.
package openai

import (
	"log/slog"

	"thirdcoast.systems/reverb/internal/ai"
)

// Provider implements ai.Provider using OpenAI-compatible services.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	completer *Completer
	logger    *slog.Logger
}

// NewProvider creates the provider and its services. Returns the ai.Provider
// interface to keep callers decoupled from this implementation.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	completer, err := newCompleter(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		embedder:  embedder,
		completer: completer,
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

func (p *Provider) Embedder() ai.Embedder { return p.embedder }

func (p *Provider) Completer() ai.Completer { return p.completer }

// Close releases provider resources. Currently a no-op as the underlying
// clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
