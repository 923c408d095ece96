// Package mock provides test doubles for the ai interfaces with
// deterministic default behavior and function-field overrides.
package mock

import "thirdcoast.systems/reverb/internal/ai"

// MockProvider bundles the mock services behind ai.Provider.
type MockProvider struct {
	MockEmbedder  *MockEmbedder
	MockCompleter *MockCompleter
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		MockEmbedder:  NewMockEmbedder(),
		MockCompleter: NewMockCompleter(),
	}
}

func (p *MockProvider) Embedder() ai.Embedder   { return p.MockEmbedder }
func (p *MockProvider) Completer() ai.Completer { return p.MockCompleter }
func (p *MockProvider) Close() error            { return nil }
