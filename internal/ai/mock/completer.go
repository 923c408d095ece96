package mock

import (
	"context"
	"encoding/json"

	"thirdcoast.systems/reverb/internal/ai"
)

// MockCompleter is a test double for ai.Completer. StreamText is emitted in
// small chunks by default; JSONResponse is unmarshaled by CompleteJSON.
type MockCompleter struct {
	StreamCompletionFunc func(ctx context.Context, messages []ai.Message, fn ai.StreamFunc) (string, error)
	CompleteJSONFunc     func(ctx context.Context, messages []ai.Message, out any) error

	StreamText   string
	JSONResponse string

	// Per-method prompt recordings for assertions.
	LastStreamMessages []ai.Message
	LastJSONMessages   []ai.Message
}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{StreamText: "mock response"}
}

func (m *MockCompleter) StreamCompletion(ctx context.Context, messages []ai.Message, fn ai.StreamFunc) (string, error) {
	m.LastStreamMessages = messages

	if m.StreamCompletionFunc != nil {
		return m.StreamCompletionFunc(ctx, messages, fn)
	}

	// Emit the canned text word by word to exercise chunked consumption.
	emitted := 0
	for emitted < len(m.StreamText) {
		end := emitted + 8
		if end > len(m.StreamText) {
			end = len(m.StreamText)
		}
		if err := fn(ctx, []byte(m.StreamText[emitted:end])); err != nil {
			return m.StreamText[:end], err
		}
		emitted = end
	}
	return m.StreamText, nil
}

func (m *MockCompleter) CompleteJSON(ctx context.Context, messages []ai.Message, out any) error {
	m.LastJSONMessages = messages

	if m.CompleteJSONFunc != nil {
		return m.CompleteJSONFunc(ctx, messages, out)
	}
	if m.JSONResponse == "" {
		return json.Unmarshal([]byte("{}"), out)
	}
	return json.Unmarshal([]byte(m.JSONResponse), out)
}
