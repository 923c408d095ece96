package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"thirdcoast.systems/reverb/internal/ai"
)

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
type Completer struct {
	client llms.Model
	logger *slog.Logger
}

func newCompleter(config *ai.Config) (*Completer, error) {
	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.CompletionModel),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	return &Completer{
		client: client,
		logger: slog.Default().With("component", "openai-completer"),
	}, nil
}

// NewCompleter creates a standalone completer from the configuration.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newCompleter(config)
}

func toContent(messages []ai.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case ai.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case ai.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return content
}

// StreamCompletion streams a completion through fn and returns the
// accumulated text. Context cancellation stops token generation.
func (c *Completer) StreamCompletion(ctx context.Context, messages []ai.Message, fn ai.StreamFunc) (string, error) {
	var full strings.Builder

	resp, err := c.client.GenerateContent(ctx, toContent(messages),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			full.Write(chunk)
			return fn(ctx, chunk)
		}),
	)
	if err != nil {
		c.logger.Error("streaming completion failed", "err", err)
		return full.String(), err
	}

	// Some providers deliver the final text only in the response.
	if full.Len() == 0 && len(resp.Choices) > 0 {
		text := resp.Choices[0].Content
		if err := fn(ctx, []byte(text)); err != nil {
			return text, err
		}
		return text, nil
	}

	return full.String(), nil
}

// CompleteJSON runs a JSON-mode completion and unmarshals it into out,
// tolerating markdown code fences around the payload.
func (c *Completer) CompleteJSON(ctx context.Context, messages []ai.Message, out any) error {
	resp, err := c.client.GenerateContent(ctx, toContent(messages),
		llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		c.logger.Error("json completion failed", "err", err)
		return err
	}
	if len(resp.Choices) < 1 {
		return fmt.Errorf("openai: no choices in response")
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(text), out); err != nil {
		c.logger.Warn("error parsing json completion", "response", text, "err", err)
		return fmt.Errorf("openai: parse json completion: %w", err)
	}
	return nil
}
