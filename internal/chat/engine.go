// Package chat implements the retrieval-synthesis engine behind the chat
// endpoint: embed the question, retrieve grounding excerpts from the
// persona's vector namespace, stream a completion, then extract and validate
// citations in a second pass.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"thirdcoast.systems/reverb/internal/ai"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/metrics"
	"thirdcoast.systems/reverb/internal/pipeline"
	"thirdcoast.systems/reverb/internal/vector"
)

// Event is one frame of the chat stream wire contract.
type Event struct {
	Type          string              `json:"type"`
	Content       string              `json:"content,omitempty"`
	References    []db.VideoReference `json:"references,omitempty"`
	MessageID     string              `json:"messageId,omitempty"`
	ChatSessionID string              `json:"chatSessionId,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// EmitFunc delivers one event to the client. Returning an error aborts the
// turn; the transport layer maps events onto SSE frames.
type EmitFunc func(Event) error

// SessionStore is implemented by *db.DatabaseConnection.
type SessionStore interface {
	CreateChatSession(ctx context.Context, personaID uuid.UUID, title string) (*db.ChatSession, error)
	GetChatSession(ctx context.Context, id uuid.UUID) (*db.ChatSession, error)
	InsertChatMessage(ctx context.Context, sessionID uuid.UUID, role db.MessageRole, content string, refs []db.VideoReference) (*db.ChatMessage, error)
	ListChatMessages(ctx context.Context, sessionID uuid.UUID) ([]*db.ChatMessage, error)
}

// PersonaStore is implemented by *db.DatabaseConnection.
type PersonaStore interface {
	GetPersona(ctx context.Context, id uuid.UUID) (*db.Persona, error)
}

// VideoStore is implemented by *db.DatabaseConnection.
type VideoStore interface {
	GetVideoTitles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// VectorQuerier is implemented by *vector.Client.
type VectorQuerier interface {
	Query(ctx context.Context, namespace string, values []float32, topK int) ([]vector.Match, error)
}

// historyLimit bounds how many prior messages are replayed into the prompt.
const historyLimit = 20

type Engine struct {
	sessions  SessionStore
	personas  PersonaStore
	videos    VideoStore
	vectors   VectorQuerier
	embedder  ai.Embedder
	completer ai.Completer
	metrics   *metrics.Metrics

	topK      int
	threshold float64

	fallbackTitle string
	log           *slog.Logger
}

func NewEngine(sessions SessionStore, personas PersonaStore, videos VideoStore, vectors VectorQuerier, provider ai.Provider, m *metrics.Metrics, topK int, threshold float64) *Engine {
	return &Engine{
		sessions:      sessions,
		personas:      personas,
		videos:        videos,
		vectors:       vectors,
		embedder:      provider.Embedder(),
		completer:     provider.Completer(),
		metrics:       m,
		topK:          topK,
		threshold:     threshold,
		fallbackTitle: cases.Title(language.English).String("untitled video"),
		log:           slog.Default().With("component", "chat"),
	}
}

// Turn runs one chat turn: persist the user message, retrieve context,
// stream the answer through emit, then attach validated references. A
// cancelled context stops emission and skips citation extraction; no partial
// assistant message is persisted.
func (e *Engine) Turn(ctx context.Context, personaID uuid.UUID, sessionID *uuid.UUID, content string, emit EmitFunc) error {
	persona, err := e.personas.GetPersona(ctx, personaID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return e.fail(emit, fmt.Errorf("persona %s not found", personaID))
		}
		return e.fail(emit, fmt.Errorf("load persona: %w", err))
	}

	session, err := e.resolveSession(ctx, persona.ID, sessionID, content)
	if err != nil {
		return e.fail(emit, err)
	}

	history, err := e.sessions.ListChatMessages(ctx, session.ID)
	if err != nil {
		return e.fail(emit, fmt.Errorf("load history: %w", err))
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	if _, err := e.sessions.InsertChatMessage(ctx, session.ID, db.RoleUser, content, nil); err != nil {
		return e.fail(emit, fmt.Errorf("persist user message: %w", err))
	}

	// Embedding or vector-search failure aborts the turn; there is nothing
	// useful to stream without retrieval.
	excerpts, err := e.retrieve(ctx, persona.ID, content)
	if err != nil {
		e.metrics.ChatTurns.WithLabelValues("error").Inc()
		return e.fail(emit, err)
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: buildSystemPrompt(persona.DisplayName, excerpts)})
	for _, m := range history {
		role := ai.RoleUser
		if m.Role == db.RoleAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: content})

	answer, err := e.completer.StreamCompletion(ctx, messages, func(ctx context.Context, chunk []byte) error {
		return emit(Event{Type: "content", Content: string(chunk)})
	})
	if ctx.Err() != nil {
		e.metrics.ChatTurns.WithLabelValues("cancelled").Inc()
		e.log.Info("chat turn cancelled mid-stream", "session_id", session.ID)
		return nil
	}
	if err != nil && answer == "" {
		e.metrics.ChatTurns.WithLabelValues("error").Inc()
		return e.fail(emit, fmt.Errorf("completion failed: %w", err))
	}

	refs := e.extractCitations(ctx, answer, excerpts)

	msg, err := e.sessions.InsertChatMessage(ctx, session.ID, db.RoleAssistant, answer, refs)
	if err != nil {
		e.metrics.ChatTurns.WithLabelValues("error").Inc()
		return e.fail(emit, fmt.Errorf("persist assistant message: %w", err))
	}

	if len(refs) > 0 {
		if err := emit(Event{Type: "references", References: refs}); err != nil {
			return err
		}
	}

	e.metrics.ChatTurns.WithLabelValues("completed").Inc()
	return emit(Event{
		Type:          "complete",
		MessageID:     msg.ID.String(),
		ChatSessionID: session.ID.String(),
	})
}

func (e *Engine) resolveSession(ctx context.Context, personaID uuid.UUID, sessionID *uuid.UUID, firstMessage string) (*db.ChatSession, error) {
	if sessionID == nil {
		return e.sessions.CreateChatSession(ctx, personaID, sessionTitle(firstMessage))
	}

	session, err := e.sessions.GetChatSession(ctx, *sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("chat session %s not found", *sessionID)
		}
		return nil, fmt.Errorf("load chat session: %w", err)
	}
	if session.PersonaID != personaID {
		return nil, fmt.Errorf("chat session %s does not belong to persona %s", *sessionID, personaID)
	}
	return session, nil
}

// retrieve embeds the question and returns the above-threshold excerpts from
// the persona's namespace, with titles resolved from the video table.
func (e *Engine) retrieve(ctx context.Context, personaID uuid.UUID, query string) ([]Excerpt, error) {
	values, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := e.vectors.Query(ctx, pipeline.Namespace(personaID), values, e.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var excerpts []Excerpt
	var videoIDs []uuid.UUID
	for _, m := range matches {
		if m.Score < e.threshold {
			continue
		}

		start, _ := strconv.ParseFloat(m.Metadata["start_time"], 64)
		ex := Excerpt{
			VideoID:   m.Metadata["video_id"],
			StartTime: start,
			Score:     m.Score,
			Text:      m.Metadata["text"],
		}
		if id, err := uuid.Parse(ex.VideoID); err == nil {
			videoIDs = append(videoIDs, id)
		}
		excerpts = append(excerpts, ex)
	}

	titles := map[uuid.UUID]string{}
	if len(videoIDs) > 0 {
		titles, err = e.videos.GetVideoTitles(ctx, videoIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve video titles: %w", err)
		}
	}
	for i := range excerpts {
		excerpts[i].Title = e.fallbackTitle
		if id, err := uuid.Parse(excerpts[i].VideoID); err == nil {
			if title, ok := titles[id]; ok && title != "" {
				excerpts[i].Title = title
			}
		}
	}
	return excerpts, nil
}

// extractCitations runs the second, non-streamed completion. Any failure
// here degrades to an answer without references.
func (e *Engine) extractCitations(ctx context.Context, answer string, excerpts []Excerpt) []db.VideoReference {
	if len(excerpts) == 0 || answer == "" {
		return nil
	}

	var resp citationResponse
	err := e.completer.CompleteJSON(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: "You extract citations from grounded answers. Respond only with JSON."},
		{Role: ai.RoleUser, Content: buildCitationPrompt(answer, excerpts)},
	}, &resp)
	if err != nil {
		e.log.Warn("citation extraction failed, answering without references", "error", err)
		return nil
	}

	return e.validateReferences(resp.References, excerpts, e.log)
}

func (e *Engine) fail(emit EmitFunc, err error) error {
	e.log.Error("chat turn failed", "error", err)
	if emitErr := emit(Event{Type: "error", Error: err.Error()}); emitErr != nil {
		return emitErr
	}
	return err
}

// sessionTitle derives a session title from the opening message, truncating
// on a rune boundary so multibyte input stays valid UTF-8.
func sessionTitle(message string) string {
	const max = 80
	runes := []rune(message)
	if len(runes) <= max {
		return message
	}
	return string(runes[:max-1]) + "…"
}
