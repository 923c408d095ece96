package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

func (db *DatabaseConnection) CreateChatSession(ctx context.Context, personaID uuid.UUID, title string) (*ChatSession, error) {
	var s ChatSession
	err := db.QueryRow(ctx, `
		INSERT INTO chat_sessions (id, persona_id, title)
		VALUES ($1, $2, $3)
		RETURNING id, persona_id, title, created_at, updated_at`,
		uuid.New(), personaID, title,
	).Scan(&s.ID, &s.PersonaID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}
	return &s, nil
}

func (db *DatabaseConnection) GetChatSession(ctx context.Context, id uuid.UUID) (*ChatSession, error) {
	var s ChatSession
	err := db.QueryRow(ctx, `
		SELECT id, persona_id, title, created_at, updated_at
		FROM chat_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.PersonaID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DatabaseConnection) InsertChatMessage(ctx context.Context, sessionID uuid.UUID, role MessageRole, content string, refs []VideoReference) (*ChatMessage, error) {
	var refsJSON []byte
	if refs != nil {
		var err error
		refsJSON, err = json.Marshal(refs)
		if err != nil {
			return nil, fmt.Errorf("insert chat message: marshal refs: %w", err)
		}
	}

	msg := ChatMessage{SessionID: sessionID, Role: role, Content: content, References: refs}
	err := db.QueryRow(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, refs)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		uuid.New(), sessionID, role, content, refsJSON,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	return &msg, nil
}

// ListChatMessages returns a session's messages in conversation order.
func (db *DatabaseConnection) ListChatMessages(ctx context.Context, sessionID uuid.UUID) ([]*ChatMessage, error) {
	rows, err := db.Query(ctx, `
		SELECT id, session_id, role, content, refs, created_at
		FROM chat_messages WHERE session_id = $1
		ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		var refsJSON []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &refsJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("list chat messages: scan: %w", err)
		}
		if len(refsJSON) > 0 {
			if err := json.Unmarshal(refsJSON, &m.References); err != nil {
				return nil, fmt.Errorf("list chat messages: unmarshal refs: %w", err)
			}
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
