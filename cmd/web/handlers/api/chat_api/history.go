package chat_api

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/reverb/cmd/web/handlers/common"
	"thirdcoast.systems/reverb/internal/db"
)

type messageView struct {
	ID         string              `json:"id"`
	Role       string              `json:"role"`
	Content    string              `json:"content"`
	References []db.VideoReference `json:"references,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// HandleHistory returns a session's messages in conversation order.
func HandleHistory(dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}

		ctx := c.Request().Context()
		session, err := dbc.GetChatSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.ErrNotFound("chat session not found")
			}
			return common.ErrInternal("failed to load chat session")
		}

		msgs, err := dbc.ListChatMessages(ctx, session.ID)
		if err != nil {
			return common.ErrInternal("failed to load messages")
		}

		views := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			views = append(views, messageView{
				ID:         m.ID.String(),
				Role:       string(m.Role),
				Content:    m.Content,
				References: m.References,
				CreatedAt:  m.CreatedAt,
			})
		}
		return c.JSON(200, map[string]any{
			"chatSessionId": session.ID.String(),
			"personaId":     session.PersonaID.String(),
			"title":         session.Title,
			"messages":      views,
		})
	}
}
