package chat_api

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/reverb/cmd/web/handlers/common"
	"thirdcoast.systems/reverb/internal/chat"
)

type messageRequest struct {
	PersonaID     uuid.UUID  `json:"personaId" validate:"required"`
	ChatSessionID *uuid.UUID `json:"chatSessionId,omitempty"`
	Content       string     `json:"content" validate:"required"`
}

// HandleMessage runs one chat turn over SSE. The session is created lazily
// on the first message of a conversation; disconnecting cancels the stream
// through the request context.
func HandleMessage(engine *chat.Engine) echo.HandlerFunc {
	validate := validator.New()

	return func(c echo.Context) error {
		var req messageRequest
		if err := c.Bind(&req); err != nil {
			return common.ErrBadRequest("invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return common.ErrBadRequest(err.Error())
		}

		stream := common.NewEventStream(c)
		// A failed turn already emitted its terminal error event; the
		// response status is committed, so there is nothing left to return.
		_ = engine.Turn(c.Request().Context(), req.PersonaID, req.ChatSessionID, req.Content, func(ev chat.Event) error {
			return stream.Send(ev)
		})
		return nil
	}
}
