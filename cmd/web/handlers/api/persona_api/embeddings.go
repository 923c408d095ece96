package persona_api

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/reverb/cmd/web/handlers/common"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/pipeline"
)

type embedRequest struct {
	VideoID *uuid.UUID `json:"videoId,omitempty"`
}

// HandleEmbeddings runs one bounded embedding drain call synchronously.
// Callers loop while processed equals the page size to drain a backlog.
func HandleEmbeddings(dbc *db.DatabaseConnection, stage *pipeline.Embedding) echo.HandlerFunc {
	return func(c echo.Context) error {
		personaID, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}

		var req embedRequest
		if err := c.Bind(&req); err != nil {
			return common.ErrBadRequest("invalid request body")
		}

		ctx := c.Request().Context()
		if _, err := dbc.GetPersona(ctx, personaID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.ErrNotFound("persona not found")
			}
			return common.ErrInternal("failed to load persona")
		}

		result, err := stage.EmbedBatch(ctx, personaID, req.VideoID)
		if err != nil {
			slog.Error("embedding drain failed", "persona_id", personaID, "error", err)
			return common.ErrInternal("embedding drain failed")
		}

		return c.JSON(200, map[string]int{
			"processed":       result.Processed,
			"totalCandidates": result.TotalCandidates,
		})
	}
}
