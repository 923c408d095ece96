package persona_api

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/reverb/cmd/web/handlers/common"
	"thirdcoast.systems/reverb/internal/db"
)

// HandleShow returns the persona plus a pipeline progress summary: videos by
// caption status and the remaining un-embedded chunk count.
func HandleShow(dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		personaID, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}

		ctx := c.Request().Context()
		persona, err := dbc.GetPersona(ctx, personaID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.ErrNotFound("persona not found")
			}
			return common.ErrInternal("failed to load persona")
		}

		videos, err := dbc.ListVideosByPersona(ctx, persona.ID)
		if err != nil {
			return common.ErrInternal("failed to load videos")
		}
		byStatus := map[string]int{}
		for _, v := range videos {
			byStatus[string(v.CaptionsStatus)]++
		}

		unembedded, err := dbc.CountUnembeddedChunks(ctx, persona.ID, nil)
		if err != nil {
			return common.ErrInternal("failed to count chunks")
		}

		return c.JSON(200, map[string]any{
			"persona":          toPersonaView(persona),
			"videosByStatus":   byStatus,
			"unembeddedChunks": unembedded,
		})
	}
}
