package persona_api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/reverb/cmd/web/handlers/common"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/jobs"
	"thirdcoast.systems/reverb/internal/pipeline"
)

type discoverRequest struct {
	StopAtPublished *time.Time `json:"stopAtPublished,omitempty"`
}

// HandleDiscover enqueues a user-triggered discovery run. The idempotency
// key carries a timestamp so an explicit re-run is never swallowed as a
// duplicate of an automated one.
func HandleDiscover(dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		personaID, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}

		var req discoverRequest
		if err := c.Bind(&req); err != nil {
			return common.ErrBadRequest("invalid request body")
		}

		ctx := c.Request().Context()
		persona, err := dbc.GetPersona(ctx, personaID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.ErrNotFound("persona not found")
			}
			return common.ErrInternal("failed to load persona")
		}

		payload, err := json.Marshal(jobs.DiscoveryPayload{PersonaID: persona.ID, StopAtPublished: req.StopAtPublished})
		if err != nil {
			return common.ErrInternal("failed to enqueue discovery")
		}
		jobID, err := dbc.EnqueueJob(ctx, db.EnqueueJobParams{
			Type:           db.JobTypeDiscovery,
			Payload:        payload,
			IdempotencyKey: jobs.ManualDiscoveryKey(persona.ChannelID, time.Now()),
			MaxRetries:     pipeline.DiscoveryMaxRetries,
		})
		if err != nil && !errors.Is(err, db.ErrDuplicateIdempotencyKey) {
			slog.Error("failed to enqueue discovery", "persona_id", persona.ID, "error", err)
			return common.ErrInternal("failed to enqueue discovery")
		}

		return c.JSON(202, map[string]string{"jobId": jobID.String()})
	}
}
