package persona_api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/reverb/cmd/web/handlers/common"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/jobs"
	"thirdcoast.systems/reverb/internal/pipeline"
)

type createRequest struct {
	ChannelID   string `json:"channelId" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
	// StopAtPublished bounds the initial backfill to videos published after
	// this time.
	StopAtPublished *time.Time `json:"stopAtPublished,omitempty"`
}

// HandleCreate binds a persona to a channel and enqueues the first discovery
// job. A channel can only be bound once.
func HandleCreate(dbc *db.DatabaseConnection) echo.HandlerFunc {
	validate := validator.New()

	return func(c echo.Context) error {
		var req createRequest
		if err := c.Bind(&req); err != nil {
			return common.ErrBadRequest("invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return common.ErrBadRequest(err.Error())
		}

		ctx := c.Request().Context()
		if _, err := dbc.GetPersonaByChannel(ctx, req.ChannelID); err == nil {
			return common.ErrConflict("channel already has a persona")
		}

		persona, err := dbc.CreatePersona(ctx, req.ChannelID, req.DisplayName)
		if err != nil {
			slog.Error("failed to create persona", "channel_id", req.ChannelID, "error", err)
			return common.ErrInternal("failed to create persona")
		}

		payload, err := json.Marshal(jobs.DiscoveryPayload{PersonaID: persona.ID, StopAtPublished: req.StopAtPublished})
		if err != nil {
			return common.ErrInternal("failed to create persona")
		}
		jobID, err := dbc.EnqueueJob(ctx, db.EnqueueJobParams{
			Type:           db.JobTypeDiscovery,
			Payload:        payload,
			IdempotencyKey: jobs.DiscoveryKey(persona.ChannelID, nil),
			MaxRetries:     pipeline.DiscoveryMaxRetries,
		})
		if err != nil && !errors.Is(err, db.ErrDuplicateIdempotencyKey) {
			slog.Error("failed to enqueue discovery", "persona_id", persona.ID, "error", err)
			return common.ErrInternal("failed to enqueue discovery")
		}

		return c.JSON(201, createResponse(persona, jobID))
	}
}

// createResponse reports the new discovery job's id. A duplicate idempotency
// key means the backfill was already scheduled and there is no fresh job id
// to report.
func createResponse(persona *db.Persona, discoveryJobID uuid.UUID) map[string]any {
	resp := map[string]any{"persona": toPersonaView(persona)}
	if discoveryJobID != uuid.Nil {
		resp["discoveryJobId"] = discoveryJobID.String()
	}
	return resp
}
