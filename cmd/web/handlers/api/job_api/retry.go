package job_api

import (
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/reverb/cmd/web/handlers/common"
	"thirdcoast.systems/reverb/internal/db"
)

// HandleRetry resets a terminally failed job for a fresh round of attempts.
func HandleRetry(dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		jobID, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}

		ctx := c.Request().Context()
		if _, err := dbc.GetJobByID(ctx, jobID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.ErrNotFound("job not found")
			}
			return common.ErrInternal("failed to load job")
		}

		if err := dbc.RetryJob(ctx, jobID); err != nil {
			slog.Warn("job retry rejected", "job_id", jobID, "error", err)
			return common.ErrBadRequest("job is not in a failed state")
		}

		job, err := dbc.GetJobByID(ctx, jobID)
		if err != nil {
			return common.ErrInternal("failed to load job")
		}
		return c.JSON(200, toJobView(job))
	}
}
