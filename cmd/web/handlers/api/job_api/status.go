package job_api

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/reverb/cmd/web/handlers/common"
	"thirdcoast.systems/reverb/internal/db"
)

// HandleStatus returns one job's full state, including retry accounting and
// its typed result once completed.
func HandleStatus(dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		jobID, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}

		job, err := dbc.GetJobByID(c.Request().Context(), jobID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.ErrNotFound("job not found")
			}
			return common.ErrInternal("failed to load job")
		}
		return c.JSON(200, toJobView(job))
	}
}
