package job_api

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/reverb/cmd/web/handlers/common"
	"thirdcoast.systems/reverb/internal/db"
)

const defaultIndexLimit = 100

// HandleIndex returns the most recent jobs, newest first.
func HandleIndex(dbc *db.DatabaseConnection) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := defaultIndexLimit
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 500 {
				return common.ErrBadRequest("invalid limit")
			}
			limit = n
		}

		jobs, err := dbc.ListJobs(c.Request().Context(), limit)
		if err != nil {
			slog.Error("failed to list jobs", "error", err)
			return common.ErrInternal("failed to list jobs")
		}

		views := make([]jobView, 0, len(jobs))
		for _, j := range jobs {
			views = append(views, toJobView(j))
		}
		return c.JSON(200, map[string]any{"jobs": views})
	}
}
