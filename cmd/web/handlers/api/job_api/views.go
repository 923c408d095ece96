package job_api

import (
	"encoding/json"
	"time"

	"github.com/dustin/go-humanize"
	"thirdcoast.systems/reverb/internal/db"
)

type jobView struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Progress     int             `json:"progress"`
	RetryCount   int             `json:"retryCount"`
	MaxRetries   int             `json:"maxRetries"`
	ScheduledAt  time.Time       `json:"scheduledAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	CreatedAgo   string          `json:"createdAgo"`
}

func toJobView(j *db.Job) jobView {
	return jobView{
		ID:           j.ID.String(),
		Type:         string(j.Type),
		Status:       string(j.Status),
		Progress:     j.Progress,
		RetryCount:   j.RetryCount,
		MaxRetries:   j.MaxRetries,
		ScheduledAt:  j.ScheduledAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		ErrorMessage: j.ErrorMessage,
		Result:       j.Result,
		CreatedAt:    j.CreatedAt,
		CreatedAgo:   humanize.Time(j.CreatedAt),
	}
}
