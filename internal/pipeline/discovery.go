package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/jobs"
)

// Discovery walks a persona's channel catalog one page per run, records new
// videos, and fans out extraction jobs. The continuation token on the persona
// row is the only cursor state; it is written last so a crash mid-run replays
// the same page instead of skipping it.
type Discovery struct {
	personas PersonaStore
	videos   VideoStore
	jobs     JobEnqueuer
	catalog  CatalogLister
	log      *slog.Logger
}

func NewDiscovery(personas PersonaStore, videos VideoStore, enqueuer JobEnqueuer, lister CatalogLister) *Discovery {
	return &Discovery{
		personas: personas,
		videos:   videos,
		jobs:     enqueuer,
		catalog:  lister,
		log:      slog.Default().With("component", "discovery"),
	}
}

// HandleJob decodes a discovery job and runs one page of the catalog walk.
func (d *Discovery) HandleJob(ctx context.Context, job *db.Job) (any, error) {
	decoded, err := jobs.DecodePayload(job.Type, job.Payload)
	if err != nil {
		return nil, jobs.Terminal(err)
	}
	payload := decoded.(jobs.DiscoveryPayload)
	return d.Run(ctx, payload.PersonaID, payload.StopAtPublished)
}

// Run fetches the page at the persona's current continuation token, inserts
// any videos not seen before, and enqueues an extraction job per new video.
// When the catalog reports more pages (and the stop boundary was not hit) the
// next page is chained as a fresh discovery job.
func (d *Discovery) Run(ctx context.Context, personaID uuid.UUID, stopAt *time.Time) (jobs.DiscoveryResult, error) {
	var result jobs.DiscoveryResult

	persona, err := d.personas.GetPersona(ctx, personaID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return result, jobs.Terminal(fmt.Errorf("persona %s not found", personaID))
		}
		return result, fmt.Errorf("load persona: %w", err)
	}

	page, err := d.catalog.ListVideos(ctx, persona.ChannelID, persona.ContinuationToken)
	if err != nil {
		return result, fmt.Errorf("list channel videos: %w", err)
	}

	reachedBoundary := false
	for _, item := range page.Items {
		if stopAt != nil && item.PublishedAt != nil && !item.PublishedAt.After(*stopAt) {
			reachedBoundary = true
			break
		}

		video, inserted, err := d.videos.InsertVideoIfNew(ctx, db.InsertVideoParams{
			PersonaID:       persona.ID,
			ExternalVideoID: item.ExternalID,
			Title:           item.Title,
			PublishedAt:     item.PublishedAt,
		})
		if err != nil {
			return result, fmt.Errorf("insert video %s: %w", item.ExternalID, err)
		}
		if !inserted {
			continue
		}
		result.NewVideos++

		if err := d.enqueueExtraction(ctx, video); err != nil {
			return result, err
		}
	}

	result.HasMore = page.HasMore && !reachedBoundary

	status := db.DiscoveryStatusCompleted
	if result.HasMore {
		status = db.DiscoveryStatusInProgress
	}
	if err := d.personas.UpdatePersonaDiscovery(ctx, persona.ID, page.NextCursor, status, result.NewVideos); err != nil {
		return result, fmt.Errorf("advance discovery cursor: %w", err)
	}

	if result.HasMore {
		if err := d.enqueueNextPage(ctx, persona, page.NextCursor, stopAt); err != nil {
			return result, err
		}
	}

	d.log.Info("discovery page processed",
		"persona_id", persona.ID,
		"new_videos", result.NewVideos,
		"has_more", result.HasMore)
	return result, nil
}

func (d *Discovery) enqueueExtraction(ctx context.Context, video *db.Video) error {
	payload, err := json.Marshal(jobs.ExtractionPayload{VideoID: video.ID})
	if err != nil {
		return fmt.Errorf("marshal extraction payload: %w", err)
	}

	_, err = d.jobs.EnqueueJob(ctx, db.EnqueueJobParams{
		Type:           db.JobTypeExtraction,
		Payload:        payload,
		IdempotencyKey: jobs.ExtractionKey(video.ExternalVideoID),
		MaxRetries:     ExtractionMaxRetries,
	})
	if errors.Is(err, db.ErrDuplicateIdempotencyKey) {
		d.log.Debug("extraction already enqueued", "video_id", video.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue extraction for %s: %w", video.ID, err)
	}
	return nil
}

func (d *Discovery) enqueueNextPage(ctx context.Context, persona *db.Persona, cursor *string, stopAt *time.Time) error {
	payload, err := json.Marshal(jobs.DiscoveryPayload{PersonaID: persona.ID, StopAtPublished: stopAt})
	if err != nil {
		return fmt.Errorf("marshal discovery payload: %w", err)
	}

	_, err = d.jobs.EnqueueJob(ctx, db.EnqueueJobParams{
		Type:           db.JobTypeDiscovery,
		Payload:        payload,
		IdempotencyKey: jobs.DiscoveryKey(persona.ChannelID, cursor),
		MaxRetries:     DiscoveryMaxRetries,
	})
	if errors.Is(err, db.ErrDuplicateIdempotencyKey) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue next discovery page: %w", err)
	}
	return nil
}
