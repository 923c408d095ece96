package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/jobs"
)

// ErrRunPending signals that the scraping run exists but has not produced
// results yet. It is retryable: the job's backoff doubles as the poll
// interval for the external run.
var ErrRunPending = errors.New("transcript run still processing")

// Extraction drives a video through the caption state machine. It starts a
// scraping run (or resumes one recorded on the video row), polls for
// results, and replaces the video's caption chunks atomically with respect
// to re-runs.
type Extraction struct {
	videos   VideoStore
	captions CaptionStore
	jobs     JobEnqueuer
	scraper  TranscriptRunner
	log      *slog.Logger
}

func NewExtraction(videos VideoStore, captions CaptionStore, enqueuer JobEnqueuer, scraper TranscriptRunner) *Extraction {
	return &Extraction{
		videos:   videos,
		captions: captions,
		jobs:     enqueuer,
		scraper:  scraper,
		log:      slog.Default().With("component", "extraction"),
	}
}

func (e *Extraction) HandleJob(ctx context.Context, job *db.Job) (any, error) {
	decoded, err := jobs.DecodePayload(job.Type, job.Payload)
	if err != nil {
		return nil, jobs.Terminal(err)
	}
	payload := decoded.(jobs.ExtractionPayload)
	return e.Run(ctx, payload.VideoID)
}

// Run advances one video through extraction. Each invocation makes at most
// one pass: start the run if none is recorded, fetch results, and either
// store the chunks or report the run as still pending.
func (e *Extraction) Run(ctx context.Context, videoID uuid.UUID) (jobs.ExtractionResult, error) {
	var result jobs.ExtractionResult

	video, err := e.videos.GetVideo(ctx, videoID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return result, jobs.Terminal(fmt.Errorf("video %s not found", videoID))
		}
		return result, fmt.Errorf("load video: %w", err)
	}

	runID := video.ExternalRunID
	if runID == nil {
		id, err := e.scraper.StartRun(ctx, video.ExternalVideoID)
		if err != nil {
			return result, e.failVideo(ctx, video.ID, fmt.Errorf("start scraping run: %w", err))
		}
		if err := e.videos.SetVideoRun(ctx, video.ID, id); err != nil {
			return result, fmt.Errorf("record run id: %w", err)
		}
		runID = &id
		e.log.Info("scraping run started", "video_id", video.ID, "run_id", id)
	}

	run, err := e.scraper.FetchResults(ctx, *runID)
	if err != nil {
		return result, e.failVideo(ctx, video.ID, fmt.Errorf("fetch run results: %w", err))
	}
	if !run.Done {
		return result, ErrRunPending
	}

	if len(run.Segments) == 0 {
		err := fmt.Errorf("run %s produced no usable caption segments", *runID)
		return result, jobs.Terminal(e.failVideo(ctx, video.ID, err))
	}

	existing, err := e.captions.CountCaptionChunks(ctx, video.ID)
	if err != nil {
		return result, fmt.Errorf("count existing chunks: %w", err)
	}
	if existing == len(run.Segments) {
		// A previous run already stored this transcript. Leave the chunks
		// and their embedded flags untouched. A completed video stays
		// completed; anything else goes back to extracted and gets a drain
		// scheduled, covering a first attempt that died before enqueueing
		// one (the deterministic key makes re-enqueueing a safe duplicate).
		if video.CaptionsStatus != db.CaptionsStatusCompleted {
			if err := e.videos.SetVideoCaptionsStatus(ctx, video.ID, db.CaptionsStatusExtracted, nil); err != nil {
				return result, fmt.Errorf("mark video extracted: %w", err)
			}
			if err := e.enqueueEmbedding(ctx, video, existing); err != nil {
				return result, err
			}
		}
		e.log.Info("captions already stored", "video_id", video.ID, "chunks", existing)
		return jobs.ExtractionResult{Chunks: existing, AlreadyProcessed: true}, nil
	}

	if err := e.captions.DeleteCaptionChunks(ctx, video.ID); err != nil {
		return result, fmt.Errorf("clear stale chunks: %w", err)
	}

	chunks := make([]db.CaptionChunk, 0, len(run.Segments))
	for _, seg := range run.Segments {
		chunks = append(chunks, db.CaptionChunk{
			ID:        uuid.New(),
			VideoID:   video.ID,
			PersonaID: video.PersonaID,
			StartTime: seg.Start,
			Duration:  seg.Duration,
			Text:      seg.Text,
		})
	}
	if err := e.captions.InsertCaptionChunks(ctx, chunks); err != nil {
		return result, fmt.Errorf("insert chunks: %w", err)
	}
	if err := e.videos.SetVideoCaptionsStatus(ctx, video.ID, db.CaptionsStatusExtracted, nil); err != nil {
		return result, fmt.Errorf("mark video extracted: %w", err)
	}

	if err := e.enqueueEmbedding(ctx, video, len(chunks)); err != nil {
		return result, err
	}

	e.log.Info("captions extracted", "video_id", video.ID, "chunks", len(chunks))
	return jobs.ExtractionResult{Chunks: len(chunks)}, nil
}

// failVideo records the failure reason on the video row and passes the
// original error back for the job layer's retry accounting.
func (e *Extraction) failVideo(ctx context.Context, videoID uuid.UUID, cause error) error {
	msg := cause.Error()
	if err := e.videos.SetVideoCaptionsStatus(ctx, videoID, db.CaptionsStatusFailed, &msg); err != nil {
		e.log.Error("failed to record captions error", "video_id", videoID, "error", err)
	}
	return cause
}

func (e *Extraction) enqueueEmbedding(ctx context.Context, video *db.Video, chunkCount int) error {
	payload, err := json.Marshal(jobs.EmbeddingPayload{PersonaID: video.PersonaID, VideoID: &video.ID})
	if err != nil {
		return fmt.Errorf("marshal embedding payload: %w", err)
	}

	_, err = e.jobs.EnqueueJob(ctx, db.EnqueueJobParams{
		Type:           db.JobTypeEmbedding,
		Payload:        payload,
		IdempotencyKey: jobs.EmbeddingKey(video.ID.String(), chunkCount),
		MaxRetries:     EmbeddingMaxRetries,
	})
	if errors.Is(err, db.ErrDuplicateIdempotencyKey) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue embedding for %s: %w", video.ID, err)
	}
	return nil
}
