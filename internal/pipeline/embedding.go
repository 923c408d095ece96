package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"thirdcoast.systems/reverb/internal/ai"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/jobs"
	"thirdcoast.systems/reverb/internal/metrics"
	"thirdcoast.systems/reverb/internal/vector"
)

const (
	// EmbedPageSize bounds how many chunks one embedding run will touch.
	// Larger backlogs drain across chained jobs rather than one long run.
	EmbedPageSize = 100

	embedBatchSize = 10
)

// Embedding drains un-embedded caption chunks: embed the text, upsert the
// vector, then mark the chunk. The mark is written only after the upsert
// succeeds, so a crash re-embeds a chunk rather than losing it.
type Embedding struct {
	captions CaptionStore
	videos   VideoStore
	jobs     JobEnqueuer
	embedder ai.Embedder
	vectors  VectorUpserter
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewEmbedding(captions CaptionStore, videos VideoStore, enqueuer JobEnqueuer, embedder ai.Embedder, vectors VectorUpserter, m *metrics.Metrics) *Embedding {
	return &Embedding{
		captions: captions,
		videos:   videos,
		jobs:     enqueuer,
		embedder: embedder,
		vectors:  vectors,
		metrics:  m,
		log:      slog.Default().With("component", "embedding"),
	}
}

// HandleJob runs one page of the drain and chains a follow-up job while a
// full page was processed, so large backlogs make steady progress without
// monopolizing the worker.
func (s *Embedding) HandleJob(ctx context.Context, job *db.Job) (any, error) {
	decoded, err := jobs.DecodePayload(job.Type, job.Payload)
	if err != nil {
		return nil, jobs.Terminal(err)
	}
	payload := decoded.(jobs.EmbeddingPayload)

	result, err := s.EmbedBatch(ctx, payload.PersonaID, payload.VideoID)
	if err != nil {
		return nil, err
	}

	if result.Processed == EmbedPageSize && result.TotalCandidates > result.Processed {
		if err := s.enqueueNextRound(ctx, payload, result.TotalCandidates-result.Processed); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// EmbedBatch processes up to EmbedPageSize un-embedded chunks for the
// persona, optionally scoped to one video. Chunks are embedded in concurrent
// sub-batches. When a video scope drains completely the video is promoted to
// completed.
func (s *Embedding) EmbedBatch(ctx context.Context, personaID uuid.UUID, videoID *uuid.UUID) (jobs.EmbeddingResult, error) {
	var result jobs.EmbeddingResult

	total, err := s.captions.CountUnembeddedChunks(ctx, personaID, videoID)
	if err != nil {
		return result, fmt.Errorf("count unembedded chunks: %w", err)
	}
	result.TotalCandidates = total

	chunks, err := s.captions.ListUnembeddedChunks(ctx, personaID, videoID, EmbedPageSize)
	if err != nil {
		return result, fmt.Errorf("list unembedded chunks: %w", err)
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		errs := make([]error, len(batch))
		var wg sync.WaitGroup
		for i, chunk := range batch {
			wg.Add(1)
			go func(i int, chunk db.CaptionChunk) {
				defer wg.Done()
				errs[i] = s.embedChunk(ctx, chunk)
			}(i, chunk)
		}
		wg.Wait()

		for _, err := range errs {
			if err == nil {
				result.Processed++
			}
		}
		if err := errors.Join(errs...); err != nil {
			// Chunks that made it through are already marked, so the retry
			// resumes from the stragglers.
			return result, fmt.Errorf("embed batch: %w", err)
		}
	}

	if videoID != nil && len(chunks) > 0 {
		remaining, err := s.captions.CountUnembeddedChunks(ctx, personaID, videoID)
		if err != nil {
			return result, fmt.Errorf("count remaining chunks: %w", err)
		}
		if remaining == 0 {
			if err := s.videos.SetVideoCaptionsStatus(ctx, *videoID, db.CaptionsStatusCompleted, nil); err != nil {
				return result, fmt.Errorf("mark video completed: %w", err)
			}
			s.log.Info("video fully embedded", "video_id", *videoID)
		}
	}

	return result, nil
}

func (s *Embedding) embedChunk(ctx context.Context, chunk db.CaptionChunk) error {
	values, err := s.embedder.EmbedText(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
	}

	err = s.vectors.Upsert(ctx, Namespace(chunk.PersonaID), []vector.Vector{{
		ID:     chunk.ID.String(),
		Values: values,
		Metadata: map[string]string{
			"video_id":   chunk.VideoID.String(),
			"persona_id": chunk.PersonaID.String(),
			"start_time": strconv.FormatFloat(chunk.StartTime, 'f', 2, 64),
			"text":       chunk.Text,
		},
	}})
	if err != nil {
		return fmt.Errorf("upsert vector for chunk %s: %w", chunk.ID, err)
	}

	if err := s.captions.MarkChunkEmbedded(ctx, chunk.ID); err != nil {
		return fmt.Errorf("mark chunk %s embedded: %w", chunk.ID, err)
	}
	s.metrics.ChunksEmbedded.Inc()
	return nil
}

func (s *Embedding) enqueueNextRound(ctx context.Context, payload jobs.EmbeddingPayload, remaining int) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal embedding payload: %w", err)
	}

	scope := payload.PersonaID.String()
	if payload.VideoID != nil {
		scope = payload.VideoID.String()
	}
	_, err = s.jobs.EnqueueJob(ctx, db.EnqueueJobParams{
		Type:           db.JobTypeEmbedding,
		Payload:        raw,
		IdempotencyKey: jobs.EmbeddingKey(scope, remaining),
		MaxRetries:     EmbeddingMaxRetries,
	})
	if errors.Is(err, db.ErrDuplicateIdempotencyKey) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue embedding drain round: %w", err)
	}
	return nil
}
