package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/jobs"
	"thirdcoast.systems/reverb/internal/scrape"
)

func testVideo() *db.Video {
	return &db.Video{
		ID:              uuid.New(),
		PersonaID:       uuid.New(),
		ExternalVideoID: "yt-abc",
		Title:           "A Video",
		CaptionsStatus:  db.CaptionsStatusPending,
	}
}

func TestExtractionStartsRunThenWaits(t *testing.T) {
	video := testVideo()
	videos := newFakeVideoStore(video)
	scraper := &fakeScraper{
		runID:   "run-1",
		results: map[string]*scrape.RunResult{"run-1": {Done: false}},
	}
	e := NewExtraction(videos, &fakeCaptionStore{}, newFakeEnqueuer(), scraper)

	_, err := e.Run(context.Background(), video.ID)
	require.ErrorIs(t, err, ErrRunPending)
	require.False(t, jobs.IsTerminal(err))

	require.Equal(t, []string{"yt-abc"}, scraper.started)
	require.Equal(t, "run-1", *video.ExternalRunID)
	require.Equal(t, db.CaptionsStatusProcessing, video.CaptionsStatus)
}

func TestExtractionResumesRecordedRun(t *testing.T) {
	video := testVideo()
	video.ExternalRunID = strPtr("run-9")
	video.CaptionsStatus = db.CaptionsStatusProcessing
	videos := newFakeVideoStore(video)
	captions := &fakeCaptionStore{}
	enqueuer := newFakeEnqueuer()
	scraper := &fakeScraper{results: map[string]*scrape.RunResult{
		"run-9": {Done: true, Segments: []scrape.Segment{
			{Start: 0, Duration: 5, Text: "hello"},
			{Start: 5, Duration: 5, Text: "world"},
		}},
	}}
	e := NewExtraction(videos, captions, enqueuer, scraper)

	result, err := e.Run(context.Background(), video.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Chunks)
	require.False(t, result.AlreadyProcessed)

	// No second StartRun for an in-flight run.
	require.Empty(t, scraper.started)
	require.Len(t, captions.chunks, 2)
	require.Equal(t, video.PersonaID, captions.chunks[0].PersonaID)
	require.Equal(t, db.CaptionsStatusExtracted, video.CaptionsStatus)

	embeds := enqueuer.byType(db.JobTypeEmbedding)
	require.Len(t, embeds, 1)
	require.Equal(t, jobs.EmbeddingKey(video.ID.String(), 2), embeds[0].IdempotencyKey)
}

func TestExtractionEqualCountKeepsChunks(t *testing.T) {
	video := testVideo()
	video.ExternalRunID = strPtr("run-9")
	videos := newFakeVideoStore(video)

	existing := []db.CaptionChunk{
		{ID: uuid.New(), VideoID: video.ID, PersonaID: video.PersonaID, Text: "hello", Embedded: true},
		{ID: uuid.New(), VideoID: video.ID, PersonaID: video.PersonaID, Text: "world", Embedded: true},
	}
	captions := &fakeCaptionStore{chunks: append([]db.CaptionChunk(nil), existing...)}
	enqueuer := newFakeEnqueuer()
	scraper := &fakeScraper{results: map[string]*scrape.RunResult{
		"run-9": {Done: true, Segments: []scrape.Segment{
			{Text: "hello"}, {Text: "world"},
		}},
	}}
	e := NewExtraction(videos, captions, enqueuer, scraper)

	result, err := e.Run(context.Background(), video.ID)
	require.NoError(t, err)
	require.True(t, result.AlreadyProcessed)
	require.Equal(t, 2, result.Chunks)

	// The stored chunks, including their embedded flags, are untouched, but
	// a drain is still scheduled so the video cannot stall at extracted.
	require.Equal(t, existing, captions.chunks)
	require.Equal(t, db.CaptionsStatusExtracted, video.CaptionsStatus)

	embeds := enqueuer.byType(db.JobTypeEmbedding)
	require.Len(t, embeds, 1)
	require.Equal(t, jobs.EmbeddingKey(video.ID.String(), 2), embeds[0].IdempotencyKey)
}

func TestExtractionRetrySchedulesEmbeddingAfterEnqueueFailure(t *testing.T) {
	video := testVideo()
	video.ExternalRunID = strPtr("run-9")
	videos := newFakeVideoStore(video)
	captions := &fakeCaptionStore{}
	enqueuer := newFakeEnqueuer()
	enqueuer.failNext = errors.New("enqueue timed out")
	scraper := &fakeScraper{results: map[string]*scrape.RunResult{
		"run-9": {Done: true, Segments: []scrape.Segment{
			{Start: 0, Duration: 5, Text: "hello"},
			{Start: 5, Duration: 5, Text: "world"},
		}},
	}}
	e := NewExtraction(videos, captions, enqueuer, scraper)

	// First attempt inserts the chunks but dies enqueueing the drain.
	_, err := e.Run(context.Background(), video.ID)
	require.Error(t, err)
	require.Len(t, captions.chunks, 2)
	require.Empty(t, enqueuer.byType(db.JobTypeEmbedding))

	// The retry takes the equal-count path and still schedules the drain.
	result, err := e.Run(context.Background(), video.ID)
	require.NoError(t, err)
	require.True(t, result.AlreadyProcessed)

	embeds := enqueuer.byType(db.JobTypeEmbedding)
	require.Len(t, embeds, 1)
	require.Equal(t, jobs.EmbeddingKey(video.ID.String(), 2), embeds[0].IdempotencyKey)
}

func TestExtractionRerunLeavesCompletedVideoAlone(t *testing.T) {
	video := testVideo()
	video.ExternalRunID = strPtr("run-9")
	video.CaptionsStatus = db.CaptionsStatusCompleted
	videos := newFakeVideoStore(video)
	captions := &fakeCaptionStore{chunks: []db.CaptionChunk{
		{ID: uuid.New(), VideoID: video.ID, PersonaID: video.PersonaID, Text: "hello", Embedded: true},
	}}
	enqueuer := newFakeEnqueuer()
	scraper := &fakeScraper{results: map[string]*scrape.RunResult{
		"run-9": {Done: true, Segments: []scrape.Segment{{Text: "hello"}}},
	}}
	e := NewExtraction(videos, captions, enqueuer, scraper)

	result, err := e.Run(context.Background(), video.ID)
	require.NoError(t, err)
	require.True(t, result.AlreadyProcessed)

	// Completed is the embedding stage's transition; a re-run must not
	// regress it or schedule further work.
	require.Equal(t, db.CaptionsStatusCompleted, video.CaptionsStatus)
	require.Empty(t, enqueuer.jobs)
}

func TestExtractionZeroSegmentsFailsTerminally(t *testing.T) {
	video := testVideo()
	video.ExternalRunID = strPtr("run-9")
	videos := newFakeVideoStore(video)
	scraper := &fakeScraper{results: map[string]*scrape.RunResult{
		"run-9": {Done: true},
	}}
	e := NewExtraction(videos, &fakeCaptionStore{}, newFakeEnqueuer(), scraper)

	_, err := e.Run(context.Background(), video.ID)
	require.Error(t, err)
	require.True(t, jobs.IsTerminal(err))
	require.Equal(t, db.CaptionsStatusFailed, video.CaptionsStatus)
	require.NotNil(t, video.CaptionsError)
}

func TestExtractionStartFailureRecordsReason(t *testing.T) {
	video := testVideo()
	videos := newFakeVideoStore(video)
	scraper := &fakeScraper{startErr: errors.New("service unavailable")}
	e := NewExtraction(videos, &fakeCaptionStore{}, newFakeEnqueuer(), scraper)

	_, err := e.Run(context.Background(), video.ID)
	require.Error(t, err)
	require.False(t, jobs.IsTerminal(err))
	require.Equal(t, db.CaptionsStatusFailed, video.CaptionsStatus)
	require.Contains(t, *video.CaptionsError, "service unavailable")
}

func TestExtractionUnknownVideoIsTerminal(t *testing.T) {
	e := NewExtraction(newFakeVideoStore(), &fakeCaptionStore{}, newFakeEnqueuer(), &fakeScraper{})

	_, err := e.Run(context.Background(), uuid.New())
	require.Error(t, err)
	require.True(t, jobs.IsTerminal(err))
}
