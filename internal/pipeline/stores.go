// Package pipeline implements the per-video ingestion stages: discovery,
// caption extraction, and embedding. Stages are driven by queued jobs or
// explicit user-triggered runs and talk to the datastore and collaborators
// through the narrow interfaces below.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"thirdcoast.systems/reverb/internal/catalog"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/scrape"
	"thirdcoast.systems/reverb/internal/vector"
)

// PersonaStore is implemented by *db.DatabaseConnection.
type PersonaStore interface {
	GetPersona(ctx context.Context, id uuid.UUID) (*db.Persona, error)
	UpdatePersonaDiscovery(ctx context.Context, id uuid.UUID, token *string, status db.DiscoveryStatus, newVideos int) error
}

// VideoStore is implemented by *db.DatabaseConnection.
type VideoStore interface {
	InsertVideoIfNew(ctx context.Context, params db.InsertVideoParams) (*db.Video, bool, error)
	GetVideo(ctx context.Context, id uuid.UUID) (*db.Video, error)
	SetVideoRun(ctx context.Context, id uuid.UUID, runID string) error
	SetVideoCaptionsStatus(ctx context.Context, id uuid.UUID, status db.CaptionsStatus, errMsg *string) error
}

// CaptionStore is implemented by *db.DatabaseConnection.
type CaptionStore interface {
	CountCaptionChunks(ctx context.Context, videoID uuid.UUID) (int, error)
	DeleteCaptionChunks(ctx context.Context, videoID uuid.UUID) error
	InsertCaptionChunks(ctx context.Context, chunks []db.CaptionChunk) error
	ListUnembeddedChunks(ctx context.Context, personaID uuid.UUID, videoID *uuid.UUID, limit int) ([]db.CaptionChunk, error)
	CountUnembeddedChunks(ctx context.Context, personaID uuid.UUID, videoID *uuid.UUID) (int, error)
	MarkChunkEmbedded(ctx context.Context, id uuid.UUID) error
}

// JobEnqueuer is implemented by *db.DatabaseConnection.
type JobEnqueuer interface {
	EnqueueJob(ctx context.Context, params db.EnqueueJobParams) (uuid.UUID, error)
}

// CatalogLister is implemented by *catalog.Client.
type CatalogLister interface {
	ListVideos(ctx context.Context, channelID string, cursor *string) (*catalog.Page, error)
}

// TranscriptRunner is implemented by *scrape.Client.
type TranscriptRunner interface {
	StartRun(ctx context.Context, externalVideoID string) (string, error)
	FetchResults(ctx context.Context, runID string) (*scrape.RunResult, error)
}

// VectorUpserter is implemented by *vector.Client.
type VectorUpserter interface {
	Upsert(ctx context.Context, namespace string, vectors []vector.Vector) error
}

// Default retry budgets per job type. Extraction polls a long-running
// external run through the retry path, so it gets more attempts.
const (
	DiscoveryMaxRetries  = 3
	ExtractionMaxRetries = 8
	EmbeddingMaxRetries  = 5
)

// Namespace returns the vector-store namespace for a persona.
func Namespace(personaID uuid.UUID) string {
	return "persona-" + personaID.String()
}
