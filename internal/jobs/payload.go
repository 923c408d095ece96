package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/reverb/internal/db"
)

// Job payloads and results form a tagged union resolved by the job's type
// column; each type has its own shape rather than a generic map.

type DiscoveryPayload struct {
	PersonaID uuid.UUID `json:"persona_id"`
	// StopAtPublished bounds the catalog walk: discovery stops once a page
	// yields a video published at or before this time.
	StopAtPublished *time.Time `json:"stop_at_published,omitempty"`
}

type ExtractionPayload struct {
	VideoID uuid.UUID `json:"video_id"`
}

type EmbeddingPayload struct {
	PersonaID uuid.UUID  `json:"persona_id"`
	VideoID   *uuid.UUID `json:"video_id,omitempty"`
}

type DiscoveryResult struct {
	NewVideos int  `json:"new_videos"`
	HasMore   bool `json:"has_more"`
}

type ExtractionResult struct {
	Chunks           int  `json:"chunks"`
	AlreadyProcessed bool `json:"already_processed,omitempty"`
}

type EmbeddingResult struct {
	Processed       int `json:"processed"`
	TotalCandidates int `json:"total_candidates"`
}

// DecodePayload unmarshals a job's raw payload into the typed variant for
// its job type.
func DecodePayload(jobType db.JobType, raw []byte) (any, error) {
	switch jobType {
	case db.JobTypeDiscovery:
		var p DiscoveryPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode discovery payload: %w", err)
		}
		return p, nil
	case db.JobTypeExtraction:
		var p ExtractionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode extraction payload: %w", err)
		}
		return p, nil
	case db.JobTypeEmbedding:
		var p EmbeddingPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode embedding payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
}

// Idempotency key builders. Deterministic keys make automated producers
// (discovery completion, extraction completion, drain rounds) safe to
// re-run; user-triggered jobs get a time component so an explicit re-run is
// never swallowed as a duplicate.

func DiscoveryKey(channelID string, cursor *string) string {
	c := "start"
	if cursor != nil && *cursor != "" {
		c = *cursor
	}
	return fmt.Sprintf("discovery:%s:%s", channelID, c)
}

func ManualDiscoveryKey(channelID string, at time.Time) string {
	return fmt.Sprintf("discovery:%s:manual:%d", channelID, at.Unix())
}

func ExtractionKey(externalVideoID string) string {
	return fmt.Sprintf("extraction:%s", externalVideoID)
}

func EmbeddingKey(externalVideoID string, remaining int) string {
	return fmt.Sprintf("embedding:%s:r%d", externalVideoID, remaining)
}
