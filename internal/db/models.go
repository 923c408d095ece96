package db

import (
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeDiscovery  JobType = "discovery"
	JobTypeExtraction JobType = "extraction"
	JobTypeEmbedding  JobType = "embedding"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a unit of durable background work. A job is owned exclusively by
// the worker that claimed it while status is running.
type Job struct {
	ID             uuid.UUID
	Type           JobType
	Payload        []byte
	Status         JobStatus
	Progress       int
	RetryCount     int
	MaxRetries     int
	IdempotencyKey string
	ScheduledAt    time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	ErrorMessage   *string
	Result         []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DiscoveryStatus string

const (
	DiscoveryStatusPending    DiscoveryStatus = "pending"
	DiscoveryStatusInProgress DiscoveryStatus = "in_progress"
	DiscoveryStatusCompleted  DiscoveryStatus = "completed"
)

// Persona binds a creator channel to its ingested catalog and vector
// namespace. ContinuationToken is the single pagination cursor into the
// channel's catalog; only the discovery stage writes it.
type Persona struct {
	ID                uuid.UUID
	ChannelID         string
	DisplayName       string
	ContinuationToken *string
	DiscoveryStatus   DiscoveryStatus
	VideoCount        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CaptionsStatus string

const (
	CaptionsStatusPending    CaptionsStatus = "pending"
	CaptionsStatusProcessing CaptionsStatus = "processing"
	CaptionsStatusExtracted  CaptionsStatus = "extracted"
	CaptionsStatusCompleted  CaptionsStatus = "completed"
	CaptionsStatusFailed     CaptionsStatus = "failed"
)

type Video struct {
	ID                  uuid.UUID
	PersonaID           uuid.UUID
	ExternalVideoID     string
	Title               string
	PublishedAt         *time.Time
	CaptionsStatus      CaptionsStatus
	CaptionsError       *string
	ExternalRunID       *string
	ProcessingStartedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CaptionChunk is a timestamped transcript segment, the unit of embedding
// and retrieval. Embedded flips to true only after a confirmed vector upsert.
type CaptionChunk struct {
	ID        uuid.UUID
	VideoID   uuid.UUID
	PersonaID uuid.UUID
	StartTime float64
	Duration  float64
	Text      string
	Embedded  bool
	CreatedAt time.Time
}

type ChatSession struct {
	ID        uuid.UUID
	PersonaID uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// VideoReference is a validated claim that part of an answer is grounded in
// a specific video at a specific timestamp.
type VideoReference struct {
	VideoID    string  `json:"video_id"`
	Timestamp  float64 `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	Title      string  `json:"title"`
}

type ChatMessage struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	Role       MessageRole
	Content    string
	References []VideoReference
	CreatedAt  time.Time
}
