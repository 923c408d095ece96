package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const videoColumns = `id, persona_id, external_video_id, title, published_at,
	captions_status, captions_error, external_run_id, processing_started_at,
	created_at, updated_at`

func scanVideo(row pgx.Row) (*Video, error) {
	var v Video
	err := row.Scan(
		&v.ID, &v.PersonaID, &v.ExternalVideoID, &v.Title, &v.PublishedAt,
		&v.CaptionsStatus, &v.CaptionsError, &v.ExternalRunID,
		&v.ProcessingStartedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type InsertVideoParams struct {
	PersonaID       uuid.UUID
	ExternalVideoID string
	Title           string
	PublishedAt     *time.Time
}

// InsertVideoIfNew upserts a discovered video. The unique external_video_id
// makes repeated discovery runs idempotent: the second return is false when
// the video already existed.
func (db *DatabaseConnection) InsertVideoIfNew(ctx context.Context, params InsertVideoParams) (*Video, bool, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO videos (id, persona_id, external_video_id, title, published_at, captions_status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		ON CONFLICT (external_video_id) DO NOTHING
		RETURNING `+videoColumns,
		uuid.New(), params.PersonaID, params.ExternalVideoID, params.Title, params.PublishedAt)

	v, err := scanVideo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := db.GetVideoByExternalID(ctx, params.ExternalVideoID)
		if err != nil {
			return nil, false, fmt.Errorf("insert video: load existing: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert video: %w", err)
	}
	return v, true, nil
}

func (db *DatabaseConnection) GetVideo(ctx context.Context, id uuid.UUID) (*Video, error) {
	row := db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	return scanVideo(row)
}

func (db *DatabaseConnection) GetVideoByExternalID(ctx context.Context, externalID string) (*Video, error) {
	row := db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE external_video_id = $1`, externalID)
	return scanVideo(row)
}

// SetVideoRun records the external transcript run a video is waiting on, so
// re-entrant extraction resumes the same run instead of starting another.
func (db *DatabaseConnection) SetVideoRun(ctx context.Context, id uuid.UUID, runID string) error {
	_, err := db.Exec(ctx, `
		UPDATE videos SET external_run_id = $2, captions_status = 'processing',
			processing_started_at = now(), updated_at = now()
		WHERE id = $1`, id, runID)
	if err != nil {
		return fmt.Errorf("set video run: %w", err)
	}
	return nil
}

// SetVideoCaptionsStatus transitions a video's captions state. errMsg is
// stored verbatim for failed transitions and cleared otherwise.
func (db *DatabaseConnection) SetVideoCaptionsStatus(ctx context.Context, id uuid.UUID, status CaptionsStatus, errMsg *string) error {
	_, err := db.Exec(ctx, `
		UPDATE videos SET captions_status = $2, captions_error = $3, updated_at = now()
		WHERE id = $1`, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("set video captions status: %w", err)
	}
	return nil
}

// GetVideoTitles resolves titles for a set of video ids in one query.
func (db *DatabaseConnection) GetVideoTitles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := db.Query(ctx, `SELECT id, title FROM videos WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get video titles: %w", err)
	}
	defer rows.Close()

	titles := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("get video titles: scan: %w", err)
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

// ListVideosByPersona returns a persona's videos, newest published first.
func (db *DatabaseConnection) ListVideosByPersona(ctx context.Context, personaID uuid.UUID) ([]*Video, error) {
	rows, err := db.Query(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE persona_id = $1
		ORDER BY published_at DESC NULLS LAST`, personaID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("list videos: scan: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
