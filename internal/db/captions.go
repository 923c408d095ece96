package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (db *DatabaseConnection) CountCaptionChunks(ctx context.Context, videoID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM caption_chunks WHERE video_id = $1`, videoID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count caption chunks: %w", err)
	}
	return count, nil
}

func (db *DatabaseConnection) DeleteCaptionChunks(ctx context.Context, videoID uuid.UUID) error {
	_, err := db.Exec(ctx, `DELETE FROM caption_chunks WHERE video_id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("delete caption chunks: %w", err)
	}
	return nil
}

// InsertCaptionChunks bulk-inserts a video's freshly extracted chunks with
// embedded=false.
func (db *DatabaseConnection) InsertCaptionChunks(ctx context.Context, chunks []CaptionChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(`
			INSERT INTO caption_chunks (id, video_id, persona_id, start_time, duration, text, embedded)
			VALUES ($1, $2, $3, $4, $5, $6, false)`,
			id, c.VideoID, c.PersonaID, c.StartTime, c.Duration, c.Text)
	}

	br := db.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert caption chunks: %w", err)
		}
	}
	return nil
}

// ListUnembeddedChunks returns up to limit chunks awaiting embedding for a
// persona, oldest first, optionally scoped to one video.
func (db *DatabaseConnection) ListUnembeddedChunks(ctx context.Context, personaID uuid.UUID, videoID *uuid.UUID, limit int) ([]CaptionChunk, error) {
	rows, err := db.Query(ctx, `
		SELECT id, video_id, persona_id, start_time, duration, text, embedded, created_at
		FROM caption_chunks
		WHERE persona_id = $1 AND embedded = false AND ($2::uuid IS NULL OR video_id = $2)
		ORDER BY created_at, start_time
		LIMIT $3`,
		personaID, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unembedded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []CaptionChunk
	for rows.Next() {
		var c CaptionChunk
		err := rows.Scan(&c.ID, &c.VideoID, &c.PersonaID, &c.StartTime, &c.Duration,
			&c.Text, &c.Embedded, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("list unembedded chunks: scan: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (db *DatabaseConnection) CountUnembeddedChunks(ctx context.Context, personaID uuid.UUID, videoID *uuid.UUID) (int, error) {
	var count int
	err := db.QueryRow(ctx, `
		SELECT COUNT(*) FROM caption_chunks
		WHERE persona_id = $1 AND embedded = false AND ($2::uuid IS NULL OR video_id = $2)`,
		personaID, videoID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unembedded chunks: %w", err)
	}
	return count, nil
}

// MarkChunkEmbedded flips a chunk's embedded flag after its vector upsert
// was confirmed.
func (db *DatabaseConnection) MarkChunkEmbedded(ctx context.Context, id uuid.UUID) error {
	_, err := db.Exec(ctx, `UPDATE caption_chunks SET embedded = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark chunk embedded: %w", err)
	}
	return nil
}
