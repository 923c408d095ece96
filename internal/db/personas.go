package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const personaColumns = `id, channel_id, display_name, continuation_token,
	discovery_status, video_count, created_at, updated_at`

func scanPersona(row pgx.Row) (*Persona, error) {
	var p Persona
	err := row.Scan(
		&p.ID, &p.ChannelID, &p.DisplayName, &p.ContinuationToken,
		&p.DiscoveryStatus, &p.VideoCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DatabaseConnection) CreatePersona(ctx context.Context, channelID, displayName string) (*Persona, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO personas (id, channel_id, display_name, discovery_status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING `+personaColumns,
		uuid.New(), channelID, displayName)
	p, err := scanPersona(row)
	if err != nil {
		return nil, fmt.Errorf("create persona: %w", err)
	}
	return p, nil
}

func (db *DatabaseConnection) GetPersona(ctx context.Context, id uuid.UUID) (*Persona, error) {
	row := db.QueryRow(ctx, `SELECT `+personaColumns+` FROM personas WHERE id = $1`, id)
	return scanPersona(row)
}

func (db *DatabaseConnection) GetPersonaByChannel(ctx context.Context, channelID string) (*Persona, error) {
	row := db.QueryRow(ctx, `SELECT `+personaColumns+` FROM personas WHERE channel_id = $1`, channelID)
	return scanPersona(row)
}

// UpdatePersonaDiscovery advances the discovery cursor and status in one
// write, after a fully successful page fetch. newVideos is added to the
// persona's video count.
func (db *DatabaseConnection) UpdatePersonaDiscovery(ctx context.Context, id uuid.UUID, token *string, status DiscoveryStatus, newVideos int) error {
	_, err := db.Exec(ctx, `
		UPDATE personas SET continuation_token = $2, discovery_status = $3,
			video_count = video_count + $4, updated_at = now()
		WHERE id = $1`,
		id, token, status, newVideos)
	if err != nil {
		return fmt.Errorf("update persona discovery: %w", err)
	}
	return nil
}
