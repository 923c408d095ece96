package persona_api

import (
	"time"

	"thirdcoast.systems/reverb/internal/db"
)

type personaView struct {
	ID                string     `json:"id"`
	ChannelID         string     `json:"channelId"`
	DisplayName       string     `json:"displayName"`
	DiscoveryStatus   string     `json:"discoveryStatus"`
	ContinuationToken *string    `json:"continuationToken,omitempty"`
	VideoCount        int        `json:"videoCount"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func toPersonaView(p *db.Persona) personaView {
	return personaView{
		ID:                p.ID.String(),
		ChannelID:         p.ChannelID,
		DisplayName:       p.DisplayName,
		DiscoveryStatus:   string(p.DiscoveryStatus),
		ContinuationToken: p.ContinuationToken,
		VideoCount:        p.VideoCount,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}
