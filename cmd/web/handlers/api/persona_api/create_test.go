package persona_api

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/reverb/internal/db"
)

func TestCreateResponseOmitsJobIDWhenAlreadyScheduled(t *testing.T) {
	persona := &db.Persona{ID: uuid.New(), ChannelID: "UC1", DisplayName: "Creator"}

	resp := createResponse(persona, uuid.Nil)
	require.NotContains(t, resp, "discoveryJobId")
	require.Equal(t, toPersonaView(persona), resp["persona"])

	jobID := uuid.New()
	resp = createResponse(persona, jobID)
	require.Equal(t, jobID.String(), resp["discoveryJobId"])
}
