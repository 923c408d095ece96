package chat

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestClosestStart(t *testing.T) {
	starts := []float64{0, 15, 45, 120}
	require.Equal(t, 0.0, closestStart(starts, 3))
	require.Equal(t, 15.0, closestStart(starts, 29))
	require.Equal(t, 45.0, closestStart(starts, 31))
	require.Equal(t, 120.0, closestStart(starts, 9999))
}

func TestValidateReferencesCapsAtFive(t *testing.T) {
	engine := &Engine{}

	var excerpts []Excerpt
	var raw []rawReference
	for i := 0; i < 8; i++ {
		id := uuid.NewString()
		excerpts = append(excerpts, Excerpt{VideoID: id, Title: fmt.Sprintf("Video %d", i)})
		raw = append(raw, rawReference{VideoID: id, Confidence: float64(i) / 10})
	}

	refs := engine.validateReferences(raw, excerpts, slog.Default())
	require.Len(t, refs, maxReferences)

	// Highest-confidence references survive the cut.
	require.Equal(t, 0.7, refs[0].Confidence)
	require.Equal(t, 0.3, refs[len(refs)-1].Confidence)
}

func TestValidateReferencesSnapsWithinRetrievedExcerpts(t *testing.T) {
	engine := &Engine{}
	id := uuid.NewString()
	excerpts := []Excerpt{
		{VideoID: id, Title: "A", StartTime: 30},
		{VideoID: id, Title: "A", StartTime: 50},
	}

	// The video has chunks outside the retrieval set too; a claimed
	// timestamp near those must still land on a retrieved excerpt.
	refs := engine.validateReferences([]rawReference{
		{VideoID: id, Timestamp: 5, Confidence: 0.8},
	}, excerpts, slog.Default())
	require.Len(t, refs, 1)
	require.Equal(t, 30.0, refs[0].Timestamp)
}

func TestValidateReferencesClampsConfidence(t *testing.T) {
	engine := &Engine{}
	id := uuid.NewString()
	excerpts := []Excerpt{{VideoID: id, Title: "A"}}

	refs := engine.validateReferences([]rawReference{
		{VideoID: id, Confidence: 1.7},
	}, excerpts, slog.Default())
	require.Equal(t, 1.0, refs[0].Confidence)

	refs = engine.validateReferences([]rawReference{
		{VideoID: id, Confidence: -0.2},
	}, excerpts, slog.Default())
	require.Equal(t, 0.0, refs[0].Confidence)
}

func TestSessionTitleTruncation(t *testing.T) {
	require.Equal(t, "short", sessionTitle("short"))

	long := ""
	for i := 0; i < 30; i++ {
		long += "abcdefghij"
	}
	title := sessionTitle(long)
	require.LessOrEqual(t, len([]rune(title)), 80)
}

func TestSessionTitleTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("héllo wörld ", 20)
	title := sessionTitle(long)
	require.True(t, utf8.ValidString(title))
	require.LessOrEqual(t, len([]rune(title)), 80)
	require.True(t, strings.HasSuffix(title, "…"))
}
