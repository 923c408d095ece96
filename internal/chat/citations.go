package chat

import (
	"log/slog"
	"math"
	"sort"

	"thirdcoast.systems/reverb/internal/db"
)

// maxReferences caps how many citations a single answer may carry.
const maxReferences = 5

// rawReference is the model's citation output before validation.
type rawReference struct {
	VideoID    string  `json:"video_id"`
	Timestamp  float64 `json:"timestamp"`
	Confidence float64 `json:"confidence"`
}

type citationResponse struct {
	References []rawReference `json:"references"`
}

// validateReferences checks model citations against the retrieved set. A
// reference naming a video that was never retrieved is dropped and logged,
// never shown to the user. Timestamps are snapped to the start of one of the
// excerpts the cited video actually contributed, and confidence is clamped
// into [0, 1].
func (e *Engine) validateReferences(raw []rawReference, excerpts []Excerpt, log *slog.Logger) []db.VideoReference {
	known := make(map[string]Excerpt, len(excerpts))
	starts := make(map[string][]float64, len(excerpts))
	for _, ex := range excerpts {
		if _, ok := known[ex.VideoID]; !ok {
			known[ex.VideoID] = ex
		}
		starts[ex.VideoID] = append(starts[ex.VideoID], ex.StartTime)
	}

	refs := make([]db.VideoReference, 0, len(raw))
	for _, r := range raw {
		ex, ok := known[r.VideoID]
		if !ok {
			log.Warn("citation references unretrieved video, dropping", "video_id", r.VideoID)
			continue
		}

		refs = append(refs, db.VideoReference{
			VideoID:    r.VideoID,
			Timestamp:  closestStart(starts[r.VideoID], r.Timestamp),
			Confidence: clamp01(r.Confidence),
			Title:      ex.Title,
		})
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Confidence > refs[j].Confidence })
	if len(refs) > maxReferences {
		refs = refs[:maxReferences]
	}
	return refs
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// closestStart picks the excerpt start time numerically closest to the
// claimed timestamp.
func closestStart(starts []float64, claimed float64) float64 {
	best := starts[0]
	bestDist := math.Abs(claimed - best)
	for _, s := range starts[1:] {
		if d := math.Abs(claimed - s); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}
