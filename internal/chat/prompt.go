package chat

import (
	"fmt"
	"strings"
)

// Excerpt is one retrieved transcript passage offered to the model as
// grounding context.
type Excerpt struct {
	VideoID   string
	Title     string
	StartTime float64
	Score     float64
	Text      string
}

// buildSystemPrompt embeds the persona identity and the retrieved excerpts.
// Excerpts carry their video id and start time so the citation pass can
// refer back to them.
func buildSystemPrompt(personaName string, excerpts []Excerpt) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, answering in their voice based on what they have actually said in their videos.\n", personaName)
	b.WriteString("Ground every claim in the transcript excerpts below. If the excerpts do not cover the question, say so rather than inventing an answer.\n")

	if len(excerpts) == 0 {
		b.WriteString("\nNo transcript excerpts matched this question.\n")
		return b.String()
	}

	b.WriteString("\nTranscript excerpts:\n")
	for i, ex := range excerpts {
		fmt.Fprintf(&b, "\n[%d] video_id=%s title=%q start=%.1fs\n%s\n", i+1, ex.VideoID, ex.Title, ex.StartTime, ex.Text)
	}
	return b.String()
}

// buildCitationPrompt asks for a structured selection of the excerpts the
// answer actually drew on. The schema is declared inline; the completion
// runs in JSON mode.
func buildCitationPrompt(answer string, excerpts []Excerpt) string {
	var b strings.Builder

	b.WriteString("Given the assistant answer and the transcript excerpts it was grounded on, select up to 5 excerpts the answer actually references.\n")
	b.WriteString(`Respond with JSON of the shape {"references": [{"video_id": string, "timestamp": number, "confidence": number}]}. `)
	b.WriteString("Use the video_id and start time of the excerpt; confidence is between 0 and 1. Return an empty list if nothing was referenced.\n")

	b.WriteString("\nAnswer:\n")
	b.WriteString(answer)
	b.WriteString("\n\nExcerpts:\n")
	for i, ex := range excerpts {
		fmt.Fprintf(&b, "\n[%d] video_id=%s start=%.1fs\n%s\n", i+1, ex.VideoID, ex.StartTime, ex.Text)
	}
	return b.String()
}
