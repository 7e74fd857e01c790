package extract

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

// The extraction prompt is an embedded template so wording changes never
// touch engine logic.
//
//go:embed prompts/highlights.txt
var highlightsPromptText string

var highlightsPromptTmpl = template.Must(template.New("highlights").Parse(highlightsPromptText))

// promptData holds the dynamic data injected into the extraction prompt.
type promptData struct {
	Title              string
	ChunkContext       string
	NumHighlights      int
	SummaryInstruction string
	Transcript         string
}

const (
	fullSummaryInstruction    = "Provide a brief summary (2-3 sentences MAX, under 200 characters) of the main takeaway."
	partialSummaryInstruction = "Provide a one-sentence summary (under 100 characters) of this section's main point."
)

// renderPrompt builds the extraction prompt for one chunk. chunkNum and
// totalChunks add "Part K of T" context when the transcript was split.
func renderPrompt(transcript, title string, numHighlights, chunkNum, totalChunks int) string {
	data := promptData{
		Title:              title,
		NumHighlights:      numHighlights,
		SummaryInstruction: fullSummaryInstruction,
		Transcript:         transcript,
	}
	if totalChunks > 1 {
		data.ChunkContext = fmt.Sprintf(" (Part %d of %d)", chunkNum, totalChunks)
		data.SummaryInstruction = partialSummaryInstruction
	}

	var buf bytes.Buffer
	_ = highlightsPromptTmpl.Execute(&buf, data)
	return buf.String()
}
