// Package extract distills a time-aligned transcript into a bounded set of
// highlights and a summary. Transcripts too large for a single model call are
// split into chunks, processed independently and merged.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
	"github.com/ViktorBarzin/yt-highlights/internal/transcribe"
)

// maxChunkChars is a conservative limit for free-tier models (~1500 tokens).
const maxChunkChars = 6000

// ErrAllChunksFailed is returned when no chunk produced a usable response.
var ErrAllChunksFailed = errors.New("all chunks failed to process")

// Caller issues one prompt and parses the response JSON into out. The
// provider package supplies the production implementation with ranked
// fallback; tests supply fakes.
type Caller interface {
	Call(ctx context.Context, prompt string, out any) error
}

// Output is the merged extraction for one video.
type Output struct {
	Highlights []job.Highlight
	Summary    string
}

// chunkResponse is the JSON shape requested from the model.
type chunkResponse struct {
	Highlights []job.Highlight `json:"highlights"`
	Summary    string          `json:"summary"`
}

// Engine runs the chunked extraction algorithm.
type Engine struct {
	caller Caller
}

// NewEngine creates an engine on top of the given caller.
func NewEngine(caller Caller) *Engine {
	return &Engine{caller: caller}
}

// FormatTimestamp formats seconds as M:SS, or H:MM:SS past an hour.
func FormatTimestamp(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// renderSegments formats each segment as "[M:SS] text" lines.
func renderSegments(segments []transcribe.Segment) []string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("[%s] %s", FormatTimestamp(seg.Start), seg.Text))
	}
	return lines
}

// packChunks greedily packs consecutive rendered lines into chunks not
// exceeding maxChunkChars. A single line is never split; a line longer than
// the budget becomes a chunk of its own.
func packChunks(lines []string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	for _, line := range lines {
		lineLen := len(line) + 1 // newline
		if currentLen+lineLen > maxChunkChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = []string{line}
			currentLen = lineLen
		} else {
			current = append(current, line)
			currentLen += lineLen
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

// Extract produces at most numHighlights highlights plus a summary for the
// transcript. Individual chunk failures are skipped; Extract fails only when
// every chunk fails.
func (e *Engine) Extract(ctx context.Context, segments []transcribe.Segment, videoTitle string, numHighlights int) (Output, error) {
	lines := renderSegments(segments)
	rendered := strings.Join(lines, "\n")

	if len(rendered) <= maxChunkChars {
		log.Info().Int("chars", len(rendered)).Msg("Processing transcript in single chunk")
		prompt := renderPrompt(rendered, videoTitle, numHighlights, 1, 1)
		var resp chunkResponse
		if err := e.caller.Call(ctx, prompt, &resp); err != nil {
			return Output{}, fmt.Errorf("extract highlights: %w", err)
		}
		return Output{Highlights: resp.Highlights, Summary: resp.Summary}, nil
	}

	chunks := packChunks(lines)
	perChunk := numHighlights / 2
	if perChunk < 2 {
		perChunk = 2
	}

	log.Info().
		Int("chunks", len(chunks)).
		Int("totalChars", len(rendered)).
		Int("highlightsPerChunk", perChunk).
		Msg("Processing transcript in chunks")

	var allHighlights []job.Highlight
	var summaries []string

	for i, chunk := range chunks {
		log.Info().
			Int("chunk", i+1).
			Int("totalChunks", len(chunks)).
			Int("chars", len(chunk)).
			Msg("Processing chunk")

		prompt := renderPrompt(chunk, videoTitle, perChunk, i+1, len(chunks))
		var resp chunkResponse
		if err := e.caller.Call(ctx, prompt, &resp); err != nil {
			log.Warn().Err(err).Int("chunk", i+1).Msg("Chunk failed, continuing with remaining chunks")
			continue
		}
		allHighlights = append(allHighlights, resp.Highlights...)
		if resp.Summary != "" {
			summaries = append(summaries, resp.Summary)
		}
	}

	if len(allHighlights) == 0 && len(summaries) == 0 {
		return Output{}, ErrAllChunksFailed
	}

	// Merge: sort ascending by seconds, then trim to the requested count.
	sort.SliceStable(allHighlights, func(i, j int) bool {
		return allHighlights[i].TimestampSeconds < allHighlights[j].TimestampSeconds
	})
	if len(allHighlights) > numHighlights {
		allHighlights = allHighlights[:numHighlights]
	}

	var summary string
	switch len(summaries) {
	case 0:
		summary = "Video processed in chunks."
	case 1:
		summary = summaries[0]
	default:
		summary = strings.Join(summaries, " ")
	}

	return Output{Highlights: allHighlights, Summary: summary}, nil
}
