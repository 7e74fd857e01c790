// Package transcribe converts audio to a time-aligned transcript using the
// whisper.cpp CLI. The binary and model are loaded once per invocation by
// whisper itself; this package keeps a single configured adapter for the
// lifetime of the process.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const transcribeTimeout = 60 * time.Minute

// Segment is one timed slice of transcript text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Whisper drives the whisper.cpp CLI.
type Whisper struct {
	binaryPath string
	modelPath  string
	threads    int
}

// NewWhisper creates a transcriber for the given binary and model.
func NewWhisper(binaryPath, modelPath string, threads int) *Whisper {
	return &Whisper{binaryPath: binaryPath, modelPath: modelPath, threads: threads}
}

// whisperOutput mirrors the whisper.cpp -oj JSON file shape. Offsets are in
// milliseconds.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs whisper.cpp over audioPath and returns ordered segments.
// Forcing the language prevents hallucinated language switches mid-video.
func (w *Whisper) Transcribe(ctx context.Context, audioPath, language string) ([]Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	outputPrefix := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))

	log.Info().
		Str("audioPath", audioPath).
		Str("language", language).
		Int("threads", w.threads).
		Msg("Starting transcription")

	args := []string{
		"-m", w.modelPath,
		"-f", audioPath,
		"-oj",
		"-l", language,
		"-t", strconv.Itoa(w.threads),
		"-ml", "0",
		"--output-file", outputPrefix,
	}

	cmd := exec.CommandContext(ctx, w.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return nil, fmt.Errorf("whisper transcribe: %w, stderr: %s", err, stderrStr)
		}
		return nil, fmt.Errorf("whisper transcribe: %w", err)
	}

	jsonPath := outputPrefix + ".json"
	defer os.Remove(jsonPath)

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]Segment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: float64(t.Offsets.From) / 1000,
			End:   float64(t.Offsets.To) / 1000,
			Text:  text,
		})
	}

	log.Info().Int("segments", len(segments)).Msg("Transcription completed")
	return segments, nil
}
