package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
	"github.com/ViktorBarzin/yt-highlights/internal/transcribe"
)

// fakeCaller records prompts and answers each call from a scripted handler.
type fakeCaller struct {
	prompts []string
	handler func(call int, prompt string) (chunkResponse, error)
}

func (f *fakeCaller) Call(_ context.Context, prompt string, out any) error {
	call := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	resp, err := f.handler(call, prompt)
	if err != nil {
		return err
	}
	b, _ := json.Marshal(resp)
	return json.Unmarshal(b, out)
}

func segmentsOfLength(totalChars int) []transcribe.Segment {
	// Each rendered line is roughly 110 chars.
	text := strings.Repeat("x", 100)
	var segs []transcribe.Segment
	chars := 0
	for i := 0; chars < totalChars; i++ {
		segs = append(segs, transcribe.Segment{Start: float64(i * 10), End: float64(i*10 + 9), Text: text})
		chars += len(text) + 10
	}
	return segs
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{65, "1:05"},
		{600, "10:00"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, c := range cases {
		if got := FormatTimestamp(c.in); got != c.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtract_ShortTranscriptSingleChunk(t *testing.T) {
	fc := &fakeCaller{handler: func(call int, prompt string) (chunkResponse, error) {
		return chunkResponse{
			Highlights: []job.Highlight{{Timestamp: "0:10", TimestampSeconds: 10, Title: "t", Description: "d"}},
			Summary:    "short summary",
		}, nil
	}}
	e := NewEngine(fc)

	segs := []transcribe.Segment{{Start: 10, End: 20, Text: "hello world"}}
	out, err := e.Extract(context.Background(), segs, "Video", 5)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(fc.prompts) != 1 {
		t.Fatalf("expected exactly one chunk call, got %d", len(fc.prompts))
	}
	if out.Summary != "short summary" {
		t.Errorf("single-chunk summary must be used verbatim, got %q", out.Summary)
	}
	if strings.Contains(fc.prompts[0], "Part 1 of") {
		t.Error("single chunk prompt must not carry part context")
	}
}

func TestPackChunks_BudgetRespected(t *testing.T) {
	lines := renderSegments(segmentsOfLength(20000))
	chunks := packChunks(lines)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > maxChunkChars {
			t.Errorf("chunk %d exceeds budget: %d chars", i, len(c))
		}
	}

	// No segment line may be split: rejoining the chunks must reproduce the
	// original rendering.
	if strings.Join(chunks, "\n") != strings.Join(lines, "\n") {
		t.Error("chunking lost or split segment lines")
	}
}

func TestExtract_MergeSortedAndTrimmed(t *testing.T) {
	fc := &fakeCaller{handler: func(call int, prompt string) (chunkResponse, error) {
		// Return out-of-order timestamps per chunk.
		base := (call + 1) * 1000
		return chunkResponse{
			Highlights: []job.Highlight{
				{Timestamp: "x", TimestampSeconds: base + 500},
				{Timestamp: "x", TimestampSeconds: base},
			},
			Summary: fmt.Sprintf("part %d", call+1),
		}, nil
	}}
	e := NewEngine(fc)

	out, err := e.Extract(context.Background(), segmentsOfLength(20000), "Video", 5)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(out.Highlights) > 5 {
		t.Fatalf("merged highlights exceed requested count: %d", len(out.Highlights))
	}
	for i := 1; i < len(out.Highlights); i++ {
		if out.Highlights[i-1].TimestampSeconds > out.Highlights[i].TimestampSeconds {
			t.Fatalf("highlights not sorted at %d: %+v", i, out.Highlights)
		}
	}
	if !strings.Contains(out.Summary, "part 1") {
		t.Errorf("expected combined summary, got %q", out.Summary)
	}
}

func TestExtract_PartialChunkFailuresTolerated(t *testing.T) {
	failed := 0
	fc := &fakeCaller{handler: func(call int, prompt string) (chunkResponse, error) {
		if call%2 == 1 {
			failed++
			return chunkResponse{}, errors.New("model returned unparseable response")
		}
		return chunkResponse{
			Highlights: []job.Highlight{{TimestampSeconds: call * 100, Title: "ok"}},
			Summary:    "s",
		}, nil
	}}
	e := NewEngine(fc)

	out, err := e.Extract(context.Background(), segmentsOfLength(20000), "Video", 5)
	if err != nil {
		t.Fatalf("extract with partial failures: %v", err)
	}
	if failed == 0 {
		t.Fatal("test setup: expected some chunks to fail")
	}
	if len(out.Highlights) == 0 {
		t.Error("expected highlights from surviving chunks")
	}
	for i := 1; i < len(out.Highlights); i++ {
		if out.Highlights[i-1].TimestampSeconds > out.Highlights[i].TimestampSeconds {
			t.Fatal("surviving highlights not sorted")
		}
	}
}

func TestExtract_AllChunksFailed(t *testing.T) {
	fc := &fakeCaller{handler: func(call int, prompt string) (chunkResponse, error) {
		return chunkResponse{}, errors.New("nope")
	}}
	e := NewEngine(fc)

	_, err := e.Extract(context.Background(), segmentsOfLength(20000), "Video", 5)
	if !errors.Is(err, ErrAllChunksFailed) {
		t.Fatalf("expected ErrAllChunksFailed, got %v", err)
	}
}

func TestExtract_ChunkPromptsCarryPartContext(t *testing.T) {
	fc := &fakeCaller{handler: func(call int, prompt string) (chunkResponse, error) {
		return chunkResponse{Summary: "s"}, nil
	}}
	e := NewEngine(fc)

	if _, err := e.Extract(context.Background(), segmentsOfLength(20000), "Video", 6); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(fc.prompts) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(fc.prompts))
	}
	want := fmt.Sprintf("(Part 1 of %d)", len(fc.prompts))
	if !strings.Contains(fc.prompts[0], want) {
		t.Errorf("first chunk prompt missing %q", want)
	}
	// n/2 = 3 highlights per chunk.
	if !strings.Contains(fc.prompts[0], "exactly 3 most important") {
		t.Errorf("expected per-chunk count of 3 in prompt")
	}
}

func TestExtract_ZeroSegmentsStillSingleChunk(t *testing.T) {
	fc := &fakeCaller{handler: func(call int, prompt string) (chunkResponse, error) {
		return chunkResponse{Summary: "empty"}, nil
	}}
	e := NewEngine(fc)

	out, err := e.Extract(context.Background(), nil, "Video", 5)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(fc.prompts) != 1 {
		t.Fatalf("expected one chunk for empty transcript, got %d", len(fc.prompts))
	}
	if out.Summary != "empty" {
		t.Errorf("unexpected summary %q", out.Summary)
	}
}
