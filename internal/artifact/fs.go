package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
)

// FSStore keeps artifacts under a data directory. Results are plain JSON;
// transcripts are zstd-compressed since they dominate disk usage.
type FSStore struct {
	resultsDir     string
	transcriptsDir string
	encoder        *zstd.Encoder
	decoder        *zstd.Decoder
}

// NewFSStore creates the artifact directories under dataPath.
func NewFSStore(dataPath string) (*FSStore, error) {
	resultsDir := filepath.Join(dataPath, "highlights")
	transcriptsDir := filepath.Join(dataPath, "transcripts")
	for _, dir := range []string{resultsDir, transcriptsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
		}
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &FSStore{
		resultsDir:     resultsDir,
		transcriptsDir: transcriptsDir,
		encoder:        encoder,
		decoder:        decoder,
	}, nil
}

func (s *FSStore) resultPath(videoID string) string {
	return filepath.Join(s.resultsDir, videoID+".json")
}

func (s *FSStore) transcriptPath(videoID string) string {
	return filepath.Join(s.transcriptsDir, videoID+".json.zst")
}

func (s *FSStore) PutResult(_ context.Context, result *job.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(s.resultPath(result.VideoID), data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func (s *FSStore) GetResult(_ context.Context, videoID string) (*job.Result, error) {
	data, err := os.ReadFile(s.resultPath(videoID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read result: %w", err)
	}
	var result job.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}
	return &result, nil
}

func (s *FSStore) DeleteResult(_ context.Context, videoID string) error {
	if err := os.Remove(s.resultPath(videoID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}

func (s *FSStore) PutTranscript(_ context.Context, t *Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	compressed := s.encoder.EncodeAll(data, nil)
	if err := os.WriteFile(s.transcriptPath(t.VideoID), compressed, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func (s *FSStore) GetTranscript(_ context.Context, videoID string) (*Transcript, error) {
	compressed, err := os.ReadFile(s.transcriptPath(videoID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress transcript: %w", err)
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return &t, nil
}

func (s *FSStore) DeleteTranscript(_ context.Context, videoID string) error {
	if err := os.Remove(s.transcriptPath(videoID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}
