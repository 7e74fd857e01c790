package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zstd"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
)

// S3Store mirrors artifacts to an S3 bucket. It implements the same Store
// interface as FSStore so the worker can write to either.
type S3Store struct {
	client  *s3.Client
	bucket  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewS3Store creates a store over the given bucket using the default AWS
// credential chain.
func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &S3Store{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

func resultKey(videoID string) string     { return "highlights/" + videoID + ".json" }
func transcriptKey(videoID string) string { return "transcripts/" + videoID + ".json.zst" }

func (s *S3Store) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}

func (s *S3Store) delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("S3 DeleteObject %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) PutResult(ctx context.Context, result *job.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.put(ctx, resultKey(result.VideoID), "application/json", data)
}

func (s *S3Store) GetResult(ctx context.Context, videoID string) (*job.Result, error) {
	data, err := s.get(ctx, resultKey(videoID))
	if err != nil {
		return nil, err
	}
	var result job.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}
	return &result, nil
}

func (s *S3Store) DeleteResult(ctx context.Context, videoID string) error {
	return s.delete(ctx, resultKey(videoID))
}

func (s *S3Store) PutTranscript(ctx context.Context, t *Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	return s.put(ctx, transcriptKey(t.VideoID), "application/zstd", s.encoder.EncodeAll(data, nil))
}

func (s *S3Store) GetTranscript(ctx context.Context, videoID string) (*Transcript, error) {
	compressed, err := s.get(ctx, transcriptKey(videoID))
	if err != nil {
		return nil, err
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

func (s *S3Store) DeleteTranscript(ctx context.Context, videoID string) error {
	return s.delete(ctx, transcriptKey(videoID))
}
