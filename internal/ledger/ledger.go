// Package ledger tracks which videos have been processed, so channel feed
// polling never re-processes the same upload. Entries live in a Redis hash
// keyed by video id and age out alongside their artifacts.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const processedKey = "yt-highlights:processed"

// Entry records one processed video.
type Entry struct {
	VideoID     string    `json:"video_id"`
	JobID       string    `json:"job_id"`
	VideoTitle  string    `json:"video_title"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ArtifactDeleter removes the artifacts of a pruned video. Satisfied by the
// artifact store.
type ArtifactDeleter interface {
	DeleteResult(ctx context.Context, videoID string) error
	DeleteTranscript(ctx context.Context, videoID string) error
}

// Ledger is the processed-video registry.
type Ledger struct {
	client *redis.Client
}

// New creates a ledger over an existing Redis client.
func New(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

// Record marks a video as processed.
func (l *Ledger) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	if err := l.client.HSet(ctx, processedKey, entry.VideoID, data).Err(); err != nil {
		return fmt.Errorf("record processed video: %w", err)
	}
	return nil
}

// Has reports whether the video has already been processed.
func (l *Ledger) Has(ctx context.Context, videoID string) (bool, error) {
	exists, err := l.client.HExists(ctx, processedKey, videoID).Result()
	if err != nil {
		return false, fmt.Errorf("check processed video: %w", err)
	}
	return exists, nil
}

// All returns every ledger entry. Unparseable entries are skipped with a
// warning rather than failing the listing.
func (l *Ledger) All(ctx context.Context) ([]Entry, error) {
	raw, err := l.client.HGetAll(ctx, processedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list processed videos: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for videoID, data := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			log.Warn().Err(err).Str("videoId", videoID).Msg("Skipping unparseable ledger entry")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Prune removes entries older than maxAge along with their artifacts,
// returning the pruned video ids. Artifact deletion failures are logged but
// do not keep the entry.
func (l *Ledger) Prune(ctx context.Context, maxAge time.Duration, artifacts ArtifactDeleter) ([]string, error) {
	entries, err := l.All(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge)
	var pruned []string

	for _, entry := range entries {
		if !entry.ProcessedAt.Before(cutoff) {
			continue
		}
		if artifacts != nil {
			if err := artifacts.DeleteResult(ctx, entry.VideoID); err != nil {
				log.Warn().Err(err).Str("videoId", entry.VideoID).Msg("Failed to delete result artifact during prune")
			}
			if err := artifacts.DeleteTranscript(ctx, entry.VideoID); err != nil {
				log.Warn().Err(err).Str("videoId", entry.VideoID).Msg("Failed to delete transcript artifact during prune")
			}
		}
		if err := l.client.HDel(ctx, processedKey, entry.VideoID).Err(); err != nil {
			log.Warn().Err(err).Str("videoId", entry.VideoID).Msg("Failed to prune ledger entry")
			continue
		}
		pruned = append(pruned, entry.VideoID)
	}

	if len(pruned) > 0 {
		log.Info().Int("count", len(pruned)).Msg("Pruned processed video ledger")
	}
	return pruned, nil
}
