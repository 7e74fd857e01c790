package channels

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ProcessedChecker reports whether a video was already processed. Satisfied
// by the ledger.
type ProcessedChecker interface {
	Has(ctx context.Context, videoID string) (bool, error)
}

// NewVideo is an unprocessed upload found during a poll.
type NewVideo struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Published   time.Time `json:"published"`
	URL         string    `json:"url"`
}

// Poller walks enabled subscriptions and reports uploads not yet in the
// ledger.
type Poller struct {
	manager   *Manager
	feed      *FeedClient
	processed ProcessedChecker
}

// NewPoller wires a poller over the manager, feed client and ledger.
func NewPoller(manager *Manager, feed *FeedClient, processed ProcessedChecker) *Poller {
	return &Poller{manager: manager, feed: feed, processed: processed}
}

// NewVideos polls every enabled channel, checking at most perChannel feed
// entries each, and returns those missing from the ledger. Feed failures
// for one channel are logged and do not abort the poll.
func (p *Poller) NewVideos(ctx context.Context, perChannel int) ([]NewVideo, error) {
	var found []NewVideo

	for _, ch := range p.manager.List() {
		if !ch.Enabled {
			log.Debug().Str("channelId", ch.ID).Msg("Skipping disabled channel")
			continue
		}

		entries, err := p.feed.Latest(ctx, ch.ID, perChannel)
		if err != nil {
			log.Warn().Err(err).Str("channelId", ch.ID).Msg("Feed poll failed, continuing with remaining channels")
			continue
		}

		for _, entry := range entries {
			seen, err := p.processed.Has(ctx, entry.VideoID)
			if err != nil {
				log.Warn().Err(err).Str("videoId", entry.VideoID).Msg("Ledger check failed, skipping entry")
				continue
			}
			if seen {
				continue
			}
			found = append(found, NewVideo{
				ChannelID:   ch.ID,
				ChannelName: ch.Name,
				VideoID:     entry.VideoID,
				Title:       entry.Title,
				Published:   entry.Published,
				URL:         entry.URL,
			})
		}

		if err := p.manager.MarkChecked(ch.ID, time.Now()); err != nil {
			log.Warn().Err(err).Str("channelId", ch.ID).Msg("Failed to update last checked time")
		}
	}

	return found, nil
}
