package channels

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"

// FeedEntry is one upload from a channel's RSS feed.
type FeedEntry struct {
	VideoID   string    `json:"video_id"`
	Title     string    `json:"title"`
	Published time.Time `json:"published"`
	URL       string    `json:"url"`
}

// FeedClient fetches YouTube channel RSS feeds.
type FeedClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewFeedClient creates a client; baseURL overrides the YouTube feed
// endpoint in tests.
func NewFeedClient(baseURL string) *FeedClient {
	if baseURL == "" {
		baseURL = defaultFeedBaseURL
	}
	return &FeedClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// Atom feed shape. Field names match regardless of the yt: namespace prefix.
type feedDoc struct {
	Entries []feedDocEntry `xml:"entry"`
}

type feedDocEntry struct {
	VideoID   string `xml:"videoId"`
	Title     string `xml:"title"`
	Published string `xml:"published"`
}

// Latest returns up to limit newest uploads for the channel.
func (c *FeedClient) Latest(ctx context.Context, channelID string, limit int) ([]FeedEntry, error) {
	url := fmt.Sprintf("%s?channel_id=%s", c.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed for %s: %w", channelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed for %s returned status %d", channelID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var doc feedDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feed for %s: %w", channelID, err)
	}

	entries := make([]FeedEntry, 0, limit)
	for _, e := range doc.Entries {
		if e.VideoID == "" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
		entries = append(entries, FeedEntry{
			VideoID:   e.VideoID,
			Title:     e.Title,
			Published: published,
			URL:       "https://www.youtube.com/watch?v=" + e.VideoID,
		})
		if len(entries) == limit {
			break
		}
	}
	return entries, nil
}
