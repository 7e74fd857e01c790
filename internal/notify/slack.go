// Package notify posts completion notifications to Slack. Notifications are
// best-effort: failures are logged and never affect job state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ViktorBarzin/yt-highlights/internal/extract"
	"github.com/ViktorBarzin/yt-highlights/internal/job"
)

const (
	defaultSlackAPIURL = "https://slack.com/api/chat.postMessage"
	slackTimeout       = 10 * time.Second

	// maxMomentsInMessage bounds the key-moments list so messages stay
	// readable for long highlight sets.
	maxMomentsInMessage = 5
)

// Notifier posts highlight summaries to a Slack channel.
type Notifier struct {
	httpClient *http.Client
	apiURL     string
	token      string
	channel    string
}

// NewNotifier creates a notifier. Returns nil when no token is configured,
// which callers treat as notifications disabled.
func NewNotifier(token, channel string) *Notifier {
	if token == "" {
		return nil
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: slackTimeout},
		apiURL:     defaultSlackAPIURL,
		token:      token,
		channel:    channel,
	}
}

// formatMessage renders the notification body for one completed job.
func formatMessage(result *job.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n%s\n", result.VideoTitle, result.Summary)

	moments := result.Highlights
	if len(moments) > maxMomentsInMessage {
		moments = moments[:maxMomentsInMessage]
	}
	if len(moments) > 0 {
		b.WriteString("\n*Key moments:*\n")
		for _, h := range moments {
			ts := h.Timestamp
			if ts == "" {
				ts = extract.FormatTimestamp(float64(h.TimestampSeconds))
			}
			fmt.Fprintf(&b, "- %s %s\n", ts, h.Title)
		}
	}
	fmt.Fprintf(&b, "\n<%s|Watch video>", result.VideoURL)
	return b.String()
}

// NotifyCompleted posts the result to the configured channel.
func (n *Notifier) NotifyCompleted(ctx context.Context, result *job.Result) error {
	body, err := json.Marshal(map[string]any{
		"channel": n.channel,
		"text":    formatMessage(result),
	})
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, slackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read slack response: %w", err)
	}

	var parsed struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("decode slack response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("slack API error: %s", parsed.Error)
	}

	log.Info().Str("channel", n.channel).Str("jobId", result.JobID).Msg("Posted Slack notification")
	return nil
}
