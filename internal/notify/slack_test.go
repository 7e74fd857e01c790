package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
)

func testResult() *job.Result {
	highlights := make([]job.Highlight, 0, 7)
	for i := 0; i < 7; i++ {
		highlights = append(highlights, job.Highlight{
			Timestamp:        fmt.Sprintf("%d:00", i),
			TimestampSeconds: i * 60,
			Title:            fmt.Sprintf("Moment %d", i),
		})
	}
	return &job.Result{
		JobID:      "abc12345",
		VideoTitle: "Some Video",
		VideoURL:   "https://www.youtube.com/watch?v=xyz",
		Summary:    "A summary.",
		Highlights: highlights,
	}
}

func TestFormatMessage_CapsMoments(t *testing.T) {
	msg := formatMessage(testResult())

	if !strings.Contains(msg, "*Some Video*") {
		t.Error("message missing title")
	}
	if !strings.Contains(msg, "A summary.") {
		t.Error("message missing summary")
	}
	if !strings.Contains(msg, "- 0:00 Moment 0") {
		t.Error("message missing first key moment")
	}
	if strings.Contains(msg, "Moment 5") {
		t.Error("message must cap key moments at 5")
	}
	if !strings.Contains(msg, "|Watch video>") {
		t.Error("message missing watch link")
	}
}

func TestNotifyCompleted(t *testing.T) {
	var gotAuth, gotChannel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Channel string `json:"channel"`
			Text    string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotChannel = body.Channel
		fmt.Fprint(w, `{"ok": true}`)
	}))
	defer srv.Close()

	n := NewNotifier("xoxb-test", "automation")
	n.apiURL = srv.URL

	if err := n.NotifyCompleted(context.Background(), testResult()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotAuth != "Bearer xoxb-test" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotChannel != "automation" {
		t.Errorf("unexpected channel %q", gotChannel)
	}
}

func TestNotifyCompleted_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok": false, "error": "channel_not_found"}`)
	}))
	defer srv.Close()

	n := NewNotifier("xoxb-test", "missing")
	n.apiURL = srv.URL

	err := n.NotifyCompleted(context.Background(), testResult())
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestNewNotifier_DisabledWithoutToken(t *testing.T) {
	if NewNotifier("", "automation") != nil {
		t.Error("empty token must disable notifications")
	}
}
