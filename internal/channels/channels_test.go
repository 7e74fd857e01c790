package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>Example Channel</title>
  <entry>
    <id>yt:video:video-aaa-0001</id>
    <yt:videoId>video-aaa-0001</yt:videoId>
    <title>Newest Upload</title>
    <published>2026-08-28T10:00:00+00:00</published>
  </entry>
  <entry>
    <id>yt:video:video-bbb-0002</id>
    <yt:videoId>video-bbb-0002</yt:videoId>
    <title>Older Upload</title>
    <published>2026-08-27T10:00:00+00:00</published>
  </entry>
  <entry>
    <id>yt:video:video-ccc-0003</id>
    <yt:videoId>video-ccc-0003</yt:videoId>
    <title>Oldest Upload</title>
    <published>2026-08-26T10:00:00+00:00</published>
  </entry>
</feed>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("channel_id") == "" {
			http.Error(w, "missing channel_id", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, sampleFeed)
	}))
}

func TestFeedClient_LatestParsesAndCaps(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()

	c := NewFeedClient(srv.URL)
	entries, err := c.Latest(context.Background(), "UCxxxxxxxxxxxxxxxxxxxxxx", 2)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (capped), got %d", len(entries))
	}
	if entries[0].VideoID != "video-aaa-0001" {
		t.Errorf("first entry = %q, want newest upload", entries[0].VideoID)
	}
	if entries[0].URL != "https://www.youtube.com/watch?v=video-aaa-0001" {
		t.Errorf("unexpected watch URL %q", entries[0].URL)
	}
	if entries[0].Published.IsZero() {
		t.Error("published time not parsed")
	}
}

func TestManager_AddListRemovePersists(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	if err := m.Add("UCaaaaaaaaaaaaaaaaaaaaaa", "Channel A"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add("UCbbbbbbbbbbbbbbbbbbbbbb", "Channel B"); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Reload from disk.
	m2, err := NewManager(dir)
	if err != nil {
		t.Fatalf("reload manager: %v", err)
	}
	list := m2.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 channels after reload, got %d", len(list))
	}
	if list[0].ID != "UCaaaaaaaaaaaaaaaaaaaaaa" || !list[0].Enabled {
		t.Errorf("unexpected first channel %+v", list[0])
	}

	removed, err := m2.Remove("UCaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	if removed, _ := m2.Remove("UCaaaaaaaaaaaaaaaaaaaaaa"); removed {
		t.Error("second remove must report not found")
	}
}

func TestManager_MigrateRewritesHandleKeys(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	if err := m.Add("@somehandle", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add("UCcccccccccccccccccccccc", "Already Canonical"); err != nil {
		t.Fatalf("add: %v", err)
	}

	migrated, err := m.Migrate(func(input string) (string, string, error) {
		if input != "@somehandle" {
			t.Errorf("unexpected resolve input %q", input)
		}
		return "UCdddddddddddddddddddddd", "Some Handle", nil
	})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(migrated) != 1 || migrated[0] != "UCdddddddddddddddddddddd" {
		t.Fatalf("unexpected migrated ids %v", migrated)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 channels after migrate, got %d", len(list))
	}
	for _, ch := range list {
		if ch.ID == "@somehandle" {
			t.Error("handle-keyed entry must be rewritten")
		}
	}
}

type fakeProcessed struct {
	seen map[string]bool
}

func (f *fakeProcessed) Has(_ context.Context, videoID string) (bool, error) {
	return f.seen[videoID], nil
}

func TestPoller_SkipsProcessedAndDisabled(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()

	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	if err := m.Add("UCaaaaaaaaaaaaaaaaaaaaaa", "Enabled"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add("UCbbbbbbbbbbbbbbbbbbbbbb", "Disabled"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.SetEnabled("UCbbbbbbbbbbbbbbbbbbbbbb", false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	p := NewPoller(m, NewFeedClient(srv.URL), &fakeProcessed{seen: map[string]bool{
		"video-bbb-0002": true,
	}})

	found, err := p.NewVideos(context.Background(), 5)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 new videos, got %d", len(found))
	}
	for _, v := range found {
		if v.VideoID == "video-bbb-0002" {
			t.Error("processed video must be filtered out")
		}
		if v.ChannelName != "Enabled" {
			t.Errorf("unexpected channel name %q", v.ChannelName)
		}
	}

	// Poll must stamp last_checked.
	list := m.List()
	if list[0].LastChecked.IsZero() {
		t.Error("last checked time not updated")
	}
	if time.Since(list[0].LastChecked) > time.Minute {
		t.Error("last checked time stale")
	}
}

func TestIsChannelID(t *testing.T) {
	if !IsChannelID("UCaaaaaaaaaaaaaaaaaaaaaa") {
		t.Error("canonical id rejected")
	}
	if IsChannelID("@handle") || IsChannelID("UCshort") {
		t.Error("non-id accepted")
	}
}
