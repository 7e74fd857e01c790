package job

import "testing"

func TestCanTransition_ForwardOnly(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusQueued, StatusDownloading},
		{StatusDownloading, StatusTranscribing},
		{StatusTranscribing, StatusAnalyzing},
		{StatusAnalyzing, StatusCompleted},
		{StatusQueued, StatusFailed},
		{StatusAnalyzing, StatusFailed},
		{StatusTranscribing, StatusExpired},
	}
	for _, c := range legal {
		if !CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be legal", c.from, c.to)
		}
	}

	illegal := []struct{ from, to Status }{
		{StatusDownloading, StatusQueued},
		{StatusAnalyzing, StatusDownloading},
		{StatusCompleted, StatusAnalyzing},
		{StatusCompleted, StatusFailed},
		{StatusFailed, StatusQueued},
		{StatusExpired, StatusDownloading},
	}
	for _, c := range illegal {
		if CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be illegal", c.from, c.to)
		}
	}
}

func TestNewID_ShortAndUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	if len(a) != 8 {
		t.Errorf("expected 8-char id, got %q", a)
	}
	if a == b {
		t.Errorf("expected distinct ids, got %q twice", a)
	}
}

func TestNew_Defaults(t *testing.T) {
	j := New("https://youtu.be/abc123def45", "en", 5)
	if j.Status != StatusQueued {
		t.Errorf("expected queued, got %s", j.Status)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
	if j.Result != nil {
		t.Error("expected nil result on a new job")
	}
}
