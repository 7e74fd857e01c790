package media

import "testing"

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		// Unknown shapes fall through to the raw URL.
		{"https://example.com/video/123", "https://example.com/video/123"},
	}

	for _, c := range cases {
		if got := ExtractVideoID(c.url); got != c.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}
