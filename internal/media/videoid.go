package media

import "regexp"

// videoIDRe matches the 11-character video id in watch, short and embed URLs.
var videoIDRe = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`)

// ExtractVideoID returns the YouTube video id from url, or the url itself if
// no id can be found. The raw-url fallback keeps artifact keys stable for
// non-YouTube sources.
func ExtractVideoID(url string) string {
	if m := videoIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return url
}
