package channels

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const resolveTimeout = 60 * time.Second

// IsChannelID reports whether s looks like a canonical channel id.
func IsChannelID(s string) bool {
	return len(s) == 24 && strings.HasPrefix(s, "UC")
}

// Resolver turns channel handles and URLs into canonical channel ids using
// yt-dlp, since RSS feeds only accept ids.
type Resolver struct {
	binaryPath string
}

// NewResolver creates a resolver around the yt-dlp binary.
func NewResolver(binaryPath string) *Resolver {
	return &Resolver{binaryPath: binaryPath}
}

// channelURL normalizes the accepted input forms to a channel page URL.
func channelURL(input string) string {
	switch {
	case strings.HasPrefix(input, "http://"), strings.HasPrefix(input, "https://"):
		return input
	case strings.HasPrefix(input, "@"):
		return "https://www.youtube.com/" + input
	case IsChannelID(input):
		return "https://www.youtube.com/channel/" + input
	default:
		return "https://www.youtube.com/@" + input
	}
}

// Resolve returns the channel id and display name for a handle, URL or id.
func (r *Resolver) Resolve(ctx context.Context, input string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	// Only the newest upload is needed to read channel metadata.
	cmd := exec.CommandContext(ctx, r.binaryPath,
		"--playlist-items", "1",
		"--print", "channel_id",
		"--print", "channel",
		channelURL(input),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("resolve channel %q: %w: %s", input, err, strings.TrimSpace(stderr.String()))
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) < 2 || !IsChannelID(strings.TrimSpace(lines[0])) {
		return "", "", fmt.Errorf("resolve channel %q: unexpected output %q", input, stdout.String())
	}
	return strings.TrimSpace(lines[0]), strings.TrimSpace(lines[1]), nil
}
