// Package media wraps the yt-dlp binary for metadata lookup and audio
// extraction. Codec handling is yt-dlp's problem; this package only shells
// out and parses its output.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const downloadTimeout = 15 * time.Minute

// Info is the subset of video metadata the pipeline needs.
type Info struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Channel  string  `json:"channel"`
}

// Downloader fetches audio tracks via the local yt-dlp binary.
type Downloader struct {
	binaryPath string
	audioDir   string
}

// NewDownloader creates a downloader writing scratch audio under audioDir.
func NewDownloader(binaryPath, audioDir string) *Downloader {
	return &Downloader{binaryPath: binaryPath, audioDir: audioDir}
}

// browser-ish headers and mobile player clients avoid 403s from YouTube.
var extractorArgs = []string{
	"--user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"--extractor-args", "youtube:player_client=ios,android,web",
}

// DownloadAudio downloads the audio track of videoURL as 128K mp3 and returns
// the video metadata plus the local audio file path.
func (d *Downloader) DownloadAudio(ctx context.Context, videoURL string) (Info, string, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	info, err := d.fetchInfo(ctx, videoURL)
	if err != nil {
		return Info{}, "", err
	}

	audioPath := filepath.Join(d.audioDir, info.ID+".mp3")

	log.Info().
		Str("videoId", info.ID).
		Str("title", info.Title).
		Str("audioPath", audioPath).
		Msg("Downloading audio")

	args := append([]string{
		"-f", "best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "128K",
		"-o", strings.TrimSuffix(audioPath, ".mp3") + ".%(ext)s",
		"--no-warnings",
		"--quiet",
	}, extractorArgs...)
	args = append(args, videoURL)

	if _, err := d.run(ctx, args...); err != nil {
		return Info{}, "", fmt.Errorf("download audio: %w", err)
	}

	return info, audioPath, nil
}

// fetchInfo reads video metadata without downloading (yt-dlp -J).
func (d *Downloader) fetchInfo(ctx context.Context, videoURL string) (Info, error) {
	args := append([]string{"-J", "--no-warnings"}, extractorArgs...)
	args = append(args, videoURL)

	out, err := d.run(ctx, args...)
	if err != nil {
		return Info{}, fmt.Errorf("fetch video info: %w", err)
	}

	var info Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return Info{}, fmt.Errorf("parse video info: %w", err)
	}
	if info.ID == "" {
		info.ID = ExtractVideoID(videoURL)
	}
	if info.Title == "" {
		info.Title = "Unknown"
	}
	return info, nil
}

func (d *Downloader) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, d.binaryPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("yt-dlp failed: %w, stderr: %s", err, stderrStr)
		}
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}
	return stdout.String(), nil
}
