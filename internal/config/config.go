// Package config loads service configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all service settings. Every field has a default so the service
// can start with nothing but REDIS_URL and the external binaries on PATH.
type Config struct {
	// DataPath is the root directory for audio scratch files, transcripts,
	// highlight results and the channel subscription file.
	DataPath string

	// RedisURL is the connection URL for the durable job store. The service
	// refuses to start if Redis is unreachable.
	RedisURL string

	// YtDlpPath is the yt-dlp binary used for audio download and channel
	// resolution.
	YtDlpPath string

	// Whisper transcription settings (whisper.cpp CLI).
	WhisperBinary  string
	WhisperModel   string
	WhisperThreads int
	Language       string

	// OpenRouter provider settings.
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string

	// Gemini is an optional ranked candidate; enabled when the key is set.
	GeminiAPIKey string
	GeminiModel  string

	// Ollama is the last-resort local fallback; enabled when the URL is set.
	OllamaURL   string
	OllamaModel string

	// Slack notification settings; notifications are skipped when the token
	// is empty.
	SlackBotToken string
	SlackChannel  string

	// ArtifactS3Bucket switches result/transcript storage from the local
	// filesystem to S3 when non-empty.
	ArtifactS3Bucket string

	Port int
}

// Load builds a Config from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DataPath:          getEnv("DATA_PATH", "/data"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		YtDlpPath:         getEnv("YTDLP_PATH", "yt-dlp"),
		WhisperBinary:     getEnv("WHISPER_BINARY", "whisper-cli"),
		WhisperModel:      getEnv("WHISPER_MODEL", "/models/ggml-large-v3.bin"),
		WhisperThreads:    getEnvInt("WHISPER_THREADS", 4),
		Language:          getEnv("LANGUAGE", "en"),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "deepseek/deepseek-r1-0528:free"),
		OpenRouterBaseURL: getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		OllamaURL:         getEnv("OLLAMA_URL", ""),
		OllamaModel:       getEnv("OLLAMA_MODEL", "qwen2.5:3b"),
		SlackBotToken:     getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannel:      getEnv("SLACK_CHANNEL", "automation"),
		ArtifactS3Bucket:  getEnv("ARTIFACT_S3_BUCKET", ""),
		Port:              getEnvInt("PORT", 8080),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
