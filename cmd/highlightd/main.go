// highlightd is the YouTube highlights extraction service: a queue-backed
// pipeline that downloads a video's audio, transcribes it locally and asks a
// ranked list of language models for the key moments.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ViktorBarzin/yt-highlights/internal/artifact"
	"github.com/ViktorBarzin/yt-highlights/internal/channels"
	"github.com/ViktorBarzin/yt-highlights/internal/config"
	"github.com/ViktorBarzin/yt-highlights/internal/extract"
	"github.com/ViktorBarzin/yt-highlights/internal/ledger"
	"github.com/ViktorBarzin/yt-highlights/internal/logging"
	"github.com/ViktorBarzin/yt-highlights/internal/media"
	"github.com/ViktorBarzin/yt-highlights/internal/notify"
	"github.com/ViktorBarzin/yt-highlights/internal/provider"
	"github.com/ViktorBarzin/yt-highlights/internal/queue"
	"github.com/ViktorBarzin/yt-highlights/internal/recovery"
	"github.com/ViktorBarzin/yt-highlights/internal/server"
	"github.com/ViktorBarzin/yt-highlights/internal/store"
	"github.com/ViktorBarzin/yt-highlights/internal/transcribe"
	"github.com/ViktorBarzin/yt-highlights/internal/worker"
)

// shutdownGrace is how long the worker may keep draining after intake stops.
const shutdownGrace = 5 * time.Second

var portFlag int

var rootCmd = &cobra.Command{
	Use:   "highlightd",
	Short: "YouTube video highlights extraction service",
	Long: `highlightd runs an HTTP API and a background worker that turns YouTube
videos into timestamped highlights: audio is downloaded with yt-dlp,
transcribed with whisper.cpp and summarized through free LLM providers with
automatic fallback.

Examples:
  highlightd
  highlightd --port 9090`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides PORT)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	cfg := config.Load()
	if portFlag != 0 {
		cfg.Port = portFlag
	}

	ctx := context.Background()

	redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	defer redisStore.Close()
	led := ledger.New(redisStore.Client())

	var artifacts artifact.Store
	if cfg.ArtifactS3Bucket != "" {
		artifacts, err = artifact.NewS3Store(ctx, cfg.ArtifactS3Bucket)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.ArtifactS3Bucket).Msg("Failed to create S3 artifact store")
		}
		log.Info().Str("bucket", cfg.ArtifactS3Bucket).Msg("Using S3 artifact store")
	} else {
		artifacts, err = artifact.NewFSStore(cfg.DataPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DataPath).Msg("Failed to create artifact store")
		}
	}

	if err := recovery.Run(ctx, redisStore, led, artifacts); err != nil {
		log.Fatal().Err(err).Msg("Startup reconciliation failed")
	}

	audioDir := filepath.Join(cfg.DataPath, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", audioDir).Msg("Failed to create audio directory")
	}
	downloader := media.NewDownloader(cfg.YtDlpPath, audioDir)
	whisper := transcribe.NewWhisper(cfg.WhisperBinary, cfg.WhisperModel, cfg.WhisperThreads)

	openrouter := provider.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL)
	var extra []provider.Candidate
	if cfg.GeminiAPIKey != "" {
		gemini, err := provider.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn().Err(err).Msg("Gemini candidate disabled")
		} else {
			extra = append(extra, gemini)
		}
	}
	ranker := provider.NewRanker(openrouter, cfg.OpenRouterModel, extra...)

	var fallback provider.Candidate
	if cfg.OllamaURL != "" {
		fallback = provider.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel)
		log.Info().Str("url", cfg.OllamaURL).Str("model", cfg.OllamaModel).Msg("Ollama fallback enabled")
	}
	engine := extract.NewEngine(provider.NewCaller(ranker, fallback))

	manager, err := channels.NewManager(cfg.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load channel subscriptions")
	}
	poller := channels.NewPoller(manager, channels.NewFeedClient(""), led)
	resolver := channels.NewResolver(cfg.YtDlpPath)

	var notifier worker.Notifier
	if n := notify.NewNotifier(cfg.SlackBotToken, cfg.SlackChannel); n != nil {
		notifier = n
		log.Info().Str("channel", cfg.SlackChannel).Msg("Slack notifications enabled")
	}

	q := queue.New()
	w := worker.New(redisStore, q, downloader, whisper, engine, artifacts, led, notifier)

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	go w.Run(workerCtx)

	api := &server.Server{
		Store:           redisStore,
		Queue:           q,
		Artifacts:       artifacts,
		Ledger:          led,
		Channels:        manager,
		Poller:          poller,
		Resolver:        resolver,
		LedgerRetention: recovery.LedgerRetention,
		WhisperModel:    cfg.WhisperModel,
		DefaultLanguage: cfg.Language,
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("Starting highlights service")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}

	// Stop intake, give the worker a short grace period to finish the job in
	// flight, then cancel it.
	q.Close()
	select {
	case <-w.Done():
	case <-time.After(shutdownGrace):
		log.Warn().Msg("Worker still busy after grace period, cancelling")
		workerCancel()
		<-w.Done()
	}
	log.Info().Msg("Shutdown complete")
}
