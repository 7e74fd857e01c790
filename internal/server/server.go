// Package server exposes the HTTP API: job submission and inspection,
// channel subscription management and feed polling triggers.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ViktorBarzin/yt-highlights/internal/artifact"
	"github.com/ViktorBarzin/yt-highlights/internal/channels"
	"github.com/ViktorBarzin/yt-highlights/internal/ledger"
	"github.com/ViktorBarzin/yt-highlights/internal/queue"
	"github.com/ViktorBarzin/yt-highlights/internal/store"
)

const (
	// checkNewLimit and autoProcessLimit cap how many feed entries are
	// inspected per channel. Auto-processing is tighter so a newly added
	// channel cannot flood the queue with its backlog.
	checkNewLimit    = 5
	autoProcessLimit = 3

	defaultNumHighlights = 5
	maxNumHighlights     = 20
)

// ProcessedLedger is the subset of the ledger the API needs.
type ProcessedLedger interface {
	All(ctx context.Context) ([]ledger.Entry, error)
	Prune(ctx context.Context, maxAge time.Duration, artifacts ledger.ArtifactDeleter) ([]string, error)
}

// ChannelResolver turns a handle or URL into a channel id and name.
type ChannelResolver interface {
	Resolve(ctx context.Context, input string) (string, string, error)
}

// Server holds the API dependencies. Fields are set once at startup.
type Server struct {
	Store           store.Store
	Queue           *queue.Queue
	Artifacts       artifact.Store
	Ledger          ProcessedLedger
	Channels        *channels.Manager
	Poller          *channels.Poller
	Resolver        ChannelResolver
	LedgerRetention time.Duration

	// Reported by /health.
	WhisperModel    string
	DefaultLanguage string
}

// Handler builds the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/process", s.handleProcess)
	mux.HandleFunc("/status/", s.handleStatus)
	mux.HandleFunc("/results/", s.handleResults)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleDeleteJob)
	mux.HandleFunc("/processed", s.handleProcessed)
	mux.HandleFunc("/channels", s.handleChannels)
	mux.HandleFunc("/channels/migrate", s.handleChannelsMigrate)
	mux.HandleFunc("/channels/", s.handleDeleteChannel)
	mux.HandleFunc("/check-new", s.handleCheckNew)
	mux.HandleFunc("/auto-process", s.handleAutoProcess)
	mux.HandleFunc("/health", s.handleHealth)

	return withLogging(mux)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("API request")
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
