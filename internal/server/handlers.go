package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ViktorBarzin/yt-highlights/internal/artifact"
	"github.com/ViktorBarzin/yt-highlights/internal/job"
	"github.com/ViktorBarzin/yt-highlights/internal/queue"
	"github.com/ViktorBarzin/yt-highlights/internal/store"
)

type processRequest struct {
	URL           string `json:"url"`
	Language      string `json:"language"`
	NumHighlights int    `json:"num_highlights"`
}

// POST /process
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		httpError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.Language == "" {
		req.Language = s.DefaultLanguage
	}
	if req.NumHighlights <= 0 {
		req.NumHighlights = defaultNumHighlights
	}
	if req.NumHighlights > maxNumHighlights {
		req.NumHighlights = maxNumHighlights
	}

	j := job.New(req.URL, req.Language, req.NumHighlights)
	if err := s.Store.Put(r.Context(), j); err != nil {
		log.Error().Err(err).Msg("Failed to persist new job")
		httpError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	if err := s.Queue.Enqueue(queue.Item{
		JobID:         j.ID,
		VideoURL:      j.VideoURL,
		Language:      j.Language,
		NumHighlights: j.NumHighlights,
	}); err != nil {
		httpError(w, http.StatusServiceUnavailable, "service is shutting down")
		return
	}

	log.Info().Str("jobId", j.ID).Str("url", j.VideoURL).Msg("Job accepted")
	respondJSON(w, http.StatusAccepted, j)
}

// GET /status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/status/")
	if id == "" {
		httpError(w, http.StatusBadRequest, "job id is required")
		return
	}

	j, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "job not found")
			return
		}
		httpError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	respondJSON(w, http.StatusOK, j)
}

// GET /results/{id}
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/results/")
	if id == "" {
		httpError(w, http.StatusBadRequest, "job id is required")
		return
	}

	j, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "job not found")
			return
		}
		httpError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if j.Status != job.StatusCompleted || j.Result == nil {
		httpError(w, http.StatusConflict, fmt.Sprintf("job not completed, current status %s", j.Status))
		return
	}

	result, err := s.Artifacts.GetResult(r.Context(), j.Result.VideoID)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) && j.Result != nil {
			// The job record still carries the result even if the
			// artifact was pruned.
			respondJSON(w, http.StatusOK, j.Result)
			return
		}
		httpError(w, http.StatusInternalServerError, "failed to load result")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GET /jobs: lists all job records, expiring stale ones first.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if expired, err := store.ExpireStale(r.Context(), s.Store, store.JobExpiry); err != nil {
		log.Warn().Err(err).Msg("Expiry sweep failed during listing")
	} else if expired > 0 {
		log.Info().Int("count", expired).Msg("Expired stale jobs")
	}

	jobs, err := s.Store.List(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// DELETE /jobs/{id}
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" {
		httpError(w, http.StatusBadRequest, "job id is required")
		return
	}

	j, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "job not found")
			return
		}
		httpError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if err := s.Store.Delete(r.Context(), id); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}
	if j.Result != nil {
		if err := s.Artifacts.DeleteResult(r.Context(), j.Result.VideoID); err != nil {
			log.Warn().Err(err).Str("videoId", j.Result.VideoID).Msg("Failed to delete result artifact")
		}
		if err := s.Artifacts.DeleteTranscript(r.Context(), j.Result.VideoID); err != nil {
			log.Warn().Err(err).Str("videoId", j.Result.VideoID).Msg("Failed to delete transcript artifact")
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// GET /processed: returns the result documents of processed videos, newest
// first, pruning aged ledger entries before listing.
func (s *Server) handleProcessed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if pruned, err := s.Ledger.Prune(r.Context(), s.LedgerRetention, s.Artifacts); err != nil {
		log.Warn().Err(err).Msg("Ledger prune failed during listing")
	} else if len(pruned) > 0 {
		log.Info().Int("count", len(pruned)).Msg("Pruned processed videos")
	}

	entries, err := s.Ledger.All(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to list processed videos")
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ProcessedAt.After(entries[j].ProcessedAt)
	})

	results := make([]*job.Result, 0, len(entries))
	for _, entry := range entries {
		result, err := s.Artifacts.GetResult(r.Context(), entry.VideoID)
		if err != nil {
			if !errors.Is(err, artifact.ErrNotFound) {
				log.Warn().Err(err).Str("videoId", entry.VideoID).Msg("Failed to load processed result")
			}
			continue
		}
		results = append(results, result)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"processed": results,
		"count":     len(results),
	})
}

type addChannelRequest struct {
	Channel string `json:"channel"`
}

// GET|POST /channels
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"channels": s.Channels.List(),
		})
	case http.MethodPost:
		var req addChannelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Channel == "" {
			httpError(w, http.StatusBadRequest, "channel is required")
			return
		}
		id, name, err := s.Resolver.Resolve(r.Context(), req.Channel)
		if err != nil {
			log.Warn().Err(err).Str("channel", req.Channel).Msg("Channel resolution failed")
			httpError(w, http.StatusBadRequest, "could not resolve channel")
			return
		}
		if err := s.Channels.Add(id, name); err != nil {
			httpError(w, http.StatusInternalServerError, "failed to save channel")
			return
		}
		log.Info().Str("channelId", id).Str("name", name).Msg("Channel subscribed")
		respondJSON(w, http.StatusCreated, map[string]string{"id": id, "name": name})
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// DELETE /channels/{id}
func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/channels/")
	if id == "" {
		httpError(w, http.StatusBadRequest, "channel id is required")
		return
	}

	removed, err := s.Channels.Remove(id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to remove channel")
		return
	}
	if !removed {
		httpError(w, http.StatusNotFound, "channel not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// POST /channels/migrate: rewrites legacy handle-keyed subscriptions.
func (s *Server) handleChannelsMigrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	migrated, err := s.Channels.Migrate(func(input string) (string, string, error) {
		return s.Resolver.Resolve(r.Context(), input)
	})
	if err != nil {
		httpError(w, http.StatusInternalServerError, "migration failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"migrated": migrated,
		"count":    len(migrated),
	})
}

// POST /check-new: polls feeds without enqueueing anything.
func (s *Server) handleCheckNew(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	found, err := s.Poller.NewVideos(r.Context(), checkNewLimit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "feed poll failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"new_videos": found,
		"count":      len(found),
	})
}

// POST /auto-process: polls feeds and enqueues every new video.
func (s *Server) handleAutoProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	found, err := s.Poller.NewVideos(r.Context(), autoProcessLimit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "feed poll failed")
		return
	}

	queued := make([]*job.Job, 0, len(found))
	for _, v := range found {
		j := job.New(v.URL, s.DefaultLanguage, defaultNumHighlights)
		if err := s.Store.Put(r.Context(), j); err != nil {
			log.Warn().Err(err).Str("videoId", v.VideoID).Msg("Failed to persist auto-process job")
			continue
		}
		if err := s.Queue.Enqueue(queue.Item{
			JobID:         j.ID,
			VideoURL:      j.VideoURL,
			Language:      j.Language,
			NumHighlights: j.NumHighlights,
		}); err != nil {
			log.Warn().Err(err).Str("videoId", v.VideoID).Msg("Queue closed, stopping auto-process")
			break
		}
		log.Info().Str("jobId", j.ID).Str("videoId", v.VideoID).Str("channel", v.ChannelName).Msg("Auto-processing new upload")
		queued = append(queued, j)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  queued,
		"count": len(queued),
	})
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"whisper_model": s.WhisperModel,
		"device":        "cpu",
		"queue_length":  s.Queue.Len(),
	})
}
