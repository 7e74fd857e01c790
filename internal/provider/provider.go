// Package provider implements the ranked, fallback-ordered calling strategy
// over interchangeable generative-text providers. Candidates are tried in
// order with bounded timeouts; the first parseable response wins. A local
// fallback provider, if configured, is tried once after the ranked list is
// exhausted.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ViktorBarzin/yt-highlights/internal/jsonutil"
)

const (
	// maxRankedAttempts caps the ranked candidates tried per call. Kept
	// small to fail fast; the fallback provider is the reliable path.
	maxRankedAttempts = 5

	attemptTimeout  = 60 * time.Second
	fallbackTimeout = 300 * time.Second // local models can be slow on first load

	temperature = 0.3
)

// Candidate is one provider/model combination the caller can try.
type Candidate interface {
	// Name identifies the candidate in logs and diagnostics.
	Name() string

	// Generate issues the prompt and returns the raw response text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// CandidateSource yields the current ranked candidate list. Implementations
// must never return an empty list.
type CandidateSource interface {
	Candidates(ctx context.Context) []Candidate
}

// Caller tries ranked candidates in order and falls through to the fallback.
// It is stateless across calls; the candidate list cache lives in the source.
type Caller struct {
	source          CandidateSource
	fallback        Candidate // nil when no local fallback is configured
	attemptTimeout  time.Duration
	fallbackTimeout time.Duration
}

// NewCaller creates a caller over source with an optional fallback.
func NewCaller(source CandidateSource, fallback Candidate) *Caller {
	return &Caller{
		source:          source,
		fallback:        fallback,
		attemptTimeout:  attemptTimeout,
		fallbackTimeout: fallbackTimeout,
	}
}

// Call renders the prompt against candidates in ranked order, parsing each
// response into out. Transient failures (transport errors, API errors, empty
// or unparseable content) move on to the next candidate. The error returned
// after full exhaustion carries the last diagnostic.
func (c *Caller) Call(ctx context.Context, prompt string, out any) error {
	candidates := c.source.Candidates(ctx)
	lastErr := errors.New("no candidates available")

	for i, cand := range candidates {
		log.Info().
			Str("model", cand.Name()).
			Int("attempt", i+1).
			Int("candidates", len(candidates)).
			Msg("Trying model")

		if err := c.attempt(ctx, cand, c.attemptTimeout, prompt, out); err != nil {
			log.Warn().Err(err).Str("model", cand.Name()).Msg("Model attempt failed")
			lastErr = err
			continue
		}

		log.Info().Str("model", cand.Name()).Msg("Model succeeded")
		return nil
	}

	if c.fallback != nil {
		log.Info().Str("model", c.fallback.Name()).Msg("All ranked models failed, trying fallback")
		if err := c.attempt(ctx, c.fallback, c.fallbackTimeout, prompt, out); err != nil {
			log.Warn().Err(err).Str("model", c.fallback.Name()).Msg("Fallback failed")
			lastErr = err
		} else {
			log.Info().Str("model", c.fallback.Name()).Msg("Fallback succeeded")
			return nil
		}
	}

	return fmt.Errorf("all models failed, last error: %w", lastErr)
}

func (c *Caller) attempt(ctx context.Context, cand Candidate, timeout time.Duration, prompt string, out any) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := cand.Generate(attemptCtx, prompt)
	if err != nil {
		return fmt.Errorf("model %s: %w", cand.Name(), err)
	}
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("model %s returned empty response", cand.Name())
	}
	if err := jsonutil.ParseInto(raw, out); err != nil {
		return fmt.Errorf("model %s returned unparseable response: %w", cand.Name(), err)
	}
	return nil
}
