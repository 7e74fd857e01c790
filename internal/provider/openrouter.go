package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	catalogTTL          = time.Hour
	catalogFetchTimeout = 30 * time.Second
)

// staticFreeModels is the ranked fallback used when the live catalog cannot
// be fetched. Ordered by observed reliability for structured-JSON output.
var staticFreeModels = []string{
	"deepseek/deepseek-r1-0528:free",
	"google/gemini-2.0-flash-exp:free",
	"meta-llama/llama-3.3-70b-instruct:free",
	"mistralai/mistral-small-3.1-24b-instruct:free",
	"google/gemma-3-27b-it:free",
}

// OpenRouterClient talks to the OpenRouter chat-completions and model-catalog
// endpoints. It is safe for concurrent use.
type OpenRouterClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewOpenRouterClient creates a client. baseURL falls back to the public API
// when empty. Per-request deadlines come from the caller's context.
func NewOpenRouterClient(apiKey, baseURL string) *OpenRouterClient {
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	return &OpenRouterClient{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Candidate wraps one catalog model as a ranked candidate.
func (c *OpenRouterClient) Candidate(model string) Candidate {
	return &openRouterCandidate{client: c, model: model}
}

type openRouterCandidate struct {
	client *OpenRouterClient
	model  string
}

func (o *openRouterCandidate) Name() string { return o.model }

func (o *openRouterCandidate) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.client.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.client.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openrouter: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openrouter error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// fetchFreeModels queries the live catalog and returns ids of zero-cost
// models. The order of the catalog is preserved.
func (c *OpenRouterClient) fetchFreeModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch model catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model catalog status %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			ID      string `json:"id"`
			Pricing struct {
				Prompt     string `json:"prompt"`
				Completion string `json:"completion"`
			} `json:"pricing"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode model catalog: %w", err)
	}

	var free []string
	for _, m := range parsed.Data {
		if strings.HasSuffix(m.ID, ":free") || (m.Pricing.Prompt == "0" && m.Pricing.Completion == "0") {
			free = append(free, m.ID)
		}
	}
	if len(free) == 0 {
		return nil, fmt.Errorf("model catalog lists no free models")
	}
	return free, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Ranker builds the ranked candidate list from the OpenRouter free-model
// catalog, with the configured primary model first and extra candidates
// (e.g. Gemini) appended. The catalog is cached for catalogTTL; when it
// cannot be fetched a static list keeps the service working.
type Ranker struct {
	client       *OpenRouterClient
	primaryModel string
	extra        []Candidate

	mu        sync.Mutex
	cached    []string
	fetchedAt time.Time
	now       func() time.Time
}

// NewRanker creates a ranker. primaryModel is tried first when present in
// the catalog; extra candidates rank after the OpenRouter models.
func NewRanker(client *OpenRouterClient, primaryModel string, extra ...Candidate) *Ranker {
	return &Ranker{
		client:       client,
		primaryModel: primaryModel,
		extra:        extra,
		now:          time.Now,
	}
}

// Candidates returns the ranked list, at most maxRankedAttempts long.
func (r *Ranker) Candidates(ctx context.Context) []Candidate {
	models := r.freeModels(ctx)

	limit := maxRankedAttempts - len(r.extra)
	if limit < 1 {
		limit = 1
	}
	if len(models) > limit {
		models = models[:limit]
	}

	candidates := make([]Candidate, 0, len(models)+len(r.extra))
	for _, m := range models {
		candidates = append(candidates, r.client.Candidate(m))
	}
	candidates = append(candidates, r.extra...)
	if len(candidates) > maxRankedAttempts {
		candidates = candidates[:maxRankedAttempts]
	}
	return candidates
}

// freeModels returns the cached catalog, refreshing it past the TTL. The
// primary model is moved to the front; failures fall back to the static list.
func (r *Ranker) freeModels(ctx context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.now().Sub(r.fetchedAt) < catalogTTL {
		return r.cached
	}

	models, err := r.client.fetchFreeModels(ctx)
	if err != nil {
		// The static list is served but not cached, so the next call
		// retries the catalog instead of pinning the fallback for the TTL.
		log.Warn().Err(err).Msg("Free model catalog unavailable, using static list")
		return rankPrimaryFirst(staticFreeModels, r.primaryModel)
	}
	log.Info().Int("count", len(models)).Msg("Refreshed free model catalog")

	r.cached = rankPrimaryFirst(models, r.primaryModel)
	r.fetchedAt = r.now()
	return r.cached
}

// rankPrimaryFirst moves primary to the front when present, otherwise
// prepends it so a configured model is always attempted first.
func rankPrimaryFirst(models []string, primary string) []string {
	if primary == "" {
		return models
	}
	ranked := make([]string, 0, len(models)+1)
	ranked = append(ranked, primary)
	for _, m := range models {
		if m != primary {
			ranked = append(ranked, m)
		}
	}
	return ranked
}
