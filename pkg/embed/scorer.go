package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ScorerConfig holds the settings for a remote scoring service.
type ScorerConfig struct {
	// URL is the base URL of the scoring service,
	// e.g. http://localhost:9090.
	URL string

	// Path is the scoring endpoint, default /v1/score.
	Path string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// DefaultScorerConfig returns settings for a local scoring service.
func DefaultScorerConfig() *ScorerConfig {
	return &ScorerConfig{
		URL:     "http://localhost:9090",
		Path:    "/v1/score",
		Timeout: 30 * time.Second,
	}
}

// HTTPScorer is a Scorer backed by a remote model service: it posts
// the triple and reads back a probability. Safe for concurrent use.
type HTTPScorer struct {
	config *ScorerConfig
	client *http.Client
}

// NewHTTPScorer creates a scorer for a remote service. A nil config
// uses defaults.
func NewHTTPScorer(config *ScorerConfig) *HTTPScorer {
	if config == nil {
		config = DefaultScorerConfig()
	}
	if config.Path == "" {
		config.Path = "/v1/score"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &HTTPScorer{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

type scoreRequest struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

type scoreResponse struct {
	Probability float64 `json:"probability"`
}

// EstimateTripleProb posts the triple to the scoring service. A 503
// from the service maps to ErrModelNotReady.
func (s *HTTPScorer) EstimateTripleProb(sub, pred, ob string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
	defer cancel()

	body, err := json.Marshal(scoreRequest{Subject: sub, Predicate: pred, Object: ob})
	if err != nil {
		return 0, fmt.Errorf("marshal score request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL+s.config.Path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("score request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return 0, ErrModelNotReady
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("scoring service returned %d: %s", resp.StatusCode, msg)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}
	return out.Probability, nil
}
