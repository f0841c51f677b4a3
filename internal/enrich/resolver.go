package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultSemanticScholarBaseURL is the public Graph API endpoint.
const DefaultSemanticScholarBaseURL = "https://api.semanticscholar.org"

// SemanticScholarResolver resolves s2 paper ids to arXiv ids through the
// Semantic Scholar Graph API. The public API is rate limited, so every
// lookup goes through a shared limiter.
type SemanticScholarResolver struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// ResolverOption customizes the resolver.
type ResolverOption func(*SemanticScholarResolver)

// WithAPIKey attaches an x-api-key header to lookups.
func WithAPIKey(key string) ResolverOption {
	return func(r *SemanticScholarResolver) { r.apiKey = key }
}

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *SemanticScholarResolver) { r.client = c }
}

// WithRateLimit overrides the requests-per-second throttle.
func WithRateLimit(rps float64) ResolverOption {
	return func(r *SemanticScholarResolver) {
		r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewSemanticScholarResolver builds a resolver against baseURL
// (DefaultSemanticScholarBaseURL in production).
func NewSemanticScholarResolver(baseURL string, logger *zap.Logger, opts ...ResolverOption) *SemanticScholarResolver {
	if baseURL == "" {
		baseURL = DefaultSemanticScholarBaseURL
	}
	r := &SemanticScholarResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		// The unauthenticated API allows roughly 1 req/s.
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type paperExternalIDs struct {
	ExternalIDs map[string]string `json:"externalIds"`
}

// ResolveArxivID looks up the paper's external ids and returns the arXiv id,
// or "" when the paper has none.
func (r *SemanticScholarResolver) ResolveArxivID(ctx context.Context, s2ID string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/graph/v1/paper/%s?fields=externalIds", r.baseURL, s2ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build lookup request: %w", err)
	}
	if r.apiKey != "" {
		req.Header.Set("x-api-key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("semantic scholar lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("semantic scholar lookup returned status %d", resp.StatusCode)
	}

	var ids paperExternalIDs
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return "", fmt.Errorf("decode lookup response: %w", err)
	}
	return ids.ExternalIDs["ArXiv"], nil
}
