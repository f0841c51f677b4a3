package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/metrics"
	"github.com/scholarflow/orchestrator/internal/tracing"
)

// DefaultInvokeTimeout bounds a single agent call. Hosted model calls are
// slow (seconds to tens of seconds) but must never hang the workflow.
const DefaultInvokeTimeout = 120 * time.Second

// Request is the payload sent to the hosted agent service. Input carries
// the role-specific content; Context carries structured extras the role
// instruction refers to.
type Request struct {
	Instruction string                 `json:"instruction"`
	Input       string                 `json:"input"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Schema      string                 `json:"schema,omitempty"`
}

// Response is the agent service reply. Message is raw model text; callers
// parse it against the role's expected schema and fall back to a raw-text
// wrapper on failure.
type Response struct {
	Message      string `json:"message"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Client invokes hosted agents over HTTP, one endpoint per role. It is a
// single opaque request/response call with no side effects visible to the
// orchestrator beyond the return value.
type Client struct {
	baseURL string
	catalog Catalog
	http    *http.Client
	logger  *zap.Logger
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient builds an agent client against the agent service base URL.
func NewClient(baseURL string, catalog Catalog, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		catalog: catalog,
		http:    &http.Client{Timeout: DefaultInvokeTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke calls the hosted agent for the given role. Transport and status
// failures return an error; the activity layer decides whether that means
// degraded continuation or a failed run.
func (c *Client) Invoke(ctx context.Context, role string, input string, extra map[string]interface{}) (Response, error) {
	r, ok := c.catalog[role]
	if !ok {
		return Response{}, fmt.Errorf("unknown agent role %q", role)
	}

	ctx, span := tracing.Start(ctx, "agent."+role)
	defer span.End()

	body, err := json.Marshal(Request{
		Instruction: r.Instruction,
		Input:       input,
		Context:     extra,
		Schema:      r.Schema,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal %s request: %w", role, err)
	}

	url := fmt.Sprintf("%s/agent/%s", c.baseURL, role)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build %s request: %w", role, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	metrics.AgentInvocationDuration.WithLabelValues(role).Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		metrics.AgentInvocations.WithLabelValues(role, "error").Inc()
		return Response{}, fmt.Errorf("call %s agent: %w", role, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.AgentInvocations.WithLabelValues(role, "error").Inc()
		// Read a short error body for the log, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Agent service returned error status",
			zap.String("role", role),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return Response{}, fmt.Errorf("%s agent returned status %d", role, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.AgentInvocations.WithLabelValues(role, "error").Inc()
		return Response{}, fmt.Errorf("decode %s response: %w", role, err)
	}
	if out.Message == "" {
		metrics.AgentInvocations.WithLabelValues(role, "error").Inc()
		return Response{}, fmt.Errorf("%s agent returned empty message", role)
	}

	metrics.AgentInvocations.WithLabelValues(role, "ok").Inc()
	c.logger.Debug("Agent invocation complete",
		zap.String("role", role),
		zap.String("model", out.Model),
		zap.Duration("elapsed", elapsed),
		zap.Int("output_tokens", out.OutputTokens),
	)
	return out, nil
}
