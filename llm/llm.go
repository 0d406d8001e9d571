// Package llm provides the completion and embedding client used by the
// resolution pipeline. It speaks the OpenAI-compatible chat/embeddings
// API (OpenRouter by default) and never lets a transport failure escape
// undecorated: callers get an error and are expected to fall back to
// their deterministic path.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	openai "github.com/sashabaranov/go-openai"
)

// Defaults match the production configuration.
const (
	DefaultBaseURL        = "https://openrouter.ai/api/v1"
	DefaultModel          = "openai/gpt-oss-20b:free"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultEmbeddingDim   = 384
	defaultTimeout        = 60 * time.Second
	defaultMaxTokens      = 1024
	defaultTemperature    = 0.1
)

// ErrNoAPIKey is returned when the client was built without credentials.
var ErrNoAPIKey = errors.New("llm: no API key configured")

// ErrEmptyCompletion is returned when the model produced no usable text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Client wraps the completion and embedding endpoints.
type Client struct {
	api        *openai.Client
	logger     *slog.Logger
	model      string
	embedModel string
	embedDim   int
	timeout    time.Duration
	attempts   uint
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL    string
	model      string
	embedModel string
	embedDim   int
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	attempts   uint
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option { return func(c *config) { c.baseURL = u } }

// WithModel overrides the completion model.
func WithModel(m string) Option { return func(c *config) { c.model = m } }

// WithEmbeddingModel overrides the embedding model and dimension.
func WithEmbeddingModel(m string, dim int) Option {
	return func(c *config) { c.embedModel = m; c.embedDim = dim }
}

// WithHTTPClient sets the shared pooled transport.
func WithHTTPClient(hc *http.Client) Option { return func(c *config) { c.httpClient = hc } }

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithAttempts sets the retry bound per call.
func WithAttempts(n uint) Option { return func(c *config) { c.attempts = n } }

// New creates a Client. An empty apiKey is allowed; calls will return
// ErrNoAPIKey so the pipeline's fallbacks engage.
func New(apiKey string, opts ...Option) *Client {
	cfg := &config{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		embedModel: DefaultEmbeddingModel,
		embedDim:   DefaultEmbeddingDim,
		logger:     slog.Default(),
		timeout:    defaultTimeout,
		attempts:   3,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var api *openai.Client
	if apiKey != "" {
		oc := openai.DefaultConfig(apiKey)
		oc.BaseURL = cfg.baseURL
		if cfg.httpClient != nil {
			oc.HTTPClient = cfg.httpClient
		}
		api = openai.NewClientWithConfig(oc)
	}

	return &Client{
		api:        api,
		logger:     cfg.logger,
		model:      cfg.model,
		embedModel: cfg.embedModel,
		embedDim:   cfg.embedDim,
		timeout:    cfg.timeout,
		attempts:   cfg.attempts,
	}
}

// Available reports whether the client has credentials to make calls.
func (c *Client) Available() bool { return c != nil && c.api != nil }

// Complete sends a single user prompt and returns the trimmed
// completion text. Retries with exponential backoff on transient
// failures; an empty completion after all attempts is an error.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteModel(ctx, c.model, prompt)
}

// CompleteModel is Complete with an explicit model id.
func (c *Client) CompleteModel(ctx context.Context, model, prompt string) (string, error) {
	if !c.Available() {
		return "", ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return retry.DoWithData(
		func() (string, error) {
			resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       model,
				Temperature: defaultTemperature,
				MaxTokens:   defaultMaxTokens,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
			})
			if err != nil {
				return "", fmt.Errorf("chat completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return "", ErrEmptyCompletion
			}
			content := strings.TrimSpace(resp.Choices[0].Message.Content)
			if content == "" {
				return "", ErrEmptyCompletion
			}
			return content, nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(time.Second),
		retry.MaxJitter(500*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying LLM call", "attempt", n+1, "model", model, "error", err)
		}),
	)
}

// Embed converts a batch of texts into unit-normalized fixed-dimension
// vectors, preserving order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.Available() {
		return nil, ErrNoAPIKey
	}
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := retry.DoWithData(
		func() (openai.EmbeddingResponse, error) {
			return c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input:      texts,
				Model:      openai.EmbeddingModel(c.embedModel),
				Dimensions: c.embedDim,
			})
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(time.Second),
		retry.MaxJitter(500*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying embedding call", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = Normalize(d.Embedding)
	}
	return vectors, nil
}

// Normalize L2-normalizes a vector in place and returns it. Zero
// vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// isRetryable returns true for transient failures: rate limits, server
// errors and anything that is not a definitive 4xx response.
func isRetryable(err error) bool {
	if errors.Is(err, ErrEmptyCompletion) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	return true
}
