// Package search finds Instagram profiles via the Serper Google search API.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/clout/httpcache"
)

const (
	endpoint = "https://google.serper.dev/search"

	// India-focused defaults, matching the audience the pipeline scores for.
	country    = "in"
	language   = "en"
	numResults = 10

	requestTimeout = 30 * time.Second
)

// Result is one organic search hit.
type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Response is the subset of the Serper payload the pipeline uses.
type Response struct {
	Organic []Result `json:"organic"`
}

// Client queries Serper.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	apiKey     string
	endpoint   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache sets the response cache.
func WithCache(cache httpcache.Cacher) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// New creates a search client. apiKey may be empty; Instagram calls
// then fail with ErrNoAPIKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: httpcache.NewHTTPClient(),
		logger:     slog.Default(),
		apiKey:     apiKey,
		endpoint:   endpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ErrNoAPIKey indicates the Serper key is not configured.
var ErrNoAPIKey = errors.New("serper API key not configured")

// Instagram searches for Instagram profiles matching query. The query
// is scoped with site:instagram.com before being sent.
func (c *Client) Instagram(ctx context.Context, query string) ([]Result, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	payload, err := json.Marshal(map[string]any{
		"q":   query + " site:instagram.com",
		"gl":  country,
		"hl":  language,
		"num": numResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	c.logger.InfoContext(ctx, "searching instagram profiles", "query", query)

	header := http.Header{}
	header.Set("X-API-KEY", c.apiKey)
	header.Set("Content-Type", "application/json")

	body, err := httpcache.Do(ctx, c.cache, c.httpClient, httpcache.Request{
		Method:  http.MethodPost,
		URL:     c.endpoint,
		Header:  header,
		Body:    payload,
		Timeout: requestTimeout,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	c.logger.InfoContext(ctx, "search complete", "query", query, "results", len(resp.Organic))
	return resp.Organic, nil
}
