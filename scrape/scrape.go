// Package scrape pulls Instagram profile and post data through Apify's
// run-sync actor endpoints.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/clout/httpcache"
	"github.com/codeGROOVE-dev/clout/profile"
)

const (
	defaultBaseURL = "https://api.apify.com"

	postsActor   = "/v2/acts/apify~instagram-post-scraper/run-sync-get-dataset-items"
	profileActor = "/v2/acts/apify~instagram-profile-scraper/run-sync-get-dataset-items"

	postsLimit         = 50
	combinedPostsCount = 30

	// run-sync calls block until the actor finishes, so these timeouts
	// are generous.
	postsTimeout    = 300 * time.Second
	profileTimeout  = 120 * time.Second
	combinedTimeout = 300 * time.Second
)

// Errors returned by the scraper.
var (
	ErrNoToken         = errors.New("apify token not configured")
	ErrProfileNotFound = errors.New("profile not found")
)

// Client runs Apify actors.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	token      string
	baseURL    string
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

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// New creates a scrape client. token may be empty; calls then fail
// with ErrNoToken.
func New(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: httpcache.NewHTTPClient(),
		logger:     slog.Default(),
		token:      token,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether the client holds a token.
func (c *Client) Available() bool {
	return c.token != ""
}

// Posts fetches recent posts for username via the post scraper actor.
func (c *Client) Posts(ctx context.Context, username string) ([]RawPost, error) {
	if !c.Available() {
		return nil, ErrNoToken
	}
	c.logger.InfoContext(ctx, "scraping posts", "username", username)

	body, err := c.run(ctx, postsActor, map[string]any{
		"resultsLimit":    postsLimit,
		"skipPinnedPosts": false,
		"username":        []string{username},
	}, postsTimeout)
	if err != nil {
		return nil, fmt.Errorf("posts scrape for %s: %w", username, err)
	}

	posts, err := decodeItems[RawPost](body)
	if err != nil {
		return nil, fmt.Errorf("posts scrape for %s: %w", username, err)
	}
	c.logger.InfoContext(ctx, "posts scraped", "username", username, "posts", len(posts))
	return posts, nil
}

// Profile fetches profile metadata only, without posts.
func (c *Client) Profile(ctx context.Context, username string) (*RawProfile, error) {
	if !c.Available() {
		return nil, ErrNoToken
	}
	c.logger.InfoContext(ctx, "scraping profile", "username", username)

	body, err := c.run(ctx, profileActor, map[string]any{
		"usernames":         []string{username},
		"resultsLimit":      1,
		"includePostsCount": 0,
	}, profileTimeout)
	if err != nil {
		return nil, fmt.Errorf("profile scrape for %s: %w", username, err)
	}

	profiles, err := decodeItems[RawProfile](body)
	if err != nil {
		return nil, fmt.Errorf("profile scrape for %s: %w", username, err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("profile scrape for %s: %w", username, ErrProfileNotFound)
	}
	return &profiles[0], nil
}

// Combined fetches profile metadata with embedded recent posts in one
// actor run. Slower than Posts but survives post-scraper outages.
func (c *Client) Combined(ctx context.Context, username string) (*RawProfile, []RawPost, error) {
	if !c.Available() {
		return nil, nil, ErrNoToken
	}
	c.logger.InfoContext(ctx, "scraping combined profile and posts", "username", username)

	body, err := c.run(ctx, profileActor, map[string]any{
		"usernames":         []string{username},
		"resultsLimit":      1,
		"includePostsCount": combinedPostsCount,
	}, combinedTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("combined scrape for %s: %w", username, err)
	}

	profiles, err := decodeItems[RawProfile](body)
	if err != nil {
		return nil, nil, fmt.Errorf("combined scrape for %s: %w", username, err)
	}
	if len(profiles) == 0 {
		return nil, nil, fmt.Errorf("combined scrape for %s: %w", username, ErrProfileNotFound)
	}
	return &profiles[0], profiles[0].EmbeddedPosts(), nil
}

// ProfileAndPosts fetches profile metadata and posts concurrently. If
// the post scraper comes back empty, the combined actor is tried once
// as a fallback before giving up on posts. A missing profile is fatal;
// missing posts are not.
func (c *Client) ProfileAndPosts(ctx context.Context, username string) (*RawProfile, []RawPost, error) {
	if !c.Available() {
		return nil, nil, ErrNoToken
	}

	var (
		prof     *RawProfile
		profErr  error
		posts    []RawPost
		postsErr error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		prof, profErr = c.Profile(ctx, username)
	}()
	go func() {
		defer wg.Done()
		posts, postsErr = c.Posts(ctx, username)
	}()
	wg.Wait()

	if len(posts) == 0 {
		if postsErr != nil {
			c.logger.WarnContext(ctx, "post scraper failed, trying combined actor",
				"username", username, "error", postsErr)
		} else {
			c.logger.InfoContext(ctx, "post scraper returned nothing, trying combined actor",
				"username", username)
		}
		combProf, combPosts, combErr := c.Combined(ctx, username)
		switch {
		case combErr != nil:
			c.logger.WarnContext(ctx, "combined actor also failed", "username", username, "error", combErr)
		default:
			if len(combPosts) > 0 {
				posts = combPosts
			}
			if prof == nil {
				prof = combProf
			}
		}
	}

	if prof == nil {
		if profErr != nil {
			return nil, nil, profErr
		}
		return nil, nil, fmt.Errorf("profile scrape for %s: %w", username, ErrProfileNotFound)
	}
	return prof, posts, nil
}

// Ping verifies the token works by fetching a well-known profile.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Profile(ctx, "instagram")
	return err
}

func (c *Client) run(ctx context.Context, actor string, payload any, timeout time.Duration) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal actor input: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	header.Set("Content-Type", "application/json")

	return httpcache.Do(ctx, c.cache, c.httpClient, httpcache.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + actor,
		Header:  header,
		Body:    body,
		Timeout: timeout,
	}, c.logger)
}

// decodeItems accepts both dataset shapes Apify produces: a bare JSON
// array, or an object wrapping the array under "items".
func decodeItems[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode dataset: %w", err)
		}
		return items, nil
	}
	var wrapper struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return wrapper.Items, nil
}

// Influencer converts scraped profile metadata into the canonical
// record. Posts, metrics and scores are filled in by later stages.
func (p *RawProfile) Influencer(username string) *profile.Influencer {
	if p.Username != "" {
		username = p.Username
	}
	return &profile.Influencer{
		Username:        username,
		Name:            p.DisplayName(),
		FullName:        p.DisplayName(),
		ProfileURL:      "https://instagram.com/" + username + "/",
		Bio:             p.BioText(),
		Website:         p.WebsiteURL(),
		AvatarURL:       p.ProfilePicURL,
		Category:        p.BusinessCategoryName,
		Verified:        p.Verified,
		BusinessAccount: p.BusinessAccount,
		FollowersCount:  p.FollowersCount,
		FollowingCount:  p.FollowsCount,
		PostsCount:      p.PostsCount,
	}
}
