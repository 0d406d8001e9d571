// Package clout provides a unified API for resolving influencer names
// to enriched Instagram profiles and matching products to influencers.
//
// Basic usage:
//
//	result, err := clout.Find(ctx, "dhruv rathi")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Influencer.Username, result.Source)
//
// Credentials come from the environment (CLOUT_OPENROUTER_API_KEY,
// CLOUT_SERPER_API_KEY, CLOUT_APIFY_TOKEN) or from options:
//
//	result, err := clout.Find(ctx, "dhruv rathi",
//	    clout.WithSerperKey("..."), clout.WithApifyToken("..."))
//
// Or use the package clients directly:
//
//	import "github.com/codeGROOVE-dev/clout/scrape"
//	client := scrape.New(token)
//	prof, posts, _ := client.ProfileAndPosts(ctx, "dhruvrathee")
package clout

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codeGROOVE-dev/clout/enrich"
	"github.com/codeGROOVE-dev/clout/httpcache"
	"github.com/codeGROOVE-dev/clout/llm"
	"github.com/codeGROOVE-dev/clout/profile"
	"github.com/codeGROOVE-dev/clout/resolve"
	"github.com/codeGROOVE-dev/clout/scrape"
	"github.com/codeGROOVE-dev/clout/search"
	"github.com/codeGROOVE-dev/clout/store"
	"github.com/codeGROOVE-dev/clout/vectorindex"
)

type (
	// Influencer re-exports profile.Influencer for convenience.
	Influencer = profile.Influencer
	// Result re-exports enrich.Result for convenience.
	Result = enrich.Result
	// Match re-exports vectorindex.Match for convenience.
	Match = vectorindex.Match
	// Stats re-exports store.Stats for convenience.
	Stats = store.Stats
)

// Re-export common errors.
var (
	ErrNotAPerson      = profile.ErrNotAPerson
	ErrNoCandidates    = profile.ErrNoCandidates
	ErrSelectionFailed = profile.ErrSelectionFailed
	ErrScrapeFailed    = profile.ErrScrapeFailed
	ErrStoreWrite      = profile.ErrStoreWrite
)

// DefaultDBPath is where profiles are persisted unless overridden.
const DefaultDBPath = "influencers.json"

const (
	indexFile     = "influencers.index"
	mappingFile   = "influencers_mapping.json"
	summariesFile = "influencers_summaries.json"
)

// Option configures a Find, MatchProduct, Reindex or DBStats call.
type Option func(*config)

type config struct {
	dbPath        string
	cache         *httpcache.Cache
	logger        *slog.Logger
	progress      enrich.ProgressFunc
	staleAfter    time.Duration
	openRouterKey string
	serperKey     string
	apifyToken    string
}

// WithDBPath sets the profile database location.
func WithDBPath(path string) Option {
	return func(c *config) { c.dbPath = path }
}

// WithHTTPCache sets the response cache shared by the search and
// scrape clients.
func WithHTTPCache(cache *httpcache.Cache) Option {
	return func(c *config) { c.cache = cache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithProgress sets a stage callback for pipeline runs.
func WithProgress(fn enrich.ProgressFunc) Option {
	return func(c *config) { c.progress = fn }
}

// WithStaleAfter overrides the freshness window for cached profiles.
func WithStaleAfter(d time.Duration) Option {
	return func(c *config) { c.staleAfter = d }
}

// WithOpenRouterKey sets the LLM API key explicitly.
func WithOpenRouterKey(key string) Option {
	return func(c *config) { c.openRouterKey = key }
}

// WithSerperKey sets the web search API key explicitly.
func WithSerperKey(key string) Option {
	return func(c *config) { c.serperKey = key }
}

// WithApifyToken sets the scraper API token explicitly.
func WithApifyToken(token string) Option {
	return func(c *config) { c.apifyToken = token }
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		dbPath:        DefaultDBPath,
		logger:        slog.Default(),
		staleAfter:    profile.DefaultStaleAfter,
		openRouterKey: os.Getenv("CLOUT_OPENROUTER_API_KEY"),
		serperKey:     os.Getenv("CLOUT_SERPER_API_KEY"),
		apifyToken:    os.Getenv("CLOUT_APIFY_TOKEN"),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *config) indexPath() string {
	return filepath.Join(filepath.Dir(c.dbPath), indexFile)
}

func (c *config) mappingPath() string {
	return filepath.Join(filepath.Dir(c.dbPath), mappingFile)
}

func (c *config) summariesPath() string {
	return filepath.Join(filepath.Dir(c.dbPath), summariesFile)
}

// loadSummaries reads the summary lookup tier saved beside the index.
// An index mapping without a summaries file still answers username
// lookups.
func (c *config) loadSummaries() *vectorindex.Summaries {
	if records, err := vectorindex.LoadSummaries(c.summariesPath()); err == nil && len(records) > 0 {
		return vectorindex.NewSummaries(records)
	}
	index, err := vectorindex.Load(c.indexPath(), c.mappingPath())
	if err != nil {
		return nil
	}
	usernames := index.Usernames()
	records := make([]vectorindex.Record, 0, len(usernames))
	for _, u := range usernames {
		records = append(records, vectorindex.Record{Username: u})
	}
	return vectorindex.NewSummaries(records)
}

func (c *config) openStore() (*store.Store, error) {
	return store.Open(c.dbPath,
		store.WithLogger(c.logger),
		store.WithStaleAfter(c.staleAfter))
}

func (c *config) ai() *llm.Client {
	return llm.New(c.openRouterKey, llm.WithLogger(c.logger))
}

func (c *config) pipeline(st *store.Store, ai *llm.Client) *enrich.Pipeline {
	var searchOpts []search.Option
	var scrapeOpts []scrape.Option
	searchOpts = append(searchOpts, search.WithLogger(c.logger))
	scrapeOpts = append(scrapeOpts, scrape.WithLogger(c.logger))
	if c.cache != nil {
		searchOpts = append(searchOpts, search.WithCache(c.cache))
		scrapeOpts = append(scrapeOpts, scrape.WithCache(c.cache))
	}

	popts := []enrich.Option{
		enrich.WithLogger(c.logger),
		enrich.WithStaleAfter(c.staleAfter),
	}
	if c.progress != nil {
		popts = append(popts, enrich.WithProgress(c.progress))
	}
	if summaries := c.loadSummaries(); summaries != nil {
		popts = append(popts, enrich.WithSummaries(summaries))
	}

	return enrich.New(st,
		resolve.New(ai, resolve.WithLogger(c.logger)),
		ai,
		search.New(c.serperKey, searchOpts...),
		scrape.New(c.apifyToken, scrapeOpts...),
		popts...)
}

// Find resolves a free-text query to an enriched influencer profile,
// scraping and persisting it when the local store has no fresh record.
func Find(ctx context.Context, query string, opts ...Option) (*enrich.Result, error) {
	cfg := newConfig(opts...)
	st, err := cfg.openStore()
	if err != nil {
		return nil, err
	}
	return cfg.pipeline(st, cfg.ai()).Find(ctx, query)
}

// MatchProduct ranks stored influencers against a product description.
// A saved vector index is reused when it still covers the whole store;
// otherwise matching runs on embeddings built on the fly, falling back
// to keyword scoring when no embedding credentials are configured.
func MatchProduct(ctx context.Context, product string, topK int, opts ...Option) ([]vectorindex.Match, error) {
	cfg := newConfig(opts...)
	st, err := cfg.openStore()
	if err != nil {
		return nil, err
	}
	matcher, err := cfg.matcher(ctx, st)
	if err != nil {
		return nil, err
	}
	return matcher.Match(ctx, product, topK), nil
}

func (c *config) matcher(ctx context.Context, st *store.Store) (*vectorindex.Matcher, error) {
	all := st.All()
	if len(all) == 0 {
		return nil, vectorindex.ErrEmptyIndex
	}
	ai := c.ai()
	mopts := []vectorindex.MatcherOption{vectorindex.WithLogger(c.logger)}

	if index, err := vectorindex.Load(c.indexPath(), c.mappingPath()); err == nil && index.Len() == len(all) {
		records := make([]vectorindex.Record, 0, len(all))
		for _, inf := range all {
			records = append(records, vectorindex.Summarize(inf))
		}
		return vectorindex.NewMatcher(index, records, ai, mopts...), nil
	}

	if ai.Available() {
		matcher, err := vectorindex.BuildMatcher(ctx, ai, all, mopts...)
		if err != nil {
			return nil, err
		}
		if serr := matcher.Index().Save(c.indexPath(), c.mappingPath()); serr != nil {
			c.logger.Warn("failed to save vector index", "error", serr)
		} else if serr := vectorindex.SaveSummaries(c.summariesPath(), matcher.Summaries()); serr != nil {
			c.logger.Warn("failed to save summaries", "error", serr)
		}
		return matcher, nil
	}

	c.logger.Debug("no embedding credentials, using keyword matching")
	records := make([]vectorindex.Record, 0, len(all))
	for _, inf := range all {
		records = append(records, vectorindex.Summarize(inf))
	}
	return vectorindex.NewMatcher(nil, records, ai, mopts...), nil
}

// Reindex rebuilds the vector index from every stored profile and
// saves it next to the database. Returns the number of profiles
// indexed. Requires embedding credentials.
func Reindex(ctx context.Context, opts ...Option) (int, error) {
	cfg := newConfig(opts...)
	st, err := cfg.openStore()
	if err != nil {
		return 0, err
	}
	all := st.All()
	if len(all) == 0 {
		return 0, vectorindex.ErrEmptyIndex
	}
	ai := cfg.ai()
	if !ai.Available() {
		return 0, llm.ErrNoAPIKey
	}
	matcher, err := vectorindex.BuildMatcher(ctx, ai, all, vectorindex.WithLogger(cfg.logger))
	if err != nil {
		return 0, err
	}
	if err := matcher.Index().Save(cfg.indexPath(), cfg.mappingPath()); err != nil {
		return 0, fmt.Errorf("save vector index: %w", err)
	}
	if err := vectorindex.SaveSummaries(cfg.summariesPath(), matcher.Summaries()); err != nil {
		return 0, fmt.Errorf("save summaries: %w", err)
	}
	return matcher.Index().Len(), nil
}

// DBStats reports what the local profile store contains.
func DBStats(opts ...Option) (store.Stats, error) {
	cfg := newConfig(opts...)
	st, err := cfg.openStore()
	if err != nil {
		return store.Stats{}, err
	}
	return st.Stats(), nil
}
