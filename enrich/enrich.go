// Package enrich orchestrates the full influencer pipeline: resolve a
// free-text query to a person, look them up locally, find and pick the
// official Instagram profile, scrape it, compute metrics and scores,
// and persist the enriched record.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/codeGROOVE-dev/clout/candidates"
	"github.com/codeGROOVE-dev/clout/metrics"
	"github.com/codeGROOVE-dev/clout/profile"
	"github.com/codeGROOVE-dev/clout/resolve"
	"github.com/codeGROOVE-dev/clout/scoring"
	"github.com/codeGROOVE-dev/clout/scrape"
	"github.com/codeGROOVE-dev/clout/search"
	"github.com/codeGROOVE-dev/clout/store"
	"github.com/codeGROOVE-dev/clout/vectorindex"
)

// Outcome identifies how a pipeline run ended.
type Outcome string

// Terminal outcomes.
const (
	OutcomeNotAPerson      Outcome = "not_a_person"
	OutcomeNoCandidates    Outcome = "no_candidates"
	OutcomeSelectionFailed Outcome = "selection_failed"
	OutcomeScrapeFailed    Outcome = "scrape_failed"
	OutcomeCacheHit        Outcome = "cache_hit"
	OutcomeDone            Outcome = "done"
)

const (
	maxKnownNames    = 50
	topFrequencyCaps = 20
)

// Result is the outcome of one pipeline run.
type Result struct {
	Outcome    Outcome
	Influencer *profile.Influencer
	Query      string
	Corrected  string
	Source     string
	Confidence float64
	Reasoning  string
}

// Searcher finds Instagram profiles on the web.
type Searcher interface {
	Instagram(ctx context.Context, query string) ([]search.Result, error)
}

// Scraper fetches profile metadata and posts.
type Scraper interface {
	ProfileAndPosts(ctx context.Context, username string) (*scrape.RawProfile, []scrape.RawPost, error)
}

// SummaryFinder is the vector-index summary tier, consulted after the
// profile store misses and before any external call.
type SummaryFinder interface {
	Find(term string) (vectorindex.Record, bool)
}

// ProgressFunc receives stage updates. It is called synchronously from
// the pipeline goroutine and must return promptly.
type ProgressFunc func(stage string, pct int)

// Pipeline wires the stages together.
type Pipeline struct {
	store      *store.Store
	resolver   *resolve.Resolver
	ai         resolve.Completer
	searcher   Searcher
	scraper    Scraper
	summaries  SummaryFinder
	logger     *slog.Logger
	progress   ProgressFunc
	staleAfter time.Duration
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithProgress sets a stage callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithSummaries sets the vector-index summary tier for local lookups.
func WithSummaries(s SummaryFinder) Option {
	return func(p *Pipeline) { p.summaries = s }
}

// WithStaleAfter overrides the freshness window for cached records.
func WithStaleAfter(d time.Duration) Option {
	return func(p *Pipeline) { p.staleAfter = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New assembles a pipeline. ai may be nil; resolution and selection
// then run on heuristics, and scoring falls back to the manual formula.
func New(st *store.Store, resolver *resolve.Resolver, ai resolve.Completer, searcher Searcher, scraper Scraper, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      st,
		resolver:   resolver,
		ai:         ai,
		searcher:   searcher,
		scraper:    scraper,
		logger:     slog.Default(),
		staleAfter: profile.DefaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Find resolves and enriches a free-text influencer query. The result
// is always non-nil; failure outcomes also return the matching sentinel
// from the profile package so callers can branch with errors.Is.
func (p *Pipeline) Find(ctx context.Context, query string) (*Result, error) {
	p.notify("searching", 10)
	knownNames := p.knownNames()

	p.notify("spell checking query", 20)
	spell := p.resolver.SpellCorrect(ctx, query, knownNames)
	result := &Result{
		Query:      query,
		Corrected:  spell.CorrectedName,
		Confidence: spell.Confidence,
		Reasoning:  spell.Reasoning,
	}
	if !spell.IsInfluencer {
		p.logger.InfoContext(ctx, "query rejected, not a person", "query", query, "reasoning", spell.Reasoning)
		result.Outcome = OutcomeNotAPerson
		p.notify("query is not a person name", 100)
		return result, fmt.Errorf("%q: %w", query, profile.ErrNotAPerson)
	}
	p.logger.InfoContext(ctx, "query resolved", "query", query,
		"corrected", spell.CorrectedName, "confidence", spell.Confidence)

	p.notify("normalizing search terms", 30)
	norm := p.resolver.Normalize(ctx, spell.CorrectedName, knownNames)

	p.notify("searching local store", 40)
	if rec, source := p.localLookup(query, spell.CorrectedName, norm); rec != nil {
		result.Outcome = OutcomeCacheHit
		result.Influencer = rec
		result.Source = source
		p.notify("found locally", 100)
		return result, nil
	}

	return p.autoScrape(ctx, query, spell.CorrectedName, norm, result)
}

func (p *Pipeline) autoScrape(ctx context.Context, query, corrected string, norm resolve.Normalization, result *Result) (*Result, error) {
	p.notify("searching the web for profiles", 55)
	searchName := norm.SearchName
	if searchName == "" {
		searchName = corrected
	}
	results, err := p.searcher.Instagram(ctx, searchName)
	if err != nil {
		p.logger.WarnContext(ctx, "web search failed", "query", searchName, "error", err)
		result.Outcome = OutcomeScrapeFailed
		p.notify("web search failed", 100)
		return result, fmt.Errorf("web search for %q: %w", searchName, profile.ErrScrapeFailed)
	}

	p.notify("filtering profile candidates", 60)
	_, cands := candidates.Filter(norm, query, results)
	if len(cands) == 0 {
		result.Outcome = OutcomeNoCandidates
		p.notify("no profile candidates", 100)
		return result, fmt.Errorf("%q: %w", query, profile.ErrNoCandidates)
	}
	p.logger.InfoContext(ctx, "candidates found", "query", query, "candidates", len(cands))

	p.notify("selecting official profile", 65)
	sel := p.selectProfile(ctx, query, cands)
	username, canonicalURL := candidates.UsernameFromURL(sel.InstagramURL)
	if username == "" {
		result.Outcome = OutcomeSelectionFailed
		p.notify("could not determine profile", 100)
		return result, fmt.Errorf("%q: %w", query, profile.ErrSelectionFailed)
	}
	p.logger.InfoContext(ctx, "profile selected", "username", username, "confidence", sel.Confidence)
	p.notify("selected @"+username, 70)

	// A record scraped under this exact username may already be fresh.
	if existing := p.store.Get(username); existing != nil && !existing.StaleAt(p.now(), p.staleAfter) {
		result.Outcome = OutcomeCacheHit
		result.Influencer = existing
		result.Source = "store:@" + existing.Username
		p.notify("found fresh record for @"+username, 100)
		return result, nil
	}

	p.notify("scraping profile and posts for @"+username, 75)
	raw, rawPosts, err := p.scraper.ProfileAndPosts(ctx, username)
	if err != nil {
		p.logger.WarnContext(ctx, "scrape failed", "username", username, "error", err)
		result.Outcome = OutcomeScrapeFailed
		p.notify("scrape failed", 100)
		return result, fmt.Errorf("scrape @%s: %v: %w", username, err, profile.ErrScrapeFailed)
	}

	rec := raw.Influencer(username)
	rec.ProfileURL = canonicalURL
	rec.OriginalQuery = query
	rec.Source = "apify"
	rec.LastScraped = p.now()
	p.notify(fmt.Sprintf("found %s with %d followers", rec.Name, rec.FollowersCount), 85)

	p.notify("analyzing posts", 90)
	p.analyzeAndScore(ctx, rec, rawPosts)

	p.notify("saving record", 95)
	if err := p.store.Upsert(rec); err != nil {
		result.Outcome = OutcomeScrapeFailed
		p.notify("save failed", 100)
		return result, err
	}

	// Return what the store now holds, not the local struct.
	result.Outcome = OutcomeDone
	result.Influencer = p.store.Get(rec.Username)
	result.Source = "scraped:@" + rec.Username
	p.notify("saved @"+rec.Username, 100)
	return result, nil
}

// selectProfile asks the model to pick among the candidates, falling
// back to the first candidate when the model is unavailable or answers
// unusably.
func (p *Pipeline) selectProfile(ctx context.Context, query string, cands []candidates.Candidate) candidates.Selection {
	if p.ai != nil && p.ai.Available() {
		response, err := p.ai.Complete(ctx, candidates.SelectionPrompt(query, cands))
		if err == nil {
			if sel := candidates.ParseSelection(response); sel.InstagramURL != "" {
				return sel
			}
			p.logger.Debug("selection response unusable, using first candidate", "query", query)
		} else {
			p.logger.Debug("selection completion failed, using first candidate", "query", query, "error", err)
		}
	}
	return candidates.FallbackSelection(query, cands[0])
}

// analyzeAndScore fills posts, metrics, frequency tallies and scores.
func (p *Pipeline) analyzeAndScore(ctx context.Context, rec *profile.Influencer, rawPosts []scrape.RawPost) {
	rec.Posts = metrics.Analyze(rawPosts)
	if len(rec.Posts) == 0 {
		p.logger.InfoContext(ctx, "no posts, storing profile-only record", "username", rec.Username)
		rec.Scores = scoring.ProfileOnly
		return
	}

	rec.Metrics = metrics.Aggregate(rec.Posts)
	tallyPosts(rec)
	rec.Scores = p.score(ctx, rec.Username, rec.Metrics)
}

// score tries the model first and falls back to the manual formula on
// failure or a degenerate all-zero answer.
func (p *Pipeline) score(ctx context.Context, username string, m profile.Metrics) profile.Scores {
	if p.ai != nil && p.ai.Available() {
		response, err := p.ai.Complete(ctx, scoring.Prompt(username, m))
		if err == nil {
			scores := scoring.Parse(response)
			if !scores.Zero() {
				return scores
			}
			p.logger.Warn("model returned all-zero scores, recalculating", "username", username)
		} else {
			p.logger.Debug("model scoring failed, using manual formula", "username", username, "error", err)
		}
	}
	return scoring.Manual(m)
}

// localLookup tries every name variation against both local tiers
// before any remote call: the profile store first, then the
// vector-index summaries. Stale store records do not count as hits;
// summaries carry no scrape timestamp and regenerate with the index.
func (p *Pipeline) localLookup(query, corrected string, norm resolve.Normalization) (*profile.Influencer, string) {
	terms := []string{corrected, norm.SearchName}
	terms = append(terms, norm.Aliases...)
	terms = append(terms, norm.Handles...)
	terms = append(terms, query)

	seen := make(map[string]bool)
	deduped := make([]string, 0, len(terms))
	for _, term := range terms {
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		deduped = append(deduped, term)
	}

	for _, term := range deduped {
		rec, ok := p.store.Find(term)
		if !ok {
			continue
		}
		if rec.StaleAt(p.now(), p.staleAfter) {
			p.logger.Debug("local record is stale, rescraping", "term", term, "username", rec.Username)
			continue
		}
		return rec, "store:@" + rec.Username
	}

	if p.summaries == nil {
		return nil, ""
	}
	varied := append(deduped, resolve.Variations(corrected)...)
	if norm.SearchName != "" && norm.SearchName != corrected {
		varied = append(varied, resolve.Variations(norm.SearchName)...)
	}
	tried := make(map[string]bool, len(varied))
	for _, term := range varied {
		if term == "" || tried[term] {
			continue
		}
		tried[term] = true
		r, ok := p.summaries.Find(term)
		if !ok {
			continue
		}
		rec := r.Influencer()
		p.logger.Debug("summary tier hit", "term", term, "username", rec.Username)
		return rec, "embeddings:@" + rec.Username
	}
	return nil, ""
}

// knownNames formats stored influencers as LLM prompt context.
func (p *Pipeline) knownNames() []string {
	all := p.store.All()
	if len(all) > maxKnownNames {
		all = all[:maxKnownNames]
	}
	names := make([]string, 0, len(all))
	for _, rec := range all {
		name := rec.Name
		if name == "" {
			name = rec.Username
		}
		names = append(names, fmt.Sprintf("%s (@%s)", name, rec.Username))
	}
	return names
}

func (p *Pipeline) notify(stage string, pct int) {
	if p.progress != nil {
		p.progress(stage, pct)
	}
}

// tallyPosts derives hashtag and mention frequencies plus brand
// collaborations (accounts mentioned in sponsored posts).
func tallyPosts(rec *profile.Influencer) {
	hashtags := make(map[string]int)
	mentions := make(map[string]int)
	brands := make(map[string]bool)

	for _, post := range rec.Posts {
		for _, tag := range post.Hashtags {
			hashtags[tag]++
		}
		for _, mention := range post.Mentions {
			mentions[mention]++
			if post.IsAd {
				brands[mention] = true
			}
		}
	}

	rec.HashtagFrequency = metrics.TopCounts(hashtags, topFrequencyCaps)
	rec.MentionFrequency = metrics.TopCounts(mentions, topFrequencyCaps)

	if len(brands) > 0 {
		collabs := make([]string, 0, len(brands))
		for brand := range brands {
			collabs = append(collabs, brand)
		}
		sort.Strings(collabs)
		rec.Collaborations = collabs
	}
}
