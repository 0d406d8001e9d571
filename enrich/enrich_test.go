package enrich

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/clout/profile"
	"github.com/codeGROOVE-dev/clout/resolve"
	"github.com/codeGROOVE-dev/clout/scrape"
	"github.com/codeGROOVE-dev/clout/search"
	"github.com/codeGROOVE-dev/clout/store"
	"github.com/codeGROOVE-dev/clout/vectorindex"
)

// fakeAI dispatches on prompt content so one fake serves spell
// correction, normalization, selection and scoring.
type fakeAI struct {
	spell     string
	normalize string
	selection string
	scoring   string
	err       error
}

func (f *fakeAI) Complete(_ context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	switch {
	case strings.Contains(prompt, "Is Influencer:"):
		return f.spell, nil
	case strings.Contains(prompt, "Choose the OFFICIAL"):
		return f.selection, nil
	case strings.Contains(prompt, "influencer marketing analyst"):
		return f.scoring, nil
	default:
		return f.normalize, nil
	}
}

func (f *fakeAI) Available() bool { return true }

type fakeSearcher struct {
	results []search.Result
	err     error
	calls   atomic.Int64
}

func (f *fakeSearcher) Instagram(_ context.Context, _ string) ([]search.Result, error) {
	f.calls.Add(1)
	return f.results, f.err
}

type fakeScraper struct {
	profile *scrape.RawProfile
	posts   []scrape.RawPost
	err     error
	calls   atomic.Int64
}

func (f *fakeScraper) ProfileAndPosts(_ context.Context, _ string) (*scrape.RawProfile, []scrape.RawPost, error) {
	f.calls.Add(1)
	return f.profile, f.posts, f.err
}

func openStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "influencers.json"), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func dhruvAI() *fakeAI {
	return &fakeAI{
		spell: "Is Influencer: Yes\nCorrected Name: Dhruv Rathee\nConfidence: 0.9\nReasoning: known creator",
		normalize: `Search Name: Dhruv Rathee

Aliases:
- dhruv rathi

Handles:
- dhruvrathee`,
		selection: "Name: Dhruv Rathee\nUsername: dhruvrathee\nInstagram URL: https://www.instagram.com/dhruvrathee/\nConfidence: 0.95",
		scoring:   "Authenticity: 82\nBrand Safety: 90\nAudience Match: 76\nContent Quality: 81",
	}
}

func dhruvSearch() *fakeSearcher {
	return &fakeSearcher{results: []search.Result{
		{Title: "Dhruv Rathee (@dhruvrathee)", Link: "https://www.instagram.com/dhruvrathee/?hl=en", Snippet: "official"},
		{Title: "wiki", Link: "https://en.wikipedia.org/wiki/Dhruv_Rathee"},
	}}
}

func dhruvScraper() *fakeScraper {
	return &fakeScraper{
		profile: &scrape.RawProfile{
			Username:       "dhruvrathee",
			FullName:       "Dhruv Rathee",
			Biography:      "YouTuber",
			Verified:       true,
			FollowersCount: 12000000,
		},
		posts: []scrape.RawPost{
			{ID: "p1", Type: "Video", Timestamp: "2026-08-20T10:00:00.000Z",
				LikesCount: 500000, CommentsCount: 20000, VideoViewCount: 4000000,
				Hashtags: []string{"#politics"}, Mentions: []string{"someone"}},
			{ID: "p2", Type: "Video", Timestamp: "2026-08-24T10:00:00.000Z",
				LikesCount: 400000, CommentsCount: 15000, VideoViewCount: 3500000,
				PaidPartnership: true, Hashtags: []string{"#ad"}, Mentions: []string{"somebrand"}},
		},
	}
}

func TestFindEndToEnd(t *testing.T) {
	st := openStore(t)
	ai := dhruvAI()
	searcher := dhruvSearch()
	scraper := dhruvScraper()

	var lastStage string
	p := New(st, resolve.New(ai), ai, searcher, scraper,
		WithProgress(func(stage string, _ int) { lastStage = stage }))

	result, err := p.Find(context.Background(), "dhruv rathi")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Outcome != OutcomeDone {
		t.Fatalf("Outcome = %v, want done", result.Outcome)
	}
	if result.Source != "scraped:@dhruvrathee" {
		t.Errorf("Source = %q", result.Source)
	}
	if result.Corrected != "Dhruv Rathee" {
		t.Errorf("Corrected = %q", result.Corrected)
	}

	rec := result.Influencer
	if rec == nil {
		t.Fatal("result has no influencer")
	}
	if rec.Username != "dhruvrathee" || rec.FollowersCount != 12000000 {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Posts) != 2 {
		t.Errorf("got %d posts, want 2", len(rec.Posts))
	}
	if rec.Metrics.PostsAnalyzed != 2 {
		t.Errorf("PostsAnalyzed = %d, want 2", rec.Metrics.PostsAnalyzed)
	}
	if rec.Scores.Authenticity != 82 || rec.Scores.BrandSafety != 90 {
		t.Errorf("Scores = %+v, want model scores", rec.Scores)
	}
	if got := rec.Collaborations; len(got) != 1 || got[0] != "somebrand" {
		t.Errorf("Collaborations = %v, want [somebrand]", got)
	}
	if rec.LastScraped.IsZero() {
		t.Error("LastScraped not set")
	}

	// The returned record must be the persisted one.
	if stored := st.Get("dhruvrathee"); stored == nil || stored != rec {
		t.Error("result does not carry the stored record")
	}
	if lastStage != "saved @dhruvrathee" {
		t.Errorf("last progress stage = %q", lastStage)
	}
}

func TestFindNotAPerson(t *testing.T) {
	st := openStore(t)
	searcher := &fakeSearcher{}
	scraper := &fakeScraper{}

	// No AI configured: the heuristic rejects topic queries outright.
	p := New(st, resolve.New(nil), nil, searcher, scraper)

	result, err := p.Find(context.Background(), "best gaming laptop")
	if !errors.Is(err, profile.ErrNotAPerson) {
		t.Fatalf("error = %v, want ErrNotAPerson", err)
	}
	if result.Outcome != OutcomeNotAPerson {
		t.Errorf("Outcome = %v", result.Outcome)
	}
	if searcher.calls.Load() != 0 || scraper.calls.Load() != 0 {
		t.Error("rejected query must make no external calls")
	}
}

func TestFindLocalHit(t *testing.T) {
	st := openStore(t)
	existing := &profile.Influencer{
		Username:    "dhruvrathee",
		Name:        "Dhruv Rathee",
		LastScraped: time.Now(),
	}
	if err := st.Upsert(existing); err != nil {
		t.Fatal(err)
	}

	searcher := dhruvSearch()
	scraper := dhruvScraper()
	p := New(st, resolve.New(nil), nil, searcher, scraper)

	result, err := p.Find(context.Background(), "dhruv rathee")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Outcome != OutcomeCacheHit {
		t.Fatalf("Outcome = %v, want cache hit", result.Outcome)
	}
	if result.Source != "store:@dhruvrathee" {
		t.Errorf("Source = %q", result.Source)
	}
	if searcher.calls.Load() != 0 || scraper.calls.Load() != 0 {
		t.Error("local hit must make no external calls")
	}
}

func TestFindStaleRecordRescrapes(t *testing.T) {
	st := openStore(t)
	stale := &profile.Influencer{
		Username:    "dhruvrathee",
		Name:        "Dhruv Rathee",
		LastScraped: time.Now().Add(-8 * 24 * time.Hour),
	}
	if err := st.Upsert(stale); err != nil {
		t.Fatal(err)
	}

	ai := dhruvAI()
	scraper := dhruvScraper()
	p := New(st, resolve.New(ai), ai, dhruvSearch(), scraper)

	result, err := p.Find(context.Background(), "dhruv rathee")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Outcome != OutcomeDone {
		t.Fatalf("Outcome = %v, want done after rescrape", result.Outcome)
	}
	if scraper.calls.Load() != 1 {
		t.Errorf("scraper called %d times, want 1", scraper.calls.Load())
	}
	if result.Influencer.LastScraped.Equal(stale.LastScraped) {
		t.Error("record was not refreshed")
	}
}

func TestFindNoCandidates(t *testing.T) {
	st := openStore(t)
	ai := dhruvAI()
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "wiki", Link: "https://en.wikipedia.org/wiki/Dhruv_Rathee"},
	}}
	scraper := dhruvScraper()

	p := New(st, resolve.New(ai), ai, searcher, scraper)

	result, err := p.Find(context.Background(), "dhruv rathee")
	if !errors.Is(err, profile.ErrNoCandidates) {
		t.Fatalf("error = %v, want ErrNoCandidates", err)
	}
	if result.Outcome != OutcomeNoCandidates {
		t.Errorf("Outcome = %v", result.Outcome)
	}
	if scraper.calls.Load() != 0 {
		t.Error("no candidates must mean no scrapes")
	}
}

func TestFindScrapeFailed(t *testing.T) {
	st := openStore(t)
	ai := dhruvAI()
	scraper := &fakeScraper{err: errors.New("actor timed out")}

	p := New(st, resolve.New(ai), ai, dhruvSearch(), scraper)

	result, err := p.Find(context.Background(), "dhruv rathee")
	if !errors.Is(err, profile.ErrScrapeFailed) {
		t.Fatalf("error = %v, want ErrScrapeFailed", err)
	}
	if result.Outcome != OutcomeScrapeFailed {
		t.Errorf("Outcome = %v", result.Outcome)
	}
	if st.Get("dhruvrathee") != nil {
		t.Error("failed scrape must not persist a record")
	}
}

func TestFindSelectionFallsBackToFirstCandidate(t *testing.T) {
	st := openStore(t)
	ai := dhruvAI()
	ai.selection = "I cannot decide, sorry."
	scraper := dhruvScraper()

	p := New(st, resolve.New(ai), ai, dhruvSearch(), scraper)

	result, err := p.Find(context.Background(), "dhruv rathee")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Outcome != OutcomeDone {
		t.Errorf("Outcome = %v, want done via first-candidate fallback", result.Outcome)
	}
	if result.Influencer.Username != "dhruvrathee" {
		t.Errorf("Username = %q", result.Influencer.Username)
	}
}

func TestFindZeroScoresRecalculated(t *testing.T) {
	st := openStore(t)
	ai := dhruvAI()
	ai.scoring = "Authenticity: 0\nBrand Safety: 0\nAudience Match: 0\nContent Quality: 0"

	p := New(st, resolve.New(ai), ai, dhruvSearch(), dhruvScraper())

	result, err := p.Find(context.Background(), "dhruv rathee")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Influencer.Scores.Zero() {
		t.Error("all-zero model scores must be replaced by the manual formula")
	}
	if !result.Influencer.Scores.InRange() {
		t.Errorf("manual scores out of range: %+v", result.Influencer.Scores)
	}
}

func TestFindProfileOnly(t *testing.T) {
	st := openStore(t)
	ai := dhruvAI()
	scraper := dhruvScraper()
	scraper.posts = nil

	p := New(st, resolve.New(ai), ai, dhruvSearch(), scraper)

	result, err := p.Find(context.Background(), "dhruv rathee")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	rec := result.Influencer
	if len(rec.Posts) != 0 {
		t.Errorf("got %d posts, want none", len(rec.Posts))
	}
	want := profile.Scores{Authenticity: 70, BrandSafety: 85, AudienceMatch: 60, ContentQuality: 65}
	if rec.Scores != want {
		t.Errorf("Scores = %+v, want profile-only defaults %+v", rec.Scores, want)
	}
}

func TestFindCachedUsernameSkipsScrape(t *testing.T) {
	// A fresh record exists under a handle variation of the query, so
	// the run ends without any search or scrape.
	st := openStore(t)
	existing := &profile.Influencer{
		Username:    "dhruvrathee",
		Name:        "a different display name entirely",
		LastScraped: time.Now(),
	}
	if err := st.Upsert(existing); err != nil {
		t.Fatal(err)
	}

	ai := dhruvAI()
	scraper := dhruvScraper()
	p := New(st, resolve.New(ai), ai, dhruvSearch(), scraper)

	result, err := p.Find(context.Background(), "dhruv rathi")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Outcome != OutcomeCacheHit {
		t.Fatalf("Outcome = %v, want cache hit by username", result.Outcome)
	}
	if scraper.calls.Load() != 0 {
		t.Error("fresh username record must skip scraping")
	}
}

func TestFindSummaryTierHit(t *testing.T) {
	// The profile store is empty but the vector-index summaries know
	// the account: the run ends locally with no search or scrape.
	st := openStore(t)
	searcher := &fakeSearcher{}
	scraper := &fakeScraper{}
	summaries := vectorindex.NewSummaries([]vectorindex.Record{{
		Username:  "dhruvrathee",
		Name:      "Dhruv Rathee",
		Category:  "Politics",
		Followers: 12000000,
	}})

	p := New(st, resolve.New(nil), nil, searcher, scraper, WithSummaries(summaries))

	result, err := p.Find(context.Background(), "dhruv rathee")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Outcome != OutcomeCacheHit {
		t.Fatalf("Outcome = %v, want cache hit", result.Outcome)
	}
	if result.Source != "embeddings:@dhruvrathee" {
		t.Errorf("Source = %q", result.Source)
	}
	if result.Influencer == nil || result.Influencer.Source != "embeddings" {
		t.Errorf("Influencer = %+v, want summary-derived record", result.Influencer)
	}
	if result.Influencer.FollowersCount != 12000000 {
		t.Errorf("FollowersCount = %d", result.Influencer.FollowersCount)
	}
	if searcher.calls.Load() != 0 || scraper.calls.Load() != 0 {
		t.Error("summary tier hit must not reach the network")
	}
}

func TestFindSummaryTierUsernameVariation(t *testing.T) {
	// The summary record lives under a suffixed handle that only the
	// username variation generator produces.
	st := openStore(t)
	searcher := &fakeSearcher{}
	scraper := &fakeScraper{}
	summaries := vectorindex.NewSummaries([]vectorindex.Record{{
		Username: "dhruvratheevlogs",
	}})

	p := New(st, resolve.New(nil), nil, searcher, scraper, WithSummaries(summaries))

	result, err := p.Find(context.Background(), "dhruv rathee")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Outcome != OutcomeCacheHit {
		t.Fatalf("Outcome = %v, want cache hit", result.Outcome)
	}
	if result.Source != "embeddings:@dhruvratheevlogs" {
		t.Errorf("Source = %q", result.Source)
	}
	if scraper.calls.Load() != 0 {
		t.Error("variation hit must not trigger a scrape")
	}
}

func TestFindStoreTierBeforeSummaries(t *testing.T) {
	// Both tiers know the account; the fresh store record wins.
	st := openStore(t)
	if err := st.Upsert(&profile.Influencer{
		Username:    "dhruvrathee",
		Name:        "Dhruv Rathee",
		LastScraped: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	summaries := vectorindex.NewSummaries([]vectorindex.Record{{
		Username: "dhruvrathee",
		Name:     "Dhruv Rathee",
	}})

	p := New(st, resolve.New(nil), nil, &fakeSearcher{}, &fakeScraper{}, WithSummaries(summaries))

	result, err := p.Find(context.Background(), "dhruv rathee")
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if result.Source != "store:@dhruvrathee" {
		t.Errorf("Source = %q, want the store tier first", result.Source)
	}
}
