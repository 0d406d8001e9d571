package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/codeGROOVE-dev/clout/metrics"
	"github.com/codeGROOVE-dev/clout/profile"
)

const (
	// DefaultTopK bounds how many matches a query returns.
	DefaultTopK = 8

	maxSummaryHashtags = 15
	maxEmbedHashtags   = 10

	// Keyword fallback weights.
	categoryWeight = 30
	hashtagWeight  = 15
	bioWeight      = 10
)

// Embedder is the slice of the LLM client the matcher needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Available() bool
}

// Record is the compact influencer summary kept alongside the index.
type Record struct {
	Username       string   `json:"username"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Bio            string   `json:"bio"`
	TopHashtags    []string `json:"top_hashtags,omitempty"`
	Followers      int      `json:"followers"`
	EngagementRate float64  `json:"engagement_rate"`
	Verified       bool     `json:"verified"`
	Collaborations []string `json:"brand_collaborations,omitempty"`
	Scores         profile.Scores
}

// Summarize distills an influencer into a Record.
func Summarize(inf *profile.Influencer) Record {
	return Record{
		Username:       inf.Username,
		Name:           inf.Name,
		Category:       inf.Category,
		Bio:            inf.Bio,
		TopHashtags:    metrics.TopKeys(inf.HashtagFrequency, maxSummaryHashtags),
		Followers:      inf.FollowersCount,
		EngagementRate: inf.Metrics.AvgEngagement,
		Verified:       inf.Verified,
		Collaborations: inf.Collaborations,
		Scores:         inf.Scores,
	}
}

// EmbedText returns the text embedded for this record.
func (r Record) EmbedText() string {
	tags := r.TopHashtags
	if len(tags) > maxEmbedHashtags {
		tags = tags[:maxEmbedHashtags]
	}
	return strings.TrimSpace(r.Name + " " + r.Category + " " + r.Bio + " " + strings.Join(tags, " "))
}

// Match is one ranked result.
type Match struct {
	Record
	Score      float64 `json:"semantic_match_score"`
	Confidence float64 `json:"match_confidence"`
	Rank       int     `json:"rank"`
}

// Matcher ranks influencers against free-text product descriptions.
type Matcher struct {
	index    *Index
	records  map[string]Record
	embedder Embedder
	logger   *slog.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) MatcherOption {
	return func(m *Matcher) { m.logger = logger }
}

// NewMatcher creates a matcher over the given records. index may be
// nil; matching then falls back to keyword scoring.
func NewMatcher(index *Index, records []Record, embedder Embedder, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		index:    index,
		records:  make(map[string]Record, len(records)),
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, r := range records {
		m.records[strings.ToLower(r.Username)] = r
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BuildMatcher embeds every influencer summary and assembles an index
// plus matcher in one step.
func BuildMatcher(ctx context.Context, embedder Embedder, influencers []*profile.Influencer, opts ...MatcherOption) (*Matcher, error) {
	if len(influencers) == 0 {
		return nil, ErrEmptyIndex
	}

	records := make([]Record, 0, len(influencers))
	texts := make([]string, 0, len(influencers))
	usernames := make([]string, 0, len(influencers))
	for _, inf := range influencers {
		r := Summarize(inf)
		records = append(records, r)
		texts = append(texts, r.EmbedText())
		usernames = append(usernames, r.Username)
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed influencer summaries: %w", err)
	}
	index, err := Build(vectors, usernames)
	if err != nil {
		return nil, err
	}
	return NewMatcher(index, records, embedder, opts...), nil
}

// Index returns the underlying index, which may be nil.
func (m *Matcher) Index() *Index {
	return m.index
}

// Summaries returns the records backing this matcher, ordered by
// username, for saving beside the index.
func (m *Matcher) Summaries() []Record {
	records := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	sort.Slice(records, func(a, b int) bool { return records[a].Username < records[b].Username })
	return records
}

// Match ranks stored influencers against a product description. The
// semantic path needs both an index and a working embedder; otherwise
// the keyword scorer answers.
func (m *Matcher) Match(ctx context.Context, product string, topK int) []Match {
	if topK <= 0 {
		topK = DefaultTopK
	}

	if m.index != nil && m.embedder != nil && m.embedder.Available() {
		matches, err := m.semanticMatch(ctx, product, topK)
		if err == nil {
			return matches
		}
		m.logger.Warn("semantic match failed, falling back to keywords", "error", err)
	}
	return m.keywordMatch(product)
}

func (m *Matcher) semanticMatch(ctx context.Context, product string, topK int) ([]Match, error) {
	vectors, err := m.embedder.Embed(ctx, []string{product})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vectors))
	}

	hits, err := m.index.Search(vectors[0], topK)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, hit := range hits {
		record, ok := m.records[strings.ToLower(hit.Username)]
		if !ok {
			continue
		}
		score := float64(hit.Score)
		matches = append(matches, Match{
			Record:     record,
			Score:      score,
			Confidence: clamp01(score) * 100,
			Rank:       len(matches) + 1,
		})
	}
	return matches, nil
}

// keywordMatch scores records by keyword overlap: category hits weigh
// most, then hashtags, then bio.
func (m *Matcher) keywordMatch(product string) []Match {
	keywords := strings.Fields(strings.ToLower(product))

	var matches []Match
	for _, record := range m.records {
		score := 0
		category := strings.ToLower(record.Category)
		bio := strings.ToLower(record.Bio)

		for _, kw := range keywords {
			if category != "" && strings.Contains(category, kw) {
				score += categoryWeight
			}
			for _, tag := range record.TopHashtags {
				if strings.Contains(strings.ToLower(tag), kw) {
					score += hashtagWeight
					break
				}
			}
			if bio != "" && strings.Contains(bio, kw) {
				score += bioWeight
			}
		}

		if score > 0 {
			matches = append(matches, Match{
				Record:     record,
				Score:      float64(score) / 100,
				Confidence: min(float64(score), 100),
			})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].Username < matches[b].Username
	})
	if len(matches) > DefaultTopK {
		matches = matches[:DefaultTopK]
	}
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches
}

// Explain produces a one-line justification for a match.
func Explain(m Match, product string) string {
	name := m.Name
	if name == "" {
		name = m.Username
	}
	category := strings.ToLower(m.Category)
	if category == "" {
		category = "recent"
	}
	return fmt.Sprintf("Strong alignment: %s's %s content fits %s.", name, category, product)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
