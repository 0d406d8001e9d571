// Package profile defines the common types for influencer profile enrichment.
package profile

import (
	"errors"
	"time"
)

// Common errors returned by pipeline packages.
var (
	ErrNotAPerson      = errors.New("query is not a person name")
	ErrNoCandidates    = errors.New("no profile candidates found")
	ErrSelectionFailed = errors.New("profile selection failed")
	ErrScrapeFailed    = errors.New("profile scrape failed")
	ErrStoreWrite      = errors.New("store write failed")
)

// DefaultStaleAfter is how long a scraped profile stays fresh.
// Callers may tune the window via store options; this is only the default.
const DefaultStaleAfter = 7 * 24 * time.Hour

// TopComment is the most-liked comment observed on a post.
type TopComment struct {
	Text  string `json:"text"`
	Likes int    `json:"likes"`
}

// NoComments is the sentinel TopComment for posts without comments.
var NoComments = TopComment{Text: "No comments found", Likes: 0}

// Post represents one analyzed social post.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Post struct {
	ID         string     `json:"post_id"`
	Type       string     `json:"type"`
	URL        string     `json:"url"`
	Timestamp  time.Time  `json:"timestamp"`
	Topic      string     `json:"topic"` // first caption line, truncated
	Likes      int        `json:"likes"`
	Comments   int        `json:"comments"`
	VideoViews int        `json:"video_views"`
	IsAd       bool       `json:"is_ad"`
	Hashtags   []string   `json:"hashtags,omitempty"`
	Mentions   []string   `json:"mentions,omitempty"`
	TopComment TopComment `json:"top_comment"`
}

// Metrics is the aggregated numeric snapshot derived from a post set.
// It is always recomputed from the full post collection, never patched.
type Metrics struct {
	PostsAnalyzed          int            `json:"posts_analyzed"`
	AvgEngagement          float64        `json:"avg_engagement"`
	AvgEngagementOrganic   float64        `json:"avg_engagement_organic"`
	AvgEngagementSponsored float64        `json:"avg_engagement_sponsored"`
	AvgLikes               float64        `json:"avg_likes"`
	AvgComments            float64        `json:"avg_comments"`
	AvgViews               float64        `json:"avg_views"`
	StdevEngagement        float64        `json:"stdev_engagement"`
	ConsistencyScore       float64        `json:"consistency_score"`
	OrganicPct             float64        `json:"organic_pct"`
	PostingAvgDays         float64        `json:"posting_avg_days"`
	CommentShare           float64        `json:"comment_share"`
	CommentsPer10kViews    float64        `json:"comments_per_10k_views"`
	AdDisclosurePct        float64        `json:"ad_disclosure_pct"`
	HashtagCounts          map[string]int `json:"hashtag_counts,omitempty"`
}

// Scores holds the four bounded [0,100] quality scores.
type Scores struct {
	Authenticity   float64 `json:"authenticity"`
	BrandSafety    float64 `json:"brand_safety"`
	AudienceMatch  float64 `json:"audience_match"`
	ContentQuality float64 `json:"content_quality"`
}

// Zero reports whether all four scores are zero, which marks a
// degenerate LLM scoring round.
func (s Scores) Zero() bool {
	return s.Authenticity == 0 && s.BrandSafety == 0 && s.AudienceMatch == 0 && s.ContentQuality == 0
}

// InRange reports whether every score is within [0,100].
func (s Scores) InRange() bool {
	for _, v := range []float64{s.Authenticity, s.BrandSafety, s.AudienceMatch, s.ContentQuality} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

// Influencer is the canonical enriched record, keyed by lowercase username.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Influencer struct {
	// Identity
	Username        string `json:"username"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	ProfileURL      string `json:"profile_url"`
	Bio             string `json:"bio"`
	Website         string `json:"website,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	Category        string `json:"category,omitempty"`
	Verified        bool   `json:"verified"`
	BusinessAccount bool   `json:"business_account"`

	// Audience
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
	PostsCount     int `json:"posts_count"`

	// Enrichment
	Posts            []Post         `json:"posts,omitempty"`
	Metrics          Metrics        `json:"metrics"`
	Scores           Scores         `json:"scores"`
	Collaborations   []string       `json:"collaborations,omitempty"`
	HashtagFrequency map[string]int `json:"hashtag_frequency,omitempty"`
	MentionFrequency map[string]int `json:"mention_frequency,omitempty"`

	// Provenance
	LastScraped   time.Time `json:"last_scraped"`
	OriginalQuery string    `json:"original_query,omitempty"`
	Source        string    `json:"source,omitempty"`
}

// OrganicPosts returns the non-sponsored subset of Posts.
func (p *Influencer) OrganicPosts() []Post {
	var out []Post
	for _, post := range p.Posts {
		if !post.IsAd {
			out = append(out, post)
		}
	}
	return out
}

// SponsoredPosts returns the sponsored subset of Posts.
func (p *Influencer) SponsoredPosts() []Post {
	var out []Post
	for _, post := range p.Posts {
		if post.IsAd {
			out = append(out, post)
		}
	}
	return out
}

// StaleAt reports whether the record counts as stale at the given
// instant, using the supplied freshness window.
func (p *Influencer) StaleAt(now time.Time, window time.Duration) bool {
	if p.LastScraped.IsZero() {
		return true
	}
	return now.Sub(p.LastScraped) > window
}

// Stale reports staleness against the default window.
func (p *Influencer) Stale() bool {
	return p.StaleAt(time.Now(), DefaultStaleAfter)
}
