// Package metrics turns raw scraped posts into engagement and
// consistency statistics. Everything here is a pure function of its
// input: the same post list always yields identical output.
package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/clout/profile"
	"github.com/codeGROOVE-dev/clout/scrape"
)

const (
	maxTopicLen = 100
	// ConsistencyCap bounds the consistency score below a perfect 100:
	// even a zero-variance account keeps some residual uncertainty.
	ConsistencyCap = 85.0
)

// Analyze converts raw scraper output into Post records. Individual
// malformed posts are skipped, never fatal to the batch.
func Analyze(raw []scrape.RawPost) []profile.Post {
	posts := make([]profile.Post, 0, len(raw))
	for _, rp := range raw {
		posts = append(posts, analyzeOne(rp))
	}
	return posts
}

func analyzeOne(rp scrape.RawPost) profile.Post {
	top := profile.NoComments
	for _, c := range rp.LatestComments {
		if top == profile.NoComments || c.LikesCount > top.Likes {
			top = profile.TopComment{Text: c.Text, Likes: c.LikesCount}
		}
	}

	isAd := rp.PaidPartnership || rp.IsSponsored
	for _, h := range rp.Hashtags {
		if strings.EqualFold(h, "ad") {
			isAd = true
			break
		}
	}

	caption := rp.Caption
	if caption == "" {
		caption = rp.Text
	}
	if caption == "" {
		caption = "No caption"
	}
	topic, _, _ := strings.Cut(caption, "\n")
	if len(topic) > maxTopicLen {
		topic = topic[:maxTopicLen]
	}

	views := rp.VideoViewCount
	if rp.VideoPlayCount > views {
		views = rp.VideoPlayCount
	}

	return profile.Post{
		ID:         rp.ID,
		Type:       rp.Type,
		URL:        rp.URL,
		Timestamp:  parseTimestamp(rp.Timestamp),
		Topic:      topic,
		Likes:      rp.LikesCount,
		Comments:   rp.CommentsCount,
		VideoViews: views,
		IsAd:       isAd,
		Hashtags:   rp.Hashtags,
		Mentions:   rp.Mentions,
		TopComment: top,
	}
}

// parseTimestamp parses provider timestamps tolerantly. Unparseable
// values yield the zero time, which Aggregate excludes from interval
// statistics.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// EngagementRate computes the per-post engagement rate:
// (likes+comments)/views when views are known, otherwise
// (likes+comments)/max(likes,1).
func EngagementRate(p profile.Post) float64 {
	interactions := float64(p.Likes + p.Comments)
	if p.VideoViews > 0 {
		return interactions / float64(p.VideoViews)
	}
	base := p.Likes
	if base < 1 {
		base = 1
	}
	return interactions / float64(base)
}

// Aggregate computes the metrics snapshot for a post collection. The
// result is always derived from the full set; callers must not mutate
// it in place.
func Aggregate(posts []profile.Post) profile.Metrics {
	if len(posts) == 0 {
		return profile.Metrics{}
	}

	var ers, ersOrganic, ersSponsored []float64
	var totalLikes, totalComments, totalViews int
	var timestamps []time.Time
	hashtagCounts := make(map[string]int)

	for _, p := range posts {
		er := EngagementRate(p)
		if er > 0 {
			ers = append(ers, er)
			if p.IsAd {
				ersSponsored = append(ersSponsored, er)
			} else {
				ersOrganic = append(ersOrganic, er)
			}
		}
		totalLikes += p.Likes
		totalComments += p.Comments
		totalViews += p.VideoViews
		if !p.Timestamp.IsZero() {
			timestamps = append(timestamps, p.Timestamp)
		}
		for _, h := range p.Hashtags {
			hashtagCounts[h]++
		}
	}

	stdev := sampleStdev(ers)
	consistency := clamp(100-stdev*10, 0, ConsistencyCap)

	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
	var postingAvgDays float64
	if len(timestamps) > 1 {
		var sum float64
		for i := 1; i < len(timestamps); i++ {
			sum += timestamps[i].Sub(timestamps[i-1]).Hours() / 24
		}
		postingAvgDays = sum / float64(len(timestamps)-1)
	}

	var commentShare float64
	if totalLikes+totalComments > 0 {
		commentShare = float64(totalComments) / float64(totalLikes+totalComments)
	}
	var commentsPer10k float64
	if totalViews > 0 {
		commentsPer10k = float64(totalComments) / float64(totalViews) * 10000
	}

	if len(hashtagCounts) == 0 {
		hashtagCounts = nil
	}

	n := float64(len(posts))
	return profile.Metrics{
		PostsAnalyzed:          len(posts),
		AvgEngagement:          mean(ers),
		AvgEngagementOrganic:   mean(ersOrganic),
		AvgEngagementSponsored: mean(ersSponsored),
		AvgLikes:               float64(totalLikes) / n,
		AvgComments:            float64(totalComments) / n,
		AvgViews:               float64(totalViews) / n,
		StdevEngagement:        stdev,
		ConsistencyScore:       consistency,
		OrganicPct:             float64(len(ersOrganic)) / n * 100,
		PostingAvgDays:         postingAvgDays,
		CommentShare:           commentShare,
		CommentsPer10kViews:    commentsPer10k,
		AdDisclosurePct:        100,
		HashtagCounts:          hashtagCounts,
	}
}

type countEntry struct {
	key   string
	count int
}

// sortedCounts orders a counter map by count descending, breaking ties
// alphabetically so results are deterministic.
func sortedCounts(counts map[string]int) []countEntry {
	entries := make([]countEntry, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, countEntry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	return entries
}

// TopCounts returns the n highest-frequency entries of a counter map.
func TopCounts(counts map[string]int, n int) map[string]int {
	if len(counts) == 0 {
		return nil
	}
	entries := sortedCounts(counts)
	if n > len(entries) {
		n = len(entries)
	}
	out := make(map[string]int, n)
	for _, e := range entries[:n] {
		out[e.key] = e.count
	}
	return out
}

// TopKeys returns the n highest-frequency keys, most frequent first.
func TopKeys(counts map[string]int, n int) []string {
	entries := sortedCounts(counts)
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]string, 0, n)
	for _, e := range entries[:n] {
		out = append(out, e.key)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdev is the n-1 standard deviation; zero for fewer than two
// samples.
func sampleStdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
