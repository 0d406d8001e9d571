// Package scoring computes the four influencer quality scores. An LLM
// scorer is preferred; Manual is the deterministic fallback used when
// the LLM is unavailable or returns a degenerate all-zero result.
package scoring

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/clout/profile"
)

// Defaults returned when the LLM response is empty or unparseable.
var parseDefaults = profile.Scores{
	Authenticity:   75,
	BrandSafety:    85,
	AudienceMatch:  70,
	ContentQuality: 75,
}

// ProfileOnly is the score set for a profile persisted without any
// posts to analyze.
var ProfileOnly = profile.Scores{
	Authenticity:   70,
	BrandSafety:    85,
	AudienceMatch:  60,
	ContentQuality: 65,
}

// Manual derives scores from aggregated metrics alone. It is a pure
// function: identical metrics always yield identical scores.
func Manual(m profile.Metrics) profile.Scores {
	audienceMatch := 70.0
	if len(m.HashtagCounts) > 0 {
		audienceMatch = 75
	}

	bonus := m.CommentsPer10kViews / 5
	if bonus > 20 {
		bonus = 20
	}

	return profile.Scores{
		Authenticity:   round1(clamp(m.ConsistencyScore, 0, 100)),
		BrandSafety:    85,
		AudienceMatch:  audienceMatch,
		ContentQuality: round1(clamp(60+m.CommentShare*30+bonus, 0, 100)),
	}
}

var numberRe = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// Parse extracts scores from an LLM completion. Lines are matched by
// score name, anything unrecognized is ignored, and missing fields keep
// their defaults; a response is never fatal.
func Parse(response string) profile.Scores {
	scores := parseDefaults
	if len(strings.TrimSpace(response)) < 10 {
		return scores
	}

	for line := range strings.Lines(response) {
		m := numberRe.FindString(line)
		if m == "" {
			continue
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		v = clamp(v, 0, 100)

		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "authenticity"):
			scores.Authenticity = v
		case strings.Contains(lower, "brand safety"):
			scores.BrandSafety = v
		case strings.Contains(lower, "audience match"):
			scores.AudienceMatch = v
		case strings.Contains(lower, "content quality"):
			scores.ContentQuality = v
		}
	}
	return scores
}

// Prompt builds the scoring prompt for an influencer's metrics.
func Prompt(username string, m profile.Metrics) string {
	var b strings.Builder
	b.WriteString("You are an influencer marketing analyst. Score the Instagram account @")
	b.WriteString(username)
	b.WriteString(" on four dimensions from 0 to 100 given these aggregated metrics:\n\n")
	b.WriteString("Posts analyzed: ")
	b.WriteString(strconv.Itoa(m.PostsAnalyzed))
	b.WriteString("\nAverage engagement rate: ")
	b.WriteString(strconv.FormatFloat(m.AvgEngagement, 'f', 6, 64))
	b.WriteString("\nOrganic engagement rate: ")
	b.WriteString(strconv.FormatFloat(m.AvgEngagementOrganic, 'f', 6, 64))
	b.WriteString("\nSponsored engagement rate: ")
	b.WriteString(strconv.FormatFloat(m.AvgEngagementSponsored, 'f', 6, 64))
	b.WriteString("\nEngagement stdev: ")
	b.WriteString(strconv.FormatFloat(m.StdevEngagement, 'f', 6, 64))
	b.WriteString("\nConsistency score: ")
	b.WriteString(strconv.FormatFloat(m.ConsistencyScore, 'f', 1, 64))
	b.WriteString("\nComment share: ")
	b.WriteString(strconv.FormatFloat(m.CommentShare, 'f', 4, 64))
	b.WriteString("\nComments per 10k views: ")
	b.WriteString(strconv.FormatFloat(m.CommentsPer10kViews, 'f', 1, 64))
	b.WriteString("\n\nRespond in this EXACT format:\n\n")
	b.WriteString("Authenticity: [0-100]\n")
	b.WriteString("Brand Safety: [0-100]\n")
	b.WriteString("Audience Match: [0-100]\n")
	b.WriteString("Content Quality: [0-100]\n")
	return b.String()
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

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
