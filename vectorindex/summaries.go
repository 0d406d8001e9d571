package vectorindex

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/codeGROOVE-dev/clout/profile"
)

// SaveSummaries writes influencer summaries beside the index blob and
// mapping. The three artifacts are regenerated together; a summaries
// file from one build paired with an index from another misaligns.
func SaveSummaries(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summaries: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write summaries: %w", err)
	}
	return nil
}

// LoadSummaries reads a summaries file written by SaveSummaries.
func LoadSummaries(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read summaries: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse summaries: %w", err)
	}
	return records, nil
}

// Summaries is the second local lookup tier: saved influencer
// summaries searchable by username or display name before any
// external call.
type Summaries struct {
	records    []Record
	byUsername map[string]Record
}

// NewSummaries indexes records for lookup. Usernames are keyed
// lowercase.
func NewSummaries(records []Record) *Summaries {
	s := &Summaries{
		records:    records,
		byUsername: make(map[string]Record, len(records)),
	}
	for _, r := range records {
		s.byUsername[strings.ToLower(r.Username)] = r
	}
	return s
}

// Len returns the number of records held.
func (s *Summaries) Len() int {
	return len(s.records)
}

// Find matches a term against usernames first, then display names.
// Name matching accepts an exact match, containment in either
// direction, and shared words longer than two characters.
func (s *Summaries) Find(term string) (Record, bool) {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return Record{}, false
	}
	if r, ok := s.byUsername[needle]; ok {
		return r, true
	}
	for _, r := range s.records {
		if summaryNameMatches(needle, strings.ToLower(r.Name)) {
			return r, true
		}
	}
	return Record{}, false
}

func summaryNameMatches(needle, stored string) bool {
	if stored == "" {
		return false
	}
	if needle == stored {
		return true
	}
	if strings.Contains(stored, needle) || strings.Contains(needle, stored) {
		return true
	}
	needleWords := strings.Fields(needle)
	if len(needleWords) < 2 {
		return false
	}
	storedWords := make(map[string]bool)
	for _, w := range strings.Fields(stored) {
		storedWords[w] = true
	}
	for _, w := range needleWords {
		if len(w) > 2 && storedWords[w] {
			return true
		}
	}
	return false
}

// Influencer converts a summary into profile form for callers that
// expect full records. Post-level detail is not recoverable from a
// summary; identity, reach and scores are.
func (r Record) Influencer() *profile.Influencer {
	username := strings.ToLower(r.Username)
	return &profile.Influencer{
		Username:       username,
		Name:           r.Name,
		ProfileURL:     "https://instagram.com/" + username + "/",
		Bio:            r.Bio,
		Category:       r.Category,
		Verified:       r.Verified,
		FollowersCount: r.Followers,
		Metrics:        profile.Metrics{AvgEngagement: r.EngagementRate},
		Scores:         r.Scores,
		Collaborations: r.Collaborations,
		Source:         "embeddings",
	}
}
