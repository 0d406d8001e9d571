// Package candidates turns raw web search results into vetted
// Instagram profile candidates and parses the model's pick among them.
package candidates

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/clout/resolve"
	"github.com/codeGROOVE-dev/clout/search"
)

// Candidate is one plausible Instagram profile found via web search.
// Fallback marks a candidate that failed strict profile-URL checks but
// was kept because nothing better matched.
type Candidate struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Selection is the chosen profile, parsed from an LLM response or
// derived from the first candidate when the model is unavailable.
type Selection struct {
	Name         string  `json:"name"`
	Username     string  `json:"username"`
	InstagramURL string  `json:"instagram_url"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason,omitempty"`
}

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9._]+$`)
	igUserRe   = regexp.MustCompile(`(?i)instagram\.com/([^/?#]+)`)
	schemeRe   = regexp.MustCompile(`(?i)^https?://`)
	numberRe   = regexp.MustCompile(`(\d*\.?\d+)`)
)

// Filter builds the OR-joined search query from a normalization and
// keeps only results that look like Instagram profile pages: a host on
// instagram.com, exactly one path segment, username-shaped. Tracking
// query strings and trailing slashes are stripped and duplicates are
// dropped case-insensitively. If nothing survives, the first result
// that merely links into instagram.com is kept as a flagged fallback.
func Filter(norm resolve.Normalization, fallbackQuery string, results []search.Result) (string, []Candidate) {
	var terms []string
	seen := make(map[string]bool)
	all := make([]string, 0, 1+len(norm.Aliases)+len(norm.Handles))
	all = append(all, norm.SearchName)
	all = append(all, norm.Aliases...)
	all = append(all, norm.Handles...)
	for _, t := range all {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}

	query := fallbackQuery
	if len(terms) > 0 {
		query = strings.Join(terms, " OR ")
	}

	seenUsers := make(map[string]bool)
	var cands []Candidate
	for _, item := range results {
		link := cleanURL(item.Link)
		if link == "" {
			continue
		}
		u, err := url.Parse(link)
		if err != nil || u.Hostname() == "" || !strings.Contains(u.Hostname(), "instagram.com") {
			continue
		}
		segments := pathSegments(u.Path)
		if len(segments) != 1 {
			continue
		}
		user := segments[0]
		if !usernameRe.MatchString(user) {
			continue
		}
		key := strings.ToLower(user)
		if seenUsers[key] {
			continue
		}
		seenUsers[key] = true
		cands = append(cands, Candidate{Title: item.Title, URL: link, Snippet: item.Snippet})
	}

	if len(cands) == 0 {
		for _, item := range results {
			if strings.Contains(item.Link, "instagram.com/") {
				cands = []Candidate{{
					Title:    item.Title,
					URL:      cleanURL(item.Link),
					Snippet:  item.Snippet,
					Fallback: true,
				}}
				break
			}
		}
	}
	return query, cands
}

func cleanURL(link string) string {
	link, _, _ = strings.Cut(link, "?")
	return strings.TrimRight(link, "/")
}

func pathSegments(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

const maxCandidatesInPrompt = 3

// SelectionPrompt asks the model to pick the official profile among the
// top candidates.
func SelectionPrompt(query string, cands []Candidate) string {
	top := cands
	if len(top) > maxCandidatesInPrompt {
		top = top[:maxCandidatesInPrompt]
	}
	blob, _ := json.MarshalIndent(top, "", "  ")

	var b strings.Builder
	b.WriteString(`Query: "` + query + `"`)
	b.WriteString("\n\nInstagram profile candidates found:\n")
	b.Write(blob)
	b.WriteString("\n\nChoose the OFFICIAL Instagram profile. Respond in this EXACT format:\n\n")
	b.WriteString("Name: [best name for this person]\n")
	b.WriteString("Username: [instagram username without @]\n")
	b.WriteString("Instagram URL: [full instagram.com URL]\n")
	b.WriteString("Confidence: [number between 0 and 1]\n")
	return b.String()
}

// ParseSelection extracts a Selection from an LLM response. A missing
// Instagram URL means the parse produced nothing usable; callers should
// fall back to the first candidate.
func ParseSelection(response string) Selection {
	var sel Selection
	for raw := range strings.Lines(response) {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Name:"):
			sel.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Username:"):
			sel.Username = strings.TrimSpace(strings.TrimPrefix(line, "Username:"))
		case strings.HasPrefix(line, "Instagram URL:"):
			sel.InstagramURL = strings.TrimSpace(strings.TrimPrefix(line, "Instagram URL:"))
		case strings.HasPrefix(line, "Confidence:"):
			sel.Confidence = 0.5
			if m := numberRe.FindString(strings.TrimPrefix(line, "Confidence:")); m != "" {
				if v, err := strconv.ParseFloat(m, 64); err == nil {
					sel.Confidence = v
				}
			}
		}
	}
	return sel
}

// FallbackSelection derives a Selection from the first candidate when
// the model's pick is empty or unusable.
func FallbackSelection(query string, c Candidate) Selection {
	username := c.URL
	if i := strings.LastIndex(c.URL, "/"); i >= 0 {
		username = c.URL[i+1:]
	}
	return Selection{
		Name:         query,
		Username:     username,
		InstagramURL: c.URL,
		Confidence:   0.5,
	}
}

// UsernameFromURL normalizes an Instagram profile URL (adding scheme
// and trailing slash) and extracts the username. The username is empty
// when the URL holds none.
func UsernameFromURL(raw string) (username, canonical string) {
	if raw == "" {
		return "", ""
	}
	u := raw
	if !schemeRe.MatchString(u) {
		u = "https://" + strings.TrimLeft(u, "/")
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	if m := igUserRe.FindStringSubmatch(u); m != nil {
		return m[1], u
	}
	return "", u
}
