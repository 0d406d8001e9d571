// Package resolve corrects and validates free-text name queries against
// influencer likelihood. An LLM does the heavy lifting; every decision
// has a deterministic heuristic fallback so the pipeline keeps moving
// when the model is unreachable or wrong.
package resolve

import (
	"context"
	"log/slog"
	"strings"
)

// Completer is the slice of the LLM client the resolver needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Available() bool
}

// SpellResult is the outcome of spelling correction for a query.
type SpellResult struct {
	IsInfluencer  bool    `json:"is_influencer"`
	CorrectedName string  `json:"corrected_name"`
	OriginalQuery string  `json:"original_query"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// Normalization is the canonical name plus alias/handle variations used
// to drive search.
type Normalization struct {
	SearchName    string   `json:"search_name"`
	Aliases       []string `json:"aliases"`
	Handles       []string `json:"handles"`
	DatabaseMatch bool     `json:"database_match"`
}

// Confidence constants for heuristic decisions.
const (
	overrideConfidence  = 0.75
	fallbackNameConf    = 0.7
	fallbackNonNameConf = 0.2
)

// Resolver performs AI-assisted name resolution.
type Resolver struct {
	ai     Completer
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver. client may be nil or key-less; resolution
// then runs purely on heuristics.
func New(client Completer, opts ...Option) *Resolver {
	r := &Resolver{ai: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SpellCorrect decides whether query names a person and fixes obvious
// misspellings. LLM failure never surfaces: the heuristic answers
// instead, with reduced confidence. If the LLM denies a name-like query
// the heuristic wins, at confidence 0.75.
func (r *Resolver) SpellCorrect(ctx context.Context, query string, knownNames []string) SpellResult {
	if r.available() {
		if response, err := r.ai.Complete(ctx, spellPrompt(query, knownNames)); err == nil {
			result := ParseSpellResponse(response, query)
			if !result.IsInfluencer && LooksLikeName(query) {
				r.logger.Warn("overriding LLM not-a-person verdict, query looks like a name", "query", query)
				result.IsInfluencer = true
				result.Confidence = overrideConfidence
				result.Reasoning = "Overridden by heuristic: appears to be a person's name"
			}
			r.logger.Info("spell correction", "query", query,
				"corrected", result.CorrectedName, "is_influencer", result.IsInfluencer,
				"confidence", result.Confidence)
			return result
		} else {
			r.logger.Debug("LLM spell correction failed, using heuristic", "query", query, "error", err)
		}
	}

	isName := LooksLikeName(query)
	conf := fallbackNonNameConf
	if isName {
		conf = fallbackNameConf
	}
	return SpellResult{
		IsInfluencer:  isName,
		CorrectedName: query,
		OriginalQuery: query,
		Confidence:    conf,
		Reasoning:     "AI spelling correction unavailable, using heuristic name detection",
	}
}

// Normalize asks the LLM for the canonical name plus alias and handle
// variations. On any failure it derives variations deterministically.
func (r *Resolver) Normalize(ctx context.Context, name string, knownNames []string) Normalization {
	if r.available() {
		if response, err := r.ai.Complete(ctx, normalizePrompt(name, knownNames)); err == nil {
			norm := ParseNormalization(response, name)
			lower := strings.ToLower(name)
			for _, known := range knownNames {
				if strings.Contains(strings.ToLower(known), lower) {
					norm.DatabaseMatch = true
					break
				}
			}
			return norm
		} else {
			r.logger.Debug("LLM normalization failed, deriving handles", "name", name, "error", err)
		}
	}
	return FallbackNormalization(name)
}

func (r *Resolver) available() bool {
	return r.ai != nil && r.ai.Available()
}

// FallbackNormalization derives search variations without the LLM.
func FallbackNormalization(query string) Normalization {
	lower := strings.ToLower(query)
	nospace := strings.ReplaceAll(lower, " ", "")
	return Normalization{
		SearchName: titleCase(query),
		Aliases: dedupe([]string{
			lower,
			titleCase(query),
			strings.ReplaceAll(query, " ", ""),
			strings.ReplaceAll(query, " ", "_"),
		}),
		Handles: dedupe([]string{
			nospace,
			strings.ReplaceAll(lower, " ", "_"),
			strings.ReplaceAll(lower, " ", "."),
			nospace + "official",
			nospace + "22",
		}),
	}
}

// Variations generates common username variations of a display name,
// used for local-store lookup before any remote call.
func Variations(name string) []string {
	clean := strings.ToLower(strings.TrimSpace(name))
	nospace := strings.ReplaceAll(clean, " ", "")
	return dedupe([]string{
		nospace,
		strings.ReplaceAll(clean, " ", "."),
		strings.ReplaceAll(clean, " ", "_"),
		nospace + "22",
		nospace + "official",
		nospace + "real",
		"official" + nospace,
		"real" + nospace,
		nospace + "vlogs",
		nospace + "youtube",
	})
}

// dedupe removes duplicates and blanks, preserving first-seen order.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[strings.ToLower(item)] {
			continue
		}
		seen[strings.ToLower(item)] = true
		out = append(out, item)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
