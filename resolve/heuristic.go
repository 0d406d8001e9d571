package resolve

import "strings"

// nonNameIndicators mark queries that are clearly products, topics or
// promotional requests rather than person names.
var nonNameIndicators = []string{
	"review", "best", "top", "how to", "tutorial", "guide", "tips",
	"laptop", "phone", "camera", "product", "brand", "company",
	"vs", "comparison", "price", "buy", "sell", "discount", "deal",
	"unboxing", "specs", "features", "gaming", "tech", "mobile",
	"what is", "which is", "where to", "when to", "why",
	"promote my", "advertise my", "marketing for", "influencers for",
}

// LooksLikeName reports whether query plausibly names a person. It is
// intentionally independent of the LLM so it can veto or stand in for
// the model's judgment.
func LooksLikeName(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))

	for _, indicator := range nonNameIndicators {
		if strings.Contains(q, indicator) {
			return false
		}
	}

	words := strings.Fields(q)
	switch len(words) {
	case 1:
		// Single handle-like token: "carryminati", "pewdiepie".
		w := words[0]
		if len(w) < 3 || len(w) > 20 {
			return false
		}
		return isAlpha(w) || isAlnum(strings.NewReplacer("_", "", ".", "").Replace(w))
	case 2, 3:
		for _, w := range words {
			stripped := strings.ReplaceAll(w, "'", "")
			if len(w) < 2 || len(w) > 15 || !isAlpha(stripped) {
				return false
			}
		}
		return true
	case 4:
		for _, w := range words {
			if len(w) < 2 || len(w) > 12 || !isAlpha(w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
