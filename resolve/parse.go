package resolve

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`(\d*\.?\d+)`)

// ParseSpellResponse extracts a SpellResult from an LLM completion.
// Unknown or malformed lines are ignored; every field has a default, so
// parsing never fails.
func ParseSpellResponse(response, originalQuery string) SpellResult {
	result := SpellResult{
		IsInfluencer:  true, // permissive default
		CorrectedName: originalQuery,
		OriginalQuery: originalQuery,
		Confidence:    0.5,
		Reasoning:     "Parsing failed, defaulted to influencer",
	}
	if response == "" {
		return result
	}

	for raw := range strings.Lines(response) {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Is Influencer:"):
			v := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "Is Influencer:")))
			result.IsInfluencer = v == "yes" || v == "true" || v == "1" || v == "y"
		case strings.HasPrefix(line, "Corrected Name:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "Corrected Name:"))
			if v != "" && !strings.EqualFold(v, "null") {
				result.CorrectedName = v
			}
		case strings.HasPrefix(line, "Confidence:"):
			result.Confidence = parseConfidence(strings.TrimPrefix(line, "Confidence:"), 0.5)
		case strings.HasPrefix(line, "Reasoning:"):
			result.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, "Reasoning:"))
		}
	}
	return result
}

// parseConfidence extracts the first number in s, scales percentages
// down to [0,1] and clamps.
func parseConfidence(s string, fallback float64) float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return fallback
	}
	if v > 1 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ParseNormalization extracts a Normalization from an LLM completion,
// with deterministic refills for any section the model omitted.
func ParseNormalization(response, originalQuery string) Normalization {
	result := Normalization{
		SearchName: titleCase(originalQuery),
		Aliases:    []string{strings.ToLower(originalQuery), titleCase(originalQuery)},
		Handles: []string{
			strings.ReplaceAll(strings.ToLower(originalQuery), " ", ""),
			strings.ReplaceAll(strings.ToLower(originalQuery), " ", "_"),
		},
	}
	if response == "" {
		return result
	}

	section := ""
	for raw := range strings.Lines(response) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case strings.Contains(lower, "search name:"):
			_, name, _ := strings.Cut(line, ":")
			name = strings.TrimSpace(name)
			if name != "" && len(name) < 100 {
				result.SearchName = name
			}
		case lower == "aliases:":
			section = "aliases"
		case lower == "handles:":
			section = "handles"
		case strings.HasPrefix(line, "- ") && section != "":
			item := strings.TrimSpace(line[2:])
			if !usableListItem(item) {
				continue
			}
			if section == "aliases" {
				result.Aliases = append(result.Aliases, item)
			} else {
				result.Handles = append(result.Handles, item)
			}
		}
	}

	result.Aliases = dedupe(result.Aliases)
	result.Handles = dedupe(result.Handles)

	// Guarantee basic variations even if the model returned junk.
	if len(result.Aliases) < 2 {
		result.Aliases = dedupe(append(result.Aliases,
			strings.ToLower(originalQuery), titleCase(originalQuery),
			strings.ReplaceAll(originalQuery, " ", "")))
	}
	if len(result.Handles) < 2 {
		base := strings.ReplaceAll(strings.ToLower(originalQuery), " ", "")
		result.Handles = dedupe(append(result.Handles,
			base, base+"official",
			strings.ReplaceAll(strings.ToLower(originalQuery), " ", "_"),
			strings.ReplaceAll(strings.ToLower(originalQuery), " ", "."),
			base+"22"))
	}
	return result
}

// usableListItem filters out sentences and placeholder values that the
// model sometimes emits inside alias/handle lists.
func usableListItem(item string) bool {
	if item == "" || len(item) >= 50 || len(strings.Fields(item)) > 4 {
		return false
	}
	switch strings.ToLower(item) {
	case "none known", "none", "n/a":
		return false
	}
	return true
}

const maxKnownNamesInPrompt = 20

func spellPrompt(query string, knownNames []string) string {
	var context string
	if len(knownNames) > 0 {
		names := knownNames
		if len(names) > maxKnownNamesInPrompt {
			names = names[:maxKnownNamesInPrompt]
		}
		context = "\n\nKnown influencers in database: " + strings.Join(names, ", ")
	}

	var b strings.Builder
	b.WriteString("You are an expert at identifying potential influencer names and correcting spelling mistakes.\n\n")
	b.WriteString(`User Query: "` + query + `"`)
	b.WriteString(context)
	b.WriteString("\n\nYour task:\n")
	b.WriteString("1. Determine if this could be a person's name (be VERY generous - assume YES unless clearly a product/topic)\n")
	b.WriteString("2. Correct any obvious spelling mistakes\n")
	b.WriteString("3. Provide the most likely correct spelling\n\n")
	b.WriteString("IMPORTANT GUIDELINES:\n")
	b.WriteString("- If it looks like ANY kind of name (even unknown ones), treat it as a potential influencer\n")
	b.WriteString("- People have diverse names from different cultures - don't reject unfamiliar names\n")
	b.WriteString("- Only say \"No\" if it's clearly a product, topic, or promotional query\n")
	b.WriteString("- When in doubt, say \"Yes\" - it's better to attempt auto-scraping than to miss someone\n\n")
	b.WriteString("Respond in this EXACT format:\n\n")
	b.WriteString("Is Influencer: [Yes/No - be generous with Yes]\n")
	b.WriteString("Corrected Name: [corrected spelling or original if no correction needed]\n")
	b.WriteString("Original Query: " + query + "\n")
	b.WriteString("Confidence: [0.0 to 1.0]\n")
	b.WriteString("Reasoning: [brief explanation of decision]\n")
	return b.String()
}

const maxKnownNamesInNormalize = 15

func normalizePrompt(name string, knownNames []string) string {
	var context string
	if len(knownNames) > 0 {
		names := knownNames
		if len(names) > maxKnownNamesInNormalize {
			names = names[:maxKnownNamesInNormalize]
		}
		context = "\n\nKnown influencers in database:\n" + strings.Join(names, "\n")
	}

	var b strings.Builder
	b.WriteString("You are an expert Instagram influencer identifier with access to a database of influencers.\n\n")
	b.WriteString(`Query: "` + name + `"`)
	b.WriteString(context)
	b.WriteString("\n\nYour task:\n")
	b.WriteString("1. Correct spelling mistakes if any\n")
	b.WriteString("2. Identify the most likely official Instagram account\n")
	b.WriteString("3. Provide variations and handles that might be used\n\n")
	b.WriteString("Generate reasonable username variations:\n")
	b.WriteString("- Convert spaces to underscores, dots, or remove them\n")
	b.WriteString("- Add common suffixes like \"official\", \"real\", numbers\n")
	b.WriteString("- Consider cultural naming patterns\n\n")
	b.WriteString("Respond in this EXACT format:\n\n")
	b.WriteString("Search Name: [corrected official name]\n\n")
	b.WriteString("Aliases:\n- [alternative spelling variation]\n- [another possible variation]\n\n")
	b.WriteString("Handles:\n- [likely Instagram username]\n- [alternative username possibility]\n\n")
	b.WriteString("If the query matches someone in the known database exactly, prioritize that information.\n")
	return b.String()
}
