package steplock

import (
	"regexp"
	"strings"
)

// MaxStepWords caps the length of a locked step.
const MaxStepWords = 12

var (
	leadingLabel = regexp.MustCompile(`(?i)^\s*(?:[-*•·>]+\s*|(?:next\s+step|current\s+step|step\s*\d*|now)\s*[:\-–—]\s*)+`)
	sentenceEnd  = regexp.MustCompile(`[.!?](?:\s|$)`)
	trailingJunk = regexp.MustCompile(`[\s,;:\-–—]+$`)

	analyze     = regexp.MustCompile(`(?i)\banaly[sz](?:e|es|ed|ing|is)\b`)
	ingredients = regexp.MustCompile(`(?i)\bingredients?\b`)
	connectors  = regexp.MustCompile(`(?i)\b(?:then|after\s+that|next)\b`)
	andWord     = regexp.MustCompile(`(?i)\band\b`)
	enumerated  = regexp.MustCompile(`(?i)^\s*(?:\d+|[a-z])[.)](?:\s|$)`)
	punct       = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// Sanitize reduces model text to a single short instruction: first non-blank
// line, leading labels stripped, cut at the first sentence end, at most
// MaxStepWords words, terminated with punctuation. It returns "" when nothing
// usable remains.
func Sanitize(raw string) string {
	line := ""
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}
	line = strings.TrimSpace(leadingLabel.ReplaceAllString(line, ""))
	if loc := sentenceEnd.FindStringIndex(line); loc != nil {
		line = line[:loc[0]+1]
	}
	words := strings.Fields(line)
	if len(words) == 0 {
		return ""
	}
	if len(words) > MaxStepWords {
		words = words[:MaxStepWords]
	}
	out := trailingJunk.ReplaceAllString(strings.Join(words, " "), "")
	if out == "" {
		return ""
	}
	switch out[len(out)-1] {
	case '.', '!', '?':
	default:
		out += "."
	}
	if strings.Trim(out, ".!? ") == "" {
		return ""
	}
	return out
}

// TooBroad reports whether a sanitized step bundles several actions or is not
// something a camera could verify.
func TooBroad(step string) bool {
	switch {
	case analyze.MatchString(step):
		return true
	case ingredients.MatchString(step):
		return true
	case connectors.MatchString(step):
		return true
	case strings.Count(step, ",") >= 2:
		return true
	case len(andWord.FindAllString(step, -1)) >= 2:
		return true
	case enumerated.MatchString(step):
		return true
	}
	return len(strings.Fields(punct.ReplaceAllString(step, " "))) > MaxStepWords
}
