package textkey

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// stopWords are dropped before comparing two step texts.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "into": {}, "onto": {}, "from": {},
	"your": {}, "you": {}, "then": {}, "that": {}, "this": {}, "now": {}, "some": {},
	"about": {}, "over": {}, "until": {}, "them": {}, "its": {}, "are": {}, "was": {},
	"all": {}, "any": {}, "each": {}, "out": {}, "off": {}, "just": {}, "more": {},
	"will": {}, "can": {}, "let": {}, "lets": {}, "please": {}, "step": {}, "next": {},
}

// Normalize lower-cases text and collapses every run of non-alphanumerics into one space.
func Normalize(text string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(text), " "))
}

// Tokens returns the comparable token set of a step text: stop-words removed,
// simple suffix stemming applied, tokens of two characters or fewer dropped.
func Tokens(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(Normalize(text)) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		w = stem(w)
		if len(w) <= 2 {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func stem(w string) string {
	switch {
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return w[:len(w)-2]
	case len(w) > 4 && strings.HasSuffix(w, "es"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// Overlap is the count of shared tokens divided by the smaller token set.
// Zero when either side has no tokens.
func Overlap(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	small := len(ta)
	if len(tb) < small {
		small = len(tb)
	}
	return float64(shared) / float64(small)
}
