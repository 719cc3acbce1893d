package catalog

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// MatchType tells how a lookup resolved.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
	MatchNone  MatchType = "none"
)

// DefaultFuzzyThreshold is the minimum fuzzy score accepted by Lookup.
const DefaultFuzzyThreshold = 0.62

const prefixBonus = 0.08

// Entry is one saved recipe.
type Entry struct {
	Dish        string    `json:"dish" yaml:"dish"`
	DishKey     string    `json:"dish_key" yaml:"dish_key"`
	RecipeText  string    `json:"recipe" yaml:"recipe"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
	TimesCooked int       `json:"times_cooked" yaml:"times_cooked"`
}

// Match is the outcome of Lookup. Entry is nil when Type is MatchNone.
type Match struct {
	Entry *Entry
	Type  MatchType
	Score float64
}

var (
	apostrophes = strings.NewReplacer("'", "", "’", "", "‘", "")
	nonKey      = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeDishKey lower-cases, drops apostrophes and collapses every run of
// characters outside [a-z0-9] into one space.
func NormalizeDishKey(text string) string {
	s := apostrophes.Replace(strings.ToLower(text))
	return strings.TrimSpace(nonKey.ReplaceAllString(s, " "))
}

// Lookup finds the catalog entry best matching query using the default threshold.
func Lookup(query string, entries []Entry) Match {
	return LookupWithThreshold(query, entries, DefaultFuzzyThreshold)
}

// LookupWithThreshold tries an exact key match first, then the best fuzzy
// candidate scoring at least threshold.
func LookupWithThreshold(query string, entries []Entry, threshold float64) Match {
	key := NormalizeDishKey(query)
	if key == "" {
		return Match{Type: MatchNone}
	}
	for i := range entries {
		if entryKey(entries[i]) == key {
			e := entries[i]
			return Match{Entry: &e, Type: MatchExact, Score: 1}
		}
	}

	best, bestScore := -1, 0.0
	for i := range entries {
		s := Score(key, entryKey(entries[i]))
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < threshold {
		return Match{Type: MatchNone, Score: bestScore}
	}
	e := entries[best]
	return Match{Entry: &e, Type: MatchFuzzy, Score: bestScore}
}

// Score compares two normalized dish keys.
func Score(queryKey, candidateKey string) float64 {
	if queryKey == "" || candidateKey == "" {
		return 0
	}
	if queryKey == candidateKey {
		return 1
	}
	if strings.Contains(queryKey, candidateKey) || strings.Contains(candidateKey, queryKey) {
		return 0.95
	}
	qt := strings.Fields(queryKey)
	ct := strings.Fields(candidateKey)
	cset := make(map[string]struct{}, len(ct))
	for _, t := range ct {
		cset[t] = struct{}{}
	}
	shared := 0
	for _, t := range qt {
		if _, ok := cset[t]; ok {
			shared++
		}
	}
	small := len(qt)
	if len(ct) < small {
		small = len(ct)
	}
	overlap := float64(shared) / float64(small)
	coverage := float64(shared) / float64(len(qt))
	bonus := 0.0
	if qt[0] == ct[0] {
		bonus = prefixBonus
	}
	s := overlap
	if c := 0.9 * coverage; c > s {
		s = c
	}
	s += bonus
	if s > 1 {
		s = 1
	}
	return s
}

// Save inserts or updates the entry for dish and returns the new catalog,
// sorted by display name, together with the stored entry.
func Save(entries []Entry, dish, recipeText string, now time.Time) ([]Entry, Entry) {
	key := NormalizeDishKey(dish)
	out := make([]Entry, len(entries))
	copy(out, entries)

	var saved Entry
	found := false
	for i := range out {
		if entryKey(out[i]) == key {
			out[i].DishKey = key
			out[i].RecipeText = recipeText
			out[i].CompletedAt = now
			out[i].TimesCooked++
			saved = out[i]
			found = true
			break
		}
	}
	if !found {
		saved = Entry{
			Dish:        strings.TrimSpace(dish),
			DishKey:     key,
			RecipeText:  recipeText,
			CompletedAt: now,
			TimesCooked: 1,
		}
		out = append(out, saved)
	}
	SortByDish(out)
	return out, saved
}

// SortByDish orders entries by display name using English collation.
func SortByDish(entries []Entry) {
	c := collate.New(language.English, collate.IgnoreCase)
	c.Sort(byDish(entries))
}

type byDish []Entry

func (b byDish) Len() int           { return len(b) }
func (b byDish) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
func (b byDish) Bytes(i int) []byte { return []byte(b[i].Dish) }

func entryKey(e Entry) string {
	if e.DishKey != "" {
		return e.DishKey
	}
	return NormalizeDishKey(e.Dish)
}
