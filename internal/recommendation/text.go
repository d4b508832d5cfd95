package recommendation

import (
	"strings"
	"unicode"

	"github.com/greattalk/feed-recommender/internal/models"
)

// stopWords are dropped before comparing prompts and post text
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "me": {},
	"my": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "what": {}, "with": {}, "you": {}, "your": {},
}

// tokenize lower-cases text and splits it into a set of words
func tokenize(text string) map[string]struct{} {
	set := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when either set is empty
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// overlapRatio returns the share of target words that also appear in source
func overlapRatio(source, target map[string]struct{}) float64 {
	if len(source) == 0 || len(target) == 0 {
		return 0
	}
	shared := 0
	for k := range target {
		if _, ok := source[k]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(target))
}

// interactionKeywords collects the user's historical prompt vocabulary
func interactionKeywords(interactions []models.InteractionRecord) map[string]struct{} {
	set := make(map[string]struct{})
	for _, rec := range interactions {
		for w := range tokenize(rec.Prompt) {
			set[w] = struct{}{}
		}
	}
	return set
}

// tagTokens tokenizes tag names into one set
func tagTokens(tags []models.Tag) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tags {
		for w := range tokenize(t.Name) {
			set[w] = struct{}{}
		}
	}
	return set
}

func itemText(item models.ContentItem) string {
	return item.Title + " " + item.Description + " " + item.SystemPrompt
}
