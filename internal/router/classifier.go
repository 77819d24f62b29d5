package router

import (
	"regexp"
	"strings"
)

// searchTriggerWords are single tokens whose presence in a query signals a
// need for current information. Matched against the whitespace-tokenised,
// lowercased input.
var searchTriggerWords = map[string]struct{}{
	// Weather.
	"weather": {}, "temperature": {}, "forecast": {}, "rain": {}, "snow": {},
	"sunny": {}, "cloudy": {},
	// Time-sensitive.
	"today": {}, "yesterday": {}, "tonight": {}, "tomorrow": {},
	"latest": {}, "recent": {}, "current": {}, "now": {},
	// News.
	"news": {}, "happened": {}, "breaking": {}, "update": {}, "announcement": {},
	// Sports.
	"score": {}, "game": {}, "match": {}, "won": {}, "lost": {},
	"championship": {}, "tournament": {},
	// Markets.
	"price": {}, "stock": {}, "market": {}, "trading": {}, "crypto": {},
	"bitcoin": {}, "ethereum": {},
}

// searchTriggerPhrases are substring matches over the lowercased input.
var searchTriggerPhrases = []string{
	"who is",
	"what is happening",
	"tell me about recent",
	"this week",
}

// searchTriggerPatterns catch question shapes the word list misses.
var searchTriggerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`what.*happening`),
	regexp.MustCompile(`who.*won`),
	regexp.MustCompile(`what.*score`),
	regexp.MustCompile(`how.*weather`),
	regexp.MustCompile(`what.*price`),
}

// NeedsSearch reports whether a user utterance likely requires a web search
// to answer well. It is a cheap pre-classifier run before the LLM call, so
// false positives cost one wasted search and false negatives cost one stale
// answer — both tolerable.
func NeedsSearch(input string) bool {
	lower := strings.ToLower(input)

	for _, tok := range strings.Fields(lower) {
		tok = strings.Trim(tok, ".,!?;:'\"")
		if _, ok := searchTriggerWords[tok]; ok {
			return true
		}
	}
	for _, phrase := range searchTriggerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	for _, re := range searchTriggerPatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}
