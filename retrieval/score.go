package retrieval

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be been but by can could did do does for from had
		has have how i if in into is it its me my of on or our should so that the their them then there
		these they this to was we were what when where which who why will with would you your about`) {
		stopwords[w] = struct{}{}
	}
}

// topics groups domain terms; each matched term adds a bonus to the score.
var topics = map[string][]string{
	"error":       {"error", "exception", "failure", "failed", "bug", "crash", "stack", "traceback"},
	"deploy":      {"deploy", "deployment", "release", "rollout", "rollback", "pipeline", "build"},
	"api":         {"api", "endpoint", "request", "response", "http", "rest", "graphql", "webhook"},
	"database":    {"database", "db", "sql", "query", "table", "index", "migration", "postgres"},
	"performance": {"performance", "latency", "slow", "throughput", "memory", "cpu", "cache"},
	"security":    {"security", "auth", "token", "password", "permission", "vulnerability", "encryption"},
}

const (
	phraseBonus = 0.3
	topicBonus  = 0.1
)

// Keywords lower-cases the query, splits it into words and removes stopwords.
// Duplicates are dropped, order is kept.
func Keywords(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range words(query) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Score computes a [0,1] relevance of content against the query keywords:
// the matched keyword fraction, plus phraseBonus when content contains the
// whole query, plus topicBonus per matched domain term among the keywords.
func Score(content string, keywords []string, phrase string) float64 {
	if len(keywords) == 0 || content == "" {
		return 0
	}
	lower := strings.ToLower(content)
	present := make(map[string]struct{})
	for _, w := range words(lower) {
		present[w] = struct{}{}
	}

	matched := 0
	topicHits := 0
	for _, k := range keywords {
		if _, ok := present[k]; !ok {
			continue
		}
		matched++
		if isTopicTerm(k) {
			topicHits++
		}
	}
	if matched == 0 {
		return 0
	}

	score := float64(matched) / float64(len(keywords))
	if phrase != "" && strings.Contains(lower, phrase) {
		score += phraseBonus
	}
	score += topicBonus * float64(topicHits)
	return min(score, 1.0)
}

func isTopicTerm(w string) bool {
	for _, terms := range topics {
		for _, t := range terms {
			if t == w {
				return true
			}
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
