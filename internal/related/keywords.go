package related

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/derbyfab/derby-tickets/params"
	"github.com/spf13/cast"
)

// referencePatterns match explicit ticket mentions in free text. The
// first capture group is always the ticket number.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`#(\d+)`),
	regexp.MustCompile(`[Tt]icket\s+#?(\d+)`),
	regexp.MustCompile(`[Ii]ssue\s+#?(\d+)`),
}

// stopWords are common English words excluded from keyword matching.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "had": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "been": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "there": {},
	"their": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"while": {}, "about": {}, "after": {}, "before": {}, "other": {},
	"some": {}, "than": {}, "then": {}, "them": {}, "these": {},
	"those": {}, "very": {}, "your": {}, "please": {}, "thanks": {},
	"need": {}, "help": {}, "issue": {}, "problem": {}, "ticket": {},
}

// extractReferences returns the distinct ticket ids mentioned in text,
// in order of first appearance.
func extractReferences(text string) []uint {
	var ids []uint
	seen := make(map[uint]struct{})
	for _, pattern := range referencePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			id, err := cast.ToUintE(match[1])
			if err != nil || id == 0 {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// extractKeywords tokenizes text and returns up to limit keywords in
// positional order: lowercased, short tokens and stop words dropped,
// duplicates removed. No frequency ranking.
func extractKeywords(text string, limit int) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var keywords []string
	seen := make(map[string]struct{})
	for _, token := range tokens {
		if len(token) < params.RelatedMinKeywordLen {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
		if len(keywords) == limit {
			break
		}
	}
	return keywords
}
