package related

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/derbyfab/derby-tickets/model"
	"github.com/derbyfab/derby-tickets/params"
)

// JaccardSimilarity computes word-set overlap between two texts:
// |intersection| / |union| of their lowercased token sets.
func JaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for word := range setA {
		if _, ok := setB[word]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// FindSimilarByText scores every other ticket by Jaccard similarity of
// title plus description. Full table scan, kept as a fallback strategy
// and not part of the default pipeline.
func (f *Finder) FindSimilarByText(ctx context.Context, ticket *model.Ticket) ([]Candidate, error) {
	all, err := f.tickets.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	source := ticket.Title + " " + ticket.Description
	var candidates []Candidate
	for _, other := range all {
		if other.ID == ticket.ID {
			continue
		}
		score := JaccardSimilarity(source, other.Title+" "+other.Description)
		if score <= params.JaccardThreshold {
			continue
		}
		candidates = append(candidates, Candidate{
			Ticket: other,
			Score:  score,
			Reason: "Similar text",
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > f.maxResults {
		candidates = candidates[:f.maxResults]
	}
	return candidates, nil
}
