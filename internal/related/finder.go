package related

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"github.com/derbyfab/derby-tickets/params"
)

// Scores assigned by each strategy. Explicit references outrank
// category matches, which outrank keyword and creator signals.
const (
	ScoreReference = 0.9
	ScoreCategory  = 0.7
	ScoreKeyword   = 0.5
	ScoreCreator   = 0.4
)

// Candidate is one scored related ticket. Candidates are transient,
// recomputed per request, never persisted.
type Candidate struct {
	Ticket *model.Ticket `json:"ticket"`
	Score  float64       `json:"score"`
	Reason string        `json:"reason"`
}

// TicketStore is the read-only ticket access the finder needs.
type TicketStore interface {
	GetWithComments(ctx context.Context, ticketID uint) (*model.Ticket, error)
	FindByCategory(ctx context.Context, categoryID uint, excludeID uint, limit int) ([]*model.Ticket, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*model.Ticket, error)
	SearchKeyword(ctx context.Context, keyword string, excludeID uint, limit int) ([]*model.Ticket, error)
	FindByCreatorSince(ctx context.Context, creatorID uint, since time.Time, excludeID uint, limit int) ([]*model.Ticket, error)
	ListAll(ctx context.Context) ([]*model.Ticket, error)
}

// Finder produces ranked related-ticket candidates using rule-based
// strategies only.
type Finder struct {
	tickets    TicketStore
	maxResults int
}

func NewFinder(tickets TicketStore) *Finder {
	return &Finder{
		tickets:    tickets,
		maxResults: params.RelatedMaxResults,
	}
}

// FindRelated runs the four strategies in fixed order, merges their
// candidates keeping the first occurrence per ticket, sorts by score
// descending and truncates to the result limit. The source ticket is
// excluded everywhere.
func (f *Finder) FindRelated(ctx context.Context, ticket *model.Ticket) ([]Candidate, error) {
	var candidates []Candidate

	byCategory, err := f.categoryMatches(ctx, ticket)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, byCategory...)

	byReference, err := f.referenceMatches(ctx, ticket)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, byReference...)

	byKeyword, err := f.keywordMatches(ctx, ticket)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, byKeyword...)

	byCreator, err := f.creatorMatches(ctx, ticket)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, byCreator...)

	merged := mergeFirstWins(candidates, ticket.ID)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > f.maxResults {
		merged = merged[:f.maxResults]
	}
	return merged, nil
}

// FindRelatedForUser filters the ranked candidates down to tickets the
// requesting user may view.
func (f *Finder) FindRelatedForUser(ctx context.Context, ticket *model.Ticket, user *model.User) ([]Candidate, error) {
	candidates, err := f.FindRelated(ctx, ticket)
	if err != nil {
		return nil, err
	}
	visible := candidates[:0]
	for _, c := range candidates {
		if c.Ticket.AccessibleBy(user) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

func (f *Finder) categoryMatches(ctx context.Context, ticket *model.Ticket) ([]Candidate, error) {
	if ticket.CategoryID == nil {
		return nil, nil
	}
	matches, err := f.tickets.FindByCategory(ctx, *ticket.CategoryID, ticket.ID, params.RelatedCategoryLimit)
	if err != nil {
		return nil, err
	}
	categoryName := ""
	if ticket.Category != nil {
		categoryName = ticket.Category.Name
	}
	candidates := make([]Candidate, 0, len(matches))
	for _, match := range matches {
		candidates = append(candidates, Candidate{
			Ticket: match,
			Score:  ScoreCategory,
			Reason: fmt.Sprintf("Same category: %s", categoryName),
		})
	}
	return candidates, nil
}

func (f *Finder) referenceMatches(ctx context.Context, ticket *model.Ticket) ([]Candidate, error) {
	var text strings.Builder
	text.WriteString(ticket.Title)
	text.WriteByte('\n')
	text.WriteString(ticket.Description)
	for _, comment := range ticket.Comments {
		text.WriteByte('\n')
		text.WriteString(comment.Content)
	}

	ids := extractReferences(text.String())
	referenced := ids[:0]
	for _, id := range ids {
		if id != ticket.ID {
			referenced = append(referenced, id)
		}
	}
	if len(referenced) == 0 {
		return nil, nil
	}

	// only ids that resolve to existing tickets survive
	matches, err := f.tickets.FindByIDs(ctx, referenced)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(matches))
	for _, match := range matches {
		candidates = append(candidates, Candidate{
			Ticket: match,
			Score:  ScoreReference,
			Reason: "Referenced in ticket",
		})
	}
	return candidates, nil
}

func (f *Finder) keywordMatches(ctx context.Context, ticket *model.Ticket) ([]Candidate, error) {
	keywords := extractKeywords(ticket.Title+" "+ticket.Description, params.RelatedKeywordCount)
	var candidates []Candidate
	for _, keyword := range keywords {
		matches, err := f.tickets.SearchKeyword(ctx, keyword, ticket.ID, params.RelatedKeywordLimit)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			candidates = append(candidates, Candidate{
				Ticket: match,
				Score:  ScoreKeyword,
				Reason: fmt.Sprintf("Similar keyword: %s", keyword),
			})
		}
	}
	return candidates, nil
}

func (f *Finder) creatorMatches(ctx context.Context, ticket *model.Ticket) ([]Candidate, error) {
	since := time.Now().Add(-params.RelatedCreatorLookback)
	matches, err := f.tickets.FindByCreatorSince(ctx, ticket.CreatedByID, since, ticket.ID, params.RelatedCreatorLimit)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(matches))
	for _, match := range matches {
		candidates = append(candidates, Candidate{
			Ticket: match,
			Score:  ScoreCreator,
			Reason: "Same creator (recent)",
		})
	}
	return candidates, nil
}

// mergeFirstWins deduplicates by ticket id keeping the earliest
// candidate, so strategies that run first keep their score and reason.
func mergeFirstWins(candidates []Candidate, selfID uint) []Candidate {
	merged := make([]Candidate, 0, len(candidates))
	seen := make(map[uint]struct{}, len(candidates))
	for _, c := range candidates {
		if c.Ticket == nil || c.Ticket.ID == selfID {
			continue
		}
		if _, dup := seen[c.Ticket.ID]; dup {
			continue
		}
		seen[c.Ticket.ID] = struct{}{}
		merged = append(merged, c)
	}
	return merged
}
