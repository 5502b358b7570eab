package related

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/derbyfab/derby-tickets/model"
)

type fakeTicketStore struct {
	tickets map[uint]*model.Ticket
}

func newFakeTicketStore(tickets ...*model.Ticket) *fakeTicketStore {
	store := &fakeTicketStore{tickets: make(map[uint]*model.Ticket)}
	for _, t := range tickets {
		store.tickets[t.ID] = t
	}
	return store
}

func (s *fakeTicketStore) GetWithComments(ctx context.Context, ticketID uint) (*model.Ticket, error) {
	return s.tickets[ticketID], nil
}

func (s *fakeTicketStore) FindByCategory(ctx context.Context, categoryID uint, excludeID uint, limit int) ([]*model.Ticket, error) {
	var matches []*model.Ticket
	for _, t := range s.tickets {
		if t.ID == excludeID || t.CategoryID == nil || *t.CategoryID != categoryID {
			continue
		}
		matches = append(matches, t)
		if len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func (s *fakeTicketStore) FindByIDs(ctx context.Context, ids []uint) ([]*model.Ticket, error) {
	var matches []*model.Ticket
	for _, id := range ids {
		if t, ok := s.tickets[id]; ok {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

func (s *fakeTicketStore) SearchKeyword(ctx context.Context, keyword string, excludeID uint, limit int) ([]*model.Ticket, error) {
	var matches []*model.Ticket
	for _, t := range s.tickets {
		if t.ID == excludeID {
			continue
		}
		text := strings.ToLower(t.Title + " " + t.Description)
		if !strings.Contains(text, strings.ToLower(keyword)) {
			continue
		}
		matches = append(matches, t)
		if len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func (s *fakeTicketStore) FindByCreatorSince(ctx context.Context, creatorID uint, since time.Time, excludeID uint, limit int) ([]*model.Ticket, error) {
	var matches []*model.Ticket
	for _, t := range s.tickets {
		if t.ID == excludeID || t.CreatedByID != creatorID || t.CreatedAt.Before(since) {
			continue
		}
		matches = append(matches, t)
		if len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func (s *fakeTicketStore) ListAll(ctx context.Context) ([]*model.Ticket, error) {
	var all []*model.Ticket
	for _, t := range s.tickets {
		all = append(all, t)
	}
	return all, nil
}

func findCandidate(candidates []Candidate, ticketID uint) *Candidate {
	for i := range candidates {
		if candidates[i].Ticket.ID == ticketID {
			return &candidates[i]
		}
	}
	return nil
}

func TestFindRelatedByReference(t *testing.T) {
	ctx := context.Background()
	network := uint(1)
	source := &model.Ticket{
		ID:          100,
		Title:       "Printer offline",
		Description: "Same symptom, see #42 for earlier report",
		CategoryID:  &network,
		Category:    &model.Category{ID: network, Name: "Network"},
		CreatedByID: 7,
	}
	referenced := &model.Ticket{
		ID:          42,
		Title:       "Printer firmware",
		Description: "Firmware update broke spooler",
		CreatedByID: 8,
	}
	sameCategory := &model.Ticket{
		ID:          43,
		Title:       "Switch port dead",
		Description: "No link on port 12",
		CategoryID:  &network,
		CreatedByID: 8,
	}
	finder := NewFinder(newFakeTicketStore(source, referenced, sameCategory))

	candidates, err := finder.FindRelated(ctx, source)
	if err != nil {
		t.Fatal(err)
	}
	got := findCandidate(candidates, 42)
	if got == nil {
		t.Fatal("referenced ticket 42 not in results")
	}
	if got.Score != ScoreReference {
		t.Fatalf("score = %v, want %v", got.Score, ScoreReference)
	}
	if got.Reason != "Referenced in ticket" {
		t.Fatalf("reason = %q", got.Reason)
	}

	// the reference match ranks above the category-only match
	if candidates[0].Ticket.ID != 42 {
		t.Fatalf("top candidate = %d, want 42", candidates[0].Ticket.ID)
	}
	if catMatch := findCandidate(candidates, 43); catMatch == nil || catMatch.Score != ScoreCategory {
		t.Fatalf("category match = %+v", catMatch)
	}
}

func TestFindRelatedByCategory(t *testing.T) {
	ctx := context.Background()
	network := uint(1)
	category := &model.Category{ID: network, Name: "Network"}
	ticketA := &model.Ticket{
		ID:          1,
		Title:       "VPN drops",
		Description: "Disconnects hourly",
		CategoryID:  &network,
		Category:    category,
		CreatedByID: 7,
	}
	ticketB := &model.Ticket{
		ID:          2,
		Title:       "Wifi unstable",
		Description: "Office access point flapping",
		CategoryID:  &network,
		Category:    category,
		CreatedByID: 8,
	}
	finder := NewFinder(newFakeTicketStore(ticketA, ticketB))

	candidates, err := finder.FindRelated(ctx, ticketA)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	got := candidates[0]
	if got.Ticket.ID != 2 || got.Score != ScoreCategory {
		t.Fatalf("candidate = %+v", got)
	}
	if !strings.Contains(got.Reason, "Network") {
		t.Fatalf("reason %q does not name the category", got.Reason)
	}
}

func TestFindRelatedReasonStrings(t *testing.T) {
	ctx := context.Background()
	source := &model.Ticket{
		ID:          1,
		Title:       "Firewall rule request",
		Description: "Allow outbound 8443",
		CreatedByID: 7,
	}
	byKeyword := &model.Ticket{
		ID:          2,
		Title:       "Firewall blocking prints",
		Description: "Print server unreachable",
		CreatedByID: 8,
	}
	byCreator := &model.Ticket{
		ID:          3,
		Title:       "New mouse",
		Description: "Spare needed",
		CreatedByID: 7,
		CreatedAt:   time.Now(),
	}
	finder := NewFinder(newFakeTicketStore(source, byKeyword, byCreator))

	candidates, err := finder.FindRelated(ctx, source)
	if err != nil {
		t.Fatal(err)
	}
	got := findCandidate(candidates, 2)
	if got == nil || got.Reason != "Similar keyword: firewall" {
		t.Fatalf("keyword candidate = %+v, want reason %q", got, "Similar keyword: firewall")
	}
	got = findCandidate(candidates, 3)
	if got == nil || got.Reason != "Same creator (recent)" {
		t.Fatalf("creator candidate = %+v, want reason %q", got, "Same creator (recent)")
	}
}

func TestFindRelatedExcludesSelf(t *testing.T) {
	ctx := context.Background()
	network := uint(1)
	source := &model.Ticket{
		ID:          10,
		Title:       "Outlook crash loop",
		Description: "Crashes on launch, duplicate of ticket #10",
		CategoryID:  &network,
		CreatedByID: 7,
		CreatedAt:   time.Now(),
	}
	finder := NewFinder(newFakeTicketStore(source))

	candidates, err := finder.FindRelated(ctx, source)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 0 {
		t.Fatalf("self-only store returned %d candidates", len(candidates))
	}
}

func TestFindRelatedFirstOccurrenceWins(t *testing.T) {
	ctx := context.Background()
	network := uint(1)
	source := &model.Ticket{
		ID:          1,
		Title:       "Firewall misconfigured",
		Description: "Blocked outbound traffic",
		CategoryID:  &network,
		CreatedByID: 7,
	}
	// matches category, keyword ("firewall") and creator recency
	overlap := &model.Ticket{
		ID:          2,
		Title:       "Firewall rules review",
		Description: "Quarterly audit of firewall rules",
		CategoryID:  &network,
		CreatedByID: 7,
		CreatedAt:   time.Now(),
	}
	finder := NewFinder(newFakeTicketStore(source, overlap))

	candidates, err := finder.FindRelated(ctx, source)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1 after merge", len(candidates))
	}
	if candidates[0].Score != ScoreCategory {
		t.Fatalf("merged score = %v, want the category strategy's %v", candidates[0].Score, ScoreCategory)
	}
}

func TestFindRelatedTruncatesToLimit(t *testing.T) {
	ctx := context.Background()
	network := uint(1)
	source := &model.Ticket{
		ID:          1,
		Title:       "Monitor flicker",
		Description: "Screen flickers",
		CategoryID:  &network,
		CreatedByID: 7,
	}
	store := newFakeTicketStore(source)
	for id := uint(2); id <= 9; id++ {
		store.tickets[id] = &model.Ticket{
			ID:          id,
			Title:       "Display problem",
			Description: "Another display report",
			CategoryID:  &network,
			CreatedByID: 8,
		}
	}
	finder := NewFinder(store)

	candidates, err := finder.FindRelated(ctx, source)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 5 {
		t.Fatalf("candidates = %d, want 5", len(candidates))
	}
}

func TestFindRelatedForUserFiltersByAccess(t *testing.T) {
	ctx := context.Background()
	network := uint(1)
	source := &model.Ticket{
		ID:          1,
		Title:       "Badge reader down",
		Description: "Front door reader unresponsive",
		CategoryID:  &network,
		CreatedByID: 7,
	}
	visible := &model.Ticket{
		ID:          2,
		Title:       "Badge reader east wing",
		Description: "Also unresponsive",
		CategoryID:  &network,
		CreatedByID: 7,
	}
	hidden := &model.Ticket{
		ID:          3,
		Title:       "Badge reader west wing",
		Description: "Unresponsive too",
		CategoryID:  &network,
		CreatedByID: 9,
	}
	finder := NewFinder(newFakeTicketStore(source, visible, hidden))

	requester := &model.User{ID: 7}
	candidates, err := finder.FindRelatedForUser(ctx, source, requester)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].Ticket.ID != 2 {
		t.Fatalf("candidates = %+v, want only ticket 2", candidates)
	}

	staff := &model.User{ID: 100, IsStaff: true}
	candidates, err = finder.FindRelatedForUser(ctx, source, staff)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 {
		t.Fatalf("staff sees %d candidates, want 2", len(candidates))
	}
}

func TestFindSimilarByText(t *testing.T) {
	ctx := context.Background()
	source := &model.Ticket{
		ID:          1,
		Title:       "Laptop battery drains fast",
		Description: "Battery drains within an hour",
		CreatedByID: 7,
	}
	similar := &model.Ticket{
		ID:          2,
		Title:       "Laptop battery drains fast",
		Description: "Battery drains within an hour on dock",
		CreatedByID: 8,
	}
	unrelated := &model.Ticket{
		ID:          3,
		Title:       "Projector lamp",
		Description: "Replacement bulb request",
		CreatedByID: 8,
	}
	finder := NewFinder(newFakeTicketStore(source, similar, unrelated))

	candidates, err := finder.FindSimilarByText(ctx, source)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].Ticket.ID != 2 {
		t.Fatalf("candidates = %+v, want only ticket 2", candidates)
	}
}

func TestFindSimilarByTextThresholdIsStrict(t *testing.T) {
	ctx := context.Background()
	// 6 source words, 7 candidate words, 3 shared: similarity is
	// exactly 3/10 and must not pass.
	source := &model.Ticket{
		ID:          1,
		Title:       "Monitor flickers",
		Description: "Screen cable replacement scheduled",
		CreatedByID: 7,
	}
	borderline := &model.Ticket{
		ID:          2,
		Title:       "Monitor flickers screen",
		Description: "Mount bracket swap delayed",
		CreatedByID: 8,
	}
	if got := JaccardSimilarity(
		source.Title+" "+source.Description,
		borderline.Title+" "+borderline.Description,
	); got != 0.3 {
		t.Fatalf("similarity = %v, want 0.3", got)
	}
	finder := NewFinder(newFakeTicketStore(source, borderline))

	candidates, err := finder.FindSimilarByText(ctx, source)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 0 {
		t.Fatalf("candidates = %+v, want none at the threshold", candidates)
	}
}
