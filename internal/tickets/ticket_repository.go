package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"gorm.io/gorm"
)

var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepository is the read-only ticket access used by the
// related-ticket finder and the API layer. The security core never
// mutates tickets.
type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db}
}

// GetWithComments loads the ticket with the associations the finder
// and the access predicate need.
func (r *TicketRepository) GetWithComments(ctx context.Context, ticketID uint) (*model.Ticket, error) {
	var ticket model.Ticket
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Comments").
		Preload("CCAdmins").
		Preload("CCNonAdmins").
		First(&ticket, ticketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *TicketRepository) FindByCategory(ctx context.Context, categoryID uint, excludeID uint, limit int) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND id <> ?", categoryID, excludeID).
		Order("created_at DESC").
		Limit(limit).
		Find(&tickets).Error
	return tickets, err
}

func (r *TicketRepository) FindByIDs(ctx context.Context, ids []uint) ([]*model.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tickets []*model.Ticket
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&tickets).Error
	return tickets, err
}

func (r *TicketRepository) SearchKeyword(ctx context.Context, keyword string, excludeID uint, limit int) ([]*model.Ticket, error) {
	pattern := "%" + keyword + "%"
	var tickets []*model.Ticket
	err := r.db.WithContext(ctx).
		Where("id <> ? AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", excludeID, pattern, pattern).
		Limit(limit).
		Find(&tickets).Error
	return tickets, err
}

func (r *TicketRepository) FindByCreatorSince(ctx context.Context, creatorID uint, since time.Time, excludeID uint, limit int) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := r.db.WithContext(ctx).
		Where("created_by_id = ? AND id <> ? AND created_at >= ?", creatorID, excludeID, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&tickets).Error
	return tickets, err
}

// ListAll streams the whole ticket table for the text similarity
// fallback. Full scan, only suitable for small installations.
func (r *TicketRepository) ListAll(ctx context.Context) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := r.db.WithContext(ctx).Find(&tickets).Error
	return tickets, err
}
