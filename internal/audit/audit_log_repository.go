package audit

import (
	"context"

	"github.com/derbyfab/derby-tickets/model"
	"gorm.io/gorm"
)

type AuditLogRepository interface {
	Create(ctx context.Context, entry *model.AuditLog) error
	ListByTargetUser(ctx context.Context, targetUserID uint, limit int) ([]*model.AuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepository) ListByTargetUser(ctx context.Context, targetUserID uint, limit int) ([]*model.AuditLog, error) {
	var entries []*model.AuditLog
	db := r.db.WithContext(ctx).
		Where("target_user_id = ?", targetUserID).
		Order("timestamp DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&entries).Error
	return entries, err
}
