package audit

import (
	"context"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"gorm.io/gorm"
)

// EventFilter narrows security event listings. Zero fields are ignored.
type EventFilter struct {
	EventType  string
	Severity   string
	Username   string
	IPAddress  string
	Since      time.Time
	Unresolved bool
	Limit      int
}

type SecurityEventRepository interface {
	Create(ctx context.Context, event *model.SecurityEvent) error
	GetByID(ctx context.Context, id uint64) (*model.SecurityEvent, error)
	List(ctx context.Context, filter EventFilter) ([]*model.SecurityEvent, error)
	Resolve(ctx context.Context, id uint64, resolvedByID uint, notes string) (int64, error)
	CountByTypeSince(ctx context.Context, since time.Time) (map[string]int64, error)
	CountBySeveritySince(ctx context.Context, since time.Time) (map[string]int64, error)
	CountUnresolvedCritical(ctx context.Context) (int64, error)
}

type securityEventRepository struct {
	db *gorm.DB
}

func NewSecurityEventRepository(db *gorm.DB) SecurityEventRepository {
	return &securityEventRepository{db}
}

func (r *securityEventRepository) Create(ctx context.Context, event *model.SecurityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *securityEventRepository) GetByID(ctx context.Context, id uint64) (*model.SecurityEvent, error) {
	var event model.SecurityEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *securityEventRepository) List(ctx context.Context, filter EventFilter) ([]*model.SecurityEvent, error) {
	db := r.db.WithContext(ctx).Model(&model.SecurityEvent{})
	if filter.EventType != "" {
		db = db.Where("event_type = ?", filter.EventType)
	}
	if filter.Severity != "" {
		db = db.Where("severity = ?", filter.Severity)
	}
	if filter.Username != "" {
		db = db.Where("username_attempted = ?", filter.Username)
	}
	if filter.IPAddress != "" {
		db = db.Where("ip_address = ?", filter.IPAddress)
	}
	if !filter.Since.IsZero() {
		db = db.Where("timestamp >= ?", filter.Since)
	}
	if filter.Unresolved {
		db = db.Where("resolved = ?", false)
	}
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}
	var events []*model.SecurityEvent
	err := db.Order("timestamp DESC").Find(&events).Error
	return events, err
}

func (r *securityEventRepository) Resolve(ctx context.Context, id uint64, resolvedByID uint, notes string) (int64, error) {
	now := time.Now()
	ret := r.db.WithContext(ctx).
		Model(&model.SecurityEvent{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":       true,
			"resolved_by_id": resolvedByID,
			"resolved_at":    now,
			"notes":          notes,
		})
	return ret.RowsAffected, ret.Error
}

type typeCount struct {
	Key   string
	Count int64
}

func (r *securityEventRepository) CountByTypeSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	var rows []typeCount
	err := r.db.WithContext(ctx).
		Model(&model.SecurityEvent{}).
		Select("event_type AS `key`, COUNT(*) AS count").
		Where("timestamp >= ?", since).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}

func (r *securityEventRepository) CountBySeveritySince(ctx context.Context, since time.Time) (map[string]int64, error) {
	var rows []typeCount
	err := r.db.WithContext(ctx).
		Model(&model.SecurityEvent{}).
		Select("severity AS `key`, COUNT(*) AS count").
		Where("timestamp >= ?", since).
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}

func (r *securityEventRepository) CountUnresolvedCritical(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.SecurityEvent{}).
		Where("severity = ? AND resolved = ?", model.SeverityCritical, false).
		Count(&count).Error
	return count, err
}
