package audit

import (
	"context"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"gorm.io/gorm"
)

// OffenderCount pairs an identifier with its failure count for the
// summary's top-offender listings.
type OffenderCount struct {
	Identifier string `json:"identifier" gorm:"column:identifier"`
	Count      int64  `json:"count" gorm:"column:count"`
}

type LoginAttemptRepository interface {
	Create(ctx context.Context, attempt *model.LoginAttempt) error
	CountFailedByIPSince(ctx context.Context, ip string, since time.Time) (int64, error)
	CountFailedByUsernameSince(ctx context.Context, username string, since time.Time) (int64, error)
	CountByStatusSince(ctx context.Context, since time.Time) (map[string]int64, error)
	CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error)
	ListByUsername(ctx context.Context, username string, limit int) ([]*model.LoginAttempt, error)
	DistinctIdentifiersSince(ctx context.Context, since time.Time) (usernames []string, ips []string, err error)
	TopFailureIPsSince(ctx context.Context, since time.Time, limit int) ([]OffenderCount, error)
	TopFailureUsernamesSince(ctx context.Context, since time.Time, limit int) ([]OffenderCount, error)
}

type loginAttemptRepository struct {
	db *gorm.DB
}

func NewLoginAttemptRepository(db *gorm.DB) LoginAttemptRepository {
	return &loginAttemptRepository{db}
}

func (r *loginAttemptRepository) Create(ctx context.Context, attempt *model.LoginAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *loginAttemptRepository) CountFailedByIPSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.LoginAttempt{}).
		Where("ip_address = ? AND status <> ? AND timestamp >= ?", ip, model.AttemptStatusSuccess, since).
		Count(&count).Error
	return count, err
}

func (r *loginAttemptRepository) CountFailedByUsernameSince(ctx context.Context, username string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.LoginAttempt{}).
		Where("username = ? AND status <> ? AND timestamp >= ?", username, model.AttemptStatusSuccess, since).
		Count(&count).Error
	return count, err
}

func (r *loginAttemptRepository) CountByStatusSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	var rows []typeCount
	err := r.db.WithContext(ctx).
		Model(&model.LoginAttempt{}).
		Select("status AS `key`, COUNT(*) AS count").
		Where("timestamp >= ?", since).
		Group("status").
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

func (r *loginAttemptRepository) CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.LoginAttempt{}).
		Where("is_suspicious = ? AND timestamp >= ?", true, since).
		Count(&count).Error
	return count, err
}

func (r *loginAttemptRepository) ListByUsername(ctx context.Context, username string, limit int) ([]*model.LoginAttempt, error) {
	var attempts []*model.LoginAttempt
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("timestamp DESC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// DistinctIdentifiersSince returns the usernames and IPs seen in failed
// attempts within the window. The CLI uses it to enumerate lockout
// candidates without scanning the counter store.
func (r *loginAttemptRepository) DistinctIdentifiersSince(ctx context.Context, since time.Time) ([]string, []string, error) {
	var usernames []string
	err := r.db.WithContext(ctx).
		Model(&model.LoginAttempt{}).
		Distinct("username").
		Where("status <> ? AND timestamp >= ?", model.AttemptStatusSuccess, since).
		Pluck("username", &usernames).Error
	if err != nil {
		return nil, nil, err
	}
	var ips []string
	err = r.db.WithContext(ctx).
		Model(&model.LoginAttempt{}).
		Distinct("ip_address").
		Where("status <> ? AND timestamp >= ?", model.AttemptStatusSuccess, since).
		Pluck("ip_address", &ips).Error
	return usernames, ips, err
}

func (r *loginAttemptRepository) TopFailureIPsSince(ctx context.Context, since time.Time, limit int) ([]OffenderCount, error) {
	return r.topOffenders(ctx, "ip_address", since, limit)
}

func (r *loginAttemptRepository) TopFailureUsernamesSince(ctx context.Context, since time.Time, limit int) ([]OffenderCount, error) {
	return r.topOffenders(ctx, "username", since, limit)
}

func (r *loginAttemptRepository) topOffenders(ctx context.Context, column string, since time.Time, limit int) ([]OffenderCount, error) {
	var rows []OffenderCount
	err := r.db.WithContext(ctx).
		Model(&model.LoginAttempt{}).
		Select(column+" AS identifier, COUNT(*) AS count").
		Where("status <> ? AND timestamp >= ?", model.AttemptStatusSuccess, since).
		Group(column).
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
