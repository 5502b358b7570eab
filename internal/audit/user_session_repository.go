package audit

import (
	"context"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"gorm.io/gorm"
)

type UserSessionRepository interface {
	Create(ctx context.Context, session *model.UserSession) error
	GetBySessionKey(ctx context.Context, sessionKey string) (*model.UserSession, error)
	ListActive(ctx context.Context, limit int) ([]*model.UserSession, error)
	CountActive(ctx context.Context) (int64, error)
	CountActiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	TouchActivity(ctx context.Context, sessionKey string) error
	EndByUser(ctx context.Context, userID uint, forced bool) (int64, error)
	EndBySessionKey(ctx context.Context, sessionKey string, forced bool) (int64, error)
	EndInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type userSessionRepository struct {
	db *gorm.DB
}

func NewUserSessionRepository(db *gorm.DB) UserSessionRepository {
	return &userSessionRepository{db}
}

func (r *userSessionRepository) Create(ctx context.Context, session *model.UserSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *userSessionRepository) GetBySessionKey(ctx context.Context, sessionKey string) (*model.UserSession, error) {
	var session model.UserSession
	err := r.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *userSessionRepository) ListActive(ctx context.Context, limit int) ([]*model.UserSession, error) {
	var sessions []*model.UserSession
	db := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&sessions).Error
	return sessions, err
}

func (r *userSessionRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}

func (r *userSessionRepository) CountActiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("is_active = ? AND created_at < ?", true, cutoff).
		Count(&count).Error
	return count, err
}

func (r *userSessionRepository) TouchActivity(ctx context.Context, sessionKey string) error {
	return r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("session_key = ? AND is_active = ?", sessionKey, true).
		Update("last_activity", time.Now()).Error
}

func (r *userSessionRepository) EndByUser(ctx context.Context, userID uint, forced bool) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{
			"is_active":     false,
			"ended_at":      time.Now(),
			"forced_logout": forced,
		})
	return ret.RowsAffected, ret.Error
}

func (r *userSessionRepository) EndBySessionKey(ctx context.Context, sessionKey string, forced bool) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("session_key = ? AND is_active = ?", sessionKey, true).
		Updates(map[string]interface{}{
			"is_active":     false,
			"ended_at":      time.Now(),
			"forced_logout": forced,
		})
	return ret.RowsAffected, ret.Error
}

func (r *userSessionRepository) EndInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("is_active = ? AND last_activity < ?", true, cutoff).
		Updates(map[string]interface{}{
			"is_active":     false,
			"ended_at":      time.Now(),
			"forced_logout": true,
		})
	return ret.RowsAffected, ret.Error
}
