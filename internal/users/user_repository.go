package users

import (
	"context"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"gorm.io/gorm"
)

// Unique index names as gorm derives them, used to map duplicate key
// errors back to the offending column.
const (
	idxUserUsername = "idx_users_username"
	idxUserEmail    = "idx_users_email"
)

type UserRepository interface {
	GetByID(ctx context.Context, userID uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Updates(ctx context.Context, userID uint, columns map[string]interface{}) (int64, error)
	SetLastLogin(ctx context.Context, userID uint, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db}
}

func (r *userRepository) GetByID(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Updates(ctx context.Context, userID uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(columns)
	return ret.RowsAffected, ret.Error
}

func (r *userRepository) SetLastLogin(ctx context.Context, userID uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_login_at", at).Error
}
