package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CreateUserOptions struct {
	Username string
	FullName string
	Email    string
	Password string
	IsStaff  bool
}

type UserService struct {
	userRepo UserRepository
}

func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{userRepo}
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// GetUserByUsernameOrEmail resolves a login identifier: strings that
// parse as an email address look up by email, anything else by
// username.
func (s *UserService) GetUserByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error) {
	var (
		user *model.User
		err  error
	)
	if _, mailErr := mail.ParseAddress(identifier); mailErr == nil {
		user, err = s.userRepo.GetByEmail(ctx, identifier)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, identifier)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// Authenticate checks the identifier and password. Unknown users,
// wrong passwords and disabled accounts all return ErrInvalidCredentials
// so callers cannot distinguish them, except ErrUserDisabled which is
// reported for known-but-disabled accounts after the password check.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (*model.User, error) {
	user, err := s.GetUserByUsernameOrEmail(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		// burn a comparison so the timing matches the found-user path
		bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000u"), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	return user, nil
}

func (s *UserService) CreateUser(ctx context.Context, opts CreateUserOptions) (*model.User, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := model.User{
		Username: opts.Username,
		FullName: opts.FullName,
		Email:    opts.Email,
		Password: string(passwordHash),
		IsStaff:  opts.IsStaff,
		IsActive: true,
	}
	var mysqlErr *mysql.MySQLError
	if err := s.userRepo.Create(ctx, &user); errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		switch {
		case strings.Contains(mysqlErr.Message, idxUserUsername):
			return nil, ErrUsernameTaken
		case strings.Contains(mysqlErr.Message, idxUserEmail):
			return nil, ErrEmailRegistered
		}
		return nil, err
	} else if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, userID uint, newPassword string) error {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	affected, err := s.userRepo.Updates(ctx, userID, map[string]interface{}{
		"password": string(passwordHash),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetActive enables or disables the account.
func (s *UserService) SetActive(ctx context.Context, userID uint, active bool) error {
	affected, err := s.userRepo.Updates(ctx, userID, map[string]interface{}{
		"is_active": active,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkLogin stamps the successful login time.
func (s *UserService) MarkLogin(ctx context.Context, userID uint) error {
	return s.userRepo.SetLastLogin(ctx, userID, time.Now())
}
