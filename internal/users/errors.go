package users

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrUserDisabled       = errors.New("user account is disabled")
	ErrInvalidCredentials = errors.New("invalid username or password")
)
