package auth

import "errors"

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrSessionEnded    = errors.New("session has ended")
	ErrSessionNotFound = errors.New("session not found")
)
