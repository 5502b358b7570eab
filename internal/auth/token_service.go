package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims binds an access token to the session it was minted for.
// Ending the session invalidates every token carrying its key.
type AccessClaims struct {
	Username   string `json:"username"`
	SessionKey string `json:"sid"`
	IsStaff    bool   `json:"staff,omitempty"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	maxAge time.Duration
}

func NewTokenService(secret string, maxAge time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		maxAge: maxAge,
	}
}

func (s *TokenService) MintAccessToken(userID uint, username, sessionKey string, isStaff bool) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Username:   username,
		SessionKey: sessionKey,
		IsStaff:    isStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconvUint(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseAccessToken verifies the signature and expiry and returns the
// claims. All parse failures map to ErrInvalidToken except expiry.
func (s *TokenService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// UserID parses the subject claim back into the numeric user id.
func (c *AccessClaims) UserID() (uint, error) {
	return parseUint(c.Subject)
}
