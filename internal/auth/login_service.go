package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/derbyfab/derby-tickets/internal/security"
	"github.com/derbyfab/derby-tickets/internal/users"
	"github.com/derbyfab/derby-tickets/model"
	"github.com/derbyfab/derby-tickets/params"
	"gorm.io/gorm"
)

// LoginResult is the full outcome of one audited login attempt. Policy
// rejections and bad credentials set Success=false with a Reason; an
// error return means the attempt itself could not be processed.
type LoginResult struct {
	Success           bool
	Blocked           bool
	LockedOut         bool
	DomainValid       bool
	Reason            string
	AttemptsRemaining int
	User              *model.User
	Session           *model.UserSession
}

// AuditTrail is the slice of the audit manager the login flow writes
// through.
type AuditTrail interface {
	RecordEvent(ctx context.Context, event *model.SecurityEvent) error
	LogLoginAttempt(ctx context.Context, attempt *model.LoginAttempt) error
	IsSuspiciousIP(ctx context.Context, ip string) bool
	CreateUserSession(ctx context.Context, user *model.User, sessionKey, ip, userAgent, method string) (*model.UserSession, error)
	EndUserSession(ctx context.Context, sessionKey string, forced bool) error
	GetSession(ctx context.Context, sessionKey string) (*model.UserSession, error)
	TouchSession(ctx context.Context, sessionKey string) error
}

// Authenticator verifies credentials and stamps successful logins.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (*model.User, error)
	MarkLogin(ctx context.Context, userID uint) error
}

// LoginService runs the audited login flow: lockout pre-check,
// credential verification, attempt logging and session bookkeeping.
type LoginService struct {
	security *security.Manager
	audit    AuditTrail
	users    Authenticator
}

func NewLoginService(securityMgr *security.Manager, auditTrail AuditTrail, authenticator Authenticator) *LoginService {
	return &LoginService{
		security: securityMgr,
		audit:    auditTrail,
		users:    authenticator,
	}
}

// Login validates and audits one login attempt end to end. Every call
// leaves exactly one LoginAttempt row; security events are emitted per
// outcome. Counters are not cleared on success here, the caller decides
// when a success resets the failure history.
func (s *LoginService) Login(ctx context.Context, username, password, clientIP, userAgent string) (*LoginResult, error) {
	if username == "" || clientIP == "" {
		return nil, security.ErrIdentifierEmpty
	}
	pre := s.security.ValidateLoginAttempt(ctx, username, clientIP)

	// The suspicious flag is computed up front and logged on every
	// outcome, success included: prior failure history, hostile IP or
	// an automation user agent all mark the attempt.
	priorFailures := s.security.MaxAttempts() - pre.AttemptsRemaining
	suspicious := priorFailures >= params.SuspiciousAttemptCount ||
		security.IsSuspiciousUserAgent(userAgent) ||
		s.audit.IsSuspiciousIP(ctx, clientIP)

	if !pre.Allowed {
		return s.recordBlocked(ctx, username, clientIP, userAgent, pre)
	}

	user, err := s.users.Authenticate(ctx, username, password)
	switch {
	case err == nil:
		return s.recordSuccess(ctx, user, username, clientIP, userAgent, pre, suspicious)
	case errors.Is(err, users.ErrInvalidCredentials) || errors.Is(err, users.ErrUserDisabled):
		return s.recordFailure(ctx, username, clientIP, userAgent, err)
	default:
		return nil, err
	}
}

func (s *LoginService) recordBlocked(ctx context.Context, username, clientIP, userAgent string, pre security.ValidationResult) (*LoginResult, error) {
	attempt := &model.LoginAttempt{
		Username:      username,
		Status:        model.AttemptStatusBlocked,
		IPAddress:     clientIP,
		UserAgent:     userAgent,
		FailureReason: pre.Reason,
		IsSuspicious:  true,
		AttemptCount:  uint(s.security.MaxAttempts() - pre.AttemptsRemaining + 1),
	}
	if err := s.audit.LogLoginAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	// Domain rejections already produced an UNAUTHORIZED_DOMAIN event
	// inside the pre-check. Lockout blocks get their own event here.
	if pre.LockedOut {
		s.recordEvent(ctx, &model.SecurityEvent{
			EventType:         model.EventTypeLoginBlocked,
			Severity:          model.SeverityHigh,
			UsernameAttempted: username,
			IPAddress:         clientIP,
			UserAgent:         userAgent,
			Description:       fmt.Sprintf("Blocked login attempt for locked out identifier: %s", username),
			Reason:            pre.Reason,
		})
	}
	return &LoginResult{
		Blocked:           true,
		LockedOut:         pre.LockedOut,
		DomainValid:       pre.DomainValid,
		Reason:            pre.Reason,
		AttemptsRemaining: pre.AttemptsRemaining,
	}, nil
}

func (s *LoginService) recordSuccess(ctx context.Context, user *model.User, username, clientIP, userAgent string, pre security.ValidationResult, suspicious bool) (*LoginResult, error) {
	attempt := &model.LoginAttempt{
		Username:     username,
		Status:       model.AttemptStatusSuccess,
		IPAddress:    clientIP,
		UserAgent:    userAgent,
		UserID:       &user.ID,
		IsSuspicious: suspicious,
	}
	if err := s.audit.LogLoginAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, &model.SecurityEvent{
		EventType:   model.EventTypeLoginSuccess,
		Severity:    model.SeverityLow,
		UserID:      &user.ID,
		IPAddress:   clientIP,
		UserAgent:   userAgent,
		Description: fmt.Sprintf("Successful login for %s", user.Username),
		Success:     true,
		Metadata:    map[string]any{"suspicious": suspicious},
	})
	if err := s.users.MarkLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	return &LoginResult{
		Success:           true,
		DomainValid:       true,
		AttemptsRemaining: pre.AttemptsRemaining,
		User:              user,
	}, nil
}

func (s *LoginService) recordFailure(ctx context.Context, username, clientIP, userAgent string, authErr error) (*LoginResult, error) {
	evCtx := security.EventContext{IPAddress: clientIP, UserAgent: userAgent}
	userRes := s.security.RecordFailedAttempt(ctx, username, params.AttemptTypeLogin, evCtx)
	ipRes := s.security.RecordFailedAttempt(ctx, clientIP, params.AttemptTypeLogin, evCtx)
	locked := userRes.LockedOut || ipRes.LockedOut

	suspicious := userRes.Attempts >= params.SuspiciousAttemptCount ||
		security.IsSuspiciousUserAgent(userAgent) ||
		s.audit.IsSuspiciousIP(ctx, clientIP)

	failureReason := "Invalid password"
	if errors.Is(authErr, users.ErrUserDisabled) {
		failureReason = "Account disabled"
	}

	status := model.AttemptStatusFailed
	if locked {
		status = model.AttemptStatusLocked
	}
	attempt := &model.LoginAttempt{
		Username:         username,
		Status:           status,
		IPAddress:        clientIP,
		UserAgent:        userAgent,
		FailureReason:    failureReason,
		IsSuspicious:     suspicious,
		LockoutTriggered: locked,
		AttemptCount:     uint(userRes.Attempts),
	}
	if err := s.audit.LogLoginAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	// The lockout manager emits ACCOUNT_LOCKED on the attempt that
	// crossed the threshold, so only plain failures get an event here.
	if !locked {
		severity := model.SeverityMedium
		if suspicious {
			severity = model.SeverityHigh
		}
		s.recordEvent(ctx, &model.SecurityEvent{
			EventType:         model.EventTypeLoginFailed,
			Severity:          severity,
			UsernameAttempted: username,
			IPAddress:         clientIP,
			UserAgent:         userAgent,
			Description:       fmt.Sprintf("Failed login attempt for %s (%d of %d)", username, userRes.Attempts, s.security.MaxAttempts()),
			Reason:            failureReason,
			Metadata: map[string]any{
				"attempt_count": userRes.Attempts,
				"suspicious":    suspicious,
			},
		})
	}

	reason := security.ReasonInvalidPassword
	if locked {
		reason = security.ReasonAccountLocked
	}
	remaining := s.security.MaxAttempts() - userRes.Attempts
	if ipRemaining := s.security.MaxAttempts() - ipRes.Attempts; ipRemaining < remaining {
		remaining = ipRemaining
	}
	if remaining < 0 {
		remaining = 0
	}
	return &LoginResult{
		DomainValid:       true,
		LockedOut:         locked,
		Reason:            reason,
		AttemptsRemaining: remaining,
	}, nil
}

// OpenSession clears the failure history for the authenticated user and
// IP, opens the session row and mints the access token for it.
func (s *LoginService) OpenSession(ctx context.Context, tokens *TokenService, user *model.User, username, clientIP, userAgent string) (*model.UserSession, string, error) {
	s.security.ClearAttempts(ctx, username, params.AttemptTypeLogin)
	s.security.ClearAttempts(ctx, clientIP, params.AttemptTypeLogin)

	session, err := s.audit.CreateUserSession(ctx, user, generateSessionKey(), clientIP, userAgent, "password")
	if err != nil {
		return nil, "", err
	}
	token, err := tokens.MintAccessToken(user.ID, user.Username, session.SessionKey, user.IsStaff)
	if err != nil {
		return nil, "", err
	}
	return session, token, nil
}

// CloseSession ends the session named by the token claims.
func (s *LoginService) CloseSession(ctx context.Context, claims *AccessClaims) error {
	return s.audit.EndUserSession(ctx, claims.SessionKey, false)
}

// VerifySession resolves a session key to its live session row and
// stamps its activity. Returns ErrSessionNotFound for unknown keys and
// ErrSessionEnded once the session has been closed.
func (s *LoginService) VerifySession(ctx context.Context, sessionKey string) (*model.UserSession, error) {
	session, err := s.audit.GetSession(ctx, sessionKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, ErrSessionEnded
	}
	if err := s.audit.TouchSession(ctx, sessionKey); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *LoginService) recordEvent(ctx context.Context, event *model.SecurityEvent) {
	if err := s.audit.RecordEvent(ctx, event); err != nil {
		slog.Error("Failed to record security event", "event_type", event.EventType, "error", err)
	}
}
