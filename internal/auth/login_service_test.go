package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/derbyfab/derby-tickets/internal/security"
	"github.com/derbyfab/derby-tickets/internal/store"
	"github.com/derbyfab/derby-tickets/internal/users"
	"github.com/derbyfab/derby-tickets/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeAuditTrail struct {
	events       []*model.SecurityEvent
	attempts     []*model.LoginAttempt
	sessions     []*model.UserSession
	endedKeys    []string
	touchedKeys  []string
	suspiciousIP bool
}

func (f *fakeAuditTrail) RecordEvent(ctx context.Context, event *model.SecurityEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditTrail) LogLoginAttempt(ctx context.Context, attempt *model.LoginAttempt) error {
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeAuditTrail) IsSuspiciousIP(ctx context.Context, ip string) bool {
	return f.suspiciousIP
}

func (f *fakeAuditTrail) CreateUserSession(ctx context.Context, user *model.User, sessionKey, ip, userAgent, method string) (*model.UserSession, error) {
	session := &model.UserSession{
		UserID:     user.ID,
		SessionKey: sessionKey,
		IsActive:   true,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeAuditTrail) EndUserSession(ctx context.Context, sessionKey string, forced bool) error {
	f.endedKeys = append(f.endedKeys, sessionKey)
	for _, session := range f.sessions {
		if session.SessionKey == sessionKey {
			session.IsActive = false
		}
	}
	return nil
}

func (f *fakeAuditTrail) GetSession(ctx context.Context, sessionKey string) (*model.UserSession, error) {
	for _, session := range f.sessions {
		if session.SessionKey == sessionKey {
			return session, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAuditTrail) TouchSession(ctx context.Context, sessionKey string) error {
	f.touchedKeys = append(f.touchedKeys, sessionKey)
	return nil
}

func (f *fakeAuditTrail) countEvents(eventType string) int {
	n := 0
	for _, ev := range f.events {
		if ev.EventType == eventType {
			n++
		}
	}
	return n
}

func (f *fakeAuditTrail) lastAttempt(t *testing.T) *model.LoginAttempt {
	t.Helper()
	if len(f.attempts) == 0 {
		t.Fatal("no login attempt was logged")
	}
	return f.attempts[len(f.attempts)-1]
}

type fakeAuthenticator struct {
	user     *model.User
	password string
	marked   []uint
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, identifier, password string) (*model.User, error) {
	if f.user == nil || identifier != f.user.Username {
		return nil, users.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(f.user.Password), []byte(password)); err != nil {
		return nil, users.ErrInvalidCredentials
	}
	if !f.user.IsActive {
		return nil, users.ErrUserDisabled
	}
	return f.user, nil
}

func (f *fakeAuthenticator) MarkLogin(ctx context.Context, userID uint) error {
	f.marked = append(f.marked, userID)
	return nil
}

func newTestLoginService(t *testing.T) (*LoginService, *fakeAuditTrail, *fakeAuthenticator) {
	t.Helper()
	trail := &fakeAuditTrail{}
	secMgr := security.NewManager(store.NewMemoryStorage(), security.Config{
		AllowedEmailDomains: []string{"derbyfab.com"},
		MaxAttempts:         5,
		LockoutTime:         5 * time.Minute,
	}, trail)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	authn := &fakeAuthenticator{
		user: &model.User{
			ID:       42,
			Username: "alice",
			Email:    "alice@derbyfab.com",
			Password: string(hash),
			IsActive: true,
		},
	}
	return NewLoginService(secMgr, trail, authn), trail, authn
}

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	svc, trail, authn := newTestLoginService(t)

	res, err := svc.Login(ctx, "alice", "correct-horse", "1.2.3.4", "Mozilla/5.0")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Blocked || res.LockedOut {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.User == nil || res.User.ID != 42 {
		t.Fatalf("result user = %+v", res.User)
	}

	attempt := trail.lastAttempt(t)
	if attempt.Status != model.AttemptStatusSuccess {
		t.Fatalf("attempt status = %s, want SUCCESS", attempt.Status)
	}
	if attempt.UserID == nil || *attempt.UserID != 42 {
		t.Fatal("success attempt not linked to the user")
	}
	if attempt.IsSuspicious {
		t.Fatal("clean success flagged suspicious")
	}
	if trail.countEvents(model.EventTypeLoginSuccess) != 1 {
		t.Fatal("LOGIN_SUCCESS event not recorded")
	}
	if len(authn.marked) != 1 || authn.marked[0] != 42 {
		t.Fatal("last login was not stamped")
	}
}

func TestLoginSuccessFlagsSuspicious(t *testing.T) {
	ctx := context.Background()

	// automation user agent marks even a successful login
	svc, trail, _ := newTestLoginService(t)
	res, err := svc.Login(ctx, "alice", "correct-horse", "1.2.3.4", "python-requests/2.31")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("unexpected result: %+v", res)
	}
	attempt := trail.lastAttempt(t)
	if attempt.Status != model.AttemptStatusSuccess || !attempt.IsSuspicious {
		t.Fatalf("success attempt = %+v, want suspicious SUCCESS", attempt)
	}
	event := trail.events[len(trail.events)-1]
	if event.EventType != model.EventTypeLoginSuccess {
		t.Fatalf("event type = %s", event.EventType)
	}
	if flagged, _ := event.Metadata["suspicious"].(bool); !flagged {
		t.Fatalf("event metadata = %+v, want suspicious", event.Metadata)
	}

	// so does a success after enough prior failures
	svc2, trail2, _ := newTestLoginService(t)
	for i := 0; i < 3; i++ {
		if _, err := svc2.Login(ctx, "alice", "wrong", "1.2.3.4", "Mozilla/5.0"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc2.Login(ctx, "alice", "correct-horse", "1.2.3.4", "Mozilla/5.0"); err != nil {
		t.Fatal(err)
	}
	if attempt := trail2.lastAttempt(t); !attempt.IsSuspicious {
		t.Fatal("success after repeated failures not flagged suspicious")
	}
}

func TestLoginFailureLogsAttemptAndEvent(t *testing.T) {
	ctx := context.Background()
	svc, trail, _ := newTestLoginService(t)

	res, err := svc.Login(ctx, "alice", "wrong", "1.2.3.4", "Mozilla/5.0")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.LockedOut {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Reason != security.ReasonInvalidPassword {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.AttemptsRemaining != 4 {
		t.Fatalf("AttemptsRemaining = %d, want 4", res.AttemptsRemaining)
	}

	attempt := trail.lastAttempt(t)
	if attempt.Status != model.AttemptStatusFailed {
		t.Fatalf("attempt status = %s, want FAILED", attempt.Status)
	}
	if attempt.AttemptCount != 1 {
		t.Fatalf("AttemptCount = %d, want 1", attempt.AttemptCount)
	}
	if trail.countEvents(model.EventTypeLoginFailed) != 1 {
		t.Fatal("LOGIN_FAILED event not recorded")
	}
}

func TestLoginLocksAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	svc, trail, _ := newTestLoginService(t)

	var last *LoginResult
	for i := 0; i < 5; i++ {
		res, err := svc.Login(ctx, "alice", "wrong", "1.2.3.4", "Mozilla/5.0")
		if err != nil {
			t.Fatal(err)
		}
		last = res
	}
	if !last.LockedOut {
		t.Fatal("5th failure did not lock the account")
	}
	if last.Reason != security.ReasonAccountLocked {
		t.Fatalf("reason = %q", last.Reason)
	}
	if attempt := trail.lastAttempt(t); attempt.Status != model.AttemptStatusLocked || !attempt.LockoutTriggered {
		t.Fatalf("locking attempt row = %+v", attempt)
	}
	if trail.countEvents(model.EventTypeAccountLocked) != 2 {
		// username and IP cross the threshold on the same call
		t.Fatalf("ACCOUNT_LOCKED events = %d, want 2", trail.countEvents(model.EventTypeAccountLocked))
	}

	// the 6th attempt is blocked before touching credentials
	res, err := svc.Login(ctx, "alice", "correct-horse", "1.2.3.4", "Mozilla/5.0")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Blocked || res.Success {
		t.Fatalf("post-lockout login not blocked: %+v", res)
	}
	attempt := trail.lastAttempt(t)
	if attempt.Status != model.AttemptStatusBlocked {
		t.Fatalf("blocked attempt status = %s", attempt.Status)
	}
	if attempt.AttemptCount != 6 {
		t.Fatalf("blocked AttemptCount = %d, want 6", attempt.AttemptCount)
	}
	if !attempt.IsSuspicious {
		t.Fatal("blocked attempt not flagged suspicious")
	}
	if trail.countEvents(model.EventTypeLoginBlocked) != 1 {
		t.Fatal("LOGIN_BLOCKED event not recorded")
	}
}

func TestLoginBlockedDomainDoesNotConsumeAttempt(t *testing.T) {
	ctx := context.Background()
	svc, trail, _ := newTestLoginService(t)

	res, err := svc.Login(ctx, "mallory@external.com", "whatever", "1.2.3.4", "Mozilla/5.0")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Blocked || res.DomainValid {
		t.Fatalf("unexpected result: %+v", res)
	}
	if attempt := trail.lastAttempt(t); attempt.Status != model.AttemptStatusBlocked {
		t.Fatalf("attempt status = %s, want BLOCKED", attempt.Status)
	}
	if trail.countEvents(model.EventTypeUnauthorizedDomain) != 1 {
		t.Fatal("UNAUTHORIZED_DOMAIN event not recorded")
	}
	if trail.countEvents(model.EventTypeLoginBlocked) != 0 {
		t.Fatal("domain rejection produced a LOGIN_BLOCKED event")
	}
}

func TestLoginFlagsSuspiciousFailures(t *testing.T) {
	ctx := context.Background()
	svc, trail, _ := newTestLoginService(t)

	res, err := svc.Login(ctx, "alice", "wrong", "1.2.3.4", "python-requests/2.31")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("unexpected success")
	}
	if attempt := trail.lastAttempt(t); !attempt.IsSuspicious {
		t.Fatal("bot user agent failure not flagged suspicious")
	}

	// third consecutive failure crosses the suspicious attempt count
	svc2, trail2, _ := newTestLoginService(t)
	for i := 0; i < 3; i++ {
		if _, err := svc2.Login(ctx, "alice", "wrong", "1.2.3.4", "Mozilla/5.0"); err != nil {
			t.Fatal(err)
		}
	}
	if attempt := trail2.lastAttempt(t); !attempt.IsSuspicious {
		t.Fatal("third failure not flagged suspicious")
	}
	if attempt := trail2.attempts[1]; attempt.IsSuspicious {
		t.Fatal("second failure flagged suspicious early")
	}
}

func TestOpenSessionClearsCountersAndMintsToken(t *testing.T) {
	ctx := context.Background()
	svc, trail, authn := newTestLoginService(t)
	tokens := NewTokenService("test-secret", time.Hour)

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(ctx, "alice", "wrong", "1.2.3.4", "Mozilla/5.0"); err != nil {
			t.Fatal(err)
		}
	}

	session, token, err := svc.OpenSession(ctx, tokens, authn.user, "alice", "1.2.3.4", "Mozilla/5.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(session.SessionKey) != 40 {
		t.Fatalf("session key length = %d, want 40", len(session.SessionKey))
	}
	if len(trail.sessions) != 1 {
		t.Fatal("session row not created")
	}

	claims, err := tokens.ParseAccessToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.SessionKey != session.SessionKey || claims.Username != "alice" {
		t.Fatalf("claims = %+v", claims)
	}
	if uid, err := claims.UserID(); err != nil || uid != 42 {
		t.Fatalf("claims user id = %d, %v", uid, err)
	}

	// counters were cleared, a fresh failure starts from one again
	res, err := svc.Login(ctx, "alice", "wrong", "1.2.3.4", "Mozilla/5.0")
	if err != nil {
		t.Fatal(err)
	}
	if res.AttemptsRemaining != 4 {
		t.Fatalf("AttemptsRemaining after clear = %d, want 4", res.AttemptsRemaining)
	}

	if err := svc.CloseSession(ctx, claims); err != nil {
		t.Fatal(err)
	}
	if len(trail.endedKeys) != 1 || trail.endedKeys[0] != session.SessionKey {
		t.Fatal("session was not ended")
	}
}

func TestLoginRejectsEmptyIdentifiers(t *testing.T) {
	ctx := context.Background()
	svc, trail, _ := newTestLoginService(t)

	if _, err := svc.Login(ctx, "", "correct-horse", "1.2.3.4", "Mozilla/5.0"); !errors.Is(err, security.ErrIdentifierEmpty) {
		t.Fatalf("empty username error = %v, want ErrIdentifierEmpty", err)
	}
	if _, err := svc.Login(ctx, "alice", "correct-horse", "", "Mozilla/5.0"); !errors.Is(err, security.ErrIdentifierEmpty) {
		t.Fatalf("empty client IP error = %v, want ErrIdentifierEmpty", err)
	}
	if len(trail.attempts) != 0 {
		t.Fatalf("rejected input still logged %d attempts", len(trail.attempts))
	}
}

func TestVerifySession(t *testing.T) {
	ctx := context.Background()
	svc, trail, authn := newTestLoginService(t)
	tokens := NewTokenService("test-secret", time.Hour)

	session, _, err := svc.OpenSession(ctx, tokens, authn.user, "alice", "1.2.3.4", "Mozilla/5.0")
	if err != nil {
		t.Fatal(err)
	}

	got, err := svc.VerifySession(ctx, session.SessionKey)
	if err != nil {
		t.Fatal(err)
	}
	if got.SessionKey != session.SessionKey {
		t.Fatalf("session = %+v", got)
	}
	if len(trail.touchedKeys) != 1 || trail.touchedKeys[0] != session.SessionKey {
		t.Fatal("session activity was not stamped")
	}

	if _, err := svc.VerifySession(ctx, "no-such-key"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown key error = %v, want ErrSessionNotFound", err)
	}

	if err := trail.EndUserSession(ctx, session.SessionKey, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.VerifySession(ctx, session.SessionKey); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("ended session error = %v, want ErrSessionEnded", err)
	}
}

func TestTokenServiceRejectsTampering(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)
	token, err := tokens.MintAccessToken(1, "alice", "abc", false)
	if err != nil {
		t.Fatal(err)
	}

	other := NewTokenService("different-secret", time.Hour)
	if _, err := other.ParseAccessToken(token); err != ErrInvalidToken {
		t.Fatalf("wrong secret error = %v, want ErrInvalidToken", err)
	}

	expired := NewTokenService("test-secret", -time.Minute)
	token, err = expired.MintAccessToken(1, "alice", "abc", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.ParseAccessToken(token); err != ErrTokenExpired {
		t.Fatalf("expired token error = %v, want ErrTokenExpired", err)
	}
}
