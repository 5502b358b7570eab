package security

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/derbyfab/derby-tickets/internal/store"
	"github.com/derbyfab/derby-tickets/model"
	"github.com/derbyfab/derby-tickets/params"
)

// EventRecorder receives the durable SecurityEvent rows the manager
// emits. Writes are fire-and-forget: a recorder failure is logged and
// never blocks the authentication decision.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event *model.SecurityEvent) error
}

// Config holds the lockout policy knobs.
type Config struct {
	AllowedEmailDomains []string
	MaxAttempts         int
	LockoutTime         time.Duration
	SuspiciousThreshold int
}

// EventContext carries request info into emitted security events.
type EventContext struct {
	IPAddress string
	UserAgent string
}

// AttemptResult reports the outcome of recording one failed attempt.
type AttemptResult struct {
	Attempts         int
	LockedOut        bool
	LockoutRemaining time.Duration
}

// ValidationResult is the structured pre-check outcome. Policy
// rejections set Allowed=false with a Reason; they are never errors.
type ValidationResult struct {
	Allowed           bool
	Reason            string
	DomainValid       bool
	LockedOut         bool
	AttemptsRemaining int
}

// Manager decides whether an authentication attempt is permitted and
// tracks its consequences. Usernames and client IPs are independent
// lockout identifiers: either one locking blocks the attempt.
type Manager struct {
	cfg        Config
	attempts   *attemptStore
	lockouts   *lockoutStore
	rates      store.Store[AttemptState]
	suspicious store.Store[AttemptState]
	errorRates store.Store[AttemptState]
	events     EventRecorder
}

func NewManager(storage store.Storage, cfg Config, events EventRecorder) *Manager {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = params.DefaultMaxLoginAttempts
	}
	if cfg.LockoutTime == 0 {
		cfg.LockoutTime = params.DefaultLoginLockoutTime
	}
	if cfg.SuspiciousThreshold == 0 {
		cfg.SuspiciousThreshold = params.DefaultSuspiciousThreshold
	}
	return &Manager{
		cfg:        cfg,
		attempts:   newAttemptStore(storage),
		lockouts:   newLockoutStore(storage),
		rates:      store.New[AttemptState](storage, params.RateKeyPrefix),
		suspicious: store.New[AttemptState](storage, params.SuspiciousKeyPrefix),
		errorRates: store.New[AttemptState](storage, params.ErrorRateKeyPrefix),
		events:     events,
	}
}

func (m *Manager) MaxAttempts() int {
	return m.cfg.MaxAttempts
}

func (m *Manager) LockoutTime() time.Duration {
	return m.cfg.LockoutTime
}

func stateKey(identifier, attemptType string) string {
	return attemptType + ":" + identifier
}

// IsDomainAllowed reports whether the email's domain is on the
// allow-list. Strings without an "@" fail closed.
func (m *Manager) IsDomainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, allowed := range m.cfg.AllowedEmailDomains {
		if domain == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

// GetAttemptCount returns the current counter value, 0 when absent or
// expired. Store failures fail open to zero.
func (m *Manager) GetAttemptCount(ctx context.Context, identifier, attemptType string) int {
	count, err := m.attempts.Count(ctx, stateKey(identifier, attemptType))
	if err != nil {
		m.reportDegraded(ctx, identifier, "read attempt counter", err)
		return 0
	}
	return count
}

// IsLockedOut returns the lockout flag, false when absent or expired.
// Store failures fail open: availability wins over strict lockout
// enforcement when the backend itself is down.
func (m *Manager) IsLockedOut(ctx context.Context, identifier, attemptType string) bool {
	locked, err := m.lockouts.IsLocked(ctx, stateKey(identifier, attemptType))
	if err != nil {
		m.reportDegraded(ctx, identifier, "read lockout flag", err)
		return false
	}
	return locked
}

// RecordFailedAttempt increments the identifier's counter, sliding the
// window TTL forward, and raises the lockout flag once the threshold is
// reached. The ACCOUNT_LOCKED event fires exactly once, on the
// increment that hits the threshold.
func (m *Manager) RecordFailedAttempt(ctx context.Context, identifier, attemptType string, evCtx EventContext) AttemptResult {
	key := stateKey(identifier, attemptType)
	attempts, err := m.attempts.Increment(ctx, key, m.cfg.LockoutTime)
	if err != nil {
		m.reportDegraded(ctx, identifier, "increment attempt counter", err)
		return AttemptResult{Attempts: attempts}
	}

	result := AttemptResult{Attempts: attempts}
	if attempts < m.cfg.MaxAttempts {
		return result
	}

	result.LockedOut = true
	result.LockoutRemaining = m.cfg.LockoutTime
	if err := m.lockouts.Lock(ctx, key, m.cfg.LockoutTime); err != nil {
		m.reportDegraded(ctx, identifier, "set lockout flag", err)
	}

	// The atomic increment guarantees exactly one caller observes the
	// threshold value, so attempts past it do not re-emit the event.
	if attempts == m.cfg.MaxAttempts {
		m.recordEvent(ctx, &model.SecurityEvent{
			EventType:         model.EventTypeAccountLocked,
			Severity:          model.SeverityHigh,
			UsernameAttempted: identifier,
			IPAddress:         evCtx.IPAddress,
			UserAgent:         evCtx.UserAgent,
			Description:       fmt.Sprintf("Account locked due to %d failed %s attempts", attempts, attemptType),
			Reason:            ReasonAccountLocked,
			Metadata: map[string]any{
				"attempt_type":  attemptType,
				"attempt_count": attempts,
			},
		})
	}
	return result
}

// ClearAttempts deletes both the counter and the lockout flag for one
// identifier. Clearing is identifier-scoped: unlocking a username never
// touches the IP that triggered failures alongside it.
func (m *Manager) ClearAttempts(ctx context.Context, identifier, attemptType string) {
	key := stateKey(identifier, attemptType)
	if err := m.attempts.Delete(ctx, key); err != nil {
		m.reportDegraded(ctx, identifier, "clear attempt counter", err)
	}
	if err := m.lockouts.Delete(ctx, key); err != nil {
		m.reportDegraded(ctx, identifier, "clear lockout flag", err)
	}
}

// ValidateLoginAttempt runs the composite pre-check: domain allow-list
// first (rejection does not consume an attempt), then lockout status
// for the username and the client IP as independent identifiers.
// AttemptsRemaining reflects the more restrictive of the two counters.
func (m *Manager) ValidateLoginAttempt(ctx context.Context, username, clientIP string) ValidationResult {
	result := ValidationResult{
		Allowed:           true,
		DomainValid:       true,
		AttemptsRemaining: m.cfg.MaxAttempts,
	}

	if strings.Contains(username, "@") && !m.IsDomainAllowed(username) {
		result.Allowed = false
		result.DomainValid = false
		result.Reason = fmt.Sprintf("Domain not authorized. Allowed domains: %s",
			strings.Join(m.cfg.AllowedEmailDomains, ", "))
		m.recordEvent(ctx, &model.SecurityEvent{
			EventType:         model.EventTypeUnauthorizedDomain,
			Severity:          model.SeverityMedium,
			UsernameAttempted: username,
			IPAddress:         clientIP,
			Description:       fmt.Sprintf("Login attempt from unauthorized domain: %s", username),
			Reason:            result.Reason,
		})
		return result
	}

	for _, identifier := range []string{username, clientIP} {
		if m.IsLockedOut(ctx, identifier, params.AttemptTypeLogin) {
			result.Allowed = false
			result.LockedOut = true
			result.Reason = ReasonLockedOut
		}
		remaining := m.cfg.MaxAttempts - m.GetAttemptCount(ctx, identifier, params.AttemptTypeLogin)
		if remaining < 0 {
			remaining = 0
		}
		if remaining < result.AttemptsRemaining {
			result.AttemptsRemaining = remaining
		}
	}
	return result
}

func (m *Manager) recordEvent(ctx context.Context, event *model.SecurityEvent) {
	if m.events == nil {
		return
	}
	if err := m.events.RecordEvent(ctx, event); err != nil {
		slog.Error("Failed to record security event", "event_type", event.EventType, "error", err)
	}
}

// reportDegraded logs a store failure and leaves a HIGH severity event
// noting that lockout enforcement is running degraded (fail-open).
func (m *Manager) reportDegraded(ctx context.Context, identifier, op string, err error) {
	slog.Error("Attempt store unavailable, failing open", "op", op, "identifier", identifier, "error", err)
	m.recordEvent(ctx, &model.SecurityEvent{
		EventType:         model.EventTypeStoreDegraded,
		Severity:          model.SeverityHigh,
		UsernameAttempted: identifier,
		Description:       fmt.Sprintf("Lockout store unavailable during %q, failing open", op),
		Reason:            err.Error(),
	})
}
