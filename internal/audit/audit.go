package audit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/derbyfab/derby-tickets/model"
	"github.com/derbyfab/derby-tickets/params"
	"gorm.io/gorm"
)

// Manager is the durable audit trail: security events, login attempts,
// user sessions and administrative actions. It satisfies the event
// recorder interface the lockout manager emits through.
type Manager struct {
	events   SecurityEventRepository
	attempts LoginAttemptRepository
	sessions UserSessionRepository
	logs     AuditLogRepository
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		events:   NewSecurityEventRepository(db),
		attempts: NewLoginAttemptRepository(db),
		sessions: NewUserSessionRepository(db),
		logs:     NewAuditLogRepository(db),
	}
}

// RecordEvent persists one security event, defaulting severity to
// MEDIUM when unset.
func (m *Manager) RecordEvent(ctx context.Context, event *model.SecurityEvent) error {
	if event.Severity == "" {
		event.Severity = model.SeverityMedium
	}
	if err := m.events.Create(ctx, event); err != nil {
		return err
	}
	if event.IsCritical() {
		slog.Warn("Critical security event recorded",
			"event_type", event.EventType,
			"username", event.UsernameAttempted,
			"ip", event.IPAddress)
	}
	return nil
}

// LogLoginAttempt persists one attempt row. Attempt rows are
// append-only and never updated.
func (m *Manager) LogLoginAttempt(ctx context.Context, attempt *model.LoginAttempt) error {
	return m.attempts.Create(ctx, attempt)
}

// LogAction persists one administrative action to the audit trail.
func (m *Manager) LogAction(ctx context.Context, entry *model.AuditLog) error {
	if entry.RiskLevel == "" {
		entry.RiskLevel = model.RiskLow
	}
	return m.logs.Create(ctx, entry)
}

// IsSuspiciousIP reports whether the IP accumulated enough recent
// failed logins to be treated as hostile.
func (m *Manager) IsSuspiciousIP(ctx context.Context, ip string) bool {
	since := time.Now().Add(-params.SuspiciousIPFailureWindow)
	count, err := m.attempts.CountFailedByIPSince(ctx, ip, since)
	if err != nil {
		slog.Error("Failed to count recent failures for IP", "ip", ip, "error", err)
		return false
	}
	return count >= params.SuspiciousIPFailureCount
}

// CreateUserSession opens a session row for the user, enforcing the
// single active session policy: any session still open for the same
// user is closed as a forced logout first.
func (m *Manager) CreateUserSession(ctx context.Context, user *model.User, sessionKey, ip, userAgent, method string) (*model.UserSession, error) {
	displaced, err := m.sessions.EndByUser(ctx, user.ID, true)
	if err != nil {
		return nil, err
	}
	if displaced > 0 {
		slog.Info("Closed displaced sessions on new login", "username", user.Username, "count", displaced)
	}
	session := &model.UserSession{
		UserID:       user.ID,
		SessionKey:   sessionKey,
		LastActivity: time.Now(),
		IsActive:     true,
		IPAddress:    ip,
		UserAgent:    userAgent,
		LoginMethod:  method,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EndUserSession closes the session if it is still active. Ending an
// unknown or already closed session is a no-op.
func (m *Manager) EndUserSession(ctx context.Context, sessionKey string, forced bool) error {
	_, err := m.sessions.EndBySessionKey(ctx, sessionKey, forced)
	return err
}

// TouchSession bumps the session's last activity timestamp.
func (m *Manager) TouchSession(ctx context.Context, sessionKey string) error {
	return m.sessions.TouchActivity(ctx, sessionKey)
}

// GetSession returns the session row for a key.
func (m *Manager) GetSession(ctx context.Context, sessionKey string) (*model.UserSession, error) {
	return m.sessions.GetBySessionKey(ctx, sessionKey)
}

// CleanupInactiveSessions force-closes sessions idle beyond maxIdle
// and returns how many were closed. Non-positive maxIdle falls back
// to the default maximum.
func (m *Manager) CleanupInactiveSessions(ctx context.Context, maxIdle time.Duration) (int64, error) {
	if maxIdle <= 0 {
		maxIdle = params.InactiveSessionMaxAge
	}
	cutoff := time.Now().Add(-maxIdle)
	closed, err := m.sessions.EndInactiveBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if closed > 0 {
		slog.Info("Closed inactive sessions", "count", closed)
	}
	return closed, nil
}

// ResolveSecurityEvent marks an event handled. Resolving an already
// resolved or unknown event returns gorm.ErrRecordNotFound.
func (m *Manager) ResolveSecurityEvent(ctx context.Context, eventID uint64, resolvedBy *model.User, notes string) error {
	affected, err := m.events.Resolve(ctx, eventID, resolvedBy.ID, notes)
	if err != nil {
		return err
	}
	if affected == 0 {
		return gorm.ErrRecordNotFound
	}
	return m.LogAction(ctx, &model.AuditLog{
		Action:      model.ActionUpdate,
		UserID:      &resolvedBy.ID,
		ObjectType:  "SecurityEvent",
		ObjectID:    strconv.FormatUint(eventID, 10),
		Description: "Resolved security event",
		RiskLevel:   model.RiskLow,
	})
}

// ListSecurityEvents returns events matching the filter, newest first.
func (m *Manager) ListSecurityEvents(ctx context.Context, filter EventFilter) ([]*model.SecurityEvent, error) {
	return m.events.List(ctx, filter)
}

// ListActiveSessions returns open sessions, newest first, annotating
// each with its long-running flag for callers that render them.
func (m *Manager) ListActiveSessions(ctx context.Context, limit int) ([]*model.UserSession, error) {
	return m.sessions.ListActive(ctx, limit)
}

// Summary aggregates the security posture over one lookback window.
type Summary struct {
	WindowStart           time.Time        `json:"windowStart"`
	WindowEnd             time.Time        `json:"windowEnd"`
	EventsByType          map[string]int64 `json:"eventsByType"`
	EventsBySeverity      map[string]int64 `json:"eventsBySeverity"`
	AttemptsByStatus      map[string]int64 `json:"attemptsByStatus"`
	SuspiciousAttempts    int64            `json:"suspiciousAttempts"`
	UniqueFailureIPs      int64            `json:"uniqueFailureIps"`
	UniqueFailureUsers    int64            `json:"uniqueFailureUsernames"`
	TopOffendingIPs       []OffenderCount  `json:"topOffendingIps"`
	TopOffendingUsernames []OffenderCount  `json:"topOffendingUsernames"`
	ActiveSessions        int64            `json:"activeSessions"`
	LongRunningSessions   int64            `json:"longRunningSessions"`
	UnresolvedCritical    int64            `json:"unresolvedCritical"`
}

// SecuritySummary builds the dashboard aggregation for the trailing
// window. A zero window defaults to 24 hours.
func (m *Manager) SecuritySummary(ctx context.Context, window time.Duration) (*Summary, error) {
	if window <= 0 {
		window = params.SecuritySummaryWindow
	}
	now := time.Now()
	since := now.Add(-window)

	eventsByType, err := m.events.CountByTypeSince(ctx, since)
	if err != nil {
		return nil, err
	}
	eventsBySeverity, err := m.events.CountBySeveritySince(ctx, since)
	if err != nil {
		return nil, err
	}
	attemptsByStatus, err := m.attempts.CountByStatusSince(ctx, since)
	if err != nil {
		return nil, err
	}
	suspicious, err := m.attempts.CountSuspiciousSince(ctx, since)
	if err != nil {
		return nil, err
	}
	usernames, ips, err := m.attempts.DistinctIdentifiersSince(ctx, since)
	if err != nil {
		return nil, err
	}
	topIPs, err := m.attempts.TopFailureIPsSince(ctx, since, params.SummaryTopOffenders)
	if err != nil {
		return nil, err
	}
	topUsernames, err := m.attempts.TopFailureUsernamesSince(ctx, since, params.SummaryTopOffenders)
	if err != nil {
		return nil, err
	}
	activeSessions, err := m.sessions.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	longRunning, err := m.sessions.CountActiveOlderThan(ctx, now.Add(-params.LongRunningSessionAge))
	if err != nil {
		return nil, err
	}
	unresolvedCritical, err := m.events.CountUnresolvedCritical(ctx)
	if err != nil {
		return nil, err
	}

	return &Summary{
		WindowStart:           since,
		WindowEnd:             now,
		EventsByType:          eventsByType,
		EventsBySeverity:      eventsBySeverity,
		AttemptsByStatus:      attemptsByStatus,
		SuspiciousAttempts:    suspicious,
		UniqueFailureIPs:      int64(len(ips)),
		UniqueFailureUsers:    int64(len(usernames)),
		TopOffendingIPs:       topIPs,
		TopOffendingUsernames: topUsernames,
		ActiveSessions:        activeSessions,
		LongRunningSessions:   longRunning,
		UnresolvedCritical:    unresolvedCritical,
	}, nil
}

// LockoutCandidates returns the usernames and IPs with failed attempts
// since the given time. Manual unlock tooling checks each against the
// lockout store instead of scanning store keys.
func (m *Manager) LockoutCandidates(ctx context.Context, since time.Time) (usernames []string, ips []string, err error) {
	return m.attempts.DistinctIdentifiersSince(ctx, since)
}

// RecentAttempts returns the newest attempt rows for a username.
func (m *Manager) RecentAttempts(ctx context.Context, username string, limit int) ([]*model.LoginAttempt, error) {
	return m.attempts.ListByUsername(ctx, username, limit)
}

// RecentFailureCount counts the durable non-success attempt rows for a
// username since the given time. Unlike the lockout counters this
// survives counter resets and store restarts.
func (m *Manager) RecentFailureCount(ctx context.Context, username string, since time.Time) (int64, error) {
	return m.attempts.CountFailedByUsernameSince(ctx, username, since)
}
