package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventTypeLoginSuccess        = "LOGIN_SUCCESS"
	EventTypeLoginFailed         = "LOGIN_FAILED"
	EventTypeLoginBlocked        = "LOGIN_BLOCKED"
	EventTypeAccountLocked       = "ACCOUNT_LOCKED"
	EventTypeUnauthorizedDomain  = "UNAUTHORIZED_DOMAIN"
	EventTypeSuspiciousActivity  = "SUSPICIOUS_ACTIVITY"
	EventTypePasswordChanged     = "PASSWORD_CHANGED"
	EventTypeAccountCreated      = "ACCOUNT_CREATED"
	EventTypeAccountDisabled     = "ACCOUNT_DISABLED"
	EventTypePrivilegeEscalation = "PRIVILEGE_ESCALATION"
	EventTypeBruteForce          = "BRUTE_FORCE"
	EventTypePotentialAttack     = "POTENTIAL_ATTACK"
	EventTypeHighErrorRate       = "HIGH_ERROR_RATE"
	EventTypeStoreDegraded       = "STORE_DEGRADED"
	EventTypeOther               = "OTHER"
)

const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

var ErrEventSubjectMissing = errors.New("security event requires a user or an attempted username")

// SecurityEvent is the durable audit record for every security-relevant
// occurrence. Rows are append-only except for resolution fields.
type SecurityEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	EventType string    `gorm:"size:50;not null;index:idx_event_type_ts,priority:1"`
	Severity  string    `gorm:"size:10;not null;default:MEDIUM;index:idx_severity_resolved,priority:1"`
	Timestamp time.Time `gorm:"autoCreateTime;index:idx_event_type_ts,priority:2"`

	UserID            *uint  `gorm:"index"`
	User              *User  `gorm:"foreignKey:UserID"`
	UsernameAttempted string `gorm:"size:150;index"`

	IPAddress  string `gorm:"size:45;not null;index"`
	UserAgent  string `gorm:"size:512"`
	SessionKey string `gorm:"size:40"`

	Description string            `gorm:"size:1024;not null"`
	Success     bool              `gorm:"default:false;index"`
	Reason      string            `gorm:"size:255"`
	Metadata    datatypes.JSONMap `gorm:"type:json"`

	Resolved     bool  `gorm:"default:false;index:idx_severity_resolved,priority:2"`
	ResolvedByID *uint `gorm:"index"`
	ResolvedBy   *User `gorm:"foreignKey:ResolvedByID"`
	ResolvedAt   *time.Time
	Notes        string `gorm:"size:1024"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}

// BeforeCreate enforces the subject invariant: every event names either
// a known user or the username that was attempted.
func (e *SecurityEvent) BeforeCreate(tx *gorm.DB) error {
	if e.UserID == nil && e.UsernameAttempted == "" {
		return ErrEventSubjectMissing
	}
	return nil
}

func (e *SecurityEvent) IsCritical() bool {
	return e.Severity == SeverityCritical
}
