package model

import "time"

const (
	AttemptStatusSuccess = "SUCCESS"
	AttemptStatusFailed  = "FAILED"
	AttemptStatusBlocked = "BLOCKED"
	AttemptStatusLocked  = "LOCKED"
)

// LoginAttempt records one row per authentication attempt. Append-only.
type LoginAttempt struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"autoCreateTime;index:idx_attempt_user_ts,priority:2;index:idx_attempt_ip_ts,priority:2;index:idx_attempt_status_ts,priority:2"`
	Username  string    `gorm:"size:150;not null;index:idx_attempt_user_ts,priority:1"`
	Status    string    `gorm:"size:10;not null;index:idx_attempt_status_ts,priority:1"`

	IPAddress     string `gorm:"size:45;not null;index:idx_attempt_ip_ts,priority:1"`
	UserAgent     string `gorm:"size:512"`
	FailureReason string `gorm:"size:255"`

	IsSuspicious     bool `gorm:"default:false;index"`
	LockoutTriggered bool `gorm:"default:false"`
	AttemptCount     uint `gorm:"default:1"` // position in the current failure sequence

	UserID *uint `gorm:"index"`
	User   *User `gorm:"foreignKey:UserID"`
}

func (LoginAttempt) TableName() string {
	return "login_attempts"
}

func (a *LoginAttempt) IsFailed() bool {
	return a.Status != AttemptStatusSuccess
}
