package model

import "time"

// UserSession tracks authenticated sessions for monitoring. Creating a
// session closes all prior active sessions for the same user.
type UserSession struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	UserID     uint   `gorm:"not null;index:idx_session_user_active,priority:1"`
	User       User   `gorm:"foreignKey:UserID"`
	SessionKey string `gorm:"size:40;uniqueIndex;not null"`

	CreatedAt    time.Time
	LastActivity time.Time `gorm:"index"`
	EndedAt      *time.Time
	IsActive     bool `gorm:"default:true;index:idx_session_user_active,priority:2"`

	IPAddress   string `gorm:"size:45;not null"`
	UserAgent   string `gorm:"size:512"`
	LoginMethod string `gorm:"size:50;default:password"`

	IsSuspicious bool `gorm:"default:false"`
	ForcedLogout bool `gorm:"default:false"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}

func (s *UserSession) Duration() time.Duration {
	end := time.Now()
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	return end.Sub(s.CreatedAt)
}

// IsLongRunning reports sessions open for over eight hours.
func (s *UserSession) IsLongRunning() bool {
	return s.Duration() > 8*time.Hour
}
