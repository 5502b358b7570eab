package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ActionCreate           = "CREATE"
	ActionRead             = "READ"
	ActionUpdate           = "UPDATE"
	ActionDelete           = "DELETE"
	ActionLogin            = "LOGIN"
	ActionLogout           = "LOGOUT"
	ActionPermissionChange = "PERMISSION_CHANGE"
	ActionConfigChange     = "CONFIGURATION_CHANGE"
	ActionUnlock           = "UNLOCK"
	ActionOther            = "OTHER"
)

const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// AuditLog is the general action trail for administrative operations.
type AuditLog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"autoCreateTime;index:idx_audit_action_ts,priority:2"`
	Action    string    `gorm:"size:50;not null;index:idx_audit_action_ts,priority:1"`

	UserID       *uint `gorm:"index"`
	User         *User `gorm:"foreignKey:UserID"`
	TargetUserID *uint `gorm:"index"`
	TargetUser   *User `gorm:"foreignKey:TargetUserID"`

	ObjectType string `gorm:"size:100;index:idx_audit_object,priority:1"`
	ObjectID   string `gorm:"size:100;index:idx_audit_object,priority:2"`
	ObjectRepr string `gorm:"size:255"`

	Changes     datatypes.JSONMap `gorm:"type:json"`
	Description string            `gorm:"size:1024;not null"`

	IPAddress   string `gorm:"size:45"`
	UserAgent   string `gorm:"size:512"`
	RequestPath string `gorm:"size:500"`

	RiskLevel string `gorm:"size:10;default:LOW;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
