package model

import (
	"time"

	"gorm.io/gorm"
)

// User stores helpdesk account information
type User struct {
	ID          uint   `gorm:"primarykey"`
	Username    string `gorm:"uniqueIndex;size:150;not null"`
	FullName    string `gorm:"size:64;not null"`
	Email       string `gorm:"uniqueIndex;size:256;not null"`
	Password    string `gorm:"size:64;not null"`
	IsStaff     bool   `gorm:"default:false;not null"`
	IsSuperuser bool   `gorm:"default:false;not null"`
	IsActive    bool   `gorm:"default:true;not null"`
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}
