package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in_progress"
	TicketStatusResolved   = "resolved"
	TicketStatusClosed     = "closed"
)

const (
	TicketPriorityLow    = "low"
	TicketPriorityMedium = "medium"
	TicketPriorityHigh   = "high"
	TicketPriorityUrgent = "urgent"
)

// Category groups tickets for triage and related-ticket matching
type Category struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"uniqueIndex;size:128;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == 0 {
		c.ID = GenerateID()
	}
	return nil
}

// Ticket is the helpdesk request record. The security core only ever
// reads tickets; all mutation lives in the CRUD layer.
type Ticket struct {
	ID           uint   `gorm:"primarykey"`
	Title        string `gorm:"size:256;not null;index"`
	Description  string `gorm:"type:text;not null"`
	Status       string `gorm:"size:16;not null;default:open;index"`
	Priority     string `gorm:"size:16;not null;default:medium"`
	CategoryID   *uint  `gorm:"index"`
	Category     *Category
	CreatedByID  uint `gorm:"index;not null"`
	CreatedBy    User `gorm:"foreignKey:CreatedByID"`
	AssignedToID *uint
	AssignedTo   *User     `gorm:"foreignKey:AssignedToID"`
	CCAdmins     []User    `gorm:"many2many:ticket_cc_admins"`
	CCNonAdmins  []User    `gorm:"many2many:ticket_cc_non_admins"`
	Comments     []Comment `gorm:"foreignKey:TicketID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == 0 {
		t.ID = GenerateID()
	}
	return nil
}

// AccessibleBy reports whether the user may view the ticket: creator,
// assignee, any CC'd user, or staff/superuser. CC lists must be loaded.
func (t *Ticket) AccessibleBy(u *User) bool {
	if u == nil {
		return false
	}
	if u.IsStaff || u.IsSuperuser {
		return true
	}
	if t.CreatedByID == u.ID {
		return true
	}
	if t.AssignedToID != nil && *t.AssignedToID == u.ID {
		return true
	}
	for _, cc := range t.CCAdmins {
		if cc.ID == u.ID {
			return true
		}
	}
	for _, cc := range t.CCNonAdmins {
		if cc.ID == u.ID {
			return true
		}
	}
	return false
}

// Comment is a ticket discussion entry, scanned for ticket references
type Comment struct {
	ID        uint   `gorm:"primarykey"`
	TicketID  uint   `gorm:"index;not null"`
	AuthorID  uint   `gorm:"index;not null"`
	Author    User   `gorm:"foreignKey:AuthorID"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == 0 {
		c.ID = GenerateID()
	}
	return nil
}
