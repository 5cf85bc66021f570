package models

import (
	"time"
)

// Notification is a persisted staff-facing message. UserID is nil for
// broadcasts to every staff member.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"event_id"`
	UserID    *uint     `json:"user_id,omitempty"`
	User      *User     `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	BookingID *uint     `gorm:"index" json:"booking_id,omitempty"`
	Event     string    `gorm:"type:varchar(50);not null" json:"event"`
	Title     *string   `gorm:"type:varchar(100)" json:"title,omitempty"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	IsRead    bool      `gorm:"not null" json:"is_read"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
