package models

import "time"

type Branch struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	Address      string    `gorm:"type:varchar(255)" json:"address"`
	Phone        string    `gorm:"type:varchar(20)" json:"phone"`
	OpeningHours string    `gorm:"type:varchar(100)" json:"opening_hours"`
	Description  string    `gorm:"type:varchar(500)" json:"description"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	Tables       []Table   `gorm:"foreignKey:BranchID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
