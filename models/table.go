package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Table is a bookable seating unit. Table numbers are unique within a branch.
type Table struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	BranchID      uint            `gorm:"not null;uniqueIndex:idx_tables_branch_number,priority:1" json:"branch_id"`
	TableNumber   string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_tables_branch_number,priority:2" json:"table_number"`
	Zone          string          `gorm:"type:varchar(50);not null" json:"zone"`
	TableType     string          `gorm:"type:varchar(50);not null" json:"table_type"`
	Capacity      int             `gorm:"not null" json:"capacity"`
	MinimumSpend  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"minimum_spend"`
	BasePrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
	FloorPosition string          `gorm:"type:varchar(50)" json:"floor_position"`
	Notes         string          `gorm:"type:varchar(500)" json:"notes"`
	IsActive      bool            `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Table) TableName() string {
	return "dining_tables"
}

// BaseTotal is what a booking of this table costs before any promo.
func (t Table) BaseTotal() decimal.Decimal {
	return t.MinimumSpend.Add(t.BasePrice)
}
