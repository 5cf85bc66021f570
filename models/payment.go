package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentRefunded  PaymentStatus = "Refunded"
)

// Payment tracks the deposit collected for a booking.
type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	BookingID     uint            `gorm:"not null;uniqueIndex" json:"booking_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentMethod string          `gorm:"type:varchar(50)" json:"payment_method"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);not null" json:"payment_status"`
	TransactionID string          `gorm:"type:varchar(100)" json:"transaction_id"`
	PaymentURL    string          `gorm:"type:varchar(500)" json:"payment_url,omitempty"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	RefundAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"refund_amount"`
	RefundDate    *time.Time      `json:"refund_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
