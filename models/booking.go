package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCheckedIn BookingStatus = "CheckedIn"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
	BookingNoShow    BookingStatus = "NoShow"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCheckedIn, BookingCancelled, BookingNoShow},
	BookingCheckedIn: {BookingCompleted},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCheckedIn, BookingCompleted, BookingCancelled, BookingNoShow:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Completed, Cancelled and NoShow are terminal.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Blocking reports whether a booking in this status holds its table slot.
func (s BookingStatus) Blocking() bool {
	return s != BookingCancelled
}

type PreOrderItem struct {
	ItemName string          `json:"item_name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type PreOrderItems []PreOrderItem

func (PreOrderItems) GormDataType() string {
	return "text"
}

func (p PreOrderItems) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]PreOrderItem(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PreOrderItems) Scan(value interface{}) error {
	raw, err := scanBytes(value)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}
	var items []PreOrderItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("scan pre-order items: %w", err)
	}
	*p = items
	return nil
}

// Booking reserves one table for an interval on one calendar date. The
// interval is half-open: [StartTime, EndTime).
type Booking struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	BookingCode     string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"booking_code"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	TableID         uint            `gorm:"not null;index:idx_bookings_table_date,priority:1" json:"table_id"`
	BookingDate     time.Time       `gorm:"not null;index:idx_bookings_table_date,priority:2" json:"booking_date"`
	StartTime       TimeOfDay       `gorm:"not null" json:"start_time"`
	EndTime         TimeOfDay       `gorm:"not null" json:"end_time"`
	NumberOfGuests  int             `gorm:"not null" json:"number_of_guests"`
	Status          BookingStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	DepositAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"deposit_amount"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	PromoCode       *string         `gorm:"type:varchar(50)" json:"promo_code,omitempty"`
	SpecialRequests *string         `gorm:"type:varchar(1000)" json:"special_requests,omitempty"`
	PreOrderItems   PreOrderItems   `json:"pre_order_items,omitempty"`
	ReminderSent    bool            `gorm:"not null" json:"reminder_sent"`
	CheckInTime     *time.Time      `json:"check_in_time,omitempty"`
	CheckOutTime    *time.Time      `json:"check_out_time,omitempty"`
	ModifiedAt      *time.Time      `json:"modified_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Payment         *Payment        `gorm:"foreignKey:BookingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"payment,omitempty"`
}

// AfterFind puts BookingDate back on UTC midnight. Drivers such as pgx
// return timestamps in the process's local zone.
func (b *Booking) AfterFind(tx *gorm.DB) error {
	b.BookingDate = b.BookingDate.UTC()
	return nil
}

// StartsAt is the booking's start instant in loc.
func (b Booking) StartsAt(loc *time.Location) time.Time {
	return b.StartTime.On(b.BookingDate, loc)
}

func (b Booking) Duration() time.Duration {
	return (b.EndTime - b.StartTime).Duration()
}
