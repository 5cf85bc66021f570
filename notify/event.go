package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yeremiapane/bar-booking/models"
	"github.com/yeremiapane/bar-booking/utils"
)

// Event is the broker payload for one booking notification.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	BookingID   uint      `json:"booking_id,omitempty"`
	BookingCode string    `json:"booking_code,omitempty"`
	UserID      uint      `json:"user_id,omitempty"`
	BookingDate string    `json:"booking_date,omitempty"`
	StartTime   string    `json:"start_time,omitempty"`
	Guests      int       `json:"guests,omitempty"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func bookingEvent(typ string, b *models.Booking) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        typ,
		BookingID:   b.ID,
		BookingCode: b.BookingCode,
		UserID:      b.UserID,
		BookingDate: models.FormatDate(b.BookingDate),
		StartTime:   b.StartTime.String(),
		Guests:      b.NumberOfGuests,
		Message:     bookingText(typ, b),
		OccurredAt:  time.Now().UTC(),
	}
}

func adminEvent(text string) Event {
	return Event{ID: uuid.NewString(), Type: EventStaffNotif, Message: text, OccurredAt: time.Now().UTC()}
}

func bookingText(typ string, b *models.Booking) string {
	when := models.FormatDate(b.BookingDate) + " " + b.StartTime.String()
	switch typ {
	case EventBookingConfirmed:
		return fmt.Sprintf("Booking %s is confirmed for %s, %d guests, deposit %s paid",
			b.BookingCode, when, b.NumberOfGuests, utils.FormatBaht(b.DepositAmount))
	case EventBookingReminder:
		return fmt.Sprintf("Reminder: booking %s starts at %s", b.BookingCode, when)
	case EventBookingCancelled:
		return fmt.Sprintf("Booking %s for %s was cancelled", b.BookingCode, when)
	default:
		return fmt.Sprintf("Booking %s updated", b.BookingCode)
	}
}

// eventNotifier adapts a publish function to the booking notifier methods.
type eventNotifier struct {
	publish func(ctx context.Context, e Event) error
}

func (n eventNotifier) BookingConfirmed(ctx context.Context, b *models.Booking) error {
	return n.publish(ctx, bookingEvent(EventBookingConfirmed, b))
}

func (n eventNotifier) BookingReminder(ctx context.Context, b *models.Booking) error {
	return n.publish(ctx, bookingEvent(EventBookingReminder, b))
}

func (n eventNotifier) BookingCancelled(ctx context.Context, b *models.Booking) error {
	return n.publish(ctx, bookingEvent(EventBookingCancelled, b))
}

func (n eventNotifier) Admin(ctx context.Context, text string) error {
	return n.publish(ctx, adminEvent(text))
}
