package services

import (
	"context"

	"github.com/yeremiapane/bar-booking/models"
)

// DepositIntent identifies a deposit payment started with a gateway.
type DepositIntent struct {
	ID          string
	RedirectURL string
	Method      string
}

// DepositGateway starts the deposit payment for a new booking. An error
// aborts the booking.
type DepositGateway interface {
	CreateDeposit(ctx context.Context, booking *models.Booking) (DepositIntent, error)
}

// ManualGateway records deposits that staff collect at the venue.
type ManualGateway struct{}

func (ManualGateway) CreateDeposit(_ context.Context, booking *models.Booking) (DepositIntent, error) {
	return DepositIntent{ID: "MANUAL-" + booking.BookingCode, Method: "manual"}, nil
}

// Notifier delivers booking events. Delivery failures are logged by the
// caller and never fail the operation that triggered them.
type Notifier interface {
	BookingConfirmed(ctx context.Context, booking *models.Booking) error
	BookingReminder(ctx context.Context, booking *models.Booking) error
	BookingCancelled(ctx context.Context, booking *models.Booking) error
	Admin(ctx context.Context, text string) error
}

type NopNotifier struct{}

func (NopNotifier) BookingConfirmed(context.Context, *models.Booking) error { return nil }
func (NopNotifier) BookingReminder(context.Context, *models.Booking) error  { return nil }
func (NopNotifier) BookingCancelled(context.Context, *models.Booking) error { return nil }
func (NopNotifier) Admin(context.Context, string) error                     { return nil }
