package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the business timing and pricing rules of the booking core.
type Policy struct {
	DepositRate decimal.Decimal
	RefundRate  decimal.Decimal

	CancellationNotice time.Duration
	CheckInEarly       time.Duration
	CheckInLate        time.Duration
	NoShowGrace        time.Duration
	ReminderLead       time.Duration

	MinDurationHours    int
	MaxDurationHours    int
	MinPartySize        int
	MaxPartySize        int
	MaxSpecialRequests  int
	BookingCodeAttempts int
	AdminListLimit      int

	CommitTimeout time.Duration

	// Location is the zone booking dates and times are interpreted in.
	Location *time.Location
	Now      func() time.Time
}

func DefaultPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.UTC
	}
	return Policy{
		DepositRate:         decimal.RequireFromString("0.30"),
		RefundRate:          decimal.RequireFromString("0.70"),
		CancellationNotice:  24 * time.Hour,
		CheckInEarly:        time.Hour,
		CheckInLate:         3 * time.Hour,
		NoShowGrace:         30 * time.Minute,
		ReminderLead:        2 * time.Hour,
		MinDurationHours:    1,
		MaxDurationHours:    5,
		MinPartySize:        1,
		MaxPartySize:        50,
		MaxSpecialRequests:  1000,
		BookingCodeAttempts: 10,
		AdminListLimit:      100,
		CommitTimeout:       10 * time.Second,
		Location:            loc,
		Now:                 time.Now,
	}
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// today is the service-local calendar date of t, in storage form.
func (p Policy) today(t time.Time) time.Time {
	local := t.In(p.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
