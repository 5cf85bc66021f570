package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
)

type DashboardStats struct {
	Date          string                       `json:"date"`
	TotalBookings int                          `json:"total_bookings"`
	ByStatus      map[models.BookingStatus]int `json:"by_status"`
	Revenue       decimal.Decimal              `json:"revenue"`
	Guests        int                          `json:"guests"`
}

type StatsService struct {
	store
}

func NewStatsService(db *gorm.DB, log *logrus.Logger, policy Policy) *StatsService {
	return &StatsService{store: newStore(db, log, policy.CommitTimeout)}
}

// Dashboard summarises one calendar date. Revenue counts Confirmed,
// CheckedIn and Completed bookings.
func (s *StatsService) Dashboard(ctx context.Context, date time.Time) (*DashboardStats, error) {
	db, cancel := s.read(ctx)
	defer cancel()

	day := models.DateOf(date)
	var bookings []models.Booking
	err := db.Select("status", "total_amount", "number_of_guests").
		Where("booking_date >= ? AND booking_date < ?", day, day.AddDate(0, 0, 1)).
		Find(&bookings).Error
	if err != nil {
		return nil, s.fail("dashboard stats", err)
	}

	stats := &DashboardStats{
		Date:     models.FormatDate(day),
		ByStatus: make(map[models.BookingStatus]int),
		Revenue:  decimal.Zero,
	}
	for _, b := range bookings {
		stats.TotalBookings++
		stats.ByStatus[b.Status]++
		switch b.Status {
		case models.BookingConfirmed, models.BookingCheckedIn, models.BookingCompleted:
			stats.Revenue = stats.Revenue.Add(b.TotalAmount)
			stats.Guests += b.NumberOfGuests
		}
	}
	return stats, nil
}
