package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
)

// Slot is a requested seating: a party on one calendar date for whole hours
// starting at Start. Zone is optional and matched case-insensitively.
type Slot struct {
	BranchID      uint
	Date          time.Time
	Start         models.TimeOfDay
	DurationHours int
	PartySize     int
	Zone          string
}

// ParseSlot builds a Slot from transport values. Unparseable dates and times
// fail with ErrInvalidTimeRange.
func ParseSlot(branchID uint, date, start string, durationHours, partySize int, zone string) (Slot, error) {
	d, err := models.ParseDate(date)
	if err != nil {
		return Slot{}, ErrInvalidTimeRange.withMessage("%v", err).withField("date")
	}
	st, err := models.ParseTimeOfDay(start)
	if err != nil {
		return Slot{}, ErrInvalidTimeRange.withMessage("%v", err).withField("start_time")
	}
	return Slot{
		BranchID:      branchID,
		Date:          models.DateOf(d),
		Start:         st,
		DurationHours: durationHours,
		PartySize:     partySize,
		Zone:          strings.TrimSpace(zone),
	}, nil
}

func (s Slot) End() models.TimeOfDay {
	return s.Start.Add(time.Duration(s.DurationHours) * time.Hour)
}

func (s Slot) validate(p Policy) error {
	if s.BranchID == 0 {
		return invalidInput("branch_id", "branch is required")
	}
	if s.Date.IsZero() {
		return ErrInvalidTimeRange.withField("date")
	}
	if s.Start < 0 || s.Start >= models.MinutesPerDay {
		return ErrInvalidTimeRange.withMessage("start time must be within the day").withField("start_time")
	}
	if s.DurationHours < p.MinDurationHours || s.DurationHours > p.MaxDurationHours {
		return ErrInvalidTimeRange.withMessage("duration must be between %d and %d hours", p.MinDurationHours, p.MaxDurationHours).withField("duration")
	}
	if s.PartySize < p.MinPartySize || s.PartySize > p.MaxPartySize {
		return invalidInput("number_of_guests", "number of guests must be between %d and %d", p.MinPartySize, p.MaxPartySize)
	}
	return nil
}

// overlapping selects bookings that hold [start, end) on date. Cancelled
// bookings never hold a slot.
func overlapping(date time.Time, start, end models.TimeOfDay) func(*gorm.DB) *gorm.DB {
	day := models.DateOf(date.UTC())
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("bookings.status <> ?", string(models.BookingCancelled)).
			Where("bookings.booking_date >= ? AND bookings.booking_date < ?", day, day.AddDate(0, 0, 1)).
			Where("bookings.start_time < ? AND bookings.end_time > ?", end.Minutes(), start.Minutes())
	}
}

// conflicts reports whether tableID is held on date during [start, end) by a
// booking other than excludeID.
func conflicts(tx *gorm.DB, tableID uint, date time.Time, start, end models.TimeOfDay, excludeID uint) (bool, error) {
	q := tx.Model(&models.Booking{}).Where("bookings.table_id = ?", tableID).Scopes(overlapping(date, start, end))
	if excludeID != 0 {
		q = q.Where("bookings.id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// findAvailable runs the availability query on tx. It shares the overlap
// predicate with conflicts so neither can disagree with the other.
func findAvailable(tx *gorm.DB, s Slot) ([]models.Table, error) {
	busy := tx.Model(&models.Booking{}).
		Select("1").
		Where("bookings.table_id = dining_tables.id").
		Scopes(overlapping(s.Date, s.Start, s.End()))

	q := tx.Model(&models.Table{}).
		Where("dining_tables.branch_id = ?", s.BranchID).
		Where("dining_tables.is_active = ?", true).
		Where("dining_tables.capacity >= ?", s.PartySize)
	if s.Zone != "" {
		q = q.Where("LOWER(dining_tables.zone) = ?", strings.ToLower(s.Zone))
	}

	var tables []models.Table
	if err := q.Where("NOT EXISTS (?)", busy).Find(&tables).Error; err != nil {
		return nil, err
	}
	sortTables(tables)
	return tables, nil
}

// sortTables orders by zone, then table number compared as plain strings.
func sortTables(tables []models.Table) {
	sort.SliceStable(tables, func(i, j int) bool {
		if tables[i].Zone != tables[j].Zone {
			return tables[i].Zone < tables[j].Zone
		}
		return tables[i].TableNumber < tables[j].TableNumber
	})
}

type AvailabilityService struct {
	store
	policy Policy
}

func NewAvailabilityService(db *gorm.DB, log *logrus.Logger, policy Policy) *AvailabilityService {
	return &AvailabilityService{store: newStore(db, log, policy.CommitTimeout), policy: policy}
}

// HasConflict reports whether a non-cancelled booking on tableID overlaps
// [start, end) on date.
func (s *AvailabilityService) HasConflict(ctx context.Context, tableID uint, date time.Time, start, end models.TimeOfDay) (bool, error) {
	if end <= start {
		return false, ErrInvalidTimeRange.withMessage("end time must be after start time")
	}
	db, cancel := s.read(ctx)
	defer cancel()

	found, err := conflicts(db, tableID, date, start, end, 0)
	if err != nil {
		return false, s.fail("conflict check", err)
	}
	return found, nil
}

// FindAvailableTables lists the tables of a branch that can seat the party for
// the whole slot. A zone filter with no match returns an empty list.
func (s *AvailabilityService) FindAvailableTables(ctx context.Context, slot Slot) ([]models.Table, error) {
	if err := slot.validate(s.policy); err != nil {
		return nil, err
	}
	db, cancel := s.read(ctx)
	defer cancel()

	tables, err := findAvailable(db, slot)
	if err != nil {
		return nil, s.fail("find available tables", err)
	}
	s.log.WithFields(logrus.Fields{
		"branch_id": slot.BranchID,
		"date":      models.FormatDate(slot.Date),
		"start":     slot.Start.String(),
		"zone":      slot.Zone,
		"available": len(tables),
	}).Debug("availability query")
	return tables, nil
}
