package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/bar-booking/database"
	"github.com/yeremiapane/bar-booking/models"
)

var ict = time.FixedZone("ICT", 7*3600)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []string
	reminders []string
	cancelled []string
	admin     []string
	fail      bool
}

func (n *recordingNotifier) record(list *[]string, v string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	*list = append(*list, v)
	if n.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, b *models.Booking) error {
	return n.record(&n.confirmed, b.BookingCode)
}

func (n *recordingNotifier) BookingReminder(_ context.Context, b *models.Booking) error {
	return n.record(&n.reminders, b.BookingCode)
}

func (n *recordingNotifier) BookingCancelled(_ context.Context, b *models.Booking) error {
	return n.record(&n.cancelled, b.BookingCode)
}

func (n *recordingNotifier) Admin(_ context.Context, text string) error {
	return n.record(&n.admin, text)
}

func (n *recordingNotifier) count(list *[]string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(*list)
}

type fakeGateway struct {
	err   error
	delay time.Duration
	calls int
}

func (g *fakeGateway) CreateDeposit(_ context.Context, b *models.Booking) (DepositIntent, error) {
	g.calls++
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.err != nil {
		return DepositIntent{}, g.err
	}
	return DepositIntent{ID: "intent-" + b.BookingCode, Method: "midtrans", RedirectURL: "https://pay.example/" + b.BookingCode}, nil
}

type fixture struct {
	db       *gorm.DB
	log      *logrus.Logger
	hook     *test.Hook
	clock    *fakeClock
	policy   Policy
	notifier *recordingNotifier
	gateway  *fakeGateway

	availability *AvailabilityService
	bookings     *BookingService
	promos       *PromoService
	sweeper      *Sweeper

	branch models.Branch
	table  models.Table
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// newFixture seeds branch B with the outdoor table T: capacity 6, minimum
// spend 2000, base price 0. The clock starts at 2025-01-01 12:00 ICT.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log, hook := test.NewNullLogger()
	require.NoError(t, database.Migrate(db, log))

	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, ict)}
	policy := DefaultPolicy(ict)
	policy.Now = clock.Now

	f := &fixture{
		db:       db,
		log:      log,
		hook:     hook,
		clock:    clock,
		policy:   policy,
		notifier: &recordingNotifier{},
		gateway:  &fakeGateway{},
	}
	f.rebuild()

	f.branch = models.Branch{Name: "B", IsActive: true}
	require.NoError(t, db.Create(&f.branch).Error)
	f.table = f.addTable(t, "T", "Outdoor", 6, 2000, 0)
	return f
}

// rebuild recreates the services after a policy change.
func (f *fixture) rebuild() {
	f.availability = NewAvailabilityService(f.db, f.log, f.policy)
	f.promos = NewPromoService(f.db, f.log, f.policy)
	f.bookings = NewBookingService(f.db, f.log, f.policy, f.gateway, f.notifier)
	f.sweeper = NewSweeper(f.db, f.log, f.policy, f.notifier, nil, time.Minute)
}

func (f *fixture) addTable(t *testing.T, number, zone string, capacity int, minSpend, base int64) models.Table {
	t.Helper()
	table := models.Table{
		BranchID:     f.branch.ID,
		TableNumber:  number,
		Zone:         zone,
		TableType:    "Standard",
		Capacity:     capacity,
		MinimumSpend: decimal.NewFromInt(minSpend),
		BasePrice:    decimal.NewFromInt(base),
		IsActive:     true,
	}
	require.NoError(t, f.db.Create(&table).Error)
	return table
}

func (f *fixture) addPromo(t *testing.T, p models.PromoCode) models.PromoCode {
	t.Helper()
	if p.ValidFrom.IsZero() {
		p.ValidFrom = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	}
	if p.ValidTo.IsZero() {
		p.ValidTo = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	p.IsActive = true
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) slot(date string, start string, hours, guests int, zone string) Slot {
	s, err := ParseSlot(f.branch.ID, date, start, hours, guests, zone)
	if err != nil {
		panic(err)
	}
	return s
}

func (f *fixture) create(t *testing.T, table models.Table, s Slot, promo string) (*models.Booking, error) {
	t.Helper()
	return f.bookings.Create(context.Background(), CreateBookingInput{
		UserID:    1,
		TableID:   table.ID,
		Slot:      s,
		PromoCode: promo,
	})
}

// confirmedBooking books T for 2025-01-10 19:00-21:00 and confirms it.
func (f *fixture) confirmedBooking(t *testing.T) *models.Booking {
	t.Helper()
	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)
	b, err = f.bookings.Confirm(context.Background(), b.ID, PaymentConfirmation{TransactionID: "tx-1", Method: "qris"})
	require.NoError(t, err)
	return b
}

func (f *fixture) reload(t *testing.T, id uint) models.Booking {
	t.Helper()
	var b models.Booking
	require.NoError(t, f.db.Preload("Payment").First(&b, id).Error)
	return b
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
