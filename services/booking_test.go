package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/bar-booking/models"
)

func TestBookingEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.slot("2025-01-10", "19:00", 2, 4, "")

	tables, err := f.availability.FindAvailableTables(ctx, slot)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, f.table.ID, tables[0].ID)

	b, err := f.create(t, f.table, slot, "")
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.True(t, b.TotalAmount.Equal(dec("2000")), "total %s", b.TotalAmount)
	assert.True(t, b.DepositAmount.Equal(dec("600")), "deposit %s", b.DepositAmount)
	assert.Equal(t, models.NewTimeOfDay(21, 0), b.EndTime)
	require.NotNil(t, b.Payment)
	assert.Equal(t, models.PaymentPending, b.Payment.PaymentStatus)
	assert.Equal(t, "intent-"+b.BookingCode, b.Payment.TransactionID)

	tables, err = f.availability.FindAvailableTables(ctx, slot)
	require.NoError(t, err)
	assert.Empty(t, tables)

	_, err = f.create(t, f.table, slot, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableNoLongerAvailable))
	assert.Equal(t, KindConflict, KindOf(err))

	assert.Equal(t, 1, f.notifier.count(&f.notifier.admin))
}

func TestBookingCodeFormat(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2025, 1, 1, 23, 30, 0, 0, ict))

	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^BK20250101[1-9]\d{3}$`), b.BookingCode)
}

func TestBookingCodeCollisionsExhausted(t *testing.T) {
	f := newFixture(t)
	f.bookings.intn = func(int) int { return 0 }
	other := f.addTable(t, "U", "Outdoor", 6, 2000, 0)

	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)
	assert.Equal(t, "BK202501011000", b.BookingCode)

	_, err = f.create(t, other, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))

	var n int64
	require.NoError(t, f.db.Model(&models.Booking{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		slot  Slot
		field string
		want  *Error
	}{
		{"zero duration", f.slot("2025-01-10", "19:00", 0, 4, ""), "duration", ErrInvalidTimeRange},
		{"six hours", f.slot("2025-01-10", "19:00", 6, 4, ""), "duration", ErrInvalidTimeRange},
		{"no guests", f.slot("2025-01-10", "19:00", 2, 0, ""), "number_of_guests", ErrInvalidInput},
		{"too many guests", f.slot("2025-01-10", "19:00", 2, 51, ""), "number_of_guests", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.create(t, f.table, tt.slot, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			e, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, e.Field)
		})
	}

	_, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 7, ""), "")
	assert.True(t, errors.Is(err, ErrTableNoLongerAvailable), "party larger than the table")

	_, err = f.bookings.Create(context.Background(), CreateBookingInput{UserID: 1, TableID: 999, Slot: f.slot("2025-01-10", "19:00", 2, 4, "")})
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestCreateRejectsInactiveTable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&f.table).Update("is_active", false).Error)

	_, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	assert.True(t, errors.Is(err, ErrTableNoLongerAvailable))
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	f := newFixture(t)
	slot := f.slot("2025-01-10", "19:00", 2, 4, "")

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.bookings.Create(context.Background(), CreateBookingInput{UserID: uint(i + 1), TableID: f.table.ID, Slot: slot})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrTableNoLongerAvailable), "unexpected error %v", err)
	}
	assert.Equal(t, 1, ok)

	var count int64
	require.NoError(t, f.db.Model(&models.Booking{}).Where("table_id = ?", f.table.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGatewayFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	promo := f.addPromo(t, models.PromoCode{Code: "SAVE20", DiscountPercent: dec("20"), MaxUses: 5})
	f.gateway.err = errors.New("snap unavailable")

	_, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "save20")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPaymentFailed))
	assert.Equal(t, KindStore, KindOf(err))

	var n int64
	require.NoError(t, f.db.Model(&models.Booking{}).Count(&n).Error)
	assert.Zero(t, n)

	var reloaded models.PromoCode
	require.NoError(t, f.db.First(&reloaded, promo.ID).Error)
	assert.Zero(t, reloaded.CurrentUses)
}

func TestCommitTimeoutIsStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.policy.CommitTimeout = 50 * time.Millisecond
	f.gateway.delay = 150 * time.Millisecond
	f.rebuild()

	_, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var n int64
	require.NoError(t, f.db.Model(&models.Booking{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)

	_, err = f.bookings.Confirm(ctx, b.ID, PaymentConfirmation{TransactionID: "tx-1", Method: "qris"})
	require.NoError(t, err)
	again, err := f.bookings.ConfirmByCode(ctx, b.BookingCode, PaymentConfirmation{TransactionID: "tx-2"})
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, again.Status)

	stored := f.reload(t, b.ID)
	assert.Equal(t, models.BookingConfirmed, stored.Status)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, models.PaymentCompleted, stored.Payment.PaymentStatus)
	assert.Equal(t, "tx-2", stored.Payment.TransactionID)
	assert.Equal(t, "qris", stored.Payment.PaymentMethod)
	assert.Equal(t, 1, f.notifier.count(&f.notifier.confirmed))
}

func TestConfirmRejectsCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)
	_, err = f.bookings.CancelByStaff(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.bookings.Confirm(ctx, b.ID, PaymentConfirmation{})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestMarkPaymentFailed(t *testing.T) {
	f := newFixture(t)
	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)

	require.NoError(t, f.bookings.MarkPaymentFailed(context.Background(), b.BookingCode))
	stored := f.reload(t, b.ID)
	assert.Equal(t, models.BookingPending, stored.Status)
	assert.Equal(t, models.PaymentFailed, stored.Payment.PaymentStatus)

	err = f.bookings.MarkPaymentFailed(context.Background(), "BK000")
	assert.True(t, errors.Is(err, ErrBookingNotFound))
}

func TestCheckInWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmedBooking(t)

	f.clock.Set(time.Date(2025, 1, 10, 16, 0, 0, 0, ict))
	_, err := f.bookings.CheckIn(ctx, b.BookingCode)
	assert.True(t, errors.Is(err, ErrTooEarly))
	assert.Equal(t, KindState, KindOf(err))

	f.clock.Set(time.Date(2025, 1, 10, 23, 0, 0, 0, ict))
	_, err = f.bookings.CheckIn(ctx, b.BookingCode)
	assert.True(t, errors.Is(err, ErrTooLate))

	f.clock.Set(time.Date(2025, 1, 10, 17, 30, 0, 0, ict))
	checked, err := f.bookings.CheckIn(ctx, b.BookingCode)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCheckedIn, checked.Status)
	require.NotNil(t, checked.CheckInTime)

	_, err = f.bookings.CheckIn(ctx, b.BookingCode)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestCheckInWindowEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.confirmedBooking(t)
	f.clock.Set(time.Date(2025, 1, 10, 18, 0, 0, 0, ict))
	_, err := f.bookings.CheckIn(ctx, b.BookingCode)
	require.NoError(t, err, "opens exactly one hour before")

	other := f.addTable(t, "U", "Outdoor", 6, 2000, 0)
	f.clock.Set(time.Date(2025, 1, 1, 12, 0, 0, 0, ict))
	late, err := f.create(t, other, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)
	_, err = f.bookings.Confirm(ctx, late.ID, PaymentConfirmation{})
	require.NoError(t, err)
	f.clock.Set(time.Date(2025, 1, 10, 22, 0, 0, 0, ict))
	_, err = f.bookings.CheckIn(ctx, late.BookingCode)
	require.NoError(t, err, "closes three hours after the start")
}

func TestCheckInRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)
	f.clock.Set(time.Date(2025, 1, 10, 19, 0, 0, 0, ict))

	_, err = f.bookings.CheckIn(context.Background(), b.BookingCode)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = f.bookings.CheckIn(context.Background(), "BK000")
	assert.True(t, errors.Is(err, ErrBookingNotFound))
}

func TestCheckOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmedBooking(t)

	_, err := f.bookings.CheckOut(ctx, b.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	f.clock.Set(time.Date(2025, 1, 10, 19, 5, 0, 0, ict))
	_, err = f.bookings.CheckIn(ctx, b.BookingCode)
	require.NoError(t, err)
	f.clock.Set(time.Date(2025, 1, 10, 21, 0, 0, 0, ict))
	done, err := f.bookings.CheckOut(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, done.Status)
	require.NotNil(t, done.CheckOutTime)
}

func TestCancelByCustomerNoticeBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmedBooking(t)

	f.clock.Set(time.Date(2025, 1, 9, 19, 0, 1, 0, ict))
	_, err := f.bookings.CancelByCustomer(ctx, 1, b.ID)
	assert.True(t, errors.Is(err, ErrCancellationWindowClosed))
	assert.Equal(t, KindState, KindOf(err))

	f.clock.Set(time.Date(2025, 1, 9, 19, 0, 0, 0, ict))
	cancelled, err := f.bookings.CancelByCustomer(ctx, 1, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)

	stored := f.reload(t, b.ID)
	assert.Equal(t, models.PaymentRefunded, stored.Payment.PaymentStatus)
	assert.True(t, stored.Payment.RefundAmount.Equal(dec("420")), "refund %s", stored.Payment.RefundAmount)
	assert.Equal(t, 1, f.notifier.count(&f.notifier.cancelled))

	tables, err := f.availability.FindAvailableTables(ctx, f.slot("2025-01-10", "19:00", 2, 4, ""))
	require.NoError(t, err)
	assert.Len(t, tables, 1, "a cancelled booking frees the slot")
}

func TestCancelByCustomerWithoutPaymentKeepsPending(t *testing.T) {
	f := newFixture(t)
	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)

	_, err = f.bookings.CancelByCustomer(context.Background(), 1, b.ID)
	require.NoError(t, err)
	stored := f.reload(t, b.ID)
	assert.Equal(t, models.PaymentPending, stored.Payment.PaymentStatus)
	assert.True(t, stored.Payment.RefundAmount.IsZero())
}

func TestCancelOwnershipAndTerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmedBooking(t)

	_, err := f.bookings.CancelByCustomer(ctx, 2, b.ID)
	assert.True(t, errors.Is(err, ErrBookingNotFound))

	_, err = f.bookings.CancelByCustomer(ctx, 1, b.ID)
	require.NoError(t, err)
	_, err = f.bookings.CancelByCustomer(ctx, 1, b.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	_, err = f.bookings.CancelByStaff(ctx, b.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestCancelByStaffIgnoresNotice(t *testing.T) {
	f := newFixture(t)
	b := f.confirmedBooking(t)
	f.clock.Set(time.Date(2025, 1, 10, 18, 0, 0, 0, ict))

	cancelled, err := f.bookings.CancelByStaff(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	stored := f.reload(t, b.ID)
	assert.Equal(t, models.PaymentCompleted, stored.Payment.PaymentStatus)
}

func TestModifyRechecksConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)
	second, err := f.create(t, f.table, f.slot("2025-01-10", "21:00", 2, 4, ""), "")
	require.NoError(t, err)

	start := models.NewTimeOfDay(20, 0)
	_, err = f.bookings.Modify(ctx, second.ID, ModifyBookingInput{StartTime: &start})
	assert.True(t, errors.Is(err, ErrTableNoLongerAvailable))

	hours := 3
	_, err = f.bookings.Modify(ctx, first.ID, ModifyBookingInput{DurationHours: &hours})
	assert.True(t, errors.Is(err, ErrTableNoLongerAvailable))

	later := models.NewTimeOfDay(22, 0)
	moved, err := f.bookings.Modify(ctx, second.ID, ModifyBookingInput{StartTime: &later})
	require.NoError(t, err)
	assert.Equal(t, models.NewTimeOfDay(24, 0), moved.EndTime)
	require.NotNil(t, moved.ModifiedAt)

	guests := 7
	_, err = f.bookings.Modify(ctx, first.ID, ModifyBookingInput{NumberOfGuests: &guests})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestModifyTableMustBeActiveInSameBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)

	inactive := f.addTable(t, "T2", "Outdoor", 6, 2000, 0)
	require.NoError(t, f.db.Model(&models.Table{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)
	_, err = f.bookings.Modify(ctx, b.ID, ModifyBookingInput{TableID: &inactive.ID})
	assert.True(t, errors.Is(err, ErrTableNotFound))

	other := models.Branch{Name: "Silom", IsActive: true}
	require.NoError(t, f.db.Create(&other).Error)
	foreign := models.Table{
		BranchID:     other.ID,
		TableNumber:  "S1",
		Zone:         "Indoor",
		TableType:    "Standard",
		Capacity:     6,
		MinimumSpend: dec("2000"),
		BasePrice:    dec("0"),
		IsActive:     true,
	}
	require.NoError(t, f.db.Create(&foreign).Error)
	_, err = f.bookings.Modify(ctx, b.ID, ModifyBookingInput{TableID: &foreign.ID})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	missing := uint(9999)
	_, err = f.bookings.Modify(ctx, b.ID, ModifyBookingInput{TableID: &missing})
	assert.True(t, errors.Is(err, ErrTableNotFound))

	sibling := f.addTable(t, "T3", "Outdoor", 6, 2000, 0)
	moved, err := f.bookings.Modify(ctx, b.ID, ModifyBookingInput{TableID: &sibling.ID})
	require.NoError(t, err)
	assert.Equal(t, sibling.ID, moved.TableID)
}

func TestModifyStatusFollowsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)

	completed := models.BookingCompleted
	_, err = f.bookings.Modify(ctx, b.ID, ModifyBookingInput{Status: &completed})
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	confirmed := models.BookingConfirmed
	updated, err := f.bookings.Modify(ctx, b.ID, ModifyBookingInput{Status: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, updated.Status)

	bogus := models.BookingStatus("Lost")
	_, err = f.bookings.Modify(ctx, b.ID, ModifyBookingInput{Status: &bogus})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestListFiltersAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.create(t, f.table, f.slot("2025-01-10", "21:00", 2, 4, ""), "")
	require.NoError(t, err)
	_, err = f.create(t, f.table, f.slot("2025-01-10", "18:00", 2, 4, ""), "")
	require.NoError(t, err)
	late, err := f.create(t, f.table, f.slot("2025-01-12", "19:00", 2, 4, ""), "")
	require.NoError(t, err)
	_, err = f.bookings.Confirm(ctx, late.ID, PaymentConfirmation{})
	require.NoError(t, err)

	all, err := f.bookings.List(ctx, BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, late.ID, all[0].ID)
	assert.Equal(t, models.NewTimeOfDay(18, 0), all[1].StartTime)
	assert.Equal(t, models.NewTimeOfDay(21, 0), all[2].StartTime)

	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	byDate, err := f.bookings.List(ctx, BookingFilter{Date: &day})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	byStatus, err := f.bookings.List(ctx, BookingFilter{Status: models.BookingConfirmed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)

	bySearch, err := f.bookings.List(ctx, BookingFilter{Search: late.BookingCode[len(late.BookingCode)-4:]})
	require.NoError(t, err)
	assert.NotEmpty(t, bySearch)

	_, err = f.bookings.List(ctx, BookingFilter{Status: "Lost"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	f.policy.AdminListLimit = 2
	f.rebuild()
	capped, err := f.bookings.List(ctx, BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestUserScopedReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "")
	require.NoError(t, err)

	mine, err := f.bookings.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := f.bookings.ListForUser(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = f.bookings.GetForUser(ctx, 2, b.ID)
	assert.True(t, errors.Is(err, ErrBookingNotFound))
	got, err := f.bookings.GetByCode(ctx, " "+b.BookingCode+" ")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestNotificationFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true

	b := f.confirmedBooking(t)
	assert.Equal(t, models.BookingConfirmed, b.Status)

	warned := false
	for _, e := range f.hook.AllEntries() {
		if e.Message == "notification failed" {
			warned = true
		}
	}
	assert.True(t, warned)
}
