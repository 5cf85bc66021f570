package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
)

const bookingCodePrefix = "BK"

type CreateBookingInput struct {
	UserID          uint
	TableID         uint
	Slot            Slot
	PromoCode       string
	SpecialRequests string
	PreOrderItems   models.PreOrderItems
}

// ModifyBookingInput holds the fields staff may edit. Nil fields are left
// unchanged. DurationHours is applied from the resulting start time.
type ModifyBookingInput struct {
	TableID         *uint
	BookingDate     *time.Time
	StartTime       *models.TimeOfDay
	DurationHours   *int
	NumberOfGuests  *int
	Status          *models.BookingStatus
	SpecialRequests *string
}

// PaymentConfirmation is what the payment side reports when a deposit clears.
type PaymentConfirmation struct {
	TransactionID string
	Method        string
	PaidAt        time.Time
}

type BookingFilter struct {
	Status models.BookingStatus
	Date   *time.Time
	Search string
}

// BookingService drives bookings through their lifecycle. Every mutation is
// one transaction; state changes are conditional on the status read inside it.
type BookingService struct {
	store
	policy   Policy
	gateway  DepositGateway
	notifier Notifier
	intn     func(n int) int
}

func NewBookingService(db *gorm.DB, log *logrus.Logger, policy Policy, gateway DepositGateway, notifier Notifier) *BookingService {
	if gateway == nil {
		gateway = ManualGateway{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &BookingService{
		store:    newStore(db, log, policy.CommitTimeout),
		policy:   policy,
		gateway:  gateway,
		notifier: notifier,
		intn:     rand.Intn,
	}
}

func (in CreateBookingInput) validate(p Policy) error {
	if in.UserID == 0 {
		return invalidInput("user_id", "user is required")
	}
	if in.TableID == 0 {
		return invalidInput("table_id", "table is required")
	}
	if err := in.Slot.validate(p); err != nil {
		return err
	}
	if len([]rune(in.SpecialRequests)) > p.MaxSpecialRequests {
		return invalidInput("special_requests", "special requests must be at most %d characters", p.MaxSpecialRequests)
	}
	for _, item := range in.PreOrderItems {
		if strings.TrimSpace(item.ItemName) == "" || item.Quantity <= 0 || item.Price.IsNegative() {
			return invalidInput("pre_order_items", "pre-order items need a name, a positive quantity and a non-negative price")
		}
	}
	return nil
}

// Create books the table for the slot. Availability is re-checked inside the
// transaction after locking the table row, so two concurrent requests for the
// same slot cannot both succeed. A rejected promo code does not fail the
// booking; it is booked at full price.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if err := in.validate(s.policy); err != nil {
		return nil, err
	}
	now := s.policy.now()
	slot := in.Slot

	var booking *models.Booking
	err := s.transaction(ctx, "create booking", func(tx *gorm.DB) error {
		var table models.Table
		if err := forUpdate(tx).Where("id = ? AND branch_id = ?", in.TableID, slot.BranchID).First(&table).Error; err != nil {
			return notFound(err, ErrTableNotFound)
		}

		available, err := findAvailable(tx, slot)
		if err != nil {
			return err
		}
		if !containsTable(available, table.ID) {
			return ErrTableNoLongerAvailable
		}

		base := table.BaseTotal()
		discount := decimal.Zero
		var applied *string
		if strings.TrimSpace(in.PromoCode) != "" {
			promo, err := s.applyPromo(tx, in.PromoCode, base, now)
			if err != nil {
				return err
			}
			if promo != nil {
				discount = promo.Discount(base)
				applied = &promo.Code
			}
		}

		total := base.Sub(discount)
		if total.IsNegative() {
			total = decimal.Zero
		}

		code, err := s.newBookingCode(tx, now)
		if err != nil {
			return err
		}

		booking = &models.Booking{
			BookingCode:    code,
			UserID:         in.UserID,
			TableID:        table.ID,
			BookingDate:    models.DateOf(slot.Date),
			StartTime:      slot.Start,
			EndTime:        slot.End(),
			NumberOfGuests: slot.PartySize,
			Status:         models.BookingPending,
			TotalAmount:    total,
			DepositAmount:  total.Mul(s.policy.DepositRate).RoundBank(2),
			DiscountAmount: discount,
			PromoCode:      applied,
			PreOrderItems:  in.PreOrderItems,
			CreatedAt:      now.UTC(),
		}
		if req := strings.TrimSpace(in.SpecialRequests); req != "" {
			booking.SpecialRequests = &req
		}
		if err := tx.Create(booking).Error; err != nil {
			return err
		}

		intent, err := s.gateway.CreateDeposit(tx.Statement.Context, booking)
		if err != nil {
			s.log.WithError(err).WithField("booking_code", code).Error("deposit payment could not be started")
			cp := *ErrPaymentFailed
			cp.Err = err
			return &cp
		}
		payment := &models.Payment{
			BookingID:     booking.ID,
			Amount:        booking.DepositAmount,
			PaymentMethod: intent.Method,
			PaymentStatus: models.PaymentPending,
			TransactionID: intent.ID,
			PaymentURL:    intent.RedirectURL,
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		booking.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_code": booking.BookingCode,
		"table_id":     booking.TableID,
		"date":         models.FormatDate(booking.BookingDate),
		"start":        booking.StartTime.String(),
		"total":        booking.TotalAmount.StringFixed(2),
	}).Info("booking created")
	s.notifyAdmin(ctx, fmt.Sprintf("New booking %s for %s %s, %d guests",
		booking.BookingCode, models.FormatDate(booking.BookingDate), booking.StartTime, booking.NumberOfGuests))
	return booking, nil
}

// applyPromo validates and claims code on tx. It returns nil without an error
// when the code is rejected; the rejection is logged as non-fatal.
func (s *BookingService) applyPromo(tx *gorm.DB, code string, base decimal.Decimal, now time.Time) (*models.PromoCode, error) {
	promo, err := validateBasic(tx, code, now.UTC())
	if err == nil && base.LessThan(promo.MinimumSpend) {
		err = promoRejected("minimum spend not reached")
	}
	if err == nil {
		var claimed bool
		claimed, err = claimUse(tx, promo)
		if err != nil {
			return nil, err
		}
		if !claimed {
			err = promoRejected("promo code has been fully redeemed")
		}
	}
	if err != nil {
		if !isPromoRejection(err) {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{
			"promo_code":    models.NormalizePromoCode(code),
			"promo_invalid": true,
			"reason":        err.Error(),
		}).Warn("promo code rejected, booking at full price")
		return nil, nil
	}
	if promo.Inert() {
		s.log.WithField("promo_code", promo.Code).Warn("promo code validates but grants no discount")
	}
	return promo, nil
}

// newBookingCode returns BK + service-local date + a four digit suffix that
// no existing booking uses.
func (s *BookingService) newBookingCode(tx *gorm.DB, now time.Time) (string, error) {
	prefix := bookingCodePrefix + now.In(s.policy.Location).Format("20060102")
	for i := 0; i < s.policy.BookingCodeAttempts; i++ {
		code := fmt.Sprintf("%s%04d", prefix, 1000+s.intn(9000))
		var n int64
		if err := tx.Model(&models.Booking{}).Where("booking_code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", ErrStoreUnavailable.withMessage("could not allocate a booking code, please retry")
}

func containsTable(tables []models.Table, id uint) bool {
	for _, t := range tables {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *BookingService) Get(ctx context.Context, id uint) (*models.Booking, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	var b models.Booking
	if err := db.Preload("Payment").First(&b, id).Error; err != nil {
		return nil, s.classify("get booking", notFound(err, ErrBookingNotFound))
	}
	return &b, nil
}

// GetForUser returns the booking only if it belongs to userID.
func (s *BookingService) GetForUser(ctx context.Context, userID, id uint) (*models.Booking, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	var b models.Booking
	if err := db.Preload("Payment").Where("id = ? AND user_id = ?", id, userID).First(&b).Error; err != nil {
		return nil, s.classify("get booking", notFound(err, ErrBookingNotFound))
	}
	return &b, nil
}

func (s *BookingService) GetByCode(ctx context.Context, code string) (*models.Booking, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	var b models.Booking
	if err := db.Preload("Payment").Where("booking_code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&b).Error; err != nil {
		return nil, s.classify("get booking", notFound(err, ErrBookingNotFound))
	}
	return &b, nil
}

func (s *BookingService) ListForUser(ctx context.Context, userID uint) ([]models.Booking, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	var bookings []models.Booking
	err := db.Preload("Payment").
		Where("user_id = ?", userID).
		Order("booking_date DESC").Order("start_time DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, s.fail("list user bookings", err)
	}
	return bookings, nil
}

// List is the staff view: newest date first, then start time, capped at the
// policy's admin list limit.
func (s *BookingService) List(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	q := db.Model(&models.Booking{})
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, invalidInput("status", "unknown booking status %q", f.Status)
		}
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Date != nil {
		day := models.DateOf(*f.Date)
		q = q.Where("booking_date >= ? AND booking_date < ?", day, day.AddDate(0, 0, 1))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		q = q.Where("UPPER(booking_code) LIKE ?", "%"+strings.ToUpper(search)+"%")
	}
	var bookings []models.Booking
	err := q.Order("booking_date DESC").Order("start_time ASC").Limit(s.policy.AdminListLimit).Find(&bookings).Error
	if err != nil {
		return nil, s.fail("list bookings", err)
	}
	return bookings, nil
}

// Confirm records a cleared deposit. A Pending booking becomes Confirmed; an
// already Confirmed booking only has its payment details refreshed.
func (s *BookingService) Confirm(ctx context.Context, bookingID uint, pc PaymentConfirmation) (*models.Booking, error) {
	return s.confirm(ctx, func(tx *gorm.DB) *gorm.DB { return tx.Where("id = ?", bookingID) }, pc)
}

// ConfirmByCode is Confirm keyed by booking code, as payment gateways know it.
func (s *BookingService) ConfirmByCode(ctx context.Context, code string, pc PaymentConfirmation) (*models.Booking, error) {
	return s.confirm(ctx, func(tx *gorm.DB) *gorm.DB { return tx.Where("booking_code = ?", code) }, pc)
}

func (s *BookingService) confirm(ctx context.Context, where func(*gorm.DB) *gorm.DB, pc PaymentConfirmation) (*models.Booking, error) {
	now := s.policy.now().UTC()
	paidAt := pc.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	paidAt = paidAt.UTC()

	var b models.Booking
	transitioned := false
	err := s.transaction(ctx, "confirm booking", func(tx *gorm.DB) error {
		if err := where(forUpdate(tx)).First(&b).Error; err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		switch b.Status {
		case models.BookingPending:
			ok, err := transition(tx, &b, models.BookingConfirmed, map[string]interface{}{"modified_at": now})
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidTransition.withMessage("booking %s changed concurrently", b.BookingCode)
			}
			b.ModifiedAt = &now
			transitioned = true
		case models.BookingConfirmed:
		default:
			return ErrInvalidTransition.withMessage("cannot confirm a %s booking", b.Status)
		}

		var p models.Payment
		err := tx.Where("booking_id = ?", b.ID).First(&p).Error
		if err != nil && !isRecordNotFound(err) {
			return err
		}
		if isRecordNotFound(err) {
			p = models.Payment{BookingID: b.ID, Amount: b.DepositAmount}
		}
		p.PaymentStatus = models.PaymentCompleted
		p.PaymentDate = &paidAt
		if pc.TransactionID != "" {
			p.TransactionID = pc.TransactionID
		}
		if pc.Method != "" {
			p.PaymentMethod = pc.Method
		}
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		b.Payment = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if transitioned {
		s.log.WithField("booking_code", b.BookingCode).Info("booking confirmed")
		s.deliver("confirmation", b.BookingCode, func() error { return s.notifier.BookingConfirmed(ctx, &b) })
	}
	return &b, nil
}

// MarkPaymentFailed records a failed deposit for a Pending booking.
func (s *BookingService) MarkPaymentFailed(ctx context.Context, code string) error {
	return s.transaction(ctx, "mark payment failed", func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.Where("booking_code = ?", code).First(&b).Error; err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		return tx.Model(&models.Payment{}).
			Where("booking_id = ? AND payment_status = ?", b.ID, string(models.PaymentPending)).
			Update("payment_status", string(models.PaymentFailed)).Error
	})
}

// CheckIn seats a Confirmed booking. It is allowed from one hour before the
// start until three hours after it, in the service location.
func (s *BookingService) CheckIn(ctx context.Context, code string) (*models.Booking, error) {
	now := s.policy.now()
	var b models.Booking
	err := s.transaction(ctx, "check in", func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("booking_code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&b).Error; err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		if b.Status != models.BookingConfirmed {
			return ErrInvalidTransition.withMessage("only confirmed bookings can check in, booking is %s", b.Status)
		}
		startsAt := b.StartsAt(s.policy.Location)
		if now.Before(startsAt.Add(-s.policy.CheckInEarly)) {
			return ErrTooEarly.withMessage("check-in opens at %s", startsAt.Add(-s.policy.CheckInEarly).Format("2006-01-02 15:04"))
		}
		if now.After(startsAt.Add(s.policy.CheckInLate)) {
			return ErrTooLate
		}
		at := now.UTC()
		ok, err := transition(tx, &b, models.BookingCheckedIn, map[string]interface{}{"check_in_time": at, "modified_at": at})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition.withMessage("booking %s changed concurrently", b.BookingCode)
		}
		b.CheckInTime = &at
		b.ModifiedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("booking_code", b.BookingCode).Info("booking checked in")
	return &b, nil
}

// CheckOut completes a seated booking.
func (s *BookingService) CheckOut(ctx context.Context, id uint) (*models.Booking, error) {
	now := s.policy.now().UTC()
	var b models.Booking
	err := s.transaction(ctx, "check out", func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&b, id).Error; err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		if b.Status != models.BookingCheckedIn {
			return ErrInvalidTransition.withMessage("only checked-in bookings can check out, booking is %s", b.Status)
		}
		ok, err := transition(tx, &b, models.BookingCompleted, map[string]interface{}{"check_out_time": now, "modified_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition.withMessage("booking %s changed concurrently", b.BookingCode)
		}
		b.CheckOutTime = &now
		b.ModifiedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("booking_code", b.BookingCode).Info("booking checked out")
	return &b, nil
}

// CancelByCustomer cancels the user's own booking at least 24 hours ahead.
// A completed deposit is refunded at the policy refund rate.
func (s *BookingService) CancelByCustomer(ctx context.Context, userID, id uint) (*models.Booking, error) {
	return s.cancel(ctx, id, &userID)
}

// CancelByStaff cancels without the notice requirement. Deposits are left
// untouched; refunds on staff cancellation are settled outside the system.
func (s *BookingService) CancelByStaff(ctx context.Context, id uint) (*models.Booking, error) {
	return s.cancel(ctx, id, nil)
}

func (s *BookingService) cancel(ctx context.Context, id uint, userID *uint) (*models.Booking, error) {
	now := s.policy.now()
	at := now.UTC()
	var b models.Booking
	err := s.transaction(ctx, "cancel booking", func(tx *gorm.DB) error {
		q := forUpdate(tx).Where("id = ?", id)
		if userID != nil {
			q = q.Where("user_id = ?", *userID)
		}
		if err := q.First(&b).Error; err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		if !b.Status.CanTransition(models.BookingCancelled) {
			return ErrInvalidTransition.withMessage("a %s booking cannot be cancelled", b.Status)
		}
		if userID != nil && b.StartsAt(s.policy.Location).Sub(now) < s.policy.CancellationNotice {
			return ErrCancellationWindowClosed
		}
		ok, err := transition(tx, &b, models.BookingCancelled, map[string]interface{}{"modified_at": at})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition.withMessage("booking %s changed concurrently", b.BookingCode)
		}
		b.ModifiedAt = &at

		if userID == nil {
			return nil
		}
		refund := b.DepositAmount.Mul(s.policy.RefundRate).RoundBank(2)
		return tx.Model(&models.Payment{}).
			Where("booking_id = ? AND payment_status = ?", b.ID, string(models.PaymentCompleted)).
			Updates(map[string]interface{}{
				"payment_status": string(models.PaymentRefunded),
				"refund_amount":  refund,
				"refund_date":    at,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"booking_code": b.BookingCode, "by_staff": userID == nil}).Info("booking cancelled")
	s.deliver("cancellation", b.BookingCode, func() error { return s.notifier.BookingCancelled(ctx, &b) })
	return &b, nil
}

// Modify applies a staff edit. The resulting slot must still be free unless
// the booking ends up cancelled, and status changes follow the lifecycle.
func (s *BookingService) Modify(ctx context.Context, id uint, in ModifyBookingInput) (*models.Booking, error) {
	now := s.policy.now().UTC()
	var b models.Booking
	err := s.transaction(ctx, "modify booking", func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&b, id).Error; err != nil {
			return notFound(err, ErrBookingNotFound)
		}
		if err := s.applyEdit(tx, &b, in, now); err != nil {
			return err
		}
		b.ModifiedAt = &now
		return tx.Save(&b).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("booking_code", b.BookingCode).Info("booking modified")
	return &b, nil
}

func (s *BookingService) applyEdit(tx *gorm.DB, b *models.Booking, in ModifyBookingInput, now time.Time) error {
	duration := b.EndTime - b.StartTime
	if in.TableID != nil && *in.TableID != b.TableID {
		var current, next models.Table
		if err := tx.First(&current, b.TableID).Error; err != nil {
			return notFound(err, ErrTableNotFound)
		}
		if err := tx.Where("is_active = ?", true).First(&next, *in.TableID).Error; err != nil {
			return notFound(err, ErrTableNotFound)
		}
		if next.BranchID != current.BranchID {
			return invalidInput("table_id", "table %s belongs to another branch", next.TableNumber)
		}
		b.TableID = next.ID
	}
	if in.BookingDate != nil {
		b.BookingDate = models.DateOf(*in.BookingDate)
	}
	if in.StartTime != nil {
		if *in.StartTime < 0 || *in.StartTime >= models.MinutesPerDay {
			return ErrInvalidTimeRange.withMessage("start time must be within the day").withField("start_time")
		}
		b.StartTime = *in.StartTime
	}
	if in.DurationHours != nil {
		h := *in.DurationHours
		if h < s.policy.MinDurationHours || h > s.policy.MaxDurationHours {
			return ErrInvalidTimeRange.withMessage("duration must be between %d and %d hours", s.policy.MinDurationHours, s.policy.MaxDurationHours).withField("duration")
		}
		duration = models.NewTimeOfDay(h, 0)
	}
	b.EndTime = b.StartTime + duration

	if in.NumberOfGuests != nil {
		n := *in.NumberOfGuests
		if n < s.policy.MinPartySize || n > s.policy.MaxPartySize {
			return invalidInput("number_of_guests", "number of guests must be between %d and %d", s.policy.MinPartySize, s.policy.MaxPartySize)
		}
		b.NumberOfGuests = n
	}
	if in.SpecialRequests != nil {
		req := strings.TrimSpace(*in.SpecialRequests)
		if len([]rune(req)) > s.policy.MaxSpecialRequests {
			return invalidInput("special_requests", "special requests must be at most %d characters", s.policy.MaxSpecialRequests)
		}
		if req == "" {
			b.SpecialRequests = nil
		} else {
			b.SpecialRequests = &req
		}
	}
	if in.Status != nil && *in.Status != b.Status {
		next := *in.Status
		if !next.Valid() {
			return invalidInput("status", "unknown booking status %q", next)
		}
		if !b.Status.CanTransition(next) {
			return ErrInvalidTransition.withMessage("cannot change a %s booking to %s", b.Status, next)
		}
		switch next {
		case models.BookingCheckedIn:
			b.CheckInTime = &now
		case models.BookingCompleted:
			b.CheckOutTime = &now
		}
		b.Status = next
	}

	var table models.Table
	if err := tx.First(&table, b.TableID).Error; err != nil {
		return notFound(err, ErrTableNotFound)
	}
	if b.NumberOfGuests > table.Capacity {
		return invalidInput("number_of_guests", "table %s seats at most %d guests", table.TableNumber, table.Capacity)
	}
	if b.Status.Blocking() {
		clash, err := conflicts(tx, b.TableID, b.BookingDate, b.StartTime, b.EndTime, b.ID)
		if err != nil {
			return err
		}
		if clash {
			return ErrTableNoLongerAvailable
		}
	}
	return nil
}

// transition moves b to next only if its stored status is still b.Status.
func transition(tx *gorm.DB, b *models.Booking, next models.BookingStatus, extra map[string]interface{}) (bool, error) {
	if !b.Status.CanTransition(next) {
		return false, nil
	}
	fields := map[string]interface{}{"status": string(next)}
	for k, v := range extra {
		fields[k] = v
	}
	res := tx.Model(&models.Booking{}).
		Where("id = ? AND status = ?", b.ID, string(b.Status)).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	b.Status = next
	return true, nil
}

func (s *BookingService) classify(op string, err error) error {
	if _, ok := AsError(err); ok {
		return err
	}
	return s.fail(op, err)
}

func (s *BookingService) notifyAdmin(ctx context.Context, text string) {
	if err := s.notifier.Admin(ctx, text); err != nil {
		s.log.WithError(err).WithField("event", "admin").Warn("notification failed")
	}
}

// deliver runs a notification and logs its failure.
func (s *BookingService) deliver(event, code string, send func() error) {
	if err := send(); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event": event, "booking_code": code}).Warn("notification failed")
	}
}
