package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
)

// PromoContext is what the extended validation tier checks a code against.
// Date selects the weekday; Zone and TableType are skipped when empty.
type PromoContext struct {
	BaseSpend decimal.Decimal
	Date      time.Time
	Zone      string
	TableType string
}

// PromoInput is the admin form for creating or updating a promo code.
// ValidFrom and ValidTo are YYYY-MM-DD dates in the service location.
type PromoInput struct {
	Code                 string
	Description          string
	DiscountPercent      decimal.Decimal
	DiscountAmount       decimal.Decimal
	MinimumSpend         decimal.Decimal
	ValidFrom            string
	ValidTo              string
	MaxUses              int
	ApplicableDays       []string
	ApplicableZones      []string
	ApplicableTableTypes []string
	IsActive             *bool
}

type PromoService struct {
	store
	policy Policy
}

func NewPromoService(db *gorm.DB, log *logrus.Logger, policy Policy) *PromoService {
	return &PromoService{store: newStore(db, log, policy.CommitTimeout), policy: policy}
}

func promoRejected(reason string) *Error {
	return ErrPromoInvalid.withMessage("%s", reason).withField("promo_code")
}

// validateBasic checks existence, the active flag, the validity window and
// the use counter.
func validateBasic(tx *gorm.DB, code string, now time.Time) (*models.PromoCode, error) {
	code = models.NormalizePromoCode(code)
	if code == "" {
		return nil, ErrPromoNotFound
	}
	var promo models.PromoCode
	if err := tx.Where("code = ?", code).First(&promo).Error; err != nil {
		return nil, notFound(err, ErrPromoNotFound)
	}
	switch {
	case !promo.IsActive:
		return nil, promoRejected("promo code is not active")
	case now.Before(promo.ValidFrom):
		return nil, promoRejected("promo code is not valid yet")
	case now.After(promo.ValidTo):
		return nil, promoRejected("promo code has expired")
	case !promo.HasUsesLeft():
		return nil, promoRejected("promo code has been fully redeemed")
	}
	return &promo, nil
}

// validateExtended adds minimum spend and the applicability sets on top of
// the basic tier.
func (p Policy) validateExtended(promo *models.PromoCode, pc PromoContext) error {
	if pc.BaseSpend.LessThan(promo.MinimumSpend) {
		return promoRejected("minimum spend not reached")
	}
	day := pc.Date
	if day.IsZero() {
		day = p.today(p.now())
	}
	if !promo.ApplicableDays.Allows(day.Weekday().String()) {
		return promoRejected("promo code is not valid on " + day.Weekday().String())
	}
	if pc.Zone != "" && !promo.ApplicableZones.Allows(pc.Zone) {
		return promoRejected("promo code is not valid for zone " + pc.Zone)
	}
	if pc.TableType != "" && !promo.ApplicableTableTypes.Allows(pc.TableType) {
		return promoRejected("promo code is not valid for table type " + pc.TableType)
	}
	return nil
}

// claimUse increments the use counter only while uses remain. It reports
// false when a concurrent booking took the last use first.
func claimUse(tx *gorm.DB, promo *models.PromoCode) (bool, error) {
	res := tx.Model(&models.PromoCode{}).
		Where("id = ? AND is_active = ? AND (max_uses = 0 OR current_uses < max_uses)", promo.ID, true).
		UpdateColumn("current_uses", gorm.Expr("current_uses + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		promo.CurrentUses++
		return true, nil
	}
	return false, nil
}

// ValidateBasic is the tier used when a booking is created.
func (s *PromoService) ValidateBasic(ctx context.Context, code string) (*models.PromoCode, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	promo, err := validateBasic(db, code, s.policy.now().UTC())
	if err != nil {
		return nil, s.classify("validate promo", err)
	}
	s.warnInert(promo)
	return promo, nil
}

// Validate runs both tiers and returns the code with the discount it would
// grant on pc.BaseSpend.
func (s *PromoService) Validate(ctx context.Context, code string, pc PromoContext) (*models.PromoCode, decimal.Decimal, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	promo, err := validateBasic(db, code, s.policy.now().UTC())
	if err != nil {
		return nil, decimal.Zero, s.classify("validate promo", err)
	}
	if err := s.policy.validateExtended(promo, pc); err != nil {
		return nil, decimal.Zero, err
	}
	s.warnInert(promo)
	return promo, promo.Discount(pc.BaseSpend), nil
}

func (s *PromoService) warnInert(promo *models.PromoCode) {
	if promo.Inert() {
		s.log.WithField("promo_code", promo.Code).Warn("promo code validates but grants no discount")
	}
}

func (s *PromoService) classify(op string, err error) error {
	if _, ok := AsError(err); ok {
		return err
	}
	return s.fail(op, err)
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	var promos []models.PromoCode
	if err := db.Order("valid_to DESC").Find(&promos).Error; err != nil {
		return nil, s.fail("list promos", err)
	}
	return promos, nil
}

func (s *PromoService) Get(ctx context.Context, id uint) (*models.PromoCode, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	var promo models.PromoCode
	if err := db.First(&promo, id).Error; err != nil {
		return nil, s.classify("get promo", notFound(err, ErrPromoNotFound))
	}
	return &promo, nil
}

func (s *PromoService) validateInput(in PromoInput) (string, time.Time, time.Time, error) {
	code := models.NormalizePromoCode(in.Code)
	if code == "" {
		return "", time.Time{}, time.Time{}, invalidInput("code", "promo code is required")
	}
	if len(code) < 3 || len(code) > 20 {
		return "", time.Time{}, time.Time{}, invalidInput("code", "promo code must be 3-20 characters")
	}
	if strings.TrimSpace(in.Description) == "" {
		return "", time.Time{}, time.Time{}, invalidInput("description", "description is required")
	}
	if in.MaxUses <= 0 {
		return "", time.Time{}, time.Time{}, invalidInput("max_uses", "max uses must be greater than 0")
	}
	hasPercent := in.DiscountPercent.IsPositive()
	hasAmount := in.DiscountAmount.IsPositive()
	switch {
	case !hasPercent && !hasAmount:
		return "", time.Time{}, time.Time{}, invalidInput("discount", "set either a discount percent or a discount amount")
	case hasPercent && hasAmount:
		return "", time.Time{}, time.Time{}, invalidInput("discount", "set only one of discount percent or discount amount")
	case in.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) || in.DiscountPercent.IsNegative():
		return "", time.Time{}, time.Time{}, invalidInput("discount_percent", "discount percent must be between 0 and 100")
	case in.DiscountAmount.IsNegative():
		return "", time.Time{}, time.Time{}, invalidInput("discount_amount", "discount amount must not be negative")
	case in.MinimumSpend.IsNegative():
		return "", time.Time{}, time.Time{}, invalidInput("minimum_spend", "minimum spend must not be negative")
	}

	from, err := models.ParseDate(in.ValidFrom)
	if err != nil {
		return "", time.Time{}, time.Time{}, invalidInput("valid_from", "%v", err)
	}
	to, err := models.ParseDate(in.ValidTo)
	if err != nil {
		return "", time.Time{}, time.Time{}, invalidInput("valid_to", "%v", err)
	}
	if to.Before(from) {
		return "", time.Time{}, time.Time{}, invalidInput("valid_to", "valid to must not be before valid from")
	}
	loc := s.policy.Location
	validFrom := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc).UTC()
	// the last day counts in full
	validTo := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()
	return code, validFrom, validTo, nil
}

func codeTaken(tx *gorm.DB, code string, exceptID uint) (bool, error) {
	var n int64
	q := tx.Model(&models.PromoCode{}).Where("UPPER(code) = ?", code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PromoService) Create(ctx context.Context, in PromoInput) (*models.PromoCode, error) {
	code, from, to, err := s.validateInput(in)
	if err != nil {
		return nil, err
	}
	promo := &models.PromoCode{
		Code:                 code,
		Description:          strings.TrimSpace(in.Description),
		DiscountPercent:      in.DiscountPercent,
		DiscountAmount:       in.DiscountAmount,
		MinimumSpend:         in.MinimumSpend,
		ValidFrom:            from,
		ValidTo:              to,
		MaxUses:              in.MaxUses,
		ApplicableDays:       models.NewStringSet(in.ApplicableDays...),
		ApplicableZones:      models.NewStringSet(in.ApplicableZones...),
		ApplicableTableTypes: models.NewStringSet(in.ApplicableTableTypes...),
		IsActive:             true,
	}
	err = s.transaction(ctx, "create promo", func(tx *gorm.DB) error {
		taken, err := codeTaken(tx, code, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicate.withMessage("promo code %s already exists", code).withField("code")
		}
		return tx.Create(promo).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("promo_code", promo.Code).Info("promo code created")
	return promo, nil
}

func (s *PromoService) Update(ctx context.Context, id uint, in PromoInput) (*models.PromoCode, error) {
	code, from, to, err := s.validateInput(in)
	if err != nil {
		return nil, err
	}
	var promo models.PromoCode
	err = s.transaction(ctx, "update promo", func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&promo, id).Error; err != nil {
			return notFound(err, ErrPromoNotFound)
		}
		taken, err := codeTaken(tx, code, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicate.withMessage("promo code %s already exists", code).withField("code")
		}
		if in.MaxUses < promo.CurrentUses {
			return invalidInput("max_uses", "max uses cannot be below the %d uses already redeemed", promo.CurrentUses)
		}
		promo.Code = code
		promo.Description = strings.TrimSpace(in.Description)
		promo.DiscountPercent = in.DiscountPercent
		promo.DiscountAmount = in.DiscountAmount
		promo.MinimumSpend = in.MinimumSpend
		promo.ValidFrom = from
		promo.ValidTo = to
		promo.MaxUses = in.MaxUses
		promo.ApplicableDays = models.NewStringSet(in.ApplicableDays...)
		promo.ApplicableZones = models.NewStringSet(in.ApplicableZones...)
		promo.ApplicableTableTypes = models.NewStringSet(in.ApplicableTableTypes...)
		if in.IsActive != nil {
			promo.IsActive = *in.IsActive
		}
		return tx.Save(&promo).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("promo_code", promo.Code).Info("promo code updated")
	return &promo, nil
}

// Delete removes a code that has never been redeemed.
func (s *PromoService) Delete(ctx context.Context, id uint) error {
	return s.transaction(ctx, "delete promo", func(tx *gorm.DB) error {
		var promo models.PromoCode
		if err := forUpdate(tx).First(&promo, id).Error; err != nil {
			return notFound(err, ErrPromoNotFound)
		}
		if promo.CurrentUses > 0 {
			return ErrPromoInUse
		}
		return tx.Delete(&promo).Error
	})
}

func (s *PromoService) Toggle(ctx context.Context, id uint) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.transaction(ctx, "toggle promo", func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&promo, id).Error; err != nil {
			return notFound(err, ErrPromoNotFound)
		}
		promo.IsActive = !promo.IsActive
		return tx.Model(&promo).UpdateColumn("is_active", promo.IsActive).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"promo_code": promo.Code, "active": promo.IsActive}).Info("promo code toggled")
	return &promo, nil
}

func isPromoRejection(err error) bool {
	return errors.Is(err, ErrPromoInvalid) || errors.Is(err, ErrPromoNotFound)
}
