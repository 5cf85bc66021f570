package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/bar-booking/models"
)

func TestCreateAppliesPercentPromo(t *testing.T) {
	f := newFixture(t)
	promo := f.addPromo(t, models.PromoCode{Code: "SAVE20", DiscountPercent: dec("20"), MaxUses: 5})

	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), " save20 ")
	require.NoError(t, err)
	assert.True(t, b.DiscountAmount.Equal(dec("400")))
	assert.True(t, b.TotalAmount.Equal(dec("1600")))
	assert.True(t, b.DepositAmount.Equal(dec("480")))
	require.NotNil(t, b.PromoCode)
	assert.Equal(t, "SAVE20", *b.PromoCode)

	var reloaded models.PromoCode
	require.NoError(t, f.db.First(&reloaded, promo.ID).Error)
	assert.Equal(t, 1, reloaded.CurrentUses)
}

func TestCreateCapsFixedPromoAtTotal(t *testing.T) {
	f := newFixture(t)
	f.addPromo(t, models.PromoCode{Code: "BIG", DiscountAmount: dec("2500")})

	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "BIG")
	require.NoError(t, err)
	assert.True(t, b.DiscountAmount.Equal(dec("2000")))
	assert.True(t, b.TotalAmount.IsZero())
	assert.True(t, b.DepositAmount.IsZero())
}

func promoWarnings(f *fixture) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["promo_invalid"] == true {
			out = append(out, e)
		}
	}
	return out
}

func TestRejectedPromoBooksAtFullPrice(t *testing.T) {
	tests := []struct {
		name   string
		promo  models.PromoCode
		code   string
		reason string
	}{
		{"unknown", models.PromoCode{Code: "OTHER", DiscountPercent: dec("10")}, "NOPE", "promo code not found"},
		{"expired", models.PromoCode{Code: "OLD", DiscountPercent: dec("10"), ValidTo: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)}, "OLD", "promo code has expired"},
		{"not started", models.PromoCode{Code: "SOON", DiscountPercent: dec("10"), ValidFrom: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}, "SOON", "promo code is not valid yet"},
		{"used up", models.PromoCode{Code: "GONE", DiscountPercent: dec("10"), MaxUses: 3, CurrentUses: 3}, "GONE", "promo code has been fully redeemed"},
		{"minimum spend", models.PromoCode{Code: "SPEND", DiscountPercent: dec("10"), MinimumSpend: dec("5000")}, "SPEND", "minimum spend not reached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addPromo(t, tt.promo)

			b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), tt.code)
			require.NoError(t, err)
			assert.True(t, b.TotalAmount.Equal(dec("2000")))
			assert.True(t, b.DiscountAmount.IsZero())
			assert.Nil(t, b.PromoCode)

			warnings := promoWarnings(f)
			require.Len(t, warnings, 1)
			assert.Contains(t, warnings[0].Data["reason"], tt.reason)
		})
	}
}

func TestInactivePromoRejected(t *testing.T) {
	f := newFixture(t)
	promo := f.addPromo(t, models.PromoCode{Code: "OFF", DiscountPercent: dec("10")})
	require.NoError(t, f.db.Model(&promo).Update("is_active", false).Error)

	b, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "OFF")
	require.NoError(t, err)
	assert.Nil(t, b.PromoCode)
	assert.Len(t, promoWarnings(f), 1)
}

func TestPromoLastUseGoesToOneBooking(t *testing.T) {
	f := newFixture(t)
	other := f.addTable(t, "U", "Outdoor", 6, 2000, 0)
	promo := f.addPromo(t, models.PromoCode{Code: "ONCE", DiscountPercent: dec("50"), MaxUses: 1})

	first, err := f.create(t, f.table, f.slot("2025-01-10", "19:00", 2, 4, ""), "ONCE")
	require.NoError(t, err)
	second, err := f.create(t, other, f.slot("2025-01-10", "19:00", 2, 4, ""), "ONCE")
	require.NoError(t, err)

	assert.NotNil(t, first.PromoCode)
	assert.Nil(t, second.PromoCode)
	var reloaded models.PromoCode
	require.NoError(t, f.db.First(&reloaded, promo.ID).Error)
	assert.Equal(t, 1, reloaded.CurrentUses)
}

func TestValidateExtendedTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPromo(t, models.PromoCode{
		Code:                 "FRIDAY",
		DiscountPercent:      dec("15"),
		MinimumSpend:         dec("1000"),
		ApplicableDays:       models.NewStringSet("Friday"),
		ApplicableZones:      models.NewStringSet("Outdoor"),
		ApplicableTableTypes: models.NewStringSet("Standard"),
	})
	friday := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	promo, discount, err := f.promos.Validate(ctx, "friday", PromoContext{BaseSpend: dec("2000"), Date: friday, Zone: "outdoor", TableType: "standard"})
	require.NoError(t, err)
	assert.Equal(t, "FRIDAY", promo.Code)
	assert.True(t, discount.Equal(dec("300")))

	rejections := []PromoContext{
		{BaseSpend: dec("999.99"), Date: friday},
		{BaseSpend: dec("2000"), Date: friday.AddDate(0, 0, 1)},
		{BaseSpend: dec("2000"), Date: friday, Zone: "VIP"},
		{BaseSpend: dec("2000"), Date: friday, TableType: "Booth"},
	}
	for _, pc := range rejections {
		_, _, err := f.promos.Validate(ctx, "FRIDAY", pc)
		assert.True(t, errors.Is(err, ErrPromoInvalid), "%+v", pc)
		assert.Equal(t, KindValidation, KindOf(err))
	}

	_, err = f.promos.ValidateBasic(ctx, "MISSING")
	assert.True(t, errors.Is(err, ErrPromoNotFound))
}

func TestInertPromoValidatesWithWarning(t *testing.T) {
	f := newFixture(t)
	f.addPromo(t, models.PromoCode{Code: "ZERO"})

	_, discount, err := f.promos.Validate(context.Background(), "ZERO", PromoContext{BaseSpend: dec("2000")})
	require.NoError(t, err)
	assert.True(t, discount.IsZero())
	require.NotNil(t, f.hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, f.hook.LastEntry().Level)
}

func validPromoInput() PromoInput {
	return PromoInput{
		Code:            "happy hour",
		Description:     "Early evening",
		DiscountPercent: dec("10"),
		ValidFrom:       "2025-01-01",
		ValidTo:         "2025-01-31",
		MaxUses:         10,
		ApplicableDays:  []string{"monday", "Monday", " Tuesday "},
	}
}

func TestPromoAdminRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(*PromoInput)
		field string
	}{
		{"short code", func(in *PromoInput) { in.Code = "ab" }, "code"},
		{"long code", func(in *PromoInput) { in.Code = "ABCDEFGHIJKLMNOPQRSTU" }, "code"},
		{"no description", func(in *PromoInput) { in.Description = " " }, "description"},
		{"no uses", func(in *PromoInput) { in.MaxUses = 0 }, "max_uses"},
		{"both discounts", func(in *PromoInput) { in.DiscountAmount = dec("100") }, "discount"},
		{"no discount", func(in *PromoInput) { in.DiscountPercent = decimal.Zero }, "discount"},
		{"over 100 percent", func(in *PromoInput) { in.DiscountPercent = dec("101") }, "discount_percent"},
		{"bad date", func(in *PromoInput) { in.ValidFrom = "01/01/2025" }, "valid_from"},
		{"reversed dates", func(in *PromoInput) { in.ValidTo = "2024-12-31" }, "valid_to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validPromoInput()
			tt.edit(&in)
			_, err := f.promos.Create(ctx, in)
			require.Error(t, err)
			e, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, KindValidation, e.Kind)
			assert.Equal(t, tt.field, e.Field)
		})
	}

	promo, err := f.promos.Create(ctx, validPromoInput())
	require.NoError(t, err)
	assert.Equal(t, "HAPPY HOUR", promo.Code)
	assert.Equal(t, models.StringSet{"Tuesday", "monday"}, promo.ApplicableDays)
	assert.True(t, promo.ValidFrom.Equal(time.Date(2024, 12, 31, 17, 0, 0, 0, time.UTC)))
	assert.True(t, promo.ValidTo.Equal(time.Date(2025, 1, 31, 16, 59, 59, 999999999, time.UTC)))

	dup := validPromoInput()
	dup.Code = "Happy Hour"
	_, err = f.promos.Create(ctx, dup)
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestPromoUpdateToggleDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	promo, err := f.promos.Create(ctx, validPromoInput())
	require.NoError(t, err)

	in := validPromoInput()
	in.DiscountPercent = decimal.Zero
	in.DiscountAmount = dec("250")
	updated, err := f.promos.Update(ctx, promo.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.DiscountAmount.Equal(dec("250")))

	toggled, err := f.promos.Toggle(ctx, promo.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
	got, err := f.promos.Get(ctx, promo.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, f.db.Model(&models.PromoCode{}).Where("id = ?", promo.ID).Update("current_uses", 1).Error)
	assert.True(t, errors.Is(f.promos.Delete(ctx, promo.ID), ErrPromoInUse))

	require.NoError(t, f.db.Model(&models.PromoCode{}).Where("id = ?", promo.ID).Update("current_uses", 5).Error)
	in.MaxUses = 1
	_, err = f.promos.Update(ctx, promo.ID, in)
	require.Error(t, err)
	svcErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrInvalidInput.Code, svcErr.Code)
	assert.Equal(t, "max_uses", svcErr.Field)
	got, err = f.promos.Get(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.CurrentUses)
	assert.NotEqual(t, 1, got.MaxUses)

	in.MaxUses = 5
	_, err = f.promos.Update(ctx, promo.ID, in)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.PromoCode{}).Where("id = ?", promo.ID).Update("current_uses", 0).Error)
	require.NoError(t, f.promos.Delete(ctx, promo.ID))
	_, err = f.promos.Get(ctx, promo.ID)
	assert.True(t, errors.Is(err, ErrPromoNotFound))

	promos, err := f.promos.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, promos)
}
