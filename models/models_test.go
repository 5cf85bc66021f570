package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"19:00", NewTimeOfDay(19, 0), false},
		{"07:30:00", NewTimeOfDay(7, 30), false},
		{"25:00", 0, true},
		{"seven", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestTimeOfDayPastMidnight(t *testing.T) {
	end := NewTimeOfDay(22, 0).Add(3 * time.Hour)
	assert.Equal(t, "25:00", end.String())

	loc := time.FixedZone("ICT", 7*3600)
	date := DateOf(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	at := end.On(date, loc)
	assert.True(t, time.Date(2025, 1, 11, 1, 0, 0, 0, loc).Equal(at), at.String())
}

func TestStartsAtIgnoresDriverZone(t *testing.T) {
	ict := time.FixedZone("ICT", 7*3600)
	est := time.FixedZone("EST", -5*3600)
	stored := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	want := time.Date(2025, 1, 10, 19, 0, 0, 0, ict)

	b := Booking{BookingDate: stored.In(est), StartTime: NewTimeOfDay(19, 0), EndTime: NewTimeOfDay(21, 0)}
	require.Equal(t, 9, b.BookingDate.Day())
	assert.True(t, want.Equal(b.StartsAt(ict)), b.StartsAt(ict).String())
	assert.Equal(t, "2025-01-10", FormatDate(b.BookingDate))

	require.NoError(t, b.AfterFind(nil))
	assert.Equal(t, time.UTC, b.BookingDate.Location())
	assert.True(t, stored.Equal(b.BookingDate))
}

func TestTimeOfDayJSON(t *testing.T) {
	b, err := json.Marshal(NewTimeOfDay(9, 5))
	require.NoError(t, err)
	assert.Equal(t, `"09:05"`, string(b))

	var v TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"21:45"`), &v))
	assert.Equal(t, NewTimeOfDay(21, 45), v)

	require.NoError(t, json.Unmarshal([]byte(`"25:00"`), &v))
	assert.Equal(t, NewTimeOfDay(25, 0), v)

	assert.Error(t, json.Unmarshal([]byte(`"late"`), &v))
}

func TestStringSet(t *testing.T) {
	s := NewStringSet(" VIP ", "vip", "", "Terrace")
	assert.Equal(t, StringSet{"Terrace", "VIP"}, s)
	assert.True(t, s.Allows("terrace"))
	assert.False(t, s.Allows("Bar"))
	assert.True(t, StringSet{}.Allows("anything"))

	v, err := s.Value()
	require.NoError(t, err)
	var back StringSet
	require.NoError(t, back.Scan(v))
	assert.Equal(t, s, back)

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back)
}

func TestBookingStatusTransitions(t *testing.T) {
	assert.True(t, BookingPending.CanTransition(BookingConfirmed))
	assert.True(t, BookingPending.CanTransition(BookingCancelled))
	assert.False(t, BookingPending.CanTransition(BookingCheckedIn))
	assert.True(t, BookingConfirmed.CanTransition(BookingNoShow))
	assert.True(t, BookingCheckedIn.CanTransition(BookingCompleted))
	for _, terminal := range []BookingStatus{BookingCompleted, BookingCancelled, BookingNoShow} {
		for _, next := range []BookingStatus{BookingPending, BookingConfirmed, BookingCheckedIn, BookingCompleted, BookingCancelled, BookingNoShow} {
			assert.False(t, terminal.CanTransition(next), "%s -> %s", terminal, next)
		}
	}
	assert.False(t, BookingStatus("Seated").Valid())
}

func TestPromoDiscount(t *testing.T) {
	base := decimal.NewFromInt(2000)

	pct := PromoCode{DiscountPercent: decimal.NewFromInt(20)}
	assert.True(t, decimal.NewFromInt(400).Equal(pct.Discount(base)))

	fixed := PromoCode{DiscountAmount: decimal.NewFromInt(5000)}
	assert.True(t, base.Equal(fixed.Discount(base)), "fixed discount is capped at the base")

	both := PromoCode{DiscountPercent: decimal.NewFromInt(10), DiscountAmount: decimal.NewFromInt(50)}
	assert.True(t, decimal.NewFromInt(200).Equal(both.Discount(base)), "percent takes precedence")

	assert.True(t, PromoCode{}.Discount(base).IsZero())
}

func TestPromoValidity(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	p := PromoCode{IsActive: true, ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour), MaxUses: 1}
	assert.True(t, p.ValidAt(now))
	assert.True(t, p.ValidAt(p.ValidTo))
	assert.False(t, p.ValidAt(p.ValidTo.Add(time.Second)))
	assert.True(t, p.HasUsesLeft())
	p.CurrentUses = 1
	assert.False(t, p.HasUsesLeft())
	p.MaxUses = 0
	assert.True(t, p.HasUsesLeft())
	assert.Equal(t, "SUMMER10", NormalizePromoCode("  summer10 "))
}

func TestPreOrderItemsRoundTrip(t *testing.T) {
	items := PreOrderItems{{ItemName: "Mojito", Price: decimal.NewFromInt(180), Quantity: 2}}
	v, err := items.Value()
	require.NoError(t, err)

	var back PreOrderItems
	require.NoError(t, back.Scan([]byte(v.(string))))
	require.Len(t, back, 1)
	assert.Equal(t, "Mojito", back[0].ItemName)
	assert.True(t, back[0].Price.Equal(decimal.NewFromInt(180)))

	empty, err := PreOrderItems(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, empty)
}
