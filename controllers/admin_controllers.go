package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/bar-booking/models"
	"github.com/yeremiapane/bar-booking/services"
	"github.com/yeremiapane/bar-booking/utils"
)

// AdminController serves the staff side of the booking lifecycle.
type AdminController struct {
	Bookings *services.BookingService
	Stats    *services.StatsService
	Sweeper  *services.Sweeper
	Location *time.Location
	Now      func() time.Time
}

func NewAdminController(bookings *services.BookingService, stats *services.StatsService, sweeper *services.Sweeper, loc *time.Location) *AdminController {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminController{Bookings: bookings, Stats: stats, Sweeper: sweeper, Location: loc, Now: time.Now}
}

func (ac *AdminController) ListBookings(c *gin.Context) {
	var q struct {
		Status string `form:"status"`
		Date   string `form:"date"`
		Search string `form:"search"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	filter := services.BookingFilter{
		Status: models.BookingStatus(q.Status),
		Search: q.Search,
	}
	if q.Date != "" {
		d, err := models.ParseDate(q.Date)
		if err != nil {
			utils.RespondErrorDetail(c, http.StatusBadRequest, "invalid_input", "date", "date must be YYYY-MM-DD")
			return
		}
		filter.Date = &d
	}
	bookings, err := ac.Bookings.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Bookings retrieved", bookings)
}

func (ac *AdminController) GetBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	booking, err := ac.Bookings.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking retrieved", booking)
}

type updateBookingRequest struct {
	TableID         *uint   `json:"table_id"`
	BookingDate     *string `json:"booking_date"`
	StartTime       *string `json:"start_time"`
	Duration        *int    `json:"duration"`
	NumberOfGuests  *int    `json:"number_of_guests"`
	Status          *string `json:"status"`
	SpecialRequests *string `json:"special_requests"`
}

func (r updateBookingRequest) input() (services.ModifyBookingInput, string, error) {
	in := services.ModifyBookingInput{
		TableID:         r.TableID,
		DurationHours:   r.Duration,
		NumberOfGuests:  r.NumberOfGuests,
		SpecialRequests: r.SpecialRequests,
	}
	if r.BookingDate != nil {
		d, err := models.ParseDate(*r.BookingDate)
		if err != nil {
			return in, "booking_date", err
		}
		in.BookingDate = &d
	}
	if r.StartTime != nil {
		t, err := models.ParseTimeOfDay(*r.StartTime)
		if err != nil {
			return in, "start_time", err
		}
		in.StartTime = &t
	}
	if r.Status != nil {
		s := models.BookingStatus(strings.TrimSpace(*r.Status))
		in.Status = &s
	}
	return in, "", nil
}

// UpdateBooking applies a staff edit. Omitted fields are left unchanged.
func (ac *AdminController) UpdateBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in, field, err := req.input()
	if err != nil {
		utils.RespondErrorDetail(c, http.StatusBadRequest, services.ErrInvalidTimeRange.Code, field, err.Error())
		return
	}
	booking, err := ac.Bookings.Modify(c.Request.Context(), id, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking updated", booking)
}

func (ac *AdminController) CancelBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	booking, err := ac.Bookings.CancelByStaff(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking cancelled", booking)
}

// CheckIn seats a guest by the code scanned from their QR.
func (ac *AdminController) CheckIn(c *gin.Context) {
	var req struct {
		BookingCode string `json:"booking_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	booking, err := ac.Bookings.CheckIn(c.Request.Context(), strings.TrimSpace(req.BookingCode))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Guest checked in", booking)
}

func (ac *AdminController) CheckOut(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	booking, err := ac.Bookings.CheckOut(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Guest checked out", booking)
}

// ConfirmBooking records a deposit taken outside the payment gateway.
func (ac *AdminController) ConfirmBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		TransactionID string `json:"transaction_id"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "manual"
	}
	booking, err := ac.Bookings.Confirm(c.Request.Context(), id, services.PaymentConfirmation{
		TransactionID: req.TransactionID,
		Method:        req.PaymentMethod,
		PaidAt:        ac.Now(),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking confirmed", booking)
}

// Dashboard summarises one date, today in the service location by default.
func (ac *AdminController) Dashboard(c *gin.Context) {
	date := ac.Now().In(ac.Location)
	if q := c.Query("date"); q != "" {
		d, err := models.ParseDate(q)
		if err != nil {
			utils.RespondErrorDetail(c, http.StatusBadRequest, "invalid_input", "date", "date must be YYYY-MM-DD")
			return
		}
		date = d
	}
	stats, err := ac.Stats.Dashboard(c.Request.Context(), date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dashboard stats retrieved", stats)
}

// Sweep runs the no-show and reminder sweeps now.
func (ac *AdminController) Sweep(c *gin.Context) {
	res, err := ac.Sweeper.RunOnce(c.Request.Context())
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("manual sweep failed")
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sweep finished", res)
}
