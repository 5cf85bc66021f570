package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/bar-booking/middlewares"
	"github.com/yeremiapane/bar-booking/models"
	"github.com/yeremiapane/bar-booking/services"
	"github.com/yeremiapane/bar-booking/utils"
)

const qrSize = 256

type BookingController struct {
	Bookings *services.BookingService
}

func NewBookingController(bookings *services.BookingService) *BookingController {
	return &BookingController{Bookings: bookings}
}

type createBookingRequest struct {
	BranchID        uint                 `json:"branch_id" binding:"required"`
	TableID         uint                 `json:"table_id" binding:"required"`
	BookingDate     string               `json:"booking_date" binding:"required"`
	StartTime       string               `json:"start_time" binding:"required"`
	Duration        int                  `json:"duration" binding:"required"`
	NumberOfGuests  int                  `json:"number_of_guests" binding:"required"`
	PromoCode       string               `json:"promo_code"`
	SpecialRequests string               `json:"special_requests"`
	PreOrderItems   models.PreOrderItems `json:"pre_order_items"`
}

// CreateBooking books a table for the authenticated customer and starts the
// deposit payment.
func (bc *BookingController) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	slot, err := services.ParseSlot(req.BranchID, req.BookingDate, req.StartTime, req.Duration, req.NumberOfGuests, "")
	if err != nil {
		respondServiceError(c, err)
		return
	}

	userID, _ := middlewares.CurrentUser(c)
	booking, err := bc.Bookings.Create(c.Request.Context(), services.CreateBookingInput{
		UserID:          userID,
		TableID:         req.TableID,
		Slot:            slot,
		PromoCode:       req.PromoCode,
		SpecialRequests: req.SpecialRequests,
		PreOrderItems:   req.PreOrderItems,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("Booking %s created by user %d", booking.BookingCode, userID)
	data := gin.H{"booking": booking}
	if booking.Payment != nil && booking.Payment.PaymentURL != "" {
		data["payment_url"] = booking.Payment.PaymentURL
	}
	utils.RespondJSON(c, http.StatusCreated, "Booking created", data)
}

func (bc *BookingController) ListMyBookings(c *gin.Context) {
	userID, _ := middlewares.CurrentUser(c)
	bookings, err := bc.Bookings.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Bookings retrieved", bookings)
}

func (bc *BookingController) GetMyBooking(c *gin.Context) {
	id, ok := paramID(c, "booking_id")
	if !ok {
		return
	}
	userID, _ := middlewares.CurrentUser(c)
	booking, err := bc.Bookings.GetForUser(c.Request.Context(), userID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking retrieved", booking)
}

func (bc *BookingController) CancelMyBooking(c *gin.Context) {
	id, ok := paramID(c, "booking_id")
	if !ok {
		return
	}
	userID, _ := middlewares.CurrentUser(c)
	booking, err := bc.Bookings.CancelByCustomer(c.Request.Context(), userID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking cancelled", booking)
}

// BookingQR serves the booking code as a PNG for check-in at the door.
func (bc *BookingController) BookingQR(c *gin.Context) {
	id, ok := paramID(c, "booking_id")
	if !ok {
		return
	}
	userID, _ := middlewares.CurrentUser(c)
	booking, err := bc.Bookings.GetForUser(c.Request.Context(), userID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	png, err := services.BookingQR(booking.BookingCode, qrSize)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
