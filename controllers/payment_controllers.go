package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/bar-booking/services"
	"github.com/yeremiapane/bar-booking/utils"
)

type PaymentController struct {
	Payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{Payments: payments}
}

// HandleNotification is the Midtrans webhook. A bad signature is rejected;
// store failures answer 503 so Midtrans retries the notification.
func (pc *PaymentController) HandleNotification(c *gin.Context) {
	var n services.PaymentNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		bindError(c, err)
		return
	}

	status, err := pc.Payments.HandleNotification(c.Request.Context(), n)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			utils.RespondErrorDetail(c, http.StatusForbidden, services.ErrInvalidSignature.Code, "signature_key", "invalid signature")
			return
		}
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("Payment notification for %s processed: %s", n.OrderID, status)
	utils.RespondJSON(c, http.StatusOK, "Notification processed", gin.H{
		"order_id": n.OrderID,
		"status":   status,
	})
}
