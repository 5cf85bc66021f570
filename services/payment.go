package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// PaymentNotification is the body Midtrans posts to the webhook.
type PaymentNotification struct {
	OrderID           string `json:"order_id" binding:"required"`
	StatusCode        string `json:"status_code" binding:"required"`
	GrossAmount       string `json:"gross_amount" binding:"required"`
	SignatureKey      string `json:"signature_key" binding:"required"`
	TransactionStatus string `json:"transaction_status" binding:"required"`
	TransactionID     string `json:"transaction_id"`
	TransactionTime   string `json:"transaction_time"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
}

// SignatureValidator checks that a notification came from the gateway.
type SignatureValidator interface {
	ValidateSignature(orderID, statusCode, grossAmount, signature string) bool
}

var ErrInvalidSignature = &Error{Kind: KindValidation, Code: "invalid_signature", Message: "invalid notification signature"}

// PaymentService applies gateway notifications to bookings.
type PaymentService struct {
	validator SignatureValidator
	bookings  *BookingService
	log       *logrus.Logger
	location  *time.Location
}

func NewPaymentService(validator SignatureValidator, bookings *BookingService, log *logrus.Logger, loc *time.Location) *PaymentService {
	if loc == nil {
		loc = time.UTC
	}
	return &PaymentService{validator: validator, bookings: bookings, log: log, location: loc}
}

// HandleNotification confirms the booking on a successful payment and marks
// the deposit failed on a failed one. Pending notifications change nothing.
func (s *PaymentService) HandleNotification(ctx context.Context, n PaymentNotification) (string, error) {
	if s.validator == nil || !s.validator.ValidateSignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		s.log.WithField("order_id", n.OrderID).Warn("payment notification with invalid signature")
		return "", ErrInvalidSignature
	}

	status := MapTransactionStatus(n.TransactionStatus, n.FraudStatus)
	entry := s.log.WithFields(logrus.Fields{"booking_code": n.OrderID, "transaction_status": n.TransactionStatus, "status": status})
	switch status {
	case TransactionSuccess:
		paidAt := time.Time{}
		if n.TransactionTime != "" {
			// Midtrans reports local wall time without a zone.
			if t, err := time.ParseInLocation("2006-01-02 15:04:05", n.TransactionTime, s.location); err == nil {
				paidAt = t
			}
		}
		if _, err := s.bookings.ConfirmByCode(ctx, n.OrderID, PaymentConfirmation{
			TransactionID: n.TransactionID,
			Method:        n.PaymentType,
			PaidAt:        paidAt,
		}); err != nil {
			entry.WithError(err).Error("could not confirm booking from payment notification")
			return status, err
		}
	case TransactionFailed:
		if err := s.bookings.MarkPaymentFailed(ctx, n.OrderID); err != nil {
			entry.WithError(err).Error("could not record failed payment")
			return status, err
		}
	default:
		entry.Info("payment notification ignored")
		return status, nil
	}
	entry.Info("payment notification applied")
	return status, nil
}
