package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
)

// PaymentMetrics counts reconciliation outcomes since start.
type PaymentMetrics struct {
	Checked   int64 `json:"checked"`
	Confirmed int64 `json:"confirmed"`
	Failed    int64 `json:"failed"`
	Pending   int64 `json:"pending"`
	Errors    int64 `json:"errors"`
}

// StatusChecker asks the gateway for the current status of an order.
type StatusChecker interface {
	CheckTransactionStatus(ctx context.Context, orderID string) (string, error)
}

// PaymentMonitor polls the gateway for deposits still Pending on Pending
// bookings, covering webhooks that never arrived.
type PaymentMonitor struct {
	db       *gorm.DB
	log      *logrus.Logger
	checker  StatusChecker
	bookings *BookingService
	interval time.Duration
	// only deposits older than this are polled; newer ones wait for the webhook
	minAge time.Duration
	now    func() time.Time

	metrics PaymentMetrics
	mutex   sync.Mutex
}

func NewPaymentMonitor(db *gorm.DB, log *logrus.Logger, checker StatusChecker, bookings *BookingService, interval time.Duration) *PaymentMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PaymentMonitor{
		db:       db,
		log:      log,
		checker:  checker,
		bookings: bookings,
		interval: interval,
		minAge:   10 * time.Minute,
		now:      time.Now,
	}
}

func (pm *PaymentMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(pm.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				pm.Reconcile(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	pm.log.Info("payment monitor started")
}

// Reconcile checks every stale pending deposit once.
func (pm *PaymentMonitor) Reconcile(ctx context.Context) {
	var pending []struct {
		BookingCode string
	}
	err := pm.db.WithContext(ctx).
		Table("payments").
		Select("bookings.booking_code").
		Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Where("payments.payment_status = ? AND bookings.status = ?", string(models.PaymentPending), string(models.BookingPending)).
		Where("payments.payment_method = ?", "midtrans").
		Where("payments.created_at <= ?", pm.now().Add(-pm.minAge).UTC()).
		Limit(100).
		Scan(&pending).Error
	if err != nil {
		pm.log.WithError(err).Error("payment monitor: could not load pending deposits")
		return
	}

	for _, p := range pending {
		pm.check(ctx, p.BookingCode)
	}
}

func (pm *PaymentMonitor) check(ctx context.Context, code string) {
	entry := pm.log.WithField("booking_code", code)
	status, err := pm.checker.CheckTransactionStatus(ctx, code)
	if err != nil {
		entry.WithError(err).Warn("payment monitor: status check failed")
		pm.updateMetrics("error")
		return
	}

	switch status {
	case TransactionSuccess:
		_, err = pm.bookings.ConfirmByCode(ctx, code, PaymentConfirmation{Method: "midtrans"})
	case TransactionFailed:
		err = pm.bookings.MarkPaymentFailed(ctx, code)
	}
	if err != nil {
		entry.WithError(err).Error("payment monitor: could not apply status")
		pm.updateMetrics("error")
		return
	}
	pm.updateMetrics(status)
}

func (pm *PaymentMonitor) updateMetrics(status string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.metrics.Checked++
	switch status {
	case TransactionSuccess:
		pm.metrics.Confirmed++
	case TransactionFailed:
		pm.metrics.Failed++
	case TransactionPending:
		pm.metrics.Pending++
	case "error":
		pm.metrics.Errors++
	}
}

// GetMetrics mengembalikan metrik pembayaran saat ini
func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	return pm.metrics
}
