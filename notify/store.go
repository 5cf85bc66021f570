package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
	"github.com/yeremiapane/bar-booking/services"
)

// StoreNotifier persists every notification and pushes it to the staff hub.
type StoreNotifier struct {
	db  *gorm.DB
	log *logrus.Logger
	hub *Hub
}

func NewStoreNotifier(db *gorm.DB, log *logrus.Logger, hub *Hub) *StoreNotifier {
	return &StoreNotifier{db: db, log: log, hub: hub}
}

var titles = map[string]string{
	EventBookingConfirmed: "Booking confirmed",
	EventBookingReminder:  "Booking reminder",
	EventBookingCancelled: "Booking cancelled",
}

func (n *StoreNotifier) booking(ctx context.Context, typ string, b *models.Booking) error {
	e := bookingEvent(typ, b)
	title := titles[typ]
	userID, bookingID := b.UserID, b.ID
	return n.record(ctx, e, &models.Notification{
		UserID:    &userID,
		BookingID: &bookingID,
		Title:     &title,
	})
}

func (n *StoreNotifier) BookingConfirmed(ctx context.Context, b *models.Booking) error {
	return n.booking(ctx, EventBookingConfirmed, b)
}

func (n *StoreNotifier) BookingReminder(ctx context.Context, b *models.Booking) error {
	return n.booking(ctx, EventBookingReminder, b)
}

func (n *StoreNotifier) BookingCancelled(ctx context.Context, b *models.Booking) error {
	return n.booking(ctx, EventBookingCancelled, b)
}

func (n *StoreNotifier) Admin(ctx context.Context, text string) error {
	return n.record(ctx, adminEvent(text), &models.Notification{})
}

func (n *StoreNotifier) record(ctx context.Context, e Event, notif *models.Notification) error {
	notif.EventID = e.ID
	notif.Event = e.Type
	notif.Message = e.Message
	notif.CreatedAt = e.OccurredAt
	if err := n.db.WithContext(ctx).Create(notif).Error; err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	if n.hub != nil {
		n.hub.Broadcast(Message{Event: e.Type, Data: notif})
	}
	return nil
}

// List returns the newest notifications first.
func (n *StoreNotifier) List(ctx context.Context, limit int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := n.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var notifs []models.Notification
	if err := q.Find(&notifs).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifs, nil
}

func (n *StoreNotifier) MarkRead(ctx context.Context, id uint) error {
	res := n.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := n.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("mark notification read: %w", err)
		}
		if count == 0 {
			return services.ErrNotificationNotFound
		}
	}
	return nil
}

// Multi fans a notification out to every notifier. All are attempted; their
// errors are joined.
type Multi []services.Notifier

func (m Multi) each(send func(services.Notifier) error) error {
	var errs []error
	for _, n := range m {
		if err := send(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) BookingConfirmed(ctx context.Context, b *models.Booking) error {
	return m.each(func(n services.Notifier) error { return n.BookingConfirmed(ctx, b) })
}

func (m Multi) BookingReminder(ctx context.Context, b *models.Booking) error {
	return m.each(func(n services.Notifier) error { return n.BookingReminder(ctx, b) })
}

func (m Multi) BookingCancelled(ctx context.Context, b *models.Booking) error {
	return m.each(func(n services.Notifier) error { return n.BookingCancelled(ctx, b) })
}

func (m Multi) Admin(ctx context.Context, text string) error {
	return m.each(func(n services.Notifier) error { return n.Admin(ctx, text) })
}

var (
	_ services.Notifier = (*StoreNotifier)(nil)
	_ services.Notifier = (*AMQPPublisher)(nil)
	_ services.Notifier = (*KafkaPublisher)(nil)
	_ services.Notifier = Multi(nil)
)
