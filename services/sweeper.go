package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
)

const sweepLockKey = "bar-booking:sweep"

// SweepLock makes sure a single instance sweeps at a time.
type SweepLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// RedisSweepLock is a SETNX lock with a random token; release only deletes
// the key while it still holds that token.
type RedisSweepLock struct {
	client *redis.Client
	key    string
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisSweepLock(client *redis.Client) *RedisSweepLock {
	return &RedisSweepLock{client: client, key: sweepLockKey}
}

func (l *RedisSweepLock) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}

type SweepResult struct {
	NoShows   int  `json:"no_shows"`
	Reminders int  `json:"reminders"`
	Skipped   bool `json:"skipped,omitempty"`
}

// Sweeper runs the time-driven transitions: no-shows and reminders. Both
// sweeps are functions of the given instant and the store, and running them
// twice changes nothing the second time.
type Sweeper struct {
	store
	policy   Policy
	notifier Notifier
	lock     SweepLock
	Interval time.Duration
	StopChan chan struct{}
}

func NewSweeper(db *gorm.DB, log *logrus.Logger, policy Policy, notifier Notifier, lock SweepLock, interval time.Duration) *Sweeper {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Sweeper{
		store:    newStore(db, log, policy.CommitTimeout),
		policy:   policy,
		notifier: notifier,
		lock:     lock,
		Interval: interval,
		StopChan: make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.log.WithError(err).Error("sweep failed")
				}
			case <-s.StopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.StopChan)
}

// RunOnce sweeps at the policy's current time, holding the lock if one is
// configured. When another instance holds it the run is skipped.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx, s.Interval)
		if err != nil {
			return SweepResult{}, err
		}
		if !ok {
			s.log.Debug("sweep lock held elsewhere, skipping")
			return SweepResult{Skipped: true}, nil
		}
		defer release()
	}
	return s.Sweep(ctx, s.policy.now())
}

func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	var errs []error

	n, err := s.SweepNoShows(ctx, now)
	res.NoShows = n
	if err != nil {
		errs = append(errs, err)
	}
	n, err = s.SweepReminders(ctx, now)
	res.Reminders = n
	if err != nil {
		errs = append(errs, err)
	}
	if res.NoShows > 0 || res.Reminders > 0 {
		s.log.WithFields(logrus.Fields{"no_shows": res.NoShows, "reminders": res.Reminders}).Info("sweep finished")
	}
	return res, errors.Join(errs...)
}

// SweepNoShows flips Confirmed bookings that started at least the grace
// period ago to NoShow.
func (s *Sweeper) SweepNoShows(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.policy.NoShowGrace)
	candidates, err := s.confirmedBetween(ctx, time.Time{}, s.policy.today(cutoff), false)
	if err != nil {
		return 0, err
	}

	flipped := 0
	for i := range candidates {
		b := candidates[i]
		if b.StartsAt(s.policy.Location).After(cutoff) {
			continue
		}
		at := now.UTC()
		var ok bool
		err := s.transaction(ctx, "no-show", func(tx *gorm.DB) error {
			var err error
			ok, err = transition(tx, &b, models.BookingNoShow, map[string]interface{}{"modified_at": at})
			return err
		})
		if err != nil {
			return flipped, err
		}
		if !ok {
			continue
		}
		flipped++
		s.log.WithField("booking_code", b.BookingCode).Info("booking marked as no-show")
		if err := s.notifier.Admin(ctx, fmt.Sprintf("Booking %s marked as no-show (%s %s)",
			b.BookingCode, models.FormatDate(b.BookingDate), b.StartTime)); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"event": "no_show", "booking_code": b.BookingCode}).Warn("notification failed")
		}
	}
	return flipped, nil
}

// SweepReminders sends one reminder per Confirmed booking starting within the
// reminder lead. The flag is claimed before sending so a reminder is never
// sent twice, at the cost of a lost reminder if delivery fails.
func (s *Sweeper) SweepReminders(ctx context.Context, now time.Time) (int, error) {
	horizon := now.Add(s.policy.ReminderLead)
	candidates, err := s.confirmedBetween(ctx, s.policy.today(now).AddDate(0, 0, -1), s.policy.today(horizon), true)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range candidates {
		b := candidates[i]
		startsAt := b.StartsAt(s.policy.Location)
		if !startsAt.After(now) || startsAt.After(horizon) {
			continue
		}
		var claimed bool
		err := s.transaction(ctx, "reminder", func(tx *gorm.DB) error {
			res := tx.Model(&models.Booking{}).
				Where("id = ? AND status = ? AND reminder_sent = ?", b.ID, string(models.BookingConfirmed), false).
				Update("reminder_sent", true)
			claimed = res.RowsAffected == 1
			return res.Error
		})
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}
		b.ReminderSent = true
		sent++
		if err := s.notifier.BookingReminder(ctx, &b); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"event": "reminder", "booking_code": b.BookingCode}).Warn("notification failed")
		}
	}
	return sent, nil
}

// confirmedBetween loads Confirmed bookings dated within [from, to]. A zero
// from means no lower bound.
func (s *Sweeper) confirmedBetween(ctx context.Context, from, to time.Time, unremindedOnly bool) ([]models.Booking, error) {
	db, cancel := s.read(ctx)
	defer cancel()

	q := db.Where("status = ?", string(models.BookingConfirmed)).
		Where("booking_date < ?", to.AddDate(0, 0, 1))
	if !from.IsZero() {
		q = q.Where("booking_date >= ?", from)
	}
	if unremindedOnly {
		q = q.Where("reminder_sent = ?", false)
	}
	var bookings []models.Booking
	if err := q.Order("booking_date ASC").Order("start_time ASC").Find(&bookings).Error; err != nil {
		return nil, s.fail("load sweep candidates", err)
	}
	return bookings, nil
}
