package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/config"
	"github.com/yeremiapane/bar-booking/database"
	"github.com/yeremiapane/bar-booking/notify"
	"github.com/yeremiapane/bar-booking/services"
	"github.com/yeremiapane/bar-booking/utils"
)

// app is the wiring shared by the commands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	db      *gorm.DB
	policy  services.Policy
	hub     *notify.Hub
	store   *notify.StoreNotifier
	closers []func() error
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	utils.InitLogger()
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := config.InitDB(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db, log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	policy := services.DefaultPolicy(cfg.Location())
	policy.CommitTimeout = cfg.CommitTimeout

	hub := notify.NewHub(log)
	a := &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		policy: policy,
		hub:    hub,
		store:  notify.NewStoreNotifier(db, log, hub),
	}
	a.closers = append(a.closers, func() error { hub.Close(); return nil })
	return a, nil
}

// notifier fans events out to the persisted feed and any configured broker.
// A broker that cannot be reached is logged and skipped.
func (a *app) notifier() services.Notifier {
	multi := notify.Multi{a.store}
	if a.cfg.RabbitMQURL != "" {
		p, err := notify.NewAMQPPublisher(a.cfg.RabbitMQURL, a.cfg.RabbitMQQueue, a.log)
		if err != nil {
			a.log.WithError(err).Warn("rabbitmq unavailable, events will not be published there")
		} else {
			multi = append(multi, p)
			a.closers = append(a.closers, p.Close)
		}
	}
	if len(a.cfg.KafkaBrokers) > 0 {
		p := notify.NewKafkaPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.log)
		multi = append(multi, p)
		a.closers = append(a.closers, p.Close)
	}
	return multi
}

func (a *app) sweepLock() services.SweepLock {
	client := config.NewRedisClient(a.cfg)
	if client == nil {
		if a.cfg.RedisAddr != "" {
			a.log.Warn("redis unreachable, sweeping without a lock")
		}
		return nil
	}
	a.closers = append(a.closers, client.Close)
	return services.NewRedisSweepLock(client)
}

func (a *app) gateway() (services.DepositGateway, *services.MidtransGateway, error) {
	if !a.cfg.MidtransEnabled() {
		a.log.Info("midtrans not configured, deposits are confirmed manually")
		return services.ManualGateway{}, nil, nil
	}
	mg := services.NewMidtransGateway(&services.MidtransConfig{
		ServerKey:    a.cfg.MidtransServerKey,
		ClientKey:    a.cfg.MidtransClientKey,
		IsProduction: a.cfg.MidtransEnv == "production",
		WebhookURL:   a.cfg.MidtransWebhookURL,
	})
	if err := mg.ValidateConfig(); err != nil {
		return nil, nil, err
	}
	return mg, mg, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("shutdown")
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
