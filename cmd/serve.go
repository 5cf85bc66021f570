package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/yeremiapane/bar-booking/router"
	"github.com/yeremiapane/bar-booking/services"
	"github.com/yeremiapane/bar-booking/utils"
)

func newServeCmd() *cobra.Command {
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			gateway, midtrans, err := a.gateway()
			if err != nil {
				return err
			}
			notifier := a.notifier()

			bookings := services.NewBookingService(a.db, a.log, a.policy, gateway, notifier)
			sweeper := services.NewSweeper(a.db, a.log, a.policy, notifier, a.sweepLock(), a.cfg.SweepInterval)
			if !noSweep {
				sweeper.Start(ctx)
				defer sweeper.Stop()
			}

			var payments *services.PaymentService
			if midtrans != nil {
				payments = services.NewPaymentService(midtrans, bookings, a.log, a.policy.Location)
				services.NewPaymentMonitor(a.db, a.log, midtrans, bookings, 0).Start(ctx)
			}

			gin.SetMode(a.cfg.GinMode)
			r := router.SetupRouter(router.Deps{
				DB:             a.db,
				Log:            a.log,
				Tokens:         utils.NewTokenManager(a.cfg.JWTSecret, a.cfg.JWTTTL),
				Policy:         a.policy,
				Availability:   services.NewAvailabilityService(a.db, a.log, a.policy),
				Bookings:       bookings,
				Promos:         services.NewPromoService(a.db, a.log, a.policy),
				Catalog:        services.NewCatalogService(a.db, a.log, a.policy),
				Stats:          services.NewStatsService(a.db, a.log, a.policy),
				Sweeper:        sweeper,
				Payments:       payments,
				Notifications:  a.store,
				Hub:            a.hub,
				CORSOrigin:     a.cfg.CORSOrigin,
				HSTS:           a.cfg.IsProduction(),
				RateLimitRPS:   a.cfg.RateLimitRPS,
				RateLimitBurst: a.cfg.RateLimitBurst,
			})

			srv := &http.Server{
				Addr:              ":" + a.cfg.Port,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.log.WithField("port", a.cfg.Port).Info("server starting")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "do not run the no-show and reminder sweeps in this process")
	return cmd
}
