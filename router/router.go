package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/controllers"
	"github.com/yeremiapane/bar-booking/middlewares"
	"github.com/yeremiapane/bar-booking/models"
	"github.com/yeremiapane/bar-booking/notify"
	"github.com/yeremiapane/bar-booking/services"
	"github.com/yeremiapane/bar-booking/utils"
)

// Deps is everything the HTTP layer needs. Payments is nil when no payment
// gateway is configured; the webhook is not mounted then.
type Deps struct {
	DB            *gorm.DB
	Log           *logrus.Logger
	Tokens        *utils.TokenManager
	Policy        services.Policy
	Availability  *services.AvailabilityService
	Bookings      *services.BookingService
	Promos        *services.PromoService
	Catalog       *services.CatalogService
	Stats         *services.StatsService
	Sweeper       *services.Sweeper
	Payments      *services.PaymentService
	Notifications controllers.NotificationStore
	Hub           *notify.Hub

	CORSOrigin     string
	HSTS           bool
	RateLimitRPS   float64
	RateLimitBurst int
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.SecurityHeaders(d.HSTS))
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware(d.Log))
	if d.RateLimitRPS > 0 {
		r.Use(middlewares.NewRateLimiter(rate.Limit(d.RateLimitRPS), d.RateLimitBurst).RateLimit())
	}

	userCtrl := controllers.NewUserController(d.DB, d.Tokens)
	tableCtrl := controllers.NewTableController(d.Catalog, d.Availability)
	bookingCtrl := controllers.NewBookingController(d.Bookings)
	promoCtrl := controllers.NewPromoController(d.Promos, d.Catalog)
	adminCtrl := controllers.NewAdminController(d.Bookings, d.Stats, d.Sweeper, d.Policy.Location)
	if d.Policy.Now != nil {
		adminCtrl.Now = d.Policy.Now
	}
	notificationCtrl := controllers.NewNotificationController(d.Notifications)
	wsCtrl := controllers.NewWebSocketController(d.Hub, d.CORSOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Rate limiter untuk login/register
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter().RateLimit())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	r.GET("/branches", tableCtrl.ListBranches)
	r.GET("/branches/:branch_id/tables", tableCtrl.ListBranchTables)
	r.GET("/availability", tableCtrl.Availability)
	r.POST("/promos/validate", promoCtrl.ValidatePromo)

	if d.Payments != nil {
		paymentCtrl := controllers.NewPaymentController(d.Payments)
		r.POST("/payments/notification", paymentCtrl.HandleNotification)
	}

	// ----------------------------------------------------------------
	//                      CUSTOMER ROUTES
	// ----------------------------------------------------------------
	customer := r.Group("/")
	customer.Use(middlewares.AuthMiddleware(d.Tokens))
	{
		customer.GET("/profile", userCtrl.GetProfile)
		customer.POST("/bookings", bookingCtrl.CreateBooking)
		customer.GET("/bookings", bookingCtrl.ListMyBookings)
		customer.GET("/bookings/:booking_id", bookingCtrl.GetMyBooking)
		customer.POST("/bookings/:booking_id/cancel", bookingCtrl.CancelMyBooking)
		customer.GET("/bookings/:booking_id/qr", bookingCtrl.BookingQR)
	}

	// ----------------------------------------------------------------
	//                      STAFF / ADMIN ROUTES
	// ----------------------------------------------------------------
	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware(d.Tokens), middlewares.RequireRoles(models.RoleStaff))

	// BOOKINGS
	admin.GET("/bookings", adminCtrl.ListBookings)
	admin.GET("/bookings/:id", adminCtrl.GetBooking)
	admin.PATCH("/bookings/:id", adminCtrl.UpdateBooking)
	admin.POST("/bookings/:id/cancel", adminCtrl.CancelBooking)
	admin.POST("/bookings/:id/confirm", adminCtrl.ConfirmBooking)
	admin.POST("/bookings/:id/check-out", adminCtrl.CheckOut)
	admin.POST("/check-in", adminCtrl.CheckIn)

	// TABLES & BRANCHES
	admin.GET("/tables", tableCtrl.ListTables)
	admin.GET("/tables/:id", tableCtrl.GetTable)
	admin.POST("/tables", tableCtrl.CreateTable)
	admin.PATCH("/tables/:id", tableCtrl.UpdateTable)
	admin.DELETE("/tables/:id", tableCtrl.DeleteTable)
	admin.POST("/branches", tableCtrl.CreateBranch)

	// PROMO CODES
	admin.GET("/promos", promoCtrl.ListPromos)
	admin.GET("/promos/:id", promoCtrl.GetPromo)
	admin.POST("/promos", promoCtrl.CreatePromo)
	admin.PATCH("/promos/:id", promoCtrl.UpdatePromo)
	admin.POST("/promos/:id/toggle", promoCtrl.TogglePromo)
	admin.DELETE("/promos/:id", promoCtrl.DeletePromo)

	// DASHBOARD, NOTIFICATIONS, SWEEP
	admin.GET("/dashboard/stats", adminCtrl.Dashboard)
	admin.GET("/notifications", notificationCtrl.ListNotifications)
	admin.PATCH("/notifications/:id/read", notificationCtrl.MarkRead)
	admin.POST("/sweep", adminCtrl.Sweep)

	// WebSocket feed; browsers cannot set headers on the upgrade request.
	ws := r.Group("/admin/ws")
	ws.Use(middlewares.WebSocketAuthMiddleware(d.Tokens), middlewares.RequireRoles(models.RoleStaff))
	{
		ws.GET("", wsCtrl.Stream)
	}

	return r
}
