package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"tripbroker/internal/domain"
	"tripbroker/internal/handler"
	"tripbroker/internal/middleware"
	internalRedis "tripbroker/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	AuthHandler     *handler.AuthHandler
	CustomerHandler *handler.CustomerHandler
	DriverHandler   *handler.DriverHandler
	TripHandler     *handler.TripHandler
	QuoteHandler    *handler.QuoteHandler
	EarningsHandler *handler.EarningsHandler
	RedisClient     *redis.Client
	ThrottleStore   internalRedis.ThrottleStoreInterface
	NewRelicApp     *newrelic.Application
	JWTSecret       string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.RateLimit(deps.ThrottleStore, 300, time.Minute))
	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	auth := middleware.RequireAuth(deps.JWTSecret)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)
	driverOnly := middleware.RequireRole(domain.RoleDriver, domain.RoleAdmin)

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		v1.POST("/auth/token", deps.AuthHandler.IssueToken)

		// Customer routes.
		customers := v1.Group("/customers")
		{
			customers.POST("/register", deps.CustomerHandler.Register)
			customers.GET("/:id", auth, deps.CustomerHandler.GetCustomer)
		}

		// Quote routes.
		v1.POST("/quotes", deps.QuoteHandler.GetQuote)

		// Trip routes.
		trips := v1.Group("/trips", auth)
		{
			trips.POST("", deps.TripHandler.CreateTrip)
			trips.GET("", deps.TripHandler.ListTrips)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.POST("/:id/start", driverOnly, deps.TripHandler.StartTrip)
			trips.POST("/:id/complete", driverOnly, deps.TripHandler.CompleteTrip)
			trips.POST("/:id/cancel", deps.TripHandler.CancelTrip)
			trips.POST("/:id/refund", adminOnly, deps.TripHandler.RefundTrip)
			trips.GET("/:id/rejections", adminOnly, deps.TripHandler.ListRejections)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.GET("/nearby", auth, adminOnly, deps.DriverHandler.NearbyDrivers)
			drivers.GET("/:id", auth, deps.DriverHandler.GetDriver)
			drivers.PUT("/:id/location", auth, driverOnly, deps.DriverHandler.UpdateLocation)

			// Offer protocol.
			drivers.GET("/:id/offers", auth, driverOnly, deps.DriverHandler.ListOffers)
			drivers.POST("/:id/offers/:tripId/accept", auth, driverOnly, deps.DriverHandler.AcceptOffer)
			drivers.POST("/:id/offers/:tripId/reject", auth, driverOnly, deps.DriverHandler.RejectOffer)

			// Settlement.
			drivers.GET("/:id/balance", auth, driverOnly, deps.EarningsHandler.GetBalance)
			drivers.GET("/:id/earnings", auth, driverOnly, deps.EarningsHandler.GetEarnings)
			drivers.GET("/:id/transactions", auth, driverOnly, deps.EarningsHandler.ListTransactions)
			drivers.POST("/:id/withdrawals", auth, driverOnly, deps.EarningsHandler.RequestWithdrawal)
			drivers.GET("/:id/withdrawals", auth, driverOnly, deps.EarningsHandler.ListWithdrawals)
		}

		// Settlement callbacks from the payout processor.
		withdrawals := v1.Group("/withdrawals", auth, adminOnly)
		{
			withdrawals.POST("/:id/complete", deps.EarningsHandler.CompleteWithdrawal)
			withdrawals.POST("/:id/fail", deps.EarningsHandler.FailWithdrawal)
		}
	}

	return router
}
