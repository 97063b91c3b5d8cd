// README: HTTP router registration (gin).
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridebook/internal/http/handlers"
	"ridebook/internal/http/middleware"
	"ridebook/internal/infra"
	"ridebook/internal/modules/billing"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
)

type RouterDeps struct {
	Rides    *ride.Service
	Bookings *booking.Service
	Pricing  *pricing.Service
	Billing  *billing.Service
	Verifier infra.TokenVerifier
	Currency string
	Log      logrus.FieldLogger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(deps.Log), middleware.Recovery(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))
	driverOnly := middleware.RequireRole(middleware.RoleDriver, middleware.RoleAdmin)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)

	bookingHandler := handlers.NewBookingHandler(deps.Bookings, deps.Log)
	api.POST("/bookings", bookingHandler.Create)
	api.GET("/bookings/:id", bookingHandler.Get)
	api.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	api.POST("/bookings/:id/approve", driverOnly, bookingHandler.Approve)
	api.POST("/bookings/:id/reject", driverOnly, bookingHandler.Reject)
	api.POST("/bookings/:id/complete", driverOnly, bookingHandler.Complete)

	rideHandler := handlers.NewRideHandler(deps.Rides, deps.Bookings, deps.Currency, deps.Log)
	api.POST("/rides", driverOnly, rideHandler.Create)
	api.GET("/rides/mine", driverOnly, rideHandler.Mine)
	api.GET("/rides/:id", rideHandler.Get)
	api.GET("/rides/:id/bookings", driverOnly, rideHandler.Bookings)
	api.POST("/rides/:id/complete", driverOnly, rideHandler.Complete)
	api.POST("/rides/:id/cancel", driverOnly, rideHandler.Cancel)

	pricingHandler := handlers.NewPricingHandler(deps.Pricing, deps.Log)
	api.GET("/pricing/fee-percentage", pricingHandler.GetFeePercentage)
	api.PUT("/pricing/fee-percentage", adminOnly, pricingHandler.SetFeePercentage)
	api.GET("/pricing/price-per-km", pricingHandler.GetPricePerKm)
	api.PUT("/pricing/price-per-km", adminOnly, pricingHandler.SetPricePerKm)
	api.POST("/pricing/estimate", pricingHandler.Estimate)

	billingHandler := handlers.NewBillingHandler(deps.Billing, deps.Log)
	api.GET("/billing/pending", billingHandler.Pending)
	api.GET("/billing/:id", billingHandler.Get)
	api.POST("/billing/:id/pay", adminOnly, billingHandler.Pay)

	return r
}
