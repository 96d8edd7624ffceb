package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/revaspay/settlement/internal/handlers"
	"github.com/revaspay/settlement/internal/middleware"
)

// Handlers are the HTTP handlers mounted by Register
type Handlers struct {
	Webhook *handlers.WebhookHandler
	Orders  *handlers.OrderHandler
	Creator *handlers.CreatorHandler
	Admin   *handlers.AdminHandler
}

// Options configures route middleware
type Options struct {
	JWTSecret   string
	RateLimiter *middleware.RateLimiter
	// Ping reports dependency health for /health. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// Register mounts every route on router
func Register(router *gin.Engine, h Handlers, opts Options) {
	router.GET("/health", health(opts.Ping))

	api := router.Group("/api/v1")

	public := api.Group("")
	if opts.RateLimiter != nil {
		public.Use(opts.RateLimiter.IPRateLimiterMiddleware())
	}
	{
		public.POST("/webhooks/payment", h.Webhook.PaymentWebhook)
		public.POST("/orders", h.Orders.Checkout)
	}
	api.GET("/orders/:id", h.Orders.GetStatus)

	creator := api.Group("/creator")
	creator.Use(middleware.AuthMiddleware(opts.JWTSecret))
	{
		creator.GET("/partner", h.Creator.Dashboard)
		creator.GET("/payouts", h.Creator.ListPayouts)
		creator.POST("/payouts", h.Creator.OpenPayout)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(opts.JWTSecret), middleware.AdminMiddleware())
	{
		admin.GET("/partners", h.Admin.ListPartners)
		admin.POST("/partners", h.Admin.CreatePartner)
		admin.GET("/partners/:id", h.Admin.GetPartner)
		admin.PUT("/partners/:id/status", h.Admin.SetPartnerStatus)
		admin.POST("/partners/:id/payout-request/approve", h.Admin.ApprovePayout)
		admin.POST("/partners/:id/payout-request/reject", h.Admin.RejectPayout)
		admin.POST("/partners/:id/payout-request/complete", h.Admin.CompletePayout)
		admin.POST("/partners/:id/payouts", h.Admin.DirectPayout)

		admin.GET("/payouts", h.Admin.ListPayouts)

		admin.POST("/orders/:id/settle", h.Admin.SettleOrder)
		admin.PUT("/orders/:id/fulfillment", h.Admin.UpdateFulfillment)
		admin.POST("/orders/:id/refund", h.Admin.RefundOrder)

		admin.GET("/fraud", h.Admin.ListFraud)

		admin.GET("/settings/payout-threshold", h.Admin.GetPayoutThreshold)
		admin.PUT("/settings/payout-threshold", h.Admin.SetPayoutThreshold)
	}
}

func health(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	}
}
