package routes

import (
	"github.com/Govind-619/DonateKart/middleware"
	"github.com/gin-gonic/gin"
)

// initUserRoutes initializes all buyer-facing routes
func initUserRoutes(router *gin.RouterGroup, opts Options) {
	h := opts.Handler

	user := router.Group("/user")
	user.Use(middleware.AuthMiddleware(opts.JWTSecret, opts.DB), middleware.CheckoutSession())
	{
		// Address management
		user.GET("/addresses", h.GetAddresses)
		user.POST("/addresses", h.AddAddress)
		user.PUT("/addresses/:id", h.EditAddress)
		user.DELETE("/addresses/:id", h.DeleteAddress)
		user.PATCH("/addresses/:id/default", h.SetDefaultAddress)

		user.GET("/coupons", h.GetCoupons)

		// Checkout
		checkout := user.Group("/checkout")
		{
			checkout.GET("", h.GetCheckout)
			checkout.POST("/address", h.SelectCheckoutAddress)
			checkout.POST("/price", h.PriceCheckout)
			checkout.POST("/coupon", h.ApplyCoupon)
			checkout.DELETE("/coupon", h.RemoveCoupon)
			checkout.POST("/pay", h.InitiatePayment)
			checkout.POST("/callback", h.VerifyPayment)
			checkout.POST("/cancel", h.CancelPayment)
			checkout.POST("/restart", h.RestartCheckout)
		}

		// Orders
		user.GET("/orders/:id", h.GetOrderDetails)
		user.GET("/orders/:id/invoice", h.DownloadInvoice)
	}
}

// initWebhookRoutes registers gateway webhooks, authenticated by signature
func initWebhookRoutes(router *gin.RouterGroup, opts Options) {
	router.POST("/webhooks/razorpay", opts.Handler.RazorpayWebhook)
}
