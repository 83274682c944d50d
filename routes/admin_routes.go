package routes

import (
	"github.com/Govind-619/DonateKart/middleware"
	"github.com/gin-gonic/gin"
)

// initAdminRoutes initializes all admin-related routes
func initAdminRoutes(router *gin.RouterGroup, opts Options) {
	h := opts.Handler

	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(opts.JWTSecret, opts.DB), middleware.AdminMiddleware())
	{
		// Payments that need manual settlement
		admin.GET("/reconciliation", h.ListReconciliationCases)
		admin.GET("/reconciliation/export", h.DownloadReconciliationExcel)
		admin.POST("/reconciliation/:id/resolve", h.ResolveReconciliationCase)
	}
}
