package routes

import (
	"github.com/Govind-619/DonateKart/controllers"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Options configures the router
type Options struct {
	Handler       *controllers.Handler
	DB            *gorm.DB
	JWTSecret     string
	SessionSecret string
	Secure        bool
}

// SetupRouter initializes and returns the Gin router with all routes
func SetupRouter(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(utils.RecoveryMiddleware())
	router.Use(utils.RequestIDMiddleware())
	router.Use(utils.LoggerMiddleware())
	router.Use(utils.CORSMiddleware())
	router.Use(utils.SecurityHeadersMiddleware())

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		MaxAge:   60 * 60 * 24, // 1 day
		Path:     "/",
		Secure:   opts.Secure,
		HttpOnly: true,
	})
	router.Use(sessions.Sessions("donatekart", store))

	api := router.Group("/" + utils.APIVersion)
	{
		initUserRoutes(api, opts)
		initAdminRoutes(api, opts)
		initWebhookRoutes(api, opts)
	}

	return router
}
