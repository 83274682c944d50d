package middleware

import (
	"strings"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func AuthMiddleware(jwtSecret string, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.LogError("Missing Authorization header")
			utils.Unauthorized(c, utils.ErrUnauthorized)
			c.Abort()
			return
		}

		// Extract token from Bearer header
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			utils.LogError("Invalid Bearer token format")
			utils.Unauthorized(c, utils.ErrUnauthorized)
			c.Abort()
			return
		}

		userID, err := utils.ValidateToken(tokenString, jwtSecret)
		if err != nil {
			utils.LogError("Invalid token: %v", err)
			utils.Unauthorized(c, utils.ErrUnauthorized)
			c.Abort()
			return
		}
		utils.LogDebug("Authenticating user ID: %d", userID)

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			utils.LogError("User not found: %v", err)
			utils.Unauthorized(c, "User not found")
			c.Abort()
			return
		}

		if user.IsBlocked {
			utils.LogError("Blocked user attempted access: %d", userID)
			utils.Forbidden(c, "Account is blocked")
			c.Abort()
			return
		}

		c.Set(utils.ContextUserKey, user)
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get(utils.ContextUserKey)
		if !exists {
			utils.LogError("User not found in context")
			utils.Unauthorized(c, utils.ErrUnauthorized)
			c.Abort()
			return
		}

		userModel, ok := user.(models.User)
		if !ok {
			utils.LogError("Invalid user type in context")
			utils.InternalServerError(c, utils.ErrInternalServer, nil)
			c.Abort()
			return
		}

		if !userModel.IsAdmin {
			utils.LogError("Non-admin user attempted admin access: %d", userModel.ID)
			utils.Forbidden(c, utils.ErrForbidden)
			c.Abort()
			return
		}

		utils.LogInfo("Admin access granted for user %d", userModel.ID)
		c.Next()
	}
}

// CheckoutSession attaches the checkout session id from the cookie session.
// Each browser session owns one checkout.
func CheckoutSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.CheckoutSessionID(c)
		if err != nil {
			utils.LogError("Checkout session unavailable: %v", err)
			utils.InternalServerError(c, utils.ErrInternalServer, nil)
			c.Abort()
			return
		}
		c.Set(utils.ContextSessionIDKey, id)
		c.Next()
	}
}
