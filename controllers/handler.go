package controllers

import (
	"strconv"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/services"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-gonic/gin"
)

// Handler carries the services every route handler needs
type Handler struct {
	Addresses      *services.AddressRegistry
	Pricing        *services.PricingEngine
	Cart           services.CartSource
	Checkouts      *services.SessionRegistry
	Orders         *services.OrderCommitter
	Gateway        *services.PaymentGatewayAdapter
	Verifier       *services.PaymentVerifier
	Reconciliation *services.ReconciliationDesk
	Auditor        *services.CaptureAuditor
}

// currentUser returns the authenticated user set by AuthMiddleware
func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get(utils.ContextUserKey)
	if !exists {
		utils.LogError("User not found in context")
		utils.Unauthorized(c, utils.ErrUnauthorized)
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	if !ok {
		utils.LogError("Invalid user type in context")
		utils.InternalServerError(c, utils.ErrInternalServer, nil)
		return models.User{}, false
	}
	return user, true
}

// buyerSession builds the checkout session for the request. The session id
// comes from the CheckoutSession middleware.
func buyerSession(c *gin.Context) (services.Session, bool) {
	user, ok := currentUser(c)
	if !ok {
		return services.Session{}, false
	}
	return services.Session{
		BuyerID:   user.ID,
		SessionID: c.GetString(utils.ContextSessionIDKey),
		RequestID: c.GetString(utils.ContextRequestIDKey),
	}, true
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.LogError("Invalid %s parameter: %s", name, c.Param(name))
		utils.BadRequest(c, "Invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}
