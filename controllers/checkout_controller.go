package controllers

import (
	"net/http"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/services"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type selectAddressRequest struct {
	AddressID uint                  `json:"address_id"`
	Address   *models.AddressFields `json:"address"`
}

type couponRequest struct {
	CouponCode string `json:"coupon_code"`
}

// checkout returns the orchestrator owned by the request's checkout session
func (h *Handler) checkout(c *gin.Context) (*services.CheckoutOrchestrator, services.Session, bool) {
	s, ok := buyerSession(c)
	if !ok {
		return nil, s, false
	}
	return h.Checkouts.Get(s), s, true
}

// GET /user/checkout
func (h *Handler) GetCheckout(c *gin.Context) {
	o, _, ok := h.checkout(c)
	if !ok {
		return
	}
	view, err := o.View(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Checkout retrieved successfully", view)
}

// POST /user/checkout/address
func (h *Handler) SelectCheckoutAddress(c *gin.Context) {
	o, s, ok := h.checkout(c)
	if !ok {
		return
	}

	var req selectAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}
	if req.AddressID == 0 && req.Address == nil {
		utils.BadRequest(c, "Either address_id or address is required", nil)
		return
	}

	var (
		view *services.CheckoutView
		err  error
	)
	if req.Address != nil {
		view, err = o.CreateAndSelectAddress(c.Request.Context(), *req.Address)
	} else {
		view, err = o.SelectAddress(c.Request.Context(), req.AddressID)
	}
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.LogInfo("Delivery address %d selected for user ID: %d", view.Address.ID, s.BuyerID)
	utils.Success(c, "Delivery address selected", view)
}

// POST /user/checkout/price
func (h *Handler) PriceCheckout(c *gin.Context) {
	o, _, ok := h.checkout(c)
	if !ok {
		return
	}

	var req couponRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequest(c, "Invalid request format", err.Error())
			return
		}
	}

	var (
		snapshot *models.CartSnapshot
		err      error
	)
	if utils.NormalizeCouponCode(req.CouponCode) != "" {
		snapshot, err = o.ApplyCoupon(c.Request.Context(), req.CouponCode)
	} else {
		snapshot, err = o.Price(c.Request.Context())
	}
	respondPricing(c, o, snapshot, err, "Checkout priced")
}

// POST /user/checkout/coupon
func (h *Handler) ApplyCoupon(c *gin.Context) {
	o, _, ok := h.checkout(c)
	if !ok {
		return
	}

	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	snapshot, err := o.ApplyCoupon(c.Request.Context(), req.CouponCode)
	respondPricing(c, o, snapshot, err, "Coupon applied successfully")
}

// DELETE /user/checkout/coupon
func (h *Handler) RemoveCoupon(c *gin.Context) {
	o, _, ok := h.checkout(c)
	if !ok {
		return
	}
	snapshot, err := o.RemoveCoupon(c.Request.Context())
	respondPricing(c, o, snapshot, err, "Coupon removed successfully")
}

// respondPricing writes the outcome of a pricing request. A superseded request
// gets the current checkout instead of its own result; a rejected coupon
// still returns the summary the checkout now holds.
func respondPricing(c *gin.Context, o *services.CheckoutOrchestrator, snapshot *models.CartSnapshot, err error, message string) {
	switch {
	case err == nil:
		utils.Success(c, message, gin.H{"summary": snapshot})
	case errors.Is(err, services.ErrStalePricing):
		view, viewErr := o.View(c.Request.Context())
		if viewErr != nil {
			utils.RespondError(c, viewErr)
			return
		}
		c.JSON(http.StatusConflict, utils.StandardResponse{
			Status:  "error",
			Message: "A newer pricing request replaced this one",
			Data:    gin.H{"kind": "stale_pricing", "checkout": view},
		})
	case utils.IsKind(err, utils.KindCouponInvalid) && snapshot != nil:
		appErr := utils.GetAppError(err)
		c.JSON(appErr.Code, utils.StandardResponse{
			Status:  "error",
			Message: appErr.Message,
			Data:    gin.H{"kind": appErr.Kind, "summary": snapshot},
		})
	default:
		utils.RespondError(c, err)
	}
}

// POST /user/checkout/restart
func (h *Handler) RestartCheckout(c *gin.Context) {
	o, s, ok := h.checkout(c)
	if !ok {
		return
	}
	view, err := o.Restart()
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.LogInfo("Checkout restarted for user ID: %d with attempt %s", s.BuyerID, view.AttemptID)
	utils.Success(c, "Checkout restarted", view)
}
