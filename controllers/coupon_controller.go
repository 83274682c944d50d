package controllers

import (
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetCoupons lists active coupons with whether each applies to the current cart
func (h *Handler) GetCoupons(c *gin.Context) {
	s, ok := buyerSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	lines, err := h.Cart.Lines(ctx, s.BuyerID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}

	coupons, err := h.Pricing.ListActiveCoupons(ctx, s, subtotal)
	if err != nil {
		utils.LogError("Failed to list coupons for user ID: %d: %v", s.BuyerID, err)
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Coupons retrieved successfully", gin.H{
		"coupons":  coupons,
		"subtotal": subtotal.StringFixed(2),
	})
}
