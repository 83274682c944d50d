package controllers

import (
	"fmt"
	"net/http"

	"github.com/Govind-619/DonateKart/services"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-gonic/gin"
)

// GET /user/orders/:id
func (h *Handler) GetOrderDetails(c *gin.Context) {
	s, ok := buyerSession(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.Orders.FindForBuyer(c.Request.Context(), s, orderID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Order details retrieved successfully", gin.H{"order": order})
}

// GET /user/orders/:id/invoice
func (h *Handler) DownloadInvoice(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	utils.LogInfo("Processing invoice download for order ID: %d", orderID)

	order, err := h.Orders.FindForBuyer(c.Request.Context(), services.Session{BuyerID: user.ID}, orderID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	pdf, err := services.RenderInvoice(order, user)
	if err != nil {
		utils.LogError("Failed to generate invoice PDF for order ID: %d: %v", orderID, err)
		utils.InternalServerError(c, "Failed to generate invoice PDF", nil)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice_%d.pdf", order.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
	utils.LogInfo("Invoice generated for order ID: %d", orderID)
}
