package controllers

import (
	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/services"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-gonic/gin"
)

// GET /user/addresses
func (h *Handler) GetAddresses(c *gin.Context) {
	s, ok := buyerSession(c)
	if !ok {
		return
	}

	addresses, err := h.Addresses.List(c.Request.Context(), s)
	if err != nil {
		utils.LogError("Failed to fetch addresses for user ID: %d: %v", s.BuyerID, err)
		utils.RespondError(c, err)
		return
	}

	utils.Success(c, "Addresses retrieved successfully", gin.H{
		"addresses": addresses,
		"selected":  services.ProvisionalSelection(addresses),
	})
}

// POST /user/addresses
func (h *Handler) AddAddress(c *gin.Context) {
	s, ok := buyerSession(c)
	if !ok {
		return
	}

	var req models.AddressFields
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	address, err := h.Addresses.Create(c.Request.Context(), s, req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Address added successfully", gin.H{"address": address})
}

// PUT /user/addresses/:id
func (h *Handler) EditAddress(c *gin.Context) {
	s, ok := buyerSession(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.AddressFields
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	address, err := h.Addresses.Update(c.Request.Context(), s, id, req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Address updated successfully", gin.H{"address": address})
}

// DELETE /user/addresses/:id
func (h *Handler) DeleteAddress(c *gin.Context) {
	s, ok := buyerSession(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.Addresses.Delete(c.Request.Context(), s, id); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Address deleted successfully", nil)
}

// PATCH /user/addresses/:id/default
func (h *Handler) SetDefaultAddress(c *gin.Context) {
	s, ok := buyerSession(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	address, err := h.Addresses.SetDefault(c.Request.Context(), s, id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Default address updated", gin.H{"address": address})
}
