package controllers

import (
	"fmt"
	"time"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-gonic/gin"
)

type resolveRequest struct {
	Note string `json:"note" binding:"required"`
}

func reconciliationStatus(c *gin.Context) (string, bool) {
	status := c.DefaultQuery("status", models.ReconciliationOpen)
	switch status {
	case models.ReconciliationOpen, models.ReconciliationResolved:
		return status, true
	case "all":
		return "", true
	}
	utils.BadRequest(c, "Invalid status. Must be one of: open, resolved, all", nil)
	return "", false
}

// GET /admin/reconciliation
func (h *Handler) ListReconciliationCases(c *gin.Context) {
	status, ok := reconciliationStatus(c)
	if !ok {
		return
	}
	pagination := utils.NewPagination(c)

	cases, total, err := h.Reconciliation.List(c.Request.Context(), status, pagination.Offset, pagination.Limit)
	if err != nil {
		utils.LogError("Failed to list reconciliation cases: %v", err)
		utils.RespondError(c, err)
		return
	}
	pagination.SetTotal(total)
	utils.SendPaginatedResponse(c, "Reconciliation cases retrieved successfully", cases, pagination)
}

// POST /admin/reconciliation/:id/resolve
func (h *Handler) ResolveReconciliationCase(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Resolution note is required", err.Error())
		return
	}

	rc, err := h.Reconciliation.Resolve(c.Request.Context(), id, req.Note)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Reconciliation case resolved", gin.H{"case": rc})
}

// GET /admin/reconciliation/export
func (h *Handler) DownloadReconciliationExcel(c *gin.Context) {
	status, ok := reconciliationStatus(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=reconciliation_%s.xlsx", time.Now().Format("20060102")))
	if err := h.Reconciliation.ExportXLSX(c.Request.Context(), c.Writer, status); err != nil {
		utils.LogError("Failed to write reconciliation export: %v", err)
		utils.InternalServerError(c, "Failed to write Excel file", nil)
		return
	}
}
