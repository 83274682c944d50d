package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/services"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/gin-gonic/gin"
)

type payRequest struct {
	// ScriptLoaded is false when the browser could not load the gateway script
	ScriptLoaded bool `json:"script_loaded"`
}

type callbackRequest struct {
	AttemptID string `json:"attempt_id" binding:"required"`
	services.GatewayCallback
}

type cancelRequest struct {
	AttemptID string `json:"attempt_id" binding:"required"`
}

// POST /user/checkout/pay
func (h *Handler) InitiatePayment(c *gin.Context) {
	o, s, ok := h.checkout(c)
	if !ok {
		return
	}

	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	utils.LogInfo("Processing payment initiation for user ID: %d", s.BuyerID)
	request, err := o.Pay(c.Request.Context(), req.ScriptLoaded)
	if err != nil {
		utils.LogError("Payment initiation failed for user ID: %d: %v", s.BuyerID, err)
		utils.RespondError(c, err)
		return
	}

	utils.LogInfo("Razorpay order %s created for attempt %s", request.OrderID, request.AttemptID)
	utils.Success(c, "Payment initiated", gin.H{"payment": request})
}

// POST /user/checkout/callback relays the gateway's success handler payload
func (h *Handler) VerifyPayment(c *gin.Context) {
	o, s, ok := h.checkout(c)
	if !ok {
		return
	}

	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	utils.LogInfo("Payment callback for attempt %s, payment %s, user ID: %d", req.AttemptID, req.PaymentID, s.BuyerID)
	order, err := o.HandleCallback(c.Request.Context(), req.AttemptID, req.GatewayCallback)
	if err != nil {
		utils.LogError("Payment callback for attempt %s failed: %v", req.AttemptID, err)
		view, viewErr := o.View(c.Request.Context())
		if viewErr != nil || view.Failure == nil {
			utils.RespondError(c, err)
			return
		}
		appErr := utils.GetAppError(err)
		if appErr == nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(appErr.Code, utils.StandardResponse{
			Status:  "error",
			Message: appErr.Message,
			Data:    gin.H{"kind": appErr.Kind, "checkout": view},
		})
		return
	}

	utils.LogInfo("Order %d placed for user ID: %d", order.ID, s.BuyerID)
	utils.Success(c, "Payment verified and order placed", gin.H{"order": order})
}

// POST /user/checkout/cancel
func (h *Handler) CancelPayment(c *gin.Context) {
	o, s, ok := h.checkout(c)
	if !ok {
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	if err := o.Cancel(c.Request.Context(), req.AttemptID); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.LogInfo("Payment cancelled by user ID: %d for attempt %s", s.BuyerID, req.AttemptID)
	utils.Success(c, "Payment cancelled", nil)
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// POST /webhooks/razorpay keeps intent status in line with the gateway. It
// never creates orders; only the buyer's verified callback does. A capture
// for a checkout that already ended is flagged for reconciliation. A failed
// payment only notes the reason, since the buyer may retry in the overlay.
func (h *Handler) RazorpayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.BadRequest(c, "Could not read request body", nil)
		return
	}

	if err := h.Verifier.VerifyWebhook(body, c.GetHeader("X-Razorpay-Signature")); err != nil {
		utils.LogError("Webhook signature rejected: %v", err)
		utils.RespondError(c, err)
		return
	}

	var event razorpayWebhook
	if err := json.Unmarshal(body, &event); err != nil {
		utils.BadRequest(c, "Invalid webhook payload", err.Error())
		return
	}
	payment := event.Payload.Payment.Entity
	if payment.OrderID == "" {
		utils.LogDebug("Ignoring webhook %s without an order", event.Event)
		c.Status(http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	switch event.Event {
	case "payment.authorized":
		err = h.Gateway.MarkAuthorized(ctx, payment.OrderID, payment.ID)
	case "payment.captured":
		var rc *models.ReconciliationCase
		rc, err = h.Auditor.PaymentCaptured(ctx, payment.OrderID, payment.ID)
		if rc != nil {
			utils.LogWarn("Captured payment %s has no order, reconciliation case %d", payment.ID, rc.ID)
		}
	case "payment.failed":
		reason := payment.ErrorDescription
		if reason == "" {
			reason = "reported failed by gateway"
		}
		err = h.Gateway.RecordPaymentFailure(ctx, payment.OrderID, payment.ID, reason)
	default:
		utils.LogDebug("Ignoring webhook event %s", event.Event)
	}
	if err != nil {
		utils.LogError("Webhook %s for order %s not applied: %v", event.Event, payment.OrderID, err)
		utils.RespondError(c, err)
		return
	}

	utils.LogInfo("Webhook %s applied to order %s", event.Event, payment.OrderID)
	c.Status(http.StatusOK)
}
