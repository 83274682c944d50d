package services

import (
	"context"
	"fmt"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/pkg/errors"
	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderClient creates gateway orders. razorpay-go's client.Order satisfies it.
type OrderClient interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// AuthorizationRequest is everything the checkout overlay needs to collect a payment
type AuthorizationRequest struct {
	Key         string `json:"key"`
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	AttemptID   string `json:"attempt_id"`
	Name        string `json:"name"`
	CallbackURL string `json:"callback_url"`
}

// PaymentGatewayAdapter creates payment intents with Razorpay and tracks their status
type PaymentGatewayAdapter struct {
	db          *gorm.DB
	client      OrderClient
	merchantKey string
	callbackURL string
}

// NewRazorpayGateway builds an adapter backed by the Razorpay API. Without
// credentials the adapter reports the gateway as unavailable.
func NewRazorpayGateway(db *gorm.DB, keyID, keySecret string) *PaymentGatewayAdapter {
	var client OrderClient
	if keyID != "" && keySecret != "" {
		client = razorpay.NewClient(keyID, keySecret).Order
	}
	return NewPaymentGatewayAdapter(db, client, keyID)
}

func NewPaymentGatewayAdapter(db *gorm.DB, client OrderClient, merchantKey string) *PaymentGatewayAdapter {
	return &PaymentGatewayAdapter{
		db:          db,
		client:      client,
		merchantKey: merchantKey,
		callbackURL: "/v1/user/checkout/callback",
	}
}

// CreateIntent creates a fresh gateway order for one checkout attempt and
// records it as a PaymentIntent. Every call creates a new intent.
func (g *PaymentGatewayAdapter) CreateIntent(ctx context.Context, s Session, attemptID string, amount decimal.Decimal, currency string, scriptLoaded bool) (*models.PaymentIntent, error) {
	if !scriptLoaded {
		utils.LogWarn("Checkout script not loaded for buyer ID: %d, attempt: %s", s.BuyerID, attemptID)
		return nil, utils.GatewayUnavailableError("Payment gateway failed to load. Please try again", nil)
	}
	if g.client == nil || g.merchantKey == "" {
		utils.LogError("Razorpay credentials missing, cannot create intent for attempt: %s", attemptID)
		return nil, utils.GatewayUnavailableError("Payment gateway is not configured", nil)
	}

	paise := utils.ToMinorUnits(amount)
	if paise <= 0 {
		return nil, utils.ValidationError("Payment amount must be positive", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orderData := map[string]interface{}{
		"amount":          paise,
		"currency":        currency,
		"receipt":         attemptID,
		"payment_capture": 1,
		"notes": map[string]interface{}{
			"attempt_id": attemptID,
			"buyer_id":   s.BuyerID,
		},
	}
	rzOrder, err := g.client.Create(orderData, nil)
	if err != nil {
		utils.LogError("Failed to create Razorpay order for attempt: %s: %v", attemptID, err)
		return nil, utils.GatewayUnavailableError("Failed to create payment order", err)
	}
	gatewayOrderID, _ := rzOrder["id"].(string)
	if gatewayOrderID == "" {
		utils.LogError("Razorpay returned no order id for attempt: %s", attemptID)
		return nil, utils.GatewayUnavailableError("Payment gateway returned an invalid response", nil)
	}

	intent := &models.PaymentIntent{
		AttemptID:       attemptID,
		UserID:          s.BuyerID,
		RazorpayOrderID: gatewayOrderID,
		Amount:          amount.Round(2),
		AmountPaise:     paise,
		Currency:        currency,
		Status:          models.PaymentIntentCreated,
	}
	if err := g.db.WithContext(ctx).Create(intent).Error; err != nil {
		return nil, errors.Wrapf(err, "save payment intent %s", gatewayOrderID)
	}

	utils.WithFields(s.fields()).Infof("Created Razorpay order %s for attempt %s, amount %d paise", gatewayOrderID, attemptID, paise)
	return intent, nil
}

// PresentForAuthorization returns the overlay options for an intent. Control
// then passes to the gateway until its callback arrives.
func (g *PaymentGatewayAdapter) PresentForAuthorization(intent *models.PaymentIntent) AuthorizationRequest {
	return AuthorizationRequest{
		Key:         g.merchantKey,
		OrderID:     intent.RazorpayOrderID,
		Amount:      intent.AmountPaise,
		Currency:    intent.Currency,
		AttemptID:   intent.AttemptID,
		Name:        utils.AppName,
		CallbackURL: g.callbackURL,
	}
}

// FindIntent loads an intent by gateway order id
func (g *PaymentGatewayAdapter) FindIntent(ctx context.Context, gatewayOrderID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := g.db.WithContext(ctx).Where("razorpay_order_id = ?", gatewayOrderID).First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("Payment intent not found", nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load payment intent %s", gatewayOrderID)
	}
	return &intent, nil
}

// MarkAuthorized records the payment id delivered by a verified callback
func (g *PaymentGatewayAdapter) MarkAuthorized(ctx context.Context, gatewayOrderID, paymentID string) error {
	return markIntent(g.db.WithContext(ctx), gatewayOrderID, map[string]interface{}{
		"status":     models.PaymentIntentAuthorized,
		"payment_id": paymentID,
	}, models.PaymentIntentCreated)
}

// MarkCaptured moves an intent to captured
func (g *PaymentGatewayAdapter) MarkCaptured(ctx context.Context, gatewayOrderID, paymentID string) error {
	return markIntent(g.db.WithContext(ctx), gatewayOrderID, map[string]interface{}{
		"status":     models.PaymentIntentCaptured,
		"payment_id": paymentID,
	}, models.PaymentIntentCreated, models.PaymentIntentAuthorized)
}

// MarkFailed ends a not yet captured intent. Only the orchestrator calls it,
// once the attempt that owns the intent is over.
func (g *PaymentGatewayAdapter) MarkFailed(ctx context.Context, gatewayOrderID, reason string) error {
	return markIntent(g.db.WithContext(ctx), gatewayOrderID, map[string]interface{}{
		"status":         models.PaymentIntentFailed,
		"failure_reason": reason,
	}, models.PaymentIntentCreated, models.PaymentIntentAuthorized)
}

// RecordPaymentFailure notes a declined payment on the intent's gateway
// order. The buyer can retry inside the same overlay, so the intent stays
// open for the next payment.
func (g *PaymentGatewayAdapter) RecordPaymentFailure(ctx context.Context, gatewayOrderID, paymentID, reason string) error {
	return markIntent(g.db.WithContext(ctx), gatewayOrderID, map[string]interface{}{
		"failure_reason": fmt.Sprintf("payment %s: %s", paymentID, reason),
	}, models.PaymentIntentCreated, models.PaymentIntentAuthorized)
}

// markIntent applies updates only when the intent is in one of the from
// statuses, so a captured intent is never moved back.
func markIntent(db *gorm.DB, gatewayOrderID string, updates map[string]interface{}, from ...string) error {
	result := db.Model(&models.PaymentIntent{}).
		Where("razorpay_order_id = ? AND status IN ?", gatewayOrderID, from).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update payment intent %s", gatewayOrderID)
	}
	if result.RowsAffected == 0 {
		utils.LogDebug("Payment intent %s not in %v, status left unchanged", gatewayOrderID, from)
	}
	return nil
}

func intentSummary(intent *models.PaymentIntent) string {
	if intent == nil {
		return "none"
	}
	return fmt.Sprintf("%s (%s)", intent.RazorpayOrderID, intent.Status)
}
