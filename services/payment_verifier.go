package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/Govind-619/DonateKart/utils"
	rzputils "github.com/razorpay/razorpay-go/utils"
)

// VerificationResult is the outcome of a successful signature check
type VerificationResult struct {
	PaymentID      string    `json:"payment_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	VerifiedAt     time.Time `json:"verified_at"`
}

// PaymentVerifier checks gateway signatures with the merchant secret, which
// never leaves the server.
type PaymentVerifier struct {
	secret        string
	webhookSecret string
}

func NewPaymentVerifier(secret, webhookSecret string) *PaymentVerifier {
	if webhookSecret == "" {
		webhookSecret = secret
	}
	return &PaymentVerifier{secret: secret, webhookSecret: webhookSecret}
}

// Verify checks that signature is the HMAC-SHA256 of "orderId|paymentId".
// Missing fields fail closed before the gateway check runs.
func (v *PaymentVerifier) Verify(paymentID, gatewayOrderID, signature string) (VerificationResult, error) {
	if paymentID == "" || gatewayOrderID == "" || signature == "" {
		return VerificationResult{}, utils.VerificationError("Payment details are incomplete", nil)
	}
	if v.secret == "" {
		return VerificationResult{}, utils.VerificationError("Payment verification is not configured", nil)
	}

	params := map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": paymentID,
	}
	if !rzputils.VerifyPaymentSignature(params, signature, v.secret) {
		utils.LogError("Signature mismatch for gateway order: %s, payment: %s", gatewayOrderID, paymentID)
		return VerificationResult{}, utils.VerificationError("Payment verification failed", nil)
	}

	utils.LogInfo("Payment signature verified for gateway order: %s", gatewayOrderID)
	return VerificationResult{
		PaymentID:      paymentID,
		GatewayOrderID: gatewayOrderID,
		VerifiedAt:     time.Now(),
	}, nil
}

// VerifyWebhook checks the X-Razorpay-Signature header against the raw body
func (v *PaymentVerifier) VerifyWebhook(body []byte, signature string) error {
	if len(body) == 0 || signature == "" {
		return utils.VerificationError("Webhook signature missing", nil)
	}
	if v.webhookSecret == "" {
		return utils.VerificationError("Webhook verification is not configured", nil)
	}
	if !rzputils.VerifyWebhookSignature(string(body), signature, v.webhookSecret) {
		return utils.VerificationError("Webhook signature mismatch", nil)
	}
	return nil
}

// SignPayment computes the signature the gateway puts on a checkout callback.
// razorpay-go only verifies, so tests and tooling sign with this.
func SignPayment(secret, gatewayOrderID, paymentID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}
