package services

import (
	"context"
	"time"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CaptureAuditor makes sure a payment the gateway took ends as an order or a
// reconciliation case. It handles payments that show up after the checkout
// attempt that asked for them is gone.
type CaptureAuditor struct {
	db       *gorm.DB
	gateway  *PaymentGatewayAdapter
	desk     *ReconciliationDesk
	notifier Notifier
}

func NewCaptureAuditor(db *gorm.DB, gateway *PaymentGatewayAdapter, desk *ReconciliationDesk, notifier Notifier) *CaptureAuditor {
	return &CaptureAuditor{db: db, gateway: gateway, desk: desk, notifier: notifier}
}

// PaymentCaptured applies the gateway's payment.captured notice. While the
// attempt is alive the intent is only marked captured and the buyer's
// callback commits the order. An intent whose attempt already ended has no
// one left to commit, so the payment goes to reconciliation.
func (a *CaptureAuditor) PaymentCaptured(ctx context.Context, gatewayOrderID, paymentID string) (*models.ReconciliationCase, error) {
	order, err := findOrderByPayment(a.db.WithContext(ctx), gatewayOrderID, paymentID)
	if err != nil {
		return nil, err
	}
	if order != nil {
		return nil, nil
	}

	intent, err := a.intent(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if intent.Status != models.PaymentIntentFailed {
		return nil, a.gateway.MarkCaptured(ctx, gatewayOrderID, paymentID)
	}

	cb := GatewayCallback{PaymentID: paymentID, GatewayOrderID: gatewayOrderID}
	return a.settle(ctx, Session{BuyerID: intent.UserID}, intent, cb, models.PaymentIntentCaptured,
		"captured after checkout ended ("+intent.FailureReason+")")
}

// LateCallback settles a verified buyer callback that no attempt is waiting
// for. A payment that already has an order gets it back; anything else is
// flagged for reconciliation.
func (a *CaptureAuditor) LateCallback(ctx context.Context, s Session, cb GatewayCallback) (*models.Order, *models.ReconciliationCase, error) {
	order, err := findOrderByPayment(a.db.WithContext(ctx), cb.GatewayOrderID, cb.PaymentID)
	if err != nil {
		return nil, nil, err
	}
	if order != nil {
		if order.UserID != s.BuyerID {
			return nil, nil, utils.NotFoundError("Payment not found", nil)
		}
		utils.LogInfo("Late callback for payment %s matches order %d", cb.PaymentID, order.ID)
		return order, nil, nil
	}

	intent, err := a.intent(ctx, cb.GatewayOrderID)
	if err != nil {
		return nil, nil, err
	}
	if intent.UserID != s.BuyerID {
		return nil, nil, utils.NotFoundError("Payment not found", nil)
	}

	rc, err := a.settle(ctx, s, intent, cb, models.PaymentIntentAuthorized, "callback arrived after checkout ended")
	return nil, rc, err
}

// FlagStranded opens cases for intents authorized or captured before cutoff
// that have neither an order nor a case, e.g. when the process holding the
// attempt restarted before the callback came in.
func (a *CaptureAuditor) FlagStranded(ctx context.Context, cutoff time.Time) (int, error) {
	var intents []models.PaymentIntent
	err := a.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []string{models.PaymentIntentAuthorized, models.PaymentIntentCaptured}, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM orders WHERE orders.razorpay_order_id = payment_intents.razorpay_order_id)").
		Where("NOT EXISTS (SELECT 1 FROM reconciliation_cases WHERE reconciliation_cases.razorpay_order_id = payment_intents.razorpay_order_id)").
		Order("id").
		Find(&intents).Error
	if err != nil {
		return 0, errors.Wrap(err, "find stranded payment intents")
	}

	flagged := 0
	for i := range intents {
		intent := &intents[i]
		cb := GatewayCallback{PaymentID: intent.PaymentID, GatewayOrderID: intent.RazorpayOrderID}
		if _, err := a.settle(ctx, Session{BuyerID: intent.UserID}, intent, cb, intent.Status, "payment left without an order"); err != nil {
			return flagged, err
		}
		flagged++
	}
	return flagged, nil
}

// Run flags stranded payments every interval until ctx is done. A payment
// counts as stranded once it has gone grace without an order.
func (a *CaptureAuditor) Run(ctx context.Context, interval, grace time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := a.FlagStranded(ctx, now.Add(-grace))
			if err != nil {
				utils.LogError("Stranded payment check failed: %v", err)
			} else if n > 0 {
				utils.LogWarn("Flagged %d stranded payments for reconciliation", n)
			}
		}
	}
}

func (a *CaptureAuditor) intent(ctx context.Context, gatewayOrderID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := a.db.WithContext(ctx).Where("razorpay_order_id = ?", gatewayOrderID).First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("Payment intent not found", nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load payment intent %s", gatewayOrderID)
	}
	return &intent, nil
}

// settle records the payment on the intent and flags it. Operators are
// alerted once per payment.
func (a *CaptureAuditor) settle(ctx context.Context, s Session, intent *models.PaymentIntent, cb GatewayCallback, status, reason string) (*models.ReconciliationCase, error) {
	err := markIntent(a.db.WithContext(ctx), intent.RazorpayOrderID, map[string]interface{}{
		"status":     status,
		"payment_id": cb.PaymentID,
	}, models.PaymentIntentCreated, models.PaymentIntentAuthorized, models.PaymentIntentFailed)
	if err != nil {
		return nil, err
	}

	rc, opened, err := a.desk.Flag(ctx, s, CommitRequest{
		AttemptID:      intent.AttemptID,
		PaymentID:      cb.PaymentID,
		GatewayOrderID: intent.RazorpayOrderID,
		Amount:         intent.Amount,
		Signature:      cb.Signature,
	}, reason)
	if err != nil {
		return nil, err
	}
	if opened && a.notifier != nil {
		if err := a.notifier.ReconciliationNeeded(ctx, rc); err != nil {
			utils.LogError("Operator alert for reconciliation case %d failed: %v", rc.ID, err)
		}
	}
	return rc, nil
}
