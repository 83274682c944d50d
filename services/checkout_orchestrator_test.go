package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type checkoutHarness struct {
	db        *gorm.DB
	deps      CheckoutDeps
	client    *fakeOrderClient
	verifier  *countingVerifier
	committer *countingCommitter
	notifier  *fakeNotifier
	session   Session
	address   *models.Address
}

func newCheckoutHarness(t *testing.T) *checkoutHarness {
	t.Helper()
	db := newTestDB(t)
	buyer := seedBuyer(t, db, "asha")
	s := sessionFor(buyer)

	addresses := NewAddressRegistry(db)
	address, err := addresses.Create(context.Background(), s, validAddressFields())
	require.NoError(t, err)
	seedCart(t, db, buyer.ID, line(1, "School Kit", "400", 2), line(2, "Blanket", "200", 1))
	seedCoupon(t, db, testCoupon("SAVE10", "10", "80", "0"))
	seedCoupon(t, db, testCoupon("BIG500", "10", "100", "5000"))

	client := &fakeOrderClient{}
	verifier := &countingVerifier{inner: NewPaymentVerifier(testSecret, "")}
	committer := &countingCommitter{inner: NewOrderCommitter(db, "INR")}
	notifier := newFakeNotifier()
	gateway := NewPaymentGatewayAdapter(db, client, "rzp_test_key")
	desk := NewReconciliationDesk(db)

	return &checkoutHarness{
		db:        db,
		client:    client,
		verifier:  verifier,
		committer: committer,
		notifier:  notifier,
		session:   s,
		address:   address,
		deps: CheckoutDeps{
			Addresses:            addresses,
			Pricing:              NewPricingEngine(NewGormCouponStore(db), dec("50")),
			Cart:                 NewGormCartSource(db),
			Gateway:              gateway,
			Verifier:             verifier,
			Committer:            committer,
			Guard:                NewMemoryCallbackGuard(time.Hour),
			Bus:                  NewCallbackBus(),
			Notifier:             notifier,
			Reconciliation:       desk,
			Auditor:              NewCaptureAuditor(db, gateway, desk, notifier),
			Currency:             "INR",
			AuthorizationTimeout: time.Minute,
		},
	}
}

func (h *checkoutHarness) orchestrator() *CheckoutOrchestrator {
	return NewCheckoutOrchestrator(h.deps, h.session)
}

// awaiting drives a fresh orchestrator to StateAwaitingAuthorization
func (h *checkoutHarness) awaiting(t *testing.T, coupon string) (*CheckoutOrchestrator, *AuthorizationRequest) {
	t.Helper()
	ctx := context.Background()
	o := h.orchestrator()
	_, err := o.SelectAddress(ctx, h.address.ID)
	require.NoError(t, err)
	if coupon != "" {
		_, err = o.ApplyCoupon(ctx, coupon)
	} else {
		_, err = o.Price(ctx)
	}
	require.NoError(t, err)
	request, err := o.Pay(ctx, true)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingAuthorization, o.State())
	return o, request
}

func signedCallback(orderID, paymentID string) GatewayCallback {
	return GatewayCallback{
		PaymentID:      paymentID,
		GatewayOrderID: orderID,
		Signature:      SignPayment(testSecret, orderID, paymentID),
	}
}

func TestCheckout_HappyPath(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o := h.orchestrator()
	assert.Equal(t, StateIdle, o.State())

	view, err := o.View(ctx)
	require.NoError(t, err)
	require.NotNil(t, view.ProvisionalAddress)
	assert.Equal(t, h.address.ID, view.ProvisionalAddress.ID)

	_, err = o.SelectAddress(ctx, h.address.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAddressReady, o.State())

	snapshot, err := o.ApplyCoupon(ctx, "save10")
	require.NoError(t, err)
	assert.Equal(t, StatePricedReady, o.State())
	assert.Equal(t, "970.00", snapshot.GrandTotal.StringFixed(2))

	request, err := o.Pay(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAuthorization, o.State())
	assert.Equal(t, int64(97000), request.Amount)
	assert.Equal(t, o.AttemptID(), request.AttemptID)

	order, err := o.HandleCallback(ctx, request.AttemptID, signedCallback(request.OrderID, "pay_1"))
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, StateCompleted, o.State())
	assert.Equal(t, "970.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, 1, h.verifier.count())
	assert.Equal(t, 1, h.committer.count())

	select {
	case placed := <-h.notifier.placed:
		assert.Equal(t, order.ID, placed.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("order confirmation not sent")
	}
}

func TestCheckout_DuplicateCallbackSuppressed(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o, request := h.awaiting(t, "")
	callback := signedCallback(request.OrderID, "pay_1")

	first, err := o.HandleCallback(ctx, request.AttemptID, callback)
	require.NoError(t, err)
	second, err := o.HandleCallback(ctx, request.AttemptID, callback)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.committer.count(), "commit must run once per verified payment")
	assert.Equal(t, 1, h.verifier.count())

	var orders int64
	h.db.Model(&models.Order{}).Count(&orders)
	assert.Equal(t, int64(1), orders)
}

func TestCheckout_EmptySignatureFailsClosed(t *testing.T) {
	h := newCheckoutHarness(t)
	o, request := h.awaiting(t, "")

	callback := GatewayCallback{PaymentID: "pay_1", GatewayOrderID: request.OrderID, Signature: ""}
	order, err := o.HandleCallback(context.Background(), request.AttemptID, callback)
	require.Error(t, err)
	assert.Nil(t, order)
	assert.True(t, utils.IsKind(err, utils.KindVerification))

	assert.Equal(t, StateFailed, o.State())
	assert.Zero(t, h.verifier.count(), "incomplete callback must never reach the verifier")
	assert.Zero(t, h.committer.count())

	view, err := o.View(context.Background())
	require.NoError(t, err)
	require.NotNil(t, view.Failure)
	assert.Equal(t, utils.KindVerification, view.Failure.Kind)
}

func TestCheckout_BadSignature(t *testing.T) {
	h := newCheckoutHarness(t)
	o, request := h.awaiting(t, "")

	callback := GatewayCallback{PaymentID: "pay_1", GatewayOrderID: request.OrderID, Signature: "forged"}
	_, err := o.HandleCallback(context.Background(), request.AttemptID, callback)
	assert.True(t, utils.IsKind(err, utils.KindVerification))
	assert.Equal(t, StateFailed, o.State())
	assert.Equal(t, 1, h.verifier.count())
	assert.Zero(t, h.committer.count())

	intent, err := h.deps.Gateway.FindIntent(context.Background(), request.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIntentFailed, intent.Status)
}

func TestCheckout_CallbackForOtherAttempt(t *testing.T) {
	h := newCheckoutHarness(t)
	o, request := h.awaiting(t, "")

	_, err := o.HandleCallback(context.Background(), "some-other-attempt", signedCallback(request.OrderID, "pay_1"))
	assert.True(t, utils.IsKind(err, utils.KindState))
	assert.Equal(t, StateAwaitingAuthorization, o.State())
	assert.Zero(t, h.verifier.count())
}

func TestCheckout_ScriptNotLoaded(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o := h.orchestrator()
	_, err := o.SelectAddress(ctx, h.address.ID)
	require.NoError(t, err)
	_, err = o.Price(ctx)
	require.NoError(t, err)

	_, err = o.Pay(ctx, false)
	assert.True(t, utils.IsKind(err, utils.KindGatewayUnavailable))
	assert.Equal(t, StateFailed, o.State())
	assert.Zero(t, h.client.count())
}

func TestCheckout_PayRequiresPricing(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o := h.orchestrator()

	_, err := o.Pay(ctx, true)
	assert.True(t, utils.IsKind(err, utils.KindState))

	_, err = o.Price(ctx)
	assert.True(t, utils.IsKind(err, utils.KindState), "pricing needs an address")

	_, err = o.SelectAddress(ctx, h.address.ID)
	require.NoError(t, err)
	_, err = o.Pay(ctx, true)
	assert.True(t, utils.IsKind(err, utils.KindState))
	assert.Zero(t, h.client.count())
}

func TestCheckout_InvalidCouponKeepsCheckoutPriced(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o := h.orchestrator()
	_, err := o.SelectAddress(ctx, h.address.ID)
	require.NoError(t, err)

	snapshot, err := o.ApplyCoupon(ctx, "BIG500")
	assert.True(t, utils.IsKind(err, utils.KindCouponInvalid))
	require.NotNil(t, snapshot)
	assert.Equal(t, "1050.00", snapshot.GrandTotal.StringFixed(2))
	assert.Equal(t, StatePricedReady, o.State())

	view, err := o.View(ctx)
	require.NoError(t, err)
	assert.False(t, view.Summary.HasCoupon())

	_, err = o.Pay(ctx, true)
	assert.NoError(t, err, "checkout continues without the coupon")
}

func TestCheckout_RemoveCoupon(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o := h.orchestrator()
	_, err := o.SelectAddress(ctx, h.address.ID)
	require.NoError(t, err)

	plain, err := o.Price(ctx)
	require.NoError(t, err)
	_, err = o.ApplyCoupon(ctx, "SAVE10")
	require.NoError(t, err)
	kept, err := o.Price(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", kept.CouponCode, "re-pricing keeps the applied coupon")

	removed, err := o.RemoveCoupon(ctx)
	require.NoError(t, err)
	assert.True(t, removed.GrandTotal.Equal(plain.GrandTotal))
}

func TestCheckout_StalePricingDiscarded(t *testing.T) {
	h := newCheckoutHarness(t)
	coupons := newFakeCoupons(testCoupon("FIRST", "10", "0", "0"), testCoupon("SECOND", "20", "0", "0"))
	h.deps.Pricing = NewPricingEngine(coupons, dec("50"))
	ctx := context.Background()

	o := h.orchestrator()
	_, err := o.SelectAddress(ctx, h.address.ID)
	require.NoError(t, err)

	release := coupons.hold("FIRST")
	type result struct {
		snapshot *models.CartSnapshot
		err      error
	}
	firstDone := make(chan result, 1)
	go func() {
		snapshot, err := o.ApplyCoupon(ctx, "FIRST")
		firstDone <- result{snapshot, err}
	}()

	select {
	case code := <-coupons.entered:
		require.Equal(t, "FIRST", code)
	case <-time.After(2 * time.Second):
		t.Fatal("first pricing request never started")
	}

	second, err := o.ApplyCoupon(ctx, "SECOND")
	require.NoError(t, err)
	assert.Equal(t, "SECOND", second.CouponCode)

	release()
	first := <-firstDone
	assert.ErrorIs(t, first.err, ErrStalePricing)
	assert.Nil(t, first.snapshot)

	view, err := o.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SECOND", view.Summary.CouponCode)
	assert.Equal(t, "200.00", view.Summary.Discount.StringFixed(2))
	assert.Equal(t, "850.00", view.Summary.GrandTotal.StringFixed(2))
}

func TestCheckout_AbandonedAfterTimeout(t *testing.T) {
	h := newCheckoutHarness(t)
	h.deps.AuthorizationTimeout = 50 * time.Millisecond
	o, request := h.awaiting(t, "")

	require.Eventually(t, func() bool {
		return o.State() == StateFailed
	}, 2*time.Second, 10*time.Millisecond)

	view, err := o.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FailureAbandoned, view.Failure.Kind)

	intent, err := h.deps.Gateway.FindIntent(context.Background(), request.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIntentFailed, intent.Status)

	_, lateErr := o.HandleCallback(context.Background(), request.AttemptID, signedCallback(request.OrderID, "pay_late"))
	assert.True(t, utils.IsKind(lateErr, utils.KindConsistency), "a verified late payment must not be dropped")
	assert.Zero(t, h.committer.count())
	assert.Equal(t, StateFailed, o.State())

	intent, err = h.deps.Gateway.FindIntent(context.Background(), request.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIntentAuthorized, intent.Status)
	assert.Equal(t, "pay_late", intent.PaymentID)

	var cases []models.ReconciliationCase
	require.NoError(t, h.db.Find(&cases).Error)
	require.Len(t, cases, 1)
	assert.Equal(t, "pay_late", cases[0].PaymentID)
	assert.Equal(t, h.session.BuyerID, cases[0].UserID)
	assert.Contains(t, lateErr.Error(), fmt.Sprintf("case #%d", cases[0].ID))

	select {
	case alert := <-h.notifier.alerts:
		assert.Equal(t, cases[0].ID, alert.ID)
	default:
		t.Fatal("operators were not alerted")
	}
}

func TestCheckout_LateCallbackNeedsValidSignature(t *testing.T) {
	h := newCheckoutHarness(t)
	h.deps.AuthorizationTimeout = 50 * time.Millisecond
	o, request := h.awaiting(t, "")
	require.Eventually(t, func() bool {
		return o.State() == StateFailed
	}, 2*time.Second, 10*time.Millisecond)

	forged := GatewayCallback{PaymentID: "pay_late", GatewayOrderID: request.OrderID, Signature: "forged"}
	_, err := o.HandleCallback(context.Background(), request.AttemptID, forged)
	assert.True(t, utils.IsKind(err, utils.KindVerification))

	unsigned := GatewayCallback{PaymentID: "pay_late", GatewayOrderID: request.OrderID}
	_, err = o.HandleCallback(context.Background(), request.AttemptID, unsigned)
	assert.True(t, utils.IsKind(err, utils.KindState))

	var cases int64
	h.db.Model(&models.ReconciliationCase{}).Count(&cases)
	assert.Zero(t, cases)

	intent, err := h.deps.Gateway.FindIntent(context.Background(), request.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIntentFailed, intent.Status)
}

func TestCheckout_RetryAfterDeclinedPayment(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o, request := h.awaiting(t, "")

	// the gateway reports the first card declined; the buyer retries in the overlay
	require.NoError(t, h.deps.Gateway.RecordPaymentFailure(ctx, request.OrderID, "pay_declined", "card declined"))

	order, err := o.HandleCallback(ctx, request.AttemptID, signedCallback(request.OrderID, "pay_retry"))
	require.NoError(t, err)
	assert.Equal(t, "pay_retry", order.PaymentID)
	assert.Equal(t, StateCompleted, o.State())
}

func TestCheckout_Cancel(t *testing.T) {
	h := newCheckoutHarness(t)
	o, request := h.awaiting(t, "")

	require.NoError(t, o.Cancel(context.Background(), request.AttemptID))
	assert.Equal(t, StateFailed, o.State())

	view, err := o.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FailureCancelled, view.Failure.Kind)
}

func TestCheckout_CommitFailureNeedsReconciliation(t *testing.T) {
	h := newCheckoutHarness(t)
	h.committer.err = errors.New("database is locked")
	o, request := h.awaiting(t, "SAVE10")

	_, err := o.HandleCallback(context.Background(), request.AttemptID, signedCallback(request.OrderID, "pay_1"))
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindConsistency))
	assert.Equal(t, StateFailed, o.State())
	assert.Equal(t, 1, h.committer.count())

	var cases []models.ReconciliationCase
	require.NoError(t, h.db.Find(&cases).Error)
	require.Len(t, cases, 1)
	assert.Equal(t, "pay_1", cases[0].PaymentID)
	assert.Equal(t, request.OrderID, cases[0].RazorpayOrderID)
	assert.Equal(t, "SAVE10", cases[0].CouponCode)
	assert.Equal(t, models.ReconciliationOpen, cases[0].Status)

	view, err := o.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, utils.KindConsistency, view.Failure.Kind)
	assert.Equal(t, cases[0].ID, view.Failure.CaseID)

	select {
	case alert := <-h.notifier.alerts:
		assert.Equal(t, cases[0].ID, alert.ID)
	default:
		t.Fatal("operators were not alerted")
	}
}

func TestCheckout_RestartCreatesNewAttempt(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o, first := h.awaiting(t, "")

	_, err := o.Restart()
	assert.True(t, utils.IsKind(err, utils.KindState), "cannot restart mid-payment")

	require.NoError(t, o.Cancel(ctx, first.AttemptID))
	view, err := o.Restart()
	require.NoError(t, err)
	assert.Equal(t, StateAddressReady, view.State)
	assert.NotEqual(t, first.AttemptID, view.AttemptID)
	assert.Nil(t, view.Summary)

	_, err = o.Price(ctx)
	require.NoError(t, err)
	second, err := o.Pay(ctx, true)
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, second.OrderID, "a new attempt gets a new intent")
	assert.Equal(t, 2, h.client.count())

	_, err = o.HandleCallback(ctx, first.AttemptID, signedCallback(first.OrderID, "pay_old"))
	assert.True(t, utils.IsKind(err, utils.KindConsistency), "a paid superseded attempt goes to reconciliation")
	assert.Equal(t, StateAwaitingAuthorization, o.State(), "the live attempt is untouched")

	var cases []models.ReconciliationCase
	require.NoError(t, h.db.Find(&cases).Error)
	require.Len(t, cases, 1)
	assert.Equal(t, first.OrderID, cases[0].RazorpayOrderID)
	assert.Equal(t, "pay_old", cases[0].PaymentID)

	order, err := o.HandleCallback(ctx, second.AttemptID, signedCallback(second.OrderID, "pay_new"))
	require.NoError(t, err)
	assert.Equal(t, second.OrderID, order.RazorpayOrderID)
}

func TestCheckout_AddressLockedDuringPayment(t *testing.T) {
	h := newCheckoutHarness(t)
	o, _ := h.awaiting(t, "")

	_, err := o.SelectAddress(context.Background(), h.address.ID)
	assert.True(t, utils.IsKind(err, utils.KindState))
}

func TestCheckout_CreateAndSelectAddress(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o := h.orchestrator()

	fields := validAddressFields()
	fields.PostalCode = "12"
	_, err := o.CreateAndSelectAddress(ctx, fields)
	assert.True(t, utils.IsKind(err, utils.KindValidation))
	assert.Equal(t, StateIdle, o.State())

	view, err := o.CreateAndSelectAddress(ctx, validAddressFields())
	require.NoError(t, err)
	assert.Equal(t, StateAddressReady, view.State)
	assert.NotEqual(t, h.address.ID, view.Address.ID)
}

func TestSessionRegistry(t *testing.T) {
	h := newCheckoutHarness(t)
	registry := NewSessionRegistry(h.deps, time.Minute)

	a := registry.Get(h.session)
	assert.Same(t, a, registry.Get(h.session))

	other := h.session
	other.SessionID = "another-tab"
	assert.NotSame(t, a, registry.Get(other))
	assert.Equal(t, 2, registry.Len())

	next := h.session
	next.RequestID = "req-2"
	assert.Same(t, a, registry.Get(next))

	assert.Zero(t, registry.Sweep(time.Now()))
	assert.Equal(t, 2, registry.Sweep(time.Now().Add(2*time.Minute)))
	assert.Zero(t, registry.Len())
}

func TestCheckout_CommitUsesLatestRequest(t *testing.T) {
	h := newCheckoutHarness(t)
	h.session.RequestID = "req-1"
	registry := NewSessionRegistry(h.deps, time.Minute)
	ctx := context.Background()

	o := registry.Get(h.session)
	_, err := o.SelectAddress(ctx, h.address.ID)
	require.NoError(t, err)
	_, err = o.Price(ctx)
	require.NoError(t, err)
	request, err := o.Pay(ctx, true)
	require.NoError(t, err)

	later := h.session
	later.RequestID = "req-2"
	_, err = registry.Get(later).HandleCallback(ctx, request.AttemptID, signedCallback(request.OrderID, "pay_1"))
	require.NoError(t, err)

	seen := h.committer.sessions()
	require.Len(t, seen, 1)
	assert.Equal(t, "req-2", seen[0].RequestID)
}

func TestCheckout_PaySupersededWhileCreatingIntent(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	o := h.orchestrator()
	_, err := o.SelectAddress(ctx, h.address.ID)
	require.NoError(t, err)
	_, err = o.Price(ctx)
	require.NoError(t, err)

	release := h.client.hold()
	payDone := make(chan error, 1)
	go func() {
		_, err := o.Pay(ctx, true)
		payDone <- err
	}()
	select {
	case <-h.client.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("gateway order was never requested")
	}

	// the checkout stays readable and editable while the gateway call is out
	view, err := o.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatePricedReady, view.State)
	_, err = o.ApplyCoupon(ctx, "SAVE10")
	require.NoError(t, err)

	release()
	select {
	case err = <-payDone:
	case <-time.After(2 * time.Second):
		t.Fatal("pay did not return")
	}
	assert.True(t, utils.IsKind(err, utils.KindState))
	assert.Equal(t, StatePricedReady, o.State())

	var intents []models.PaymentIntent
	require.NoError(t, h.db.Find(&intents).Error)
	require.Len(t, intents, 1)
	assert.Equal(t, models.PaymentIntentFailed, intents[0].Status)
	assert.Equal(t, "superseded before payment", intents[0].FailureReason)

	h.client.gate = nil
	request, err := o.Pay(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(97000), request.Amount, "payment uses the latest pricing")
}
