package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CheckoutState is a step of the checkout state machine
type CheckoutState string

const (
	StateIdle                  CheckoutState = "idle"
	StateAddressReady          CheckoutState = "address_ready"
	StatePricedReady           CheckoutState = "priced_ready"
	StateIntentCreated         CheckoutState = "intent_created"
	StateAwaitingAuthorization CheckoutState = "awaiting_authorization"
	StateVerifying             CheckoutState = "verifying"
	StateCommitting            CheckoutState = "committing"
	StateCompleted             CheckoutState = "completed"
	StateFailed                CheckoutState = "failed"
)

// Failure kinds that are not error classes of their own
const (
	FailureAbandoned utils.ErrorKind = "abandoned"
	FailureCancelled utils.ErrorKind = "cancelled"
)

// commitTimeout bounds verification and commit, which run detached from the
// request that delivered the callback.
const commitTimeout = 30 * time.Second

// ErrStalePricing is returned to a pricing request that was overtaken by a newer one
var ErrStalePricing = errors.New("pricing result superseded by a newer request")

// Failure is why an attempt ended in StateFailed
type Failure struct {
	Kind   utils.ErrorKind `json:"kind"`
	Reason string          `json:"reason"`
	CaseID uint            `json:"reconciliation_case_id,omitempty"`
}

// PaymentVerification is satisfied by PaymentVerifier
type PaymentVerification interface {
	Verify(paymentID, gatewayOrderID, signature string) (VerificationResult, error)
}

// OrderRecorder is satisfied by OrderCommitter
type OrderRecorder interface {
	Commit(ctx context.Context, s Session, req CommitRequest) (*models.Order, bool, error)
}

// CheckoutDeps are the collaborators shared by every orchestrator
type CheckoutDeps struct {
	Addresses            *AddressRegistry
	Pricing              *PricingEngine
	Cart                 CartSource
	Gateway              *PaymentGatewayAdapter
	Verifier             PaymentVerification
	Committer            OrderRecorder
	Guard                CallbackGuard
	Bus                  *CallbackBus
	Notifier             Notifier
	Reconciliation       *ReconciliationDesk
	Auditor              *CaptureAuditor
	Currency             string
	AuthorizationTimeout time.Duration
}

// CheckoutView is the read model returned to the buyer
type CheckoutView struct {
	State              CheckoutState         `json:"state"`
	AttemptID          string                `json:"attempt_id"`
	Address            *models.Address       `json:"address,omitempty"`
	ProvisionalAddress *models.Address       `json:"provisional_address,omitempty"`
	Summary            *models.CartSnapshot  `json:"summary,omitempty"`
	Payment            *AuthorizationRequest `json:"payment,omitempty"`
	Order              *models.Order         `json:"order,omitempty"`
	Failure            *Failure              `json:"failure,omitempty"`
}

// CheckoutOrchestrator drives one buyer session from address selection to a
// committed order. It owns the authoritative view of the current attempt.
type CheckoutOrchestrator struct {
	mu      sync.Mutex
	deps    CheckoutDeps
	session Session

	state      CheckoutState
	attemptID  string
	address    *models.Address
	snapshot   *models.CartSnapshot
	generation uint64
	intent     *models.PaymentIntent
	order      *models.Order
	failure    *Failure
	touched    time.Time
}

func NewCheckoutOrchestrator(deps CheckoutDeps, s Session) *CheckoutOrchestrator {
	if deps.AuthorizationTimeout <= 0 {
		deps.AuthorizationTimeout = 15 * time.Minute
	}
	if deps.Currency == "" {
		deps.Currency = utils.DefaultCurrency
	}
	return &CheckoutOrchestrator{
		deps:      deps,
		session:   s,
		state:     StateIdle,
		attemptID: uuid.New().String(),
		touched:   time.Now(),
	}
}

// rebind makes later work on behalf of the session carry the latest
// request's context. The buyer never changes.
func (o *CheckoutOrchestrator) rebind(s Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s.BuyerID == o.session.BuyerID {
		o.session = s
	}
}

// State returns the current state
func (o *CheckoutOrchestrator) State() CheckoutState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// AttemptID returns the id of the current attempt
func (o *CheckoutOrchestrator) AttemptID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attemptID
}

// View returns the buyer-facing state. Before an address is chosen it carries
// the provisional selection.
func (o *CheckoutOrchestrator) View(ctx context.Context) (*CheckoutView, error) {
	o.mu.Lock()
	view := o.viewLocked()
	o.mu.Unlock()

	if view.Address == nil {
		addresses, err := o.deps.Addresses.List(ctx, o.session)
		if err != nil {
			return nil, err
		}
		view.ProvisionalAddress = ProvisionalSelection(addresses)
	}
	return view, nil
}

// SelectAddress picks one of the buyer's saved addresses for delivery
func (o *CheckoutOrchestrator) SelectAddress(ctx context.Context, addressID uint) (*CheckoutView, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireAddressChangeable(); err != nil {
		return nil, err
	}

	address, err := o.deps.Addresses.Get(ctx, o.session, addressID)
	if err != nil {
		return nil, err
	}
	o.useAddress(address)
	return o.viewLocked(), nil
}

// CreateAndSelectAddress saves a new address and selects it
func (o *CheckoutOrchestrator) CreateAndSelectAddress(ctx context.Context, fields models.AddressFields) (*CheckoutView, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.requireAddressChangeable(); err != nil {
		return nil, err
	}

	address, err := o.deps.Addresses.Create(ctx, o.session, fields)
	if err != nil {
		return nil, err
	}
	o.useAddress(address)
	return o.viewLocked(), nil
}

// Price recomputes the summary keeping the currently applied coupon
func (o *CheckoutOrchestrator) Price(ctx context.Context) (*models.CartSnapshot, error) {
	return o.price(ctx, nil)
}

// ApplyCoupon prices the cart with code. An unusable coupon leaves the
// checkout priced without a coupon and returns that summary with a
// CouponInvalidError.
func (o *CheckoutOrchestrator) ApplyCoupon(ctx context.Context, code string) (*models.CartSnapshot, error) {
	if utils.NormalizeCouponCode(code) == "" {
		return nil, utils.ValidationError("Coupon code is required", nil)
	}
	return o.price(ctx, &code)
}

// RemoveCoupon prices the cart without a coupon
func (o *CheckoutOrchestrator) RemoveCoupon(ctx context.Context) (*models.CartSnapshot, error) {
	none := ""
	return o.price(ctx, &none)
}

// price runs the pricing engine outside the lock. Each request takes a new
// generation; a result whose generation is no longer current is dropped.
func (o *CheckoutOrchestrator) price(ctx context.Context, code *string) (*models.CartSnapshot, error) {
	o.mu.Lock()
	if !o.in(StateAddressReady, StatePricedReady) {
		o.mu.Unlock()
		return nil, utils.StateError("Select a delivery address before pricing")
	}
	o.generation++
	gen := o.generation
	couponCode := ""
	if code != nil {
		couponCode = *code
	} else if o.snapshot != nil {
		couponCode = o.snapshot.CouponCode
	}
	s := o.session
	o.touch()
	o.mu.Unlock()

	lines, err := o.deps.Cart.Lines(ctx, s.BuyerID)
	var snapshot models.CartSnapshot
	if err == nil {
		snapshot, err = o.deps.Pricing.PriceCart(ctx, s, lines, couponCode)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || !o.in(StateAddressReady, StatePricedReady) {
		utils.LogDebug("Discarding pricing generation %d for attempt %s, current generation %d",
			gen, o.attemptID, o.generation)
		return nil, ErrStalePricing
	}

	switch {
	case err == nil:
	case utils.IsKind(err, utils.KindCouponInvalid):
		// snapshot holds the uncouponed fallback
	case utils.IsKind(err, utils.KindValidation):
		return nil, err
	default:
		utils.LogError("Pricing failed for attempt %s: %v", o.attemptID, err)
		o.fail(&Failure{Kind: utils.KindInternal, Reason: "Could not price the cart"})
		return nil, err
	}

	o.snapshot = &snapshot
	if o.state == StateAddressReady {
		o.transition(StatePricedReady)
	}
	result := snapshot
	return &result, err
}

// Pay creates a fresh payment intent for the priced cart and hands it to the
// gateway overlay. The attempt then waits for the gateway callback. The
// gateway call runs outside the lock; if pricing or the attempt moved on
// meanwhile, the new intent is dropped unused.
func (o *CheckoutOrchestrator) Pay(ctx context.Context, scriptLoaded bool) (*AuthorizationRequest, error) {
	o.mu.Lock()
	if o.state != StatePricedReady || o.snapshot == nil || o.address == nil {
		o.mu.Unlock()
		return nil, utils.StateError("Checkout must be priced with a delivery address before payment")
	}
	// pricing still in flight is stale once payment starts
	o.generation++
	gen := o.generation
	attemptID := o.attemptID
	amount := o.snapshot.GrandTotal
	s := o.session
	o.touch()
	o.mu.Unlock()

	intent, err := o.deps.Gateway.CreateIntent(ctx, s, attemptID, amount, o.deps.Currency, scriptLoaded)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || attemptID != o.attemptID || o.state != StatePricedReady {
		if intent != nil {
			if err := o.deps.Gateway.MarkFailed(ctx, intent.RazorpayOrderID, "superseded before payment"); err != nil {
				utils.LogWarn("Could not mark intent %s failed: %v", intent.RazorpayOrderID, err)
			}
		}
		utils.LogDebug("Discarding payment start for attempt %s, checkout changed meanwhile", attemptID)
		return nil, utils.StateError("Checkout changed while payment was starting, please review and pay again")
	}
	if err != nil {
		if utils.IsKind(err, utils.KindValidation) {
			return nil, err
		}
		kind := utils.KindOf(err)
		if kind != utils.KindGatewayUnavailable {
			kind = utils.KindInternal
		}
		o.fail(&Failure{Kind: kind, Reason: messageOf(err)})
		return nil, err
	}
	o.intent = intent
	o.transition(StateIntentCreated)

	request := o.deps.Gateway.PresentForAuthorization(intent)
	sub := o.deps.Bus.open(attemptID)
	o.transition(StateAwaitingAuthorization)
	go o.awaitAuthorization(attemptID, sub)

	return &request, nil
}

// HandleCallback delivers the gateway callback for attemptID and waits for
// the outcome. A repeat of the callback that completed the attempt gets the
// committed order back without a second commit. A callback no attempt is
// waiting for is settled as a late payment.
func (o *CheckoutOrchestrator) HandleCallback(ctx context.Context, attemptID string, cb GatewayCallback) (*models.Order, error) {
	o.mu.Lock()
	if o.state == StateCompleted && o.attemptID == attemptID && o.order != nil &&
		cb.PaymentID == o.order.PaymentID && cb.GatewayOrderID == o.order.RazorpayOrderID {
		order := o.order
		o.mu.Unlock()
		utils.LogInfo("Duplicate callback for payment %s suppressed, order %d already placed", cb.PaymentID, order.ID)
		return order, nil
	}
	current := o.attemptID
	s := o.session
	o.mu.Unlock()
	if current != attemptID {
		utils.LogWarn("Callback for attempt %s rejected, current attempt is %s", attemptID, current)
		return o.settleLateCallback(ctx, s, cb)
	}

	outcome, err := o.deps.Bus.publish(ctx, attemptID, callbackEnvelope{
		callback: cb,
		session:  s,
		reply:    make(chan CallbackOutcome, 1),
	})
	if err != nil {
		if utils.IsKind(err, utils.KindState) {
			return o.settleLateCallback(ctx, s, cb)
		}
		return nil, err
	}
	if outcome.late {
		return o.settleLateCallback(ctx, s, cb)
	}
	return outcome.Order, outcome.Err
}

// settleLateCallback handles a callback whose attempt is no longer waiting.
// Once its signature checks out the payment is real, so it must end as an
// order or a reconciliation case.
func (o *CheckoutOrchestrator) settleLateCallback(ctx context.Context, s Session, cb GatewayCallback) (*models.Order, error) {
	notWaiting := utils.StateError("Callback does not belong to the current checkout attempt")
	if !cb.Complete() || o.deps.Auditor == nil {
		return nil, notWaiting
	}

	o.mu.Lock()
	live := o.intent != nil && o.intent.RazorpayOrderID == cb.GatewayOrderID &&
		o.in(StateAwaitingAuthorization, StateVerifying, StateCommitting)
	o.mu.Unlock()
	if live {
		// the intent's own attempt settles it
		return nil, notWaiting
	}

	if _, err := o.deps.Verifier.Verify(cb.PaymentID, cb.GatewayOrderID, cb.Signature); err != nil {
		return nil, err
	}
	order, rc, err := o.deps.Auditor.LateCallback(ctx, s, cb)
	if err != nil {
		utils.LogError("CRITICAL: verified late payment %s could not be settled: %v", cb.PaymentID, err)
		return nil, err
	}
	if order != nil {
		return order, nil
	}
	return nil, utils.ConsistencyError(fmt.Sprintf("Your payment was received after this checkout ended. Our team has been notified (case #%d) and will contact you", rc.ID), nil)
}

// Cancel records that the buyer dismissed the gateway overlay
func (o *CheckoutOrchestrator) Cancel(ctx context.Context, attemptID string) error {
	outcome, err := o.deps.Bus.publish(ctx, attemptID, callbackEnvelope{
		cancelled: true,
		reply:     make(chan CallbackOutcome, 1),
	})
	if err != nil {
		return err
	}
	if outcome.late {
		return utils.StateError("No payment is awaiting authorization for this attempt")
	}
	return outcome.Err
}

// Restart begins a new attempt from the selected address. Only failed or
// completed checkouts restart; payment never resumes mid-flow.
func (o *CheckoutOrchestrator) Restart() (*CheckoutView, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.in(StateFailed, StateCompleted) {
		return nil, utils.StateError("Only a failed or completed checkout can be restarted")
	}

	o.deps.Bus.closeAttempt(o.attemptID)
	previous := o.attemptID
	o.attemptID = uuid.New().String()
	o.generation++
	o.snapshot = nil
	o.intent = nil
	o.order = nil
	o.failure = nil
	o.touch()

	utils.LogInfo("Checkout restarted for buyer ID: %d, attempt %s replaced by %s", o.session.BuyerID, previous, o.attemptID)
	if o.address != nil {
		o.transition(StateAddressReady)
	} else {
		o.transition(StateIdle)
	}
	return o.viewLocked(), nil
}

func (o *CheckoutOrchestrator) awaitAuthorization(attemptID string, sub *subscription) {
	timer := time.NewTimer(o.deps.AuthorizationTimeout)
	defer timer.Stop()
	defer o.deps.Bus.closeAttempt(attemptID)

	for {
		select {
		case env := <-sub.ch:
			outcome, done := o.handleEnvelope(attemptID, env)
			env.reply <- outcome
			if done {
				return
			}
		case <-timer.C:
			o.abandon(attemptID)
			return
		case <-sub.done:
			return
		}
	}
}

// handleEnvelope processes one delivery. done reports whether the attempt
// has left StateAwaitingAuthorization.
func (o *CheckoutOrchestrator) handleEnvelope(attemptID string, env callbackEnvelope) (CallbackOutcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attemptID != attemptID || o.state != StateAwaitingAuthorization || o.intent == nil {
		return CallbackOutcome{late: true}, true
	}
	o.touch()
	s := env.session

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	if env.cancelled {
		o.markIntentFailed(ctx, "cancelled by buyer")
		o.fail(&Failure{Kind: FailureCancelled, Reason: "Payment was cancelled"})
		return CallbackOutcome{}, true
	}

	cb := env.callback
	if !cb.Complete() {
		utils.LogError("Incomplete gateway callback for attempt %s", attemptID)
		err := utils.VerificationError("Payment response is incomplete", nil)
		o.markIntentFailed(ctx, "incomplete callback")
		o.fail(&Failure{Kind: utils.KindVerification, Reason: err.Message})
		return CallbackOutcome{Err: err}, true
	}
	if cb.GatewayOrderID != o.intent.RazorpayOrderID {
		utils.LogError("Callback gateway order %s does not match intent %s", cb.GatewayOrderID, intentSummary(o.intent))
		err := utils.VerificationError("Payment does not belong to this checkout", nil)
		o.markIntentFailed(ctx, "gateway order mismatch")
		o.fail(&Failure{Kind: utils.KindVerification, Reason: err.Message})
		return CallbackOutcome{Err: err}, true
	}

	claimed, err := o.deps.Guard.Claim(ctx, cb.PaymentID)
	if err != nil {
		utils.LogError("Callback guard unavailable for payment %s: %v", cb.PaymentID, err)
		return CallbackOutcome{Err: utils.InternalError("Could not process payment, please retry", err)}, false
	}
	if !claimed {
		return CallbackOutcome{Err: utils.ConflictError("This payment is already being processed", nil)}, false
	}

	o.transition(StateVerifying)
	if _, err := o.deps.Verifier.Verify(cb.PaymentID, cb.GatewayOrderID, cb.Signature); err != nil {
		o.markIntentFailed(ctx, "signature verification failed")
		o.fail(&Failure{Kind: utils.KindVerification, Reason: messageOf(err)})
		return CallbackOutcome{Err: err}, true
	}
	if err := o.deps.Gateway.MarkAuthorized(ctx, cb.GatewayOrderID, cb.PaymentID); err != nil {
		utils.LogWarn("Could not mark intent %s authorized: %v", cb.GatewayOrderID, err)
	}

	o.transition(StateCommitting)
	req := CommitRequest{
		AttemptID:      attemptID,
		AddressID:      o.address.ID,
		CouponCode:     o.snapshot.CouponCode,
		PaymentID:      cb.PaymentID,
		GatewayOrderID: cb.GatewayOrderID,
		Amount:         o.intent.Amount,
		Signature:      cb.Signature,
		Snapshot:       *o.snapshot,
	}
	order, _, err := o.deps.Committer.Commit(ctx, s, req)
	if err != nil {
		return CallbackOutcome{Err: o.failConsistency(ctx, s, req, err)}, true
	}

	o.order = order
	o.transition(StateCompleted)
	if o.deps.Notifier != nil {
		go func(order *models.Order) {
			if err := o.deps.Notifier.OrderPlaced(context.Background(), order); err != nil {
				utils.LogWarn("Order confirmation for order ID: %d not sent: %v", order.ID, err)
			}
		}(order)
	}
	return CallbackOutcome{Order: order}, true
}

// failConsistency handles a verified payment whose order was not recorded.
// The commit is never retried here; the payment goes to reconciliation.
func (o *CheckoutOrchestrator) failConsistency(ctx context.Context, s Session, req CommitRequest, cause error) error {
	utils.LogError("CRITICAL: payment %s verified but order commit failed: %v", req.PaymentID, cause)
	failure := &Failure{
		Kind:   utils.KindConsistency,
		Reason: "Payment received but the order could not be recorded",
	}

	if o.deps.Reconciliation != nil {
		rc, opened, err := o.deps.Reconciliation.Flag(ctx, s, req, cause.Error())
		if err != nil {
			utils.LogError("CRITICAL: could not open reconciliation case for payment %s: %v", req.PaymentID, err)
		} else {
			failure.CaseID = rc.ID
			if opened && o.deps.Notifier != nil {
				if err := o.deps.Notifier.ReconciliationNeeded(ctx, rc); err != nil {
					utils.LogError("Operator alert for reconciliation case %d failed: %v", rc.ID, err)
				}
			}
		}
	}

	o.fail(failure)
	return utils.ConsistencyError("Your payment was received but the order could not be recorded. Our team has been notified and will contact you", cause)
}

func (o *CheckoutOrchestrator) abandon(attemptID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attemptID != attemptID || o.state != StateAwaitingAuthorization {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	utils.LogWarn("No gateway callback for attempt %s within %s, abandoning", attemptID, o.deps.AuthorizationTimeout)
	o.markIntentFailed(ctx, "abandoned")
	o.fail(&Failure{Kind: FailureAbandoned, Reason: "No payment response was received in time"})
}

func (o *CheckoutOrchestrator) markIntentFailed(ctx context.Context, reason string) {
	if o.intent == nil {
		return
	}
	if err := o.deps.Gateway.MarkFailed(ctx, o.intent.RazorpayOrderID, reason); err != nil {
		utils.LogWarn("Could not mark intent %s failed: %v", o.intent.RazorpayOrderID, err)
	}
}

func (o *CheckoutOrchestrator) requireAddressChangeable() error {
	if !o.in(StateIdle, StateAddressReady, StatePricedReady) {
		return utils.StateError("Delivery address can only be changed before payment starts")
	}
	return nil
}

func (o *CheckoutOrchestrator) useAddress(address *models.Address) {
	o.address = address
	o.touch()
	if o.state == StateIdle {
		o.transition(StateAddressReady)
	}
}

func (o *CheckoutOrchestrator) fail(failure *Failure) {
	o.failure = failure
	o.transition(StateFailed)
}

func (o *CheckoutOrchestrator) transition(to CheckoutState) {
	utils.WithFields(map[string]interface{}{
		"attempt_id": o.attemptID,
		"buyer_id":   o.session.BuyerID,
		"from":       o.state,
		"to":         to,
	}).Info("Checkout transition")
	o.state = to
}

func (o *CheckoutOrchestrator) in(states ...CheckoutState) bool {
	for _, s := range states {
		if o.state == s {
			return true
		}
	}
	return false
}

func (o *CheckoutOrchestrator) touch() {
	o.touched = time.Now()
}

// idle reports whether the orchestrator can be dropped: untouched for ttl
// and not waiting on the gateway.
func (o *CheckoutOrchestrator) idle(now time.Time, ttl time.Duration) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.in(StateAwaitingAuthorization, StateVerifying, StateCommitting) {
		return false
	}
	return now.Sub(o.touched) > ttl
}

func (o *CheckoutOrchestrator) viewLocked() *CheckoutView {
	view := &CheckoutView{
		State:     o.state,
		AttemptID: o.attemptID,
		Address:   o.address,
		Order:     o.order,
		Failure:   o.failure,
	}
	if o.snapshot != nil {
		summary := *o.snapshot
		view.Summary = &summary
	}
	if o.state == StateAwaitingAuthorization && o.intent != nil {
		request := o.deps.Gateway.PresentForAuthorization(o.intent)
		view.Payment = &request
	}
	return view
}

func messageOf(err error) string {
	if appErr := utils.GetAppError(err); appErr != nil {
		return appErr.Message
	}
	return err.Error()
}
