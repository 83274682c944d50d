package services

import (
	"context"
	"sync"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
)

// GatewayCallback is what the checkout overlay's handler relays back
type GatewayCallback struct {
	PaymentID      string `json:"razorpay_payment_id"`
	GatewayOrderID string `json:"razorpay_order_id"`
	Signature      string `json:"razorpay_signature"`
}

// Complete reports whether all three fields are present
func (c GatewayCallback) Complete() bool {
	return c.PaymentID != "" && c.GatewayOrderID != "" && c.Signature != ""
}

// CallbackOutcome is the orchestrator's answer to one delivered callback
type CallbackOutcome struct {
	Order *models.Order
	Err   error

	// late is set when the attempt stopped waiting before the callback was read
	late bool
}

type callbackEnvelope struct {
	callback  GatewayCallback
	session   Session
	cancelled bool
	reply     chan CallbackOutcome
}

type subscription struct {
	ch   chan callbackEnvelope
	done chan struct{}
	once sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// CallbackBus routes gateway callbacks to the attempt waiting for them.
// Callbacks for an attempt nobody is waiting on are rejected.
type CallbackBus struct {
	mu   sync.Mutex
	subs map[string]*subscription
}

func NewCallbackBus() *CallbackBus {
	return &CallbackBus{subs: make(map[string]*subscription)}
}

func (b *CallbackBus) open(attemptID string) *subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.subs[attemptID]; ok {
		old.close()
	}
	sub := &subscription{
		ch:   make(chan callbackEnvelope),
		done: make(chan struct{}),
	}
	b.subs[attemptID] = sub
	return sub
}

func (b *CallbackBus) closeAttempt(attemptID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[attemptID]; ok {
		sub.close()
		delete(b.subs, attemptID)
	}
}

func (b *CallbackBus) publish(ctx context.Context, attemptID string, env callbackEnvelope) (CallbackOutcome, error) {
	b.mu.Lock()
	sub, ok := b.subs[attemptID]
	b.mu.Unlock()
	if !ok {
		return CallbackOutcome{}, utils.StateError("No payment is awaiting authorization for this attempt")
	}

	select {
	case sub.ch <- env:
	case <-sub.done:
		return CallbackOutcome{}, utils.StateError("Payment attempt is no longer active")
	case <-ctx.Done():
		return CallbackOutcome{}, ctx.Err()
	}

	select {
	case outcome := <-env.reply:
		return outcome, nil
	case <-ctx.Done():
		return CallbackOutcome{}, ctx.Err()
	}
}
