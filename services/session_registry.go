package services

import (
	"context"
	"sync"
	"time"

	"github.com/Govind-619/DonateKart/utils"
)

// SessionRegistry holds the one orchestrator each checkout session owns
type SessionRegistry struct {
	mu      sync.Mutex
	deps    CheckoutDeps
	idleTTL time.Duration
	entries map[string]*CheckoutOrchestrator
}

func NewSessionRegistry(deps CheckoutDeps, idleTTL time.Duration) *SessionRegistry {
	if idleTTL <= 0 {
		idleTTL = 2 * deps.AuthorizationTimeout
	}
	return &SessionRegistry{
		deps:    deps,
		idleTTL: idleTTL,
		entries: make(map[string]*CheckoutOrchestrator),
	}
}

// Get returns the session's orchestrator, creating it on first use. The
// orchestrator takes on s so its logs and records carry this request.
func (r *SessionRegistry) Get(s Session) *CheckoutOrchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.entries[s.Key()]; ok {
		o.rebind(s)
		return o
	}
	o := NewCheckoutOrchestrator(r.deps, s)
	r.entries[s.Key()] = o
	utils.LogDebug("Checkout session %s opened for buyer ID: %d", s.SessionID, s.BuyerID)
	return o
}

// Len returns the number of live orchestrators
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops orchestrators idle for longer than the TTL. Attempts waiting on
// the gateway are kept until they finish or are abandoned.
func (r *SessionRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, o := range r.entries {
		if o.idle(now, r.idleTTL) {
			delete(r.entries, key)
			removed++
		}
	}
	if removed > 0 {
		utils.LogInfo("Evicted %d idle checkout sessions", removed)
	}
	return removed
}

// Run sweeps every interval until ctx is done
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
