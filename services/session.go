package services

import "fmt"

// Session is the explicit caller context passed into every service call: who
// the buyer is and which checkout session the request belongs to.
type Session struct {
	BuyerID   uint
	SessionID string
	RequestID string
}

// Key identifies the orchestrator owned by this session
func (s Session) Key() string {
	return fmt.Sprintf("%d:%s", s.BuyerID, s.SessionID)
}

func (s Session) fields() map[string]interface{} {
	return map[string]interface{}{
		"buyer_id":   s.BuyerID,
		"session_id": s.SessionID,
		"request_id": s.RequestID,
	}
}
