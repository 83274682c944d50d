package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reconciliation case statuses
const (
	ReconciliationOpen     = "open"
	ReconciliationResolved = "resolved"
)

// ReconciliationCase flags a verified payment that did not produce an order.
// Operators settle these by hand (create the order or refund the payment).
type ReconciliationCase struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	AttemptID       string          `gorm:"index;not null" json:"attempt_id"`
	UserID          uint            `gorm:"index;not null" json:"user_id"`
	AddressID       uint            `json:"address_id"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	RazorpayOrderID string          `gorm:"index;not null" json:"razorpay_order_id"`
	PaymentID       string          `gorm:"not null" json:"payment_id"`
	Signature       string          `json:"-"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	Reason          string          `json:"reason"`
	Status          string          `gorm:"index;not null" json:"status"`
	ResolutionNote  string          `json:"resolution_note,omitempty"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
