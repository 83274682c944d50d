package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment intent statuses
const (
	PaymentIntentCreated    = "created"
	PaymentIntentAuthorized = "authorized"
	PaymentIntentCaptured   = "captured"
	PaymentIntentFailed     = "failed"
)

// PaymentIntent is one gateway order created for one checkout attempt. It is
// never reused across attempts.
type PaymentIntent struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	AttemptID       string          `json:"attempt_id" gorm:"index;not null"`
	UserID          uint            `json:"user_id" gorm:"index;not null"`
	RazorpayOrderID string          `json:"razorpay_order_id" gorm:"uniqueIndex;not null"`
	PaymentID       string          `json:"payment_id,omitempty"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	AmountPaise     int64           `json:"amount_paise" gorm:"not null"`
	Currency        string          `json:"currency" gorm:"size:3;not null"`
	Status          string          `json:"status" gorm:"not null"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
