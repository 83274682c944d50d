package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Coupon usage policies
const (
	CouponUsageOneTime   = "one_time"
	CouponUsageOnePerDay = "one_per_day"
)

// Coupon is administered elsewhere; checkout only validates and applies it.
// Code is stored upper-cased.
type Coupon struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Code               string          `gorm:"uniqueIndex;not null" json:"code"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percentage"`
	MaxDiscount        decimal.Decimal `gorm:"type:decimal(12,2)" json:"max_discount"`
	MinOrderAmount     decimal.Decimal `gorm:"type:decimal(12,2)" json:"min_order_amount"`
	UsageLimit         string          `gorm:"not null;default:one_time" json:"usage_limit"`
	IsActive           bool            `gorm:"default:true" json:"is_active"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	DeletedAt          gorm.DeletedAt  `gorm:"index" json:"-"`
}

// CouponUsage records one redemption of a coupon by a buyer, written together
// with the order that redeemed it.
type CouponUsage struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   uint      `gorm:"index:idx_coupon_usage_user_coupon" json:"user_id"`
	CouponID uint      `gorm:"index:idx_coupon_usage_user_coupon" json:"coupon_id"`
	OrderID  uint      `json:"order_id"`
	UsedAt   time.Time `json:"used_at"`
}
