package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a persisted line of a buyer's cart. The catalog owns products;
// the name and unit price here are what the cart holds at checkout time.
type CartItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"index;not null" json:"user_id"`
	ProductID   uint            `gorm:"not null" json:"product_id"`
	ProductName string          `json:"product_name"`
	NGOName     string          `json:"ngo_name"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CartLine is one line of cart contents fed into pricing
type CartLine struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	NGOName     string          `json:"ngo_name,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// LineTotal is unit price times quantity
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is the priced view of a cart for one checkout attempt. It is
// derived and never persisted.
type CartSnapshot struct {
	Lines       []CartLine      `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	CouponCode  string          `json:"coupon_code,omitempty"`
}

// HasCoupon reports whether a coupon was applied to this snapshot
func (s CartSnapshot) HasCoupon() bool {
	return s.CouponCode != ""
}
