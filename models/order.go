package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatusPlaced is the status of a freshly committed order and its items.
// Later transitions belong to order management.
const OrderStatusPlaced = "Placed"

// Order is created exactly once per verified payment. The pair
// (RazorpayOrderID, PaymentID) is unique.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"index;not null" json:"user_id"`
	User            User            `gorm:"foreignKey:UserID" json:"-"`
	AddressID       uint            `gorm:"not null" json:"address_id"`
	Address         Address         `gorm:"foreignKey:AddressID" json:"address"`
	CouponCode      *string         `json:"coupon_code"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	Discount        decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount"`
	PlatformFee     decimal.Decimal `gorm:"type:decimal(12,2)" json:"platform_fee"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency        string          `gorm:"size:3" json:"currency"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentID       string          `gorm:"uniqueIndex:idx_orders_gateway_payment;not null" json:"payment_id"`
	RazorpayOrderID string          `gorm:"uniqueIndex:idx_orders_gateway_payment;not null" json:"razorpay_order_id"`
	AttemptID       string          `gorm:"index" json:"attempt_id"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	OrderItems      []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
}

type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"index" json:"order_id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	NGOName     string          `json:"ngo_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2)" json:"total"`
	Status      string          `json:"status"`
}
