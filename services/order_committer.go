package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommitRequest carries a verified payment and the cart state it paid for
type CommitRequest struct {
	AttemptID      string
	AddressID      uint
	CouponCode     string
	PaymentID      string
	GatewayOrderID string
	Amount         decimal.Decimal
	Signature      string
	Snapshot       models.CartSnapshot
}

// OrderCommitter records orders for verified payments. Commit is idempotent on
// (gateway order id, payment id).
type OrderCommitter struct {
	db       *gorm.DB
	currency string
}

func NewOrderCommitter(db *gorm.DB, currency string) *OrderCommitter {
	return &OrderCommitter{db: db, currency: currency}
}

// Commit writes the order, its items, the coupon usage, the captured intent
// and the emptied cart in one transaction. The bool is false when the order
// already existed.
func (c *OrderCommitter) Commit(ctx context.Context, s Session, req CommitRequest) (*models.Order, bool, error) {
	if req.PaymentID == "" || req.GatewayOrderID == "" {
		return nil, false, utils.BadRequestError("Payment reference is required", nil)
	}

	var order models.Order
	created := false
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findOrderByPayment(tx, req.GatewayOrderID, req.PaymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			order = *existing
			return nil
		}

		if _, err := findOwnedAddress(tx, s.BuyerID, req.AddressID); err != nil {
			return err
		}

		var intent models.PaymentIntent
		if err := tx.Where("razorpay_order_id = ? AND user_id = ?", req.GatewayOrderID, s.BuyerID).
			First(&intent).Error; err != nil {
			return errors.Wrapf(err, "load payment intent %s", req.GatewayOrderID)
		}
		if intent.Status == models.PaymentIntentFailed {
			return fmt.Errorf("payment intent %s already failed", req.GatewayOrderID)
		}
		if !intent.Amount.Equal(req.Amount.Round(2)) {
			return fmt.Errorf("amount %s does not match intent amount %s",
				req.Amount.StringFixed(2), intent.Amount.StringFixed(2))
		}

		order = models.Order{
			UserID:          s.BuyerID,
			AddressID:       req.AddressID,
			Subtotal:        req.Snapshot.Subtotal,
			Discount:        req.Snapshot.Discount,
			PlatformFee:     req.Snapshot.PlatformFee,
			TotalAmount:     req.Amount.Round(2),
			Currency:        c.currency,
			PaymentMethod:   "RAZORPAY",
			PaymentID:       req.PaymentID,
			RazorpayOrderID: req.GatewayOrderID,
			AttemptID:       req.AttemptID,
			Status:          models.OrderStatusPlaced,
		}
		if req.CouponCode != "" {
			code := req.CouponCode
			order.CouponCode = &code
		}
		for _, line := range req.Snapshot.Lines {
			order.OrderItems = append(order.OrderItems, models.OrderItem{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				NGOName:     line.NGOName,
				Quantity:    line.Quantity,
				Price:       line.UnitPrice,
				Total:       line.LineTotal().Round(2),
				Status:      models.OrderStatusPlaced,
			})
		}
		if err := tx.Create(&order).Error; err != nil {
			return errors.Wrap(err, "create order")
		}

		if req.CouponCode != "" {
			var coupon models.Coupon
			if err := tx.Where("code = ?", req.CouponCode).First(&coupon).Error; err != nil {
				return errors.Wrapf(err, "load coupon %s", req.CouponCode)
			}
			usage := models.CouponUsage{
				UserID:   s.BuyerID,
				CouponID: coupon.ID,
				OrderID:  order.ID,
				UsedAt:   time.Now(),
			}
			if err := tx.Create(&usage).Error; err != nil {
				return errors.Wrap(err, "record coupon usage")
			}
		}

		if err := markIntent(tx, req.GatewayOrderID, map[string]interface{}{
			"status":     models.PaymentIntentCaptured,
			"payment_id": req.PaymentID,
		}, models.PaymentIntentCreated, models.PaymentIntentAuthorized); err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", s.BuyerID).Delete(&models.CartItem{}).Error; err != nil {
			return errors.Wrap(err, "clear cart")
		}
		created = true
		return nil
	})
	if err != nil {
		// a concurrent commit for the same payment may have won the unique index
		if existing, lookupErr := findOrderByPayment(c.db.WithContext(ctx), req.GatewayOrderID, req.PaymentID); lookupErr == nil && existing != nil {
			utils.LogWarn("Order %d already recorded for payment %s", existing.ID, req.PaymentID)
			return c.load(ctx, existing.ID)
		}
		return nil, false, err
	}

	if created {
		utils.WithFields(s.fields()).Infof("Order %d placed for payment %s, total %s",
			order.ID, req.PaymentID, utils.FormatAmount(order.TotalAmount))
	} else {
		utils.LogInfo("Order %d already exists for payment %s, returning it", order.ID, req.PaymentID)
	}

	loaded, _, err := c.load(ctx, order.ID)
	if err != nil {
		return nil, false, err
	}
	return loaded, created, nil
}

// FindForBuyer loads one of the buyer's orders with its address and items
func (c *OrderCommitter) FindForBuyer(ctx context.Context, s Session, orderID uint) (*models.Order, error) {
	var order models.Order
	err := c.db.WithContext(ctx).
		Preload("Address").
		Preload("OrderItems").
		Where("id = ? AND user_id = ?", orderID, s.BuyerID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("Order not found", nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load order %d", orderID)
	}
	return &order, nil
}

func (c *OrderCommitter) load(ctx context.Context, orderID uint) (*models.Order, bool, error) {
	var order models.Order
	if err := c.db.WithContext(ctx).
		Preload("Address").
		Preload("OrderItems").
		First(&order, orderID).Error; err != nil {
		return nil, false, errors.Wrapf(err, "load order %d", orderID)
	}
	return &order, false, nil
}

func findOrderByPayment(db *gorm.DB, gatewayOrderID, paymentID string) (*models.Order, error) {
	var order models.Order
	err := db.Where("razorpay_order_id = ? AND payment_id = ?", gatewayOrderID, paymentID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "look up order by payment")
	}
	return &order, nil
}
