package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/shopspring/decimal"
)

// PricingEngine turns cart contents and an optional coupon into a CartSnapshot.
// Apart from the coupon lookup it is a pure function of its inputs.
type PricingEngine struct {
	coupons     CouponLookup
	platformFee decimal.Decimal
	now         func() time.Time
}

func NewPricingEngine(coupons CouponLookup, platformFee decimal.Decimal) *PricingEngine {
	return &PricingEngine{
		coupons:     coupons,
		platformFee: platformFee.Round(2),
		now:         time.Now,
	}
}

// CouponView is an active coupon annotated for the buyer's current cart
type CouponView struct {
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	MaxDiscount        decimal.Decimal `json:"max_discount"`
	MinOrderAmount     decimal.Decimal `json:"min_order_amount"`
	UsageLimit         string          `json:"usage_limit"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
	Eligible           bool            `json:"eligible"`
	Reason             string          `json:"reason,omitempty"`
}

// PriceCart computes subtotal, discount, platform fee and grand total.
//
// When the coupon cannot be applied the returned snapshot is the uncouponed
// pricing and the error is a CouponInvalidError, so callers can fall back
// without a second call.
func (e *PricingEngine) PriceCart(ctx context.Context, s Session, lines []models.CartLine, couponCode string) (models.CartSnapshot, error) {
	subtotal, err := subtotalOf(lines)
	if err != nil {
		return models.CartSnapshot{}, err
	}

	base := e.snapshot(lines, subtotal, decimal.Zero, "")
	if couponCode == "" {
		return base, nil
	}

	code := utils.NormalizeCouponCode(couponCode)
	if err := utils.ValidateCouponCode(code); err != nil {
		return models.CartSnapshot{}, err
	}

	coupon, err := e.coupons.FindByCode(ctx, code)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	if coupon == nil {
		utils.LogInfo("Coupon %s not found for buyer ID: %d", code, s.BuyerID)
		return base, utils.CouponInvalidError("Invalid coupon code")
	}

	reason, err := e.unavailableReason(ctx, s, coupon, subtotal)
	if err != nil {
		return models.CartSnapshot{}, err
	}
	if reason != "" {
		utils.LogInfo("Coupon %s rejected for buyer ID: %d: %s", code, s.BuyerID, reason)
		return base, utils.CouponInvalidError(reason)
	}

	discount := CouponDiscount(subtotal, coupon)
	utils.LogDebug("Coupon %s gives discount %s on subtotal %s for buyer ID: %d",
		code, discount.StringFixed(2), subtotal.StringFixed(2), s.BuyerID)
	return e.snapshot(lines, subtotal, discount, coupon.Code), nil
}

// ListActiveCoupons returns active coupons with their eligibility for subtotal
func (e *PricingEngine) ListActiveCoupons(ctx context.Context, s Session, subtotal decimal.Decimal) ([]CouponView, error) {
	coupons, err := e.coupons.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]CouponView, 0, len(coupons))
	for i := range coupons {
		coupon := &coupons[i]
		if coupon.ExpiresAt != nil && !e.now().Before(*coupon.ExpiresAt) {
			continue
		}
		reason, err := e.unavailableReason(ctx, s, coupon, subtotal)
		if err != nil {
			return nil, err
		}
		views = append(views, CouponView{
			Code:               coupon.Code,
			DiscountPercentage: coupon.DiscountPercentage,
			MaxDiscount:        coupon.MaxDiscount,
			MinOrderAmount:     coupon.MinOrderAmount,
			UsageLimit:         coupon.UsageLimit,
			ExpiresAt:          coupon.ExpiresAt,
			Eligible:           reason == "",
			Reason:             reason,
		})
	}
	return views, nil
}

// CouponDiscount is subtotal × percentage / 100 rounded to paise, capped by the
// coupon's maximum (when positive) and by the subtotal itself.
func CouponDiscount(subtotal decimal.Decimal, coupon *models.Coupon) decimal.Decimal {
	discount := subtotal.Mul(coupon.DiscountPercentage).Div(decimal.NewFromInt(100)).Round(2)
	if coupon.MaxDiscount.IsPositive() && discount.GreaterThan(coupon.MaxDiscount) {
		discount = coupon.MaxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2)
}

func (e *PricingEngine) unavailableReason(ctx context.Context, s Session, coupon *models.Coupon, subtotal decimal.Decimal) (string, error) {
	now := e.now()
	if !coupon.IsActive {
		return "Coupon is not active", nil
	}
	if coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt) {
		return "Coupon has expired", nil
	}
	if subtotal.LessThan(coupon.MinOrderAmount) {
		return fmt.Sprintf("Minimum order amount of %s required for this coupon", utils.FormatRupees(coupon.MinOrderAmount)), nil
	}

	lastUsed, err := e.coupons.LastUsedAt(ctx, s.BuyerID, coupon.ID)
	if err != nil {
		return "", err
	}
	if lastUsed == nil {
		return "", nil
	}
	switch coupon.UsageLimit {
	case models.CouponUsageOnePerDay:
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if !lastUsed.Before(midnight) {
			return "Coupon already used today", nil
		}
	default:
		return "You have already used this coupon", nil
	}
	return "", nil
}

func (e *PricingEngine) snapshot(lines []models.CartLine, subtotal, discount decimal.Decimal, code string) models.CartSnapshot {
	copied := make([]models.CartLine, len(lines))
	copy(copied, lines)
	return models.CartSnapshot{
		Lines:       copied,
		Subtotal:    subtotal,
		Discount:    discount,
		PlatformFee: e.platformFee,
		GrandTotal:  subtotal.Sub(discount).Add(e.platformFee).Round(2),
		CouponCode:  code,
	}
}

func subtotalOf(lines []models.CartLine) (decimal.Decimal, error) {
	if len(lines) == 0 {
		return decimal.Zero, utils.ValidationError("Cart is empty", nil)
	}
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			return decimal.Zero, utils.ValidationError(fmt.Sprintf("Invalid quantity for %s", line.ProductName), nil)
		}
		if line.UnitPrice.IsNegative() {
			return decimal.Zero, utils.ValidationError(fmt.Sprintf("Invalid price for %s", line.ProductName), nil)
		}
		subtotal = subtotal.Add(line.LineTotal())
	}
	return subtotal.Round(2), nil
}
