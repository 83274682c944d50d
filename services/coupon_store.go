package services

import (
	"context"
	"time"

	"github.com/Govind-619/DonateKart/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CouponLookup is the read-only view of the coupon catalogue pricing needs
type CouponLookup interface {
	// FindByCode returns nil, nil when no coupon has the code
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	// LastUsedAt returns the buyer's latest redemption of the coupon, nil if never used
	LastUsedAt(ctx context.Context, buyerID, couponID uint) (*time.Time, error)
	ListActive(ctx context.Context) ([]models.Coupon, error)
}

// GormCouponStore reads coupons and their usages from the database
type GormCouponStore struct {
	db *gorm.DB
}

func NewGormCouponStore(db *gorm.DB) *GormCouponStore {
	return &GormCouponStore{db: db}
}

func (s *GormCouponStore) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %s", code)
	}
	return &coupon, nil
}

func (s *GormCouponStore) LastUsedAt(ctx context.Context, buyerID, couponID uint) (*time.Time, error) {
	var usage models.CouponUsage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND coupon_id = ?", buyerID, couponID).
		Order("used_at DESC").
		First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load coupon usage")
	}
	return &usage.UsedAt, nil
}

func (s *GormCouponStore) ListActive(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("code ASC").
		Find(&coupons).Error; err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}
	return coupons, nil
}
