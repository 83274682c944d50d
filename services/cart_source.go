package services

import (
	"context"

	"github.com/Govind-619/DonateKart/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CartSource supplies the buyer's current cart contents
type CartSource interface {
	Lines(ctx context.Context, buyerID uint) ([]models.CartLine, error)
}

// GormCartSource reads cart_items rows
type GormCartSource struct {
	db *gorm.DB
}

func NewGormCartSource(db *gorm.DB) *GormCartSource {
	return &GormCartSource{db: db}
}

func (s *GormCartSource) Lines(ctx context.Context, buyerID uint) ([]models.CartLine, error) {
	var items []models.CartItem
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", buyerID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "load cart for buyer %d", buyerID)
	}

	lines := make([]models.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, models.CartLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			NGOName:     item.NGOName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}
	return lines, nil
}
