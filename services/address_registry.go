package services

import (
	"context"
	"strings"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// AddressRegistry manages a buyer's saved delivery addresses
type AddressRegistry struct {
	db *gorm.DB
}

func NewAddressRegistry(db *gorm.DB) *AddressRegistry {
	return &AddressRegistry{db: db}
}

// List returns the buyer's addresses in creation order
func (r *AddressRegistry) List(ctx context.Context, s Session) ([]models.Address, error) {
	var addresses []models.Address
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", s.BuyerID).
		Order("id ASC").
		Find(&addresses).Error; err != nil {
		return nil, errors.Wrapf(err, "list addresses for buyer %d", s.BuyerID)
	}
	return addresses, nil
}

// Get returns one of the buyer's addresses
func (r *AddressRegistry) Get(ctx context.Context, s Session, id uint) (*models.Address, error) {
	return findOwnedAddress(r.db.WithContext(ctx), s.BuyerID, id)
}

// ProvisionalSelection picks the address checkout starts with: the default,
// else the first one listed. Nothing is persisted.
func ProvisionalSelection(addresses []models.Address) *models.Address {
	if len(addresses) == 0 {
		return nil
	}
	for i := range addresses {
		if addresses[i].IsDefault {
			return &addresses[i]
		}
	}
	return &addresses[0]
}

// Create validates and stores a new address. A buyer's first address, or one
// created with IsDefault, becomes the default.
func (r *AddressRegistry) Create(ctx context.Context, s Session, fields models.AddressFields) (*models.Address, error) {
	if err := validateAddress(fields); err != nil {
		return nil, err
	}

	address := models.Address{UserID: s.BuyerID}
	applyAddressFields(&address, fields)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Address{}).Where("user_id = ?", s.BuyerID).Count(&count).Error; err != nil {
			return errors.Wrap(err, "count addresses")
		}
		makeDefault := fields.IsDefault || count == 0

		if err := tx.Create(&address).Error; err != nil {
			return errors.Wrap(err, "create address")
		}
		if makeDefault {
			return moveDefault(tx, s.BuyerID, address.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.WithFields(s.fields()).Infof("Address %d created", address.ID)
	return findOwnedAddress(r.db.WithContext(ctx), s.BuyerID, address.ID)
}

// Update replaces the editable fields of an address. IsDefault=true also
// moves the default; IsDefault=false never clears it (use SetDefault on another
// address instead).
func (r *AddressRegistry) Update(ctx context.Context, s Session, id uint, fields models.AddressFields) (*models.Address, error) {
	if err := validateAddress(fields); err != nil {
		return nil, err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		address, err := findOwnedAddress(tx, s.BuyerID, id)
		if err != nil {
			return err
		}
		applyAddressFields(address, fields)
		if err := tx.Model(address).
			Select("full_name", "phone", "line", "landmark", "city", "state", "postal_code").
			Updates(address).Error; err != nil {
			return errors.Wrap(err, "update address")
		}
		if fields.IsDefault {
			return moveDefault(tx, s.BuyerID, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.WithFields(s.fields()).Infof("Address %d updated", id)
	return findOwnedAddress(r.db.WithContext(ctx), s.BuyerID, id)
}

// Delete removes an address. Addresses referenced by an order are rejected
// with a ConflictError and left in place.
func (r *AddressRegistry) Delete(ctx context.Context, s Session, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		address, err := findOwnedAddress(tx, s.BuyerID, id)
		if err != nil {
			return err
		}

		var orderCount int64
		if err := tx.Model(&models.Order{}).Where("address_id = ?", address.ID).Count(&orderCount).Error; err != nil {
			return errors.Wrap(err, "check address usage")
		}
		if orderCount > 0 {
			return utils.ConflictError("This address is associated with existing orders and cannot be deleted", nil)
		}

		if err := tx.Delete(address).Error; err != nil {
			return errors.Wrap(err, "delete address")
		}
		return nil
	})
	if err != nil {
		return err
	}

	utils.WithFields(s.fields()).Infof("Address %d deleted", id)
	return nil
}

// SetDefault makes id the buyer's only default address in one transaction
func (r *AddressRegistry) SetDefault(ctx context.Context, s Session, id uint) (*models.Address, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findOwnedAddress(tx, s.BuyerID, id); err != nil {
			return err
		}
		return moveDefault(tx, s.BuyerID, id)
	})
	if err != nil {
		return nil, err
	}

	utils.WithFields(s.fields()).Infof("Address %d set as default", id)
	return findOwnedAddress(r.db.WithContext(ctx), s.BuyerID, id)
}

func moveDefault(tx *gorm.DB, buyerID, id uint) error {
	if err := tx.Model(&models.Address{}).
		Where("user_id = ? AND id <> ?", buyerID, id).
		Update("is_default", false).Error; err != nil {
		return errors.Wrap(err, "clear previous default address")
	}
	if err := tx.Model(&models.Address{}).
		Where("id = ? AND user_id = ?", id, buyerID).
		Update("is_default", true).Error; err != nil {
		return errors.Wrap(err, "set default address")
	}
	return nil
}

func findOwnedAddress(db *gorm.DB, buyerID, id uint) (*models.Address, error) {
	var address models.Address
	err := db.Where("id = ? AND user_id = ?", id, buyerID).First(&address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("Address not found", nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load address %d", id)
	}
	return &address, nil
}

func validateAddress(fields models.AddressFields) error {
	errs := utils.ValidateAddressFields(fields.FullName, fields.Phone, fields.Line, fields.Landmark,
		fields.City, fields.State, fields.PostalCode)
	if len(errs) > 0 {
		return utils.ValidationError("Validation failed", errs)
	}
	return nil
}

func applyAddressFields(address *models.Address, fields models.AddressFields) {
	address.FullName = utils.CollapseSpaces(fields.FullName)
	address.Phone = strings.TrimSpace(fields.Phone)
	address.Line = strings.TrimSpace(fields.Line)
	address.Landmark = strings.TrimSpace(fields.Landmark)
	address.City = utils.Title(strings.TrimSpace(fields.City))
	address.State = utils.Title(strings.TrimSpace(fields.State))
	address.PostalCode = strings.TrimSpace(fields.PostalCode)
}
