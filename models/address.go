package models

import (
	"time"
)

// Address is a saved delivery address owned by exactly one buyer. At most one
// address per buyer has IsDefault set.
type Address struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id" gorm:"not null;index"`
	FullName   string    `json:"full_name" gorm:"not null"`
	Phone      string    `json:"phone" gorm:"size:10;not null"`
	Line       string    `json:"line" gorm:"not null"`
	Landmark   string    `json:"landmark"`
	City       string    `json:"city" gorm:"not null"`
	State      string    `json:"state" gorm:"not null"`
	PostalCode string    `json:"postal_code" gorm:"size:6;not null"`
	IsDefault  bool      `json:"is_default" gorm:"default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AddressFields is the buyer-editable part of an Address
type AddressFields struct {
	FullName   string `json:"full_name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Line       string `json:"line" binding:"required"`
	Landmark   string `json:"landmark"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
	IsDefault  bool   `json:"is_default"`
}
