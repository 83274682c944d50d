package models

import (
	"gorm.io/gorm"
)

// User is a buyer or operator account. Accounts are provisioned by the
// identity service; checkout only reads them.
type User struct {
	gorm.Model
	Username  string `gorm:"uniqueIndex;not null" json:"username"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	IsBlocked bool   `json:"is_blocked"`
	IsAdmin   bool   `json:"is_admin" gorm:"default:false"`

	Addresses []Address `json:"addresses,omitempty" gorm:"foreignKey:UserID"`
}

// DisplayName returns the buyer's full name, falling back to the username
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}
