package models

import (
	"gorm.io/gorm"
)

// AddressType distinguishes deposit from withdrawal addresses
type AddressType string

const (
	AddressDeposit    AddressType = "deposit"
	AddressWithdrawal AddressType = "withdrawal"
)

// Address is an external account a user deposits from or withdraws to
type Address struct {
	gorm.Model
	Address    string      `gorm:"type:varchar(255);not null;index" json:"address"`
	Extra      string      `gorm:"type:varchar(255)" json:"extra"` // memo / destination tag
	CurrencyID uint        `gorm:"not null;index" json:"currencyId"`
	UserID     uint        `gorm:"not null;index" json:"userId"`
	Type       AddressType `gorm:"type:varchar(20);not null" json:"type"`
	IsDeleted  bool        `gorm:"default:false" json:"isDeleted"`
}

func (Address) TableName() string {
	return "addresses"
}
