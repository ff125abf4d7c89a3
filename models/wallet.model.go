package models

import (
	"gorm.io/gorm"
)

// Wallet binds a currency to an external adapter capability. Adapter
// is a registry key ("builtin", "rpcnode", ...); Endpoint and Secret
// are only meaningful for remote adapters. A wallet without a
// registered adapter simply never becomes an execution candidate.
type Wallet struct {
	gorm.Model
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	Adapter  string `gorm:"type:varchar(50);not null" json:"adapter"`
	Endpoint string `gorm:"type:varchar(255)" json:"endpoint"`
	Secret   string `gorm:"type:varchar(255)" json:"-"`
	Enabled  bool   `gorm:"default:true" json:"enabled"`
	Locked   bool   `gorm:"default:false" json:"locked"`
}

func (Wallet) TableName() string {
	return "wallets"
}
