package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Currency describes one ledger currency and its settlement policy.
// All monetary values are integers in the currency's smallest unit.
type Currency struct {
	gorm.Model
	Symbol   string `gorm:"type:varchar(10);uniqueIndex;not null" json:"symbol"`
	Name     string `gorm:"type:varchar(100)" json:"name"`
	Decimals int    `gorm:"default:8" json:"decimals"`
	Pattern  string `gorm:"type:varchar(50);default:'%f'" json:"pattern"` // display format

	WalletID uint `gorm:"default:0;index" json:"walletId"`

	MinWithdraw int64 `gorm:"default:0" json:"minWithdraw"`

	FeeDepositSite          int64   `gorm:"default:0" json:"feeDepositSite"`
	FeeMoveSiteFlat         int64   `gorm:"default:0" json:"feeMoveSiteFlat"`
	FeeMoveSiteProportional float64 `gorm:"default:0" json:"feeMoveSiteProportional"`
	FeeWithdrawSiteFlat     int64   `gorm:"default:0" json:"feeWithdrawSiteFlat"`

	// Symbol -> rate quotes for display purposes
	ExchangeRates datatypes.JSONMap `json:"exchangeRates"`

	// Cumulative per-user withdrawal cap per calendar day. 0 means no
	// cap. UserDayLimit rows override this per user.
	MaxWithdrawPerDay int64 `gorm:"default:0" json:"maxWithdrawPerDay"`

	IsDeleted bool `gorm:"default:false" json:"isDeleted"`

	Wallet Wallet `gorm:"foreignKey:WalletID" json:"-"`
}

func (Currency) TableName() string {
	return "currencies"
}

// UserDayLimit overrides a currency's daily withdrawal cap for one user
type UserDayLimit struct {
	gorm.Model
	UserID            uint  `gorm:"not null;index:idx_user_day_limit,unique" json:"userId"`
	CurrencyID        uint  `gorm:"not null;index:idx_user_day_limit,unique" json:"currencyId"`
	MaxWithdrawPerDay int64 `gorm:"not null" json:"maxWithdrawPerDay"`
}

func (UserDayLimit) TableName() string {
	return "user_day_limits"
}
