package models

import (
	"gorm.io/gorm"
)

// WithdrawalDay accumulates a user's executed withdrawal volume for a
// currency within one calendar day (amount+fee, absolute units). The
// counter resets naturally: when Day no longer matches the current
// date the stored total is ignored and overwritten.
type WithdrawalDay struct {
	gorm.Model
	UserID     uint   `gorm:"not null;index:idx_withdrawal_day,unique" json:"userId"`
	CurrencyID uint   `gorm:"not null;index:idx_withdrawal_day,unique" json:"currencyId"`
	Day        string `gorm:"type:varchar(10);not null" json:"day"` // YYYY-MM-DD
	Total      int64  `gorm:"default:0" json:"total"`
}

func (WithdrawalDay) TableName() string {
	return "withdrawal_days"
}
