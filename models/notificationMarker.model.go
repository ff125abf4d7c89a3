package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationMarker records when an admin notification of a given
// kind was last sent for a currency, so repeat alerts (e.g. hot wallet
// shortfall) can be suppressed for a cool-down window.
type NotificationMarker struct {
	gorm.Model
	Kind       string    `gorm:"type:varchar(50);not null;index:idx_notification_marker,unique" json:"kind"`
	CurrencyID uint      `gorm:"not null;index:idx_notification_marker,unique" json:"currencyId"`
	SentAt     time.Time `gorm:"not null" json:"sentAt"`
}

func (NotificationMarker) TableName() string {
	return "notification_markers"
}
