package engine

import (
	"custodia/models"
	"log"
)

// RunHousekeeping gives every enabled wallet's adapter a chance to do
// its periodic maintenance. Failures are logged per wallet; one noisy
// adapter never blocks the others.
func (e *Engine) RunHousekeeping() {
	var wallets []models.Wallet
	if err := e.db.Where("enabled = true").Find(&wallets).Error; err != nil {
		log.Printf("[SETTLE-HOUSEKEEPING] failed to list wallets: %v", err)
		return
	}

	for _, wallet := range wallets {
		adapter, err := e.registry.For(wallet)
		if err != nil {
			continue
		}
		if err := adapter.Housekeeping(); err != nil {
			log.Printf("[SETTLE-HOUSEKEEPING] wallet %s: %v", wallet.Name, err)
		}
	}
}
