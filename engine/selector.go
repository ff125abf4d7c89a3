package engine

import (
	"custodia/models"
	"log"
)

// eligibleCurrencies lists the currencies a task may service, in
// stable id order. Withdrawals additionally require an enabled,
// unlocked wallet with a resolvable adapter; moves consider every
// currency.
func (e *Engine) eligibleCurrencies(withdrawal bool) ([]models.Currency, error) {
	var currencies []models.Currency
	err := e.db.Preload("Wallet").
		Where("is_deleted = false").
		Order("id asc").
		Find(&currencies).Error
	if err != nil {
		return nil, err
	}

	if !withdrawal {
		return currencies, nil
	}

	eligible := make([]models.Currency, 0, len(currencies))
	for _, currency := range currencies {
		if currency.WalletID == 0 || !currency.Wallet.Enabled || currency.Wallet.Locked {
			continue
		}
		if _, err := e.registry.For(currency.Wallet); err != nil {
			continue
		}
		eligible = append(eligible, currency)
	}
	return eligible, nil
}

// nextCurrency round-robins the eligible currencies and returns the
// first one, in cursor order, with at least one pending entry of the
// given category. It scans at most once around the list. The cursor is
// persisted after every scan step regardless of outcome, so fairness
// holds across ticks even when individual runs fail; when nothing is
// pending the cursor still advances and the scan does not restart from
// the same point next tick.
func (e *Engine) nextCurrency(task string, currencies []models.Currency, category models.TransactionCategory) *models.Currency {
	n := len(currencies)
	if n == 0 {
		return nil
	}

	start := e.getCursor(task) + 1
	if start < 0 {
		start = 0
	}

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		e.setCursor(task, idx)

		// Count only what pendingBatch would actually fetch: a currency
		// holding nothing but pending credits has no executable work
		query := e.db.Model(&models.Transaction{}).
			Where("currency_id = ? AND category = ? AND status = ? AND nonce = ''",
				currencies[idx].ID, category, models.StatusPending)
		if category == models.CategoryMove {
			query = query.Where("amount < 0")
		}

		var count int64
		err := query.Count(&count).Error
		if err != nil {
			log.Printf("[SETTLE-SELECT] pending count failed for currency %d: %v", currencies[idx].ID, err)
			continue
		}
		if count > 0 {
			return &currencies[idx]
		}
	}

	return nil
}

// pendingBatch fetches the oldest pending entries of a category for
// one currency, already filtered at the query layer by "pending,
// currency matches, no nonce". Moves are driven by the debit side, so
// only negative amounts are fetched for them.
func (e *Engine) pendingBatch(currency models.Currency, category models.TransactionCategory) ([]*models.Transaction, error) {
	query := e.db.Preload("Address").
		Where("currency_id = ? AND category = ? AND status = ? AND nonce = ''",
			currency.ID, category, models.StatusPending)
	if category == models.CategoryMove {
		query = query.Where("amount < 0")
	}

	var batch []*models.Transaction
	err := query.Order("timestamp asc").
		Limit(e.cfg.BatchSize).
		Find(&batch).Error
	if err != nil {
		return nil, err
	}
	return batch, nil
}
