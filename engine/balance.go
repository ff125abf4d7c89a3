package engine

import (
	"custodia/models"
)

// SettledBalance derives a user's balance for a currency from the
// ledger: the sum of amount+fee over all settled entries. Pending and
// failed entries never count.
func (e *Engine) SettledBalance(userID, currencyID uint) (int64, error) {
	var total int64
	err := e.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount + fee), 0)").
		Where("user_id = ? AND currency_id = ? AND status = ?", userID, currencyID, models.StatusDone).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
