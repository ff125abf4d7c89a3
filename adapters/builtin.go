package adapters

import (
	"custodia/models"
	"fmt"
	"math"
)

// BuiltinAdapter backs fiat style currencies that exist only inside
// the ledger. Moves need no external action and always clear;
// withdrawals require a manual payout and are declined so an operator
// handles them out of band.
type BuiltinAdapter struct{}

func NewBuiltinAdapter() *BuiltinAdapter {
	return &BuiltinAdapter{}
}

// HotBalance is effectively unlimited for book-entry currencies
func (a *BuiltinAdapter) HotBalance(currency models.Currency) (int64, error) {
	return math.MaxInt64, nil
}

func (a *BuiltinAdapter) ExecuteMove(entry *models.Transaction) (bool, error) {
	return true, nil
}

func (a *BuiltinAdapter) ExecuteWithdrawals(batch []*models.Transaction) error {
	for _, entry := range batch {
		entry.Status = models.StatusFailed
		entry.ErrorMsg = "manual payout required for this currency"
	}
	return fmt.Errorf("builtin adapter does not execute withdrawals")
}

func (a *BuiltinAdapter) Housekeeping() error {
	return nil
}
