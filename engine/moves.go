package engine

import (
	"custodia/models"
	"fmt"
	"log"
)

// RunMoves settles pending internal transfers for one currency per
// tick. Unlike withdrawals there is no pre-commit: an internal
// transfer usually needs no external action, so an entry is executed
// and persisted one at a time together with its paired credit.
func (e *Engine) RunMoves() {
	start := e.now()
	budget := e.cfg.MovesBudget

	currencies, err := e.eligibleCurrencies(false)
	if err != nil {
		log.Printf("[SETTLE-MOVE] failed to list currencies: %v", err)
		return
	}

	currency := e.nextCurrency(taskMoves, currencies, models.CategoryMove)
	if currency == nil {
		return
	}
	log.Printf("[SETTLE-MOVE] servicing currency %s (id %d)", currency.Symbol, currency.ID)

	adapter, err := e.registry.For(currency.Wallet)
	if err != nil {
		// An unbound adapter is a valid state; the entries simply stay
		// pending until an operator attaches one.
		log.Printf("[SETTLE-MOVE] no adapter for wallet %d: %v", currency.WalletID, err)
		return
	}

	batch, err := e.pendingBatch(*currency, models.CategoryMove)
	if err != nil {
		log.Printf("[SETTLE-MOVE] failed to fetch pending batch: %v", err)
		return
	}

	batch = e.weedOut(batch, *currency, false, start, budget)

	executed := 0
	for _, entry := range batch {
		if e.budgetExceeded(start, budget) {
			log.Printf("[SETTLE-MOVE] time budget exceeded, %d entries wait for the next tick", len(batch)-executed)
			break
		}

		ok, execErr := adapter.ExecuteMove(entry)
		switch {
		case execErr != nil:
			entry.Status = models.StatusFailed
			entry.ErrorMsg = execErr.Error()
		case !ok:
			entry.Status = models.StatusFailed
			entry.ErrorMsg = "adapter declined internal transfer"
		default:
			entry.Status = models.StatusDone
			entry.ErrorMsg = ""
		}

		if err := e.persistOutcome(entry); err != nil {
			log.Printf("[SETTLE-MOVE] CRITICAL: failed to persist entry %d after execution: %v", entry.ID, err)
			e.notifyAdmins(
				"Move persistence failure",
				fmt.Sprintf("Internal transfer entry %d (%s) executed with status %q but could not be persisted: %v. "+
					"Manual reconciliation required.", entry.ID, currency.Symbol, entry.Status, err),
			)
			executed++
			continue
		}

		// The pair settles as a unit: the credit always ends with the
		// debit's final status. A partial-pair write failure is logged
		// inside propagateToPair and the loop moves on.
		e.propagateToPair(entry)
		executed++
	}

	log.Printf("[SETTLE-MOVE] currency %s: %d entries settled, elapsed %s",
		currency.Symbol, executed, e.now().Sub(start))
}
