package engine

import (
	"custodia/models"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

const dayFormat = "2006-01-02"

// weedOut re-validates a candidate batch against current balances and
// policy. The query layer already filtered on pending/currency/nonce,
// but that state may be stale, so everything is checked again here.
// Entries that fail validation are marked failed, persisted
// immediately (a crash afterwards must not re-attempt them) and
// removed from the batch; for moves the paired credit fails with them.
// The returned batch contains only still-pending, executable entries
// in retrieval order, so earlier entries keep priority when balances
// run short.
func (e *Engine) weedOut(batch []*models.Transaction, currency models.Currency, withdrawal bool, start time.Time, budget time.Duration) []*models.Transaction {
	balances := make(map[uint]int64)
	dayTotals := make(map[uint]int64)
	kept := make([]*models.Transaction, 0, len(batch))

	for _, entry := range batch {
		if e.budgetExceeded(start, budget) {
			log.Printf("[SETTLE-WEEDOUT] time budget exceeded, leaving %d entries for the next tick", len(batch)-len(kept))
			break
		}

		// Stale or malformed entries are ignored, not failed: a credit
		// amount, positive fee, foreign currency or in-flight nonce
		// means this entry is not ours to execute right now.
		if entry.Amount >= 0 || entry.Fee > 0 || entry.CurrencyID != currency.ID || entry.Nonce != "" {
			continue
		}

		balance, ok := balances[entry.UserID]
		if !ok {
			live, err := e.SettledBalance(entry.UserID, currency.ID)
			if err != nil {
				log.Printf("[SETTLE-WEEDOUT] balance lookup failed for user %d: %v", entry.UserID, err)
				continue
			}
			balance = live
		}

		// Tentatively apply the entry against the running balance
		after := balance + entry.Amount + entry.Fee
		if after < 0 {
			e.failEntry(entry, "insufficient balance")
			continue
		}

		if withdrawal {
			if -entry.Amount < currency.MinWithdraw {
				e.failEntry(entry, fmt.Sprintf("withdrawal below minimum of %d", currency.MinWithdraw))
				continue
			}
			if limit := e.dayCap(entry.UserID, currency); limit > 0 {
				// The cap is cumulative: the stored counter only moves
				// after execution, so entries kept earlier in this batch
				// count against it too
				used := e.dayUsed(entry.UserID, currency.ID)
				requested := -(entry.Amount + entry.Fee)
				if used+dayTotals[entry.UserID]+requested > limit {
					e.failEntry(entry, fmt.Sprintf("daily withdrawal limit of %d exceeded", limit))
					continue
				}
				dayTotals[entry.UserID] += requested
			}
		}

		balances[entry.UserID] = after
		kept = append(kept, entry)
	}

	return kept
}

// failEntry marks an entry failed with a human readable reason,
// propagates the failure to a move's paired credit and persists the
// outcome right away
func (e *Engine) failEntry(entry *models.Transaction, reason string) {
	entry.Status = models.StatusFailed
	entry.ErrorMsg = reason

	if err := e.persistOutcome(entry); err != nil {
		log.Printf("[SETTLE-WEEDOUT] CRITICAL: failed to persist failure of entry %d: %v", entry.ID, err)
		e.notifyAdmins(
			"Settlement persistence failure",
			fmt.Sprintf("Failed to record validation failure of ledger entry %d (%s). Manual review required.", entry.ID, reason),
		)
		return
	}

	e.propagateToPair(entry)
}

// dayCap resolves the effective per-day withdrawal cap for a user,
// preferring a per-user override over the currency policy. 0 = no cap.
func (e *Engine) dayCap(userID uint, currency models.Currency) int64 {
	var override models.UserDayLimit
	err := e.db.Where("user_id = ? AND currency_id = ?", userID, currency.ID).First(&override).Error
	if err == nil {
		return override.MaxWithdrawPerDay
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[SETTLE-WEEDOUT] day limit lookup failed for user %d: %v", userID, err)
	}
	return currency.MaxWithdrawPerDay
}

// dayUsed returns how much of today's withdrawal cap a user already
// consumed. A counter stored for a previous day no longer counts.
func (e *Engine) dayUsed(userID, currencyID uint) int64 {
	var counter models.WithdrawalDay
	err := e.db.Where("user_id = ? AND currency_id = ?", userID, currencyID).First(&counter).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[SETTLE-WEEDOUT] day counter lookup failed for user %d: %v", userID, err)
		}
		return 0
	}
	if counter.Day != e.now().UTC().Format(dayFormat) {
		return 0
	}
	return counter.Total
}

// bumpDayCounter adds an executed withdrawal's amount+fee to the
// user's counter for today, resetting it first when the day rolled over
func (e *Engine) bumpDayCounter(entry *models.Transaction) {
	today := e.now().UTC().Format(dayFormat)
	executed := -(entry.Amount + entry.Fee)

	var counter models.WithdrawalDay
	err := e.db.Where("user_id = ? AND currency_id = ?", entry.UserID, entry.CurrencyID).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = models.WithdrawalDay{
			UserID:     entry.UserID,
			CurrencyID: entry.CurrencyID,
			Day:        today,
			Total:      executed,
		}
		if err := e.db.Create(&counter).Error; err != nil {
			log.Printf("[SETTLE-WITHDRAW] failed to create day counter for user %d: %v", entry.UserID, err)
		}
		return
	}
	if err != nil {
		log.Printf("[SETTLE-WITHDRAW] day counter lookup failed for user %d: %v", entry.UserID, err)
		return
	}

	if counter.Day != today {
		counter.Day = today
		counter.Total = 0
	}
	counter.Total += executed

	if err := e.db.Save(&counter).Error; err != nil {
		log.Printf("[SETTLE-WITHDRAW] failed to update day counter for user %d: %v", entry.UserID, err)
	}
}
