package engine

import (
	"custodia/models"
	"fmt"
	"log"
	"time"
)

const shortfallMarkerKind = "hot-balance-shortfall"
const shortfallCooldown = 24 * time.Hour

// RunWithdrawals settles pending external withdrawals for one currency
// per tick.
//
// The executor deliberately writes status=done for the whole validated
// batch BEFORE calling the adapter. External transfers are
// irreversible: if the adapter moves the funds and the process dies
// before the results are persisted, a pending entry would be paid out
// again on the next tick. With the pre-commit the worst case flips to
// entries marked done whose payout never left the node, which an
// operator can detect and correct by inspection. The in-memory results
// persisted afterwards are the authoritative correction to the
// pre-commit. Do not "fix" this into a two-phase commit.
func (e *Engine) RunWithdrawals() {
	start := e.now()
	budget := e.cfg.WithdrawalsBudget

	currencies, err := e.eligibleCurrencies(true)
	if err != nil {
		log.Printf("[SETTLE-WITHDRAW] failed to list currencies: %v", err)
		return
	}

	currency := e.nextCurrency(taskWithdrawals, currencies, models.CategoryWithdrawal)
	if currency == nil {
		return
	}
	log.Printf("[SETTLE-WITHDRAW] servicing currency %s (id %d)", currency.Symbol, currency.ID)

	adapter, err := e.registry.For(currency.Wallet)
	if err != nil {
		log.Printf("[SETTLE-WITHDRAW] no adapter for wallet %d: %v", currency.WalletID, err)
		return
	}

	batch, err := e.pendingBatch(*currency, models.CategoryWithdrawal)
	if err != nil {
		log.Printf("[SETTLE-WITHDRAW] failed to fetch pending batch: %v", err)
		return
	}

	batch = e.weedOut(batch, *currency, true, start, budget)
	if len(batch) == 0 {
		return
	}

	// Hot balance preflight: accept the longest prefix the wallet can
	// actually pay out right now. Entries past the cut stay pending
	// and wait for the next tick.
	hot, err := adapter.HotBalance(*currency)
	if err != nil {
		log.Printf("[SETTLE-WITHDRAW] hot balance unavailable for %s: %v", currency.Symbol, err)
		return
	}

	running := hot
	accepted := batch[:0:0]
	for _, entry := range batch {
		if running+entry.Amount+entry.Fee < 0 {
			break
		}
		running += entry.Amount + entry.Fee
		accepted = append(accepted, entry)
	}

	if len(accepted) < len(batch) {
		e.notifyShortfall(*currency, hot)
	}
	if len(accepted) == 0 {
		return
	}

	// Pre-commit: bulk mark the batch done in storage before the
	// adapter sees it. Abort if this write fails; executing without
	// the pre-commit risks a double spend.
	ids := make([]uint, 0, len(accepted))
	for _, entry := range accepted {
		ids = append(ids, entry.ID)
	}
	err = e.db.Model(&models.Transaction{}).
		Where("id IN ?", ids).
		Update("status", models.StatusDone).Error
	if err != nil {
		log.Printf("[SETTLE-WITHDRAW] CRITICAL: pre-commit failed, aborting run: %v", err)
		return
	}

	// One bulk adapter call for the whole batch. Adapter failures are
	// recorded, never fatal to the task.
	adapterErr := adapter.ExecuteWithdrawals(accepted)
	if adapterErr != nil {
		log.Printf("[SETTLE-WITHDRAW] adapter error for %s: %v", currency.Symbol, adapterErr)
	}

	// This correction loop deliberately runs to completion with no
	// budget check: once the adapter has executed, every entry of the
	// batch must get its result persisted in this run, or it stays
	// pre-committed done with no recorded outcome.
	for _, entry := range accepted {
		// Entries the adapter never resolved are failures, not
		// successes; the persisted correction below reverses their
		// pre-committed done.
		if entry.Status == models.StatusPending {
			entry.Status = models.StatusFailed
			if adapterErr != nil {
				entry.ErrorMsg = adapterErr.Error()
			} else {
				entry.ErrorMsg = "no result from wallet adapter"
			}
		}

		if err := e.persistOutcome(entry); err != nil {
			// The transfer may already have happened externally. Keep
			// going so one bad write does not hide the rest of the
			// batch, but get an operator looking at it.
			log.Printf("[SETTLE-WITHDRAW] CRITICAL: failed to persist entry %d after execution: %v", entry.ID, err)
			e.notifyAdmins(
				"Withdrawal persistence failure",
				fmt.Sprintf("Ledger entry %d (%s) executed with status %q but could not be persisted: %v. "+
					"The external transfer may have completed; manual reconciliation required.",
					entry.ID, currency.Symbol, entry.Status, err),
			)
			continue
		}

		if entry.Status == models.StatusDone {
			e.bumpDayCounter(entry)
		}
	}

	log.Printf("[SETTLE-WITHDRAW] currency %s: %d executed, %d deferred, elapsed %s",
		currency.Symbol, len(accepted), len(batch)-len(accepted), e.now().Sub(start))
}

// notifyShortfall queues an admin notification when the hot wallet
// cannot cover the pending withdrawal demand, at most once per
// currency per 24h
func (e *Engine) notifyShortfall(currency models.Currency, hot int64) {
	var marker models.NotificationMarker
	err := e.db.Where("kind = ? AND currency_id = ?", shortfallMarkerKind, currency.ID).First(&marker).Error
	if err == nil && e.now().Sub(marker.SentAt) < shortfallCooldown {
		return
	}

	var demand int64
	e.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(-(amount + fee)), 0)").
		Where("currency_id = ? AND category = ? AND status = ?",
			currency.ID, models.CategoryWithdrawal, models.StatusPending).
		Scan(&demand)

	e.notifyAdmins(
		fmt.Sprintf("Hot wallet shortfall: %s", currency.Symbol),
		fmt.Sprintf("The hot wallet for %s holds %d but total pending withdrawal demand is %d. "+
			"Some withdrawals are deferred until the hot wallet is refilled.",
			currency.Symbol, hot, demand),
	)

	if err != nil {
		marker = models.NotificationMarker{Kind: shortfallMarkerKind, CurrencyID: currency.ID, SentAt: e.now()}
		if err := e.db.Create(&marker).Error; err != nil {
			log.Printf("[SETTLE-WITHDRAW] failed to create shortfall marker: %v", err)
		}
		return
	}

	marker.SentAt = e.now()
	if err := e.db.Save(&marker).Error; err != nil {
		log.Printf("[SETTLE-WITHDRAW] failed to update shortfall marker: %v", err)
	}
}
