package engine

import (
	"custodia/models"
	"fmt"
	"log"

	"gorm.io/datatypes"
)

// RunAggregation compacts old settled internal transfers for exactly
// one (user, currency) pair per invocation. The pair is chosen by two
// rotating cursors: the currency cursor advances every run, the user
// cursor only after a full sweep of currencies. All entries of the
// pair older than the configured cutoff are merged into one summary
// entry inside a single storage transaction; the originals are hard
// deleted in the same transaction, so on any failure nothing changes.
func (e *Engine) RunAggregation() {
	start := e.now()

	if e.cfg.AggregateMonths <= 0 {
		return
	}
	if !e.supportsTransactions() {
		log.Printf("[SETTLE-AGGREGATE] storage engine lacks transactional guarantees, skipping run")
		return
	}

	var users []models.User
	if err := e.db.Where("is_deleted = false").Order("id asc").Find(&users).Error; err != nil {
		log.Printf("[SETTLE-AGGREGATE] failed to list users: %v", err)
		return
	}
	var currencies []models.Currency
	if err := e.db.Where("is_deleted = false").Order("id asc").Find(&currencies).Error; err != nil {
		log.Printf("[SETTLE-AGGREGATE] failed to list currencies: %v", err)
		return
	}
	if len(users) == 0 || len(currencies) == 0 {
		return
	}

	// Advance the currency cursor every run; wrap advances the user
	// cursor so every pair gets its turn over time.
	userPos := e.getCursor(taskAggregationUser)
	if userPos < 0 {
		userPos = 0
	}
	prevCurrency := e.getCursor(taskAggregationCurrency)
	currencyPos := (prevCurrency + 1) % len(currencies)
	if prevCurrency >= 0 && currencyPos == 0 {
		userPos = (userPos + 1) % len(users)
	}
	userPos = userPos % len(users)
	e.setCursor(taskAggregationCurrency, currencyPos)
	e.setCursor(taskAggregationUser, userPos)

	user := users[userPos]
	currency := currencies[currencyPos]
	cutoff := e.now().AddDate(0, -e.cfg.AggregateMonths, 0)
	log.Printf("[SETTLE-AGGREGATE] user %d currency %s, cutoff %s", user.ID, currency.Symbol, cutoff.Format(dayFormat))

	var ids []uint
	err := e.db.Model(&models.Transaction{}).
		Where("user_id = ? AND currency_id = ? AND category = ? AND status = ? AND timestamp < ?",
			user.ID, currency.ID, models.CategoryMove, models.StatusDone, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		log.Printf("[SETTLE-AGGREGATE] candidate lookup failed: %v", err)
		return
	}
	if len(ids) < 2 {
		// Nothing to gain by replacing a single entry with a summary
		log.Printf("[SETTLE-AGGREGATE] %d candidate entries, nothing to compact", len(ids))
		return
	}

	// The compaction transaction is all or nothing, so the budget is
	// checked once here: a run that spent its budget on the candidate
	// scan defers the whole pair to the next invocation
	if e.budgetExceeded(start, e.cfg.AggregationBudget) {
		log.Printf("[SETTLE-AGGREGATE] time budget exceeded before compaction, deferring pair")
		return
	}

	tx := e.db.Begin()
	if tx.Error != nil {
		log.Printf("[SETTLE-AGGREGATE] failed to open transaction: %v", tx.Error)
		return
	}
	// Defensive rollback, issued unconditionally as the final
	// statement of every invocation. A no-op after a clean commit, but
	// guarantees the session is never left with an open transaction.
	defer tx.Rollback()

	// Bulk aggregate read: net amount over all entries, fees from the
	// debit side only (credits never carry a fee line)
	var sums struct {
		Amount int64
		Fee    int64
	}
	err = tx.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS amount, COALESCE(SUM(CASE WHEN amount < 0 THEN fee ELSE 0 END), 0) AS fee").
		Where("id IN ?", ids).
		Scan(&sums).Error
	if err != nil {
		log.Printf("[SETTLE-AGGREGATE] aggregate read failed, rolling back: %v", err)
		tx.Rollback()
		return
	}

	// Fee redistribution: when the net is a credit the fee folds back
	// into the amount, because the separate fee line only exists to
	// mark a deduction when the aggregate itself is a debit
	amount := sums.Amount
	fee := sums.Fee
	if amount >= 0 {
		amount += fee
		fee = 0
	}

	summary := models.Transaction{
		Category:   models.CategoryMove,
		UserID:     user.ID,
		CurrencyID: currency.ID,
		Amount:     amount,
		Fee:        fee,
		Status:     models.StatusDone,
		Comment:    fmt.Sprintf("aggregate of %d internal transfers before %s", len(ids), cutoff.Format(dayFormat)),
		Tags:       datatypes.JSON([]byte(`["aggregated"]`)),
		Timestamp:  cutoff,
	}
	if err := tx.Create(&summary).Error; err != nil {
		log.Printf("[SETTLE-AGGREGATE] summary insert failed, rolling back: %v", err)
		tx.Rollback()
		return
	}

	// Hard delete the originals; the summary replaces them entirely
	if err := tx.Unscoped().Where("id IN ?", ids).Delete(&models.Transaction{}).Error; err != nil {
		log.Printf("[SETTLE-AGGREGATE] delete of originals failed, rolling back: %v", err)
		tx.Rollback()
		return
	}

	if err := tx.Commit().Error; err != nil {
		log.Printf("[SETTLE-AGGREGATE] commit failed: %v", err)
		return
	}

	log.Printf("[SETTLE-AGGREGATE] compacted %d entries into summary %d (user %d, %s, net %d fee %d)",
		len(ids), summary.ID, user.ID, currency.Symbol, amount, fee)
}

// supportsTransactions verifies the underlying engine can run atomic
// multi-statement transactions before the compactor relies on them
func (e *Engine) supportsTransactions() bool {
	switch e.db.Dialector.Name() {
	case "postgres", "mysql", "sqlite":
		return true
	}
	return false
}
