package engine

import (
	"custodia/models"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedSettledMove(t *testing.T, db *gorm.DB, user models.User, currency models.Currency, amount, fee int64, ts time.Time) models.Transaction {
	t.Helper()
	entry := models.Transaction{
		Category:   models.CategoryMove,
		UserID:     user.ID,
		CurrencyID: currency.ID,
		Amount:     amount,
		Fee:        fee,
		Status:     models.StatusDone,
		Timestamp:  ts,
	}
	require.NoError(t, db.Create(&entry).Error)
	return entry
}

func TestAggregationPreservesSettledBalance(t *testing.T) {
	eng, db, _, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	user := seedUser(t, db, "alice@example.com")

	old := time.Now().UTC().AddDate(0, -8, 0)
	seedSettledMove(t, db, user, currency, 100, 0, old)
	seedSettledMove(t, db, user, currency, -95, -5, old.Add(time.Hour))
	seedSettledMove(t, db, user, currency, 200, 0, old.Add(2*time.Hour))

	// Too recent, must survive untouched
	recent := seedSettledMove(t, db, user, currency, 50, 0, time.Now().UTC())

	before, err := eng.SettledBalance(user.ID, currency.ID)
	require.NoError(t, err)

	eng.RunAggregation()

	after, err := eng.SettledBalance(user.ID, currency.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)

	// The three old entries collapsed into one summary
	var entries []models.Transaction
	require.NoError(t, db.Where("user_id = ? AND currency_id = ?", user.ID, currency.ID).
		Order("id asc").Find(&entries).Error)
	require.Len(t, entries, 2)
	require.Equal(t, recent.ID, entries[0].ID)

	summary := entries[1]
	require.Equal(t, models.CategoryMove, summary.Category)
	require.Equal(t, models.StatusDone, summary.Status)
	require.Contains(t, summary.Comment, "aggregate of 3 internal transfers")
	require.Contains(t, string(summary.Tags), "aggregated")

	// Net 200 is a credit, so the collected fee folds into the amount
	require.Equal(t, int64(200), summary.Amount)
	require.Zero(t, summary.Fee)
}

func TestAggregationSkipsSingleEntry(t *testing.T) {
	eng, db, _, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	user := seedUser(t, db, "alice@example.com")

	old := time.Now().UTC().AddDate(0, -8, 0)
	lone := seedSettledMove(t, db, user, currency, 100, 0, old)

	eng.RunAggregation()

	// Replacing one entry with one summary gains nothing
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.Equal(t, models.StatusDone, reload(t, db, lone.ID).Status)
}

func TestAggregationFailureLeavesLedgerIntact(t *testing.T) {
	eng, db, _, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	user := seedUser(t, db, "alice@example.com")

	old := time.Now().UTC().AddDate(0, -8, 0)
	seedSettledMove(t, db, user, currency, 100, 0, old)
	seedSettledMove(t, db, user, currency, 200, 0, old.Add(time.Hour))

	before, err := eng.SettledBalance(user.ID, currency.ID)
	require.NoError(t, err)

	// Force the summary insert to fail mid transaction
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("test_inject_failure", func(tx *gorm.DB) {
			tx.AddError(errors.New("injected storage failure"))
		}))
	defer db.Callback().Create().Remove("test_inject_failure")

	eng.RunAggregation()

	// The rollback kept every original entry and the balance
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Equal(t, int64(2), count)

	after, err := eng.SettledBalance(user.ID, currency.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestAggregationDefersOnSpentBudget(t *testing.T) {
	eng, db, _, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	user := seedUser(t, db, "alice@example.com")

	old := time.Now().UTC().AddDate(0, -8, 0)
	seedSettledMove(t, db, user, currency, 100, 0, old)
	seedSettledMove(t, db, user, currency, 200, 0, old.Add(time.Hour))

	// A clock that jumps a full second per observation spends the
	// budget before the compaction transaction opens
	base := time.Now()
	calls := 0
	eng.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	eng.cfg.AggregationBudget = 500 * time.Millisecond

	eng.RunAggregation()

	// Nothing was compacted; the pair waits for the next run
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestAggregationCursorRotation(t *testing.T) {
	eng, db, _, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	seedCurrency(t, db, "BTC", wallet.ID)
	seedCurrency(t, db, "LTC", wallet.ID)
	seedUser(t, db, "alice@example.com")
	seedUser(t, db, "bob@example.com")

	// The currency cursor advances every run; the user cursor only when
	// the currency sweep wraps, so all four pairs get a turn
	expected := [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	for _, want := range expected {
		eng.RunAggregation()
		require.Equal(t, want[0], eng.getCursor(taskAggregationUser))
		require.Equal(t, want[1], eng.getCursor(taskAggregationCurrency))
	}
}

func TestAggregationDisabledByConfig(t *testing.T) {
	eng, db, _, _ := newTestEngine(t)
	eng.cfg.AggregateMonths = 0

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	user := seedUser(t, db, "alice@example.com")

	old := time.Now().UTC().AddDate(0, -8, 0)
	seedSettledMove(t, db, user, currency, 100, 0, old)
	seedSettledMove(t, db, user, currency, 200, 0, old.Add(time.Hour))

	eng.RunAggregation()

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
	require.Equal(t, -1, eng.getCursor(taskAggregationCurrency))
}
