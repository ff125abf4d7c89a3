package engine

import (
	"custodia/models"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRunMovesSettlesPair(t *testing.T) {
	eng, db, adapter, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")
	seedDeposit(t, db, alice, currency, 1000)

	debit, credit := seedMovePair(t, db, alice, bob, currency, 100, 5, time.Now().UTC())

	adapter.On("ExecuteMove", mock.Anything).Return(true, nil)

	eng.RunMoves()

	persistedDebit := reload(t, db, debit.ID)
	persistedCredit := reload(t, db, credit.ID)
	require.Equal(t, models.StatusDone, persistedDebit.Status)
	require.Equal(t, models.StatusDone, persistedCredit.Status)

	// The pair nets to zero across both sides
	require.Zero(t, persistedDebit.Amount+persistedDebit.Fee+persistedCredit.Amount)

	aliceBalance, err := eng.SettledBalance(alice.ID, currency.ID)
	require.NoError(t, err)
	require.Equal(t, int64(900), aliceBalance)

	bobBalance, err := eng.SettledBalance(bob.ID, currency.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), bobBalance)

	adapter.AssertExpectations(t)
}

func TestRunMovesAdapterDecline(t *testing.T) {
	eng, db, adapter, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")
	seedDeposit(t, db, alice, currency, 1000)

	debit, credit := seedMovePair(t, db, alice, bob, currency, 100, 5, time.Now().UTC())

	adapter.On("ExecuteMove", mock.Anything).Return(false, nil)

	eng.RunMoves()

	// A decline fails both sides; the recipient never sees a credit
	// without the matching debit
	persistedDebit := reload(t, db, debit.ID)
	persistedCredit := reload(t, db, credit.ID)
	require.Equal(t, models.StatusFailed, persistedDebit.Status)
	require.Equal(t, models.StatusFailed, persistedCredit.Status)
	require.Contains(t, persistedDebit.ErrorMsg, "declined")

	bobBalance, err := eng.SettledBalance(bob.ID, currency.ID)
	require.NoError(t, err)
	require.Zero(t, bobBalance)
}

func TestRunMovesAdapterError(t *testing.T) {
	eng, db, adapter, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")
	seedDeposit(t, db, alice, currency, 1000)

	debit, _ := seedMovePair(t, db, alice, bob, currency, 100, 5, time.Now().UTC())

	adapter.On("ExecuteMove", mock.Anything).Return(false, errors.New("ledger offline"))

	eng.RunMoves()

	persisted := reload(t, db, debit.ID)
	require.Equal(t, models.StatusFailed, persisted.Status)
	require.Contains(t, persisted.ErrorMsg, "ledger offline")
}

func TestRunMovesDefersOnSpentBudget(t *testing.T) {
	eng, db, adapter, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")
	seedDeposit(t, db, alice, currency, 1000)

	debit, credit := seedMovePair(t, db, alice, bob, currency, 100, 5, time.Now().UTC())

	// A clock that jumps a full second per observation spends the
	// budget before the first entry is reached
	base := time.Now()
	calls := 0
	eng.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	eng.cfg.MovesBudget = 500 * time.Millisecond

	eng.RunMoves()

	// Nothing was executed or failed; the work waits for the next tick
	adapter.AssertNotCalled(t, "ExecuteMove", mock.Anything)
	require.Equal(t, models.StatusPending, reload(t, db, debit.ID).Status)
	require.Equal(t, models.StatusPending, reload(t, db, credit.ID).Status)
}
