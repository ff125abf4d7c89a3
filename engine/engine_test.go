package engine

import (
	"custodia/adapters"
	"custodia/models"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockAdapter is a testify mock of the wallet adapter capability
type mockAdapter struct {
	mock.Mock
}

func (m *mockAdapter) HotBalance(currency models.Currency) (int64, error) {
	args := m.Called(currency)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAdapter) ExecuteMove(entry *models.Transaction) (bool, error) {
	args := m.Called(entry)
	return args.Bool(0), args.Error(1)
}

func (m *mockAdapter) ExecuteWithdrawals(batch []*models.Transaction) error {
	args := m.Called(batch)
	return args.Error(0)
}

func (m *mockAdapter) Housekeeping() error {
	return m.Called().Error(0)
}

// notifyRecorder captures admin notifications sent by the engine
type notifyRecorder struct {
	subjects []string
}

func (n *notifyRecorder) record(subject, body string) {
	n.subjects = append(n.subjects, subject)
}

func newTestDb(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Currency{},
		&models.Wallet{},
		&models.Address{},
		&models.Transaction{},
		&models.TaskCursor{},
		&models.WithdrawalDay{},
		&models.UserDayLimit{},
		&models.NotificationMarker{},
	))
	return db
}

// newTestEngine builds an engine over a fresh in-memory store with one
// mocked adapter registered for wallet id 1
func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *mockAdapter, *notifyRecorder) {
	t.Helper()

	db := newTestDb(t)

	registry := adapters.NewRegistry()
	adapter := &mockAdapter{}
	registry.Put(1, adapter)

	recorder := &notifyRecorder{}
	eng := New(db, registry, recorder.record, Settings{
		MovesBudget:       5 * time.Second,
		WithdrawalsBudget: 5 * time.Second,
		AggregationBudget: 5 * time.Second,
		BatchSize:         100,
		AggregateMonths:   6,
	})
	return eng, db, adapter, recorder
}

func seedWallet(t *testing.T, db *gorm.DB) models.Wallet {
	t.Helper()
	wallet := models.Wallet{Name: "test wallet", Adapter: "mock", Enabled: true}
	require.NoError(t, db.Create(&wallet).Error)
	return wallet
}

func seedCurrency(t *testing.T, db *gorm.DB, symbol string, walletID uint) models.Currency {
	t.Helper()
	currency := models.Currency{Symbol: symbol, Name: symbol, WalletID: walletID}
	require.NoError(t, db.Create(&currency).Error)
	return currency
}

func seedUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Name: email, Email: email}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// seedDeposit gives a user settled balance
func seedDeposit(t *testing.T, db *gorm.DB, user models.User, currency models.Currency, amount int64) {
	t.Helper()
	entry := models.Transaction{
		Category:   models.CategoryDeposit,
		UserID:     user.ID,
		CurrencyID: currency.ID,
		Amount:     amount,
		Status:     models.StatusDone,
		Timestamp:  time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&entry).Error)
}

// seedWithdrawal queues a pending withdrawal (amount given positive)
func seedWithdrawal(t *testing.T, db *gorm.DB, user models.User, currency models.Currency, amount, fee int64, ts time.Time) models.Transaction {
	t.Helper()
	entry := models.Transaction{
		Category:   models.CategoryWithdrawal,
		UserID:     user.ID,
		CurrencyID: currency.ID,
		Amount:     -amount,
		Fee:        -fee,
		Status:     models.StatusPending,
		Timestamp:  ts,
	}
	require.NoError(t, db.Create(&entry).Error)
	return entry
}

// seedMovePair queues a pending internal transfer: the recipient's
// credit of `amount` and the sender's debit referencing it, with the
// fee carved out of the debit side so the pair sums to zero
func seedMovePair(t *testing.T, db *gorm.DB, from, to models.User, currency models.Currency, amount, fee int64, ts time.Time) (debit, credit models.Transaction) {
	t.Helper()

	credit = models.Transaction{
		Category:   models.CategoryMove,
		UserID:     to.ID,
		CurrencyID: currency.ID,
		Amount:     amount,
		Status:     models.StatusPending,
		Timestamp:  ts,
	}
	require.NoError(t, db.Create(&credit).Error)

	debit = models.Transaction{
		Category:   models.CategoryMove,
		UserID:     from.ID,
		CurrencyID: currency.ID,
		Amount:     -(amount - fee),
		Fee:        -fee,
		Status:     models.StatusPending,
		Timestamp:  ts,
		ParentID:   credit.ID,
	}
	require.NoError(t, db.Create(&debit).Error)
	return debit, credit
}

func reload(t *testing.T, db *gorm.DB, id uint) models.Transaction {
	t.Helper()
	var entry models.Transaction
	require.NoError(t, db.First(&entry, id).Error)
	return entry
}

func TestCursorRoundTrip(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	require.Equal(t, -1, eng.getCursor("unknown"))

	eng.setCursor("moves", 3)
	require.Equal(t, 3, eng.getCursor("moves"))

	eng.setCursor("moves", 0)
	require.Equal(t, 0, eng.getCursor("moves"))
}

func TestBudgetExceeded(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	start := time.Now()
	require.False(t, eng.budgetExceeded(start, 0)) // 0 disables the budget
	require.False(t, eng.budgetExceeded(start, time.Hour))
	require.True(t, eng.budgetExceeded(start.Add(-2*time.Hour), time.Hour))
}

func TestSettledBalance(t *testing.T) {
	eng, db, _, _ := newTestEngine(t)

	wallet := seedWallet(t, db)
	currency := seedCurrency(t, db, "BTC", wallet.ID)
	user := seedUser(t, db, "alice@example.com")

	seedDeposit(t, db, user, currency, 1000)

	// Settled debit with fee counts; pending and failed entries do not
	done := models.Transaction{
		Category: models.CategoryWithdrawal, UserID: user.ID, CurrencyID: currency.ID,
		Amount: -200, Fee: -10, Status: models.StatusDone, Timestamp: time.Now(),
	}
	require.NoError(t, db.Create(&done).Error)
	pending := models.Transaction{
		Category: models.CategoryWithdrawal, UserID: user.ID, CurrencyID: currency.ID,
		Amount: -500, Status: models.StatusPending, Timestamp: time.Now(),
	}
	require.NoError(t, db.Create(&pending).Error)
	failed := models.Transaction{
		Category: models.CategoryWithdrawal, UserID: user.ID, CurrencyID: currency.ID,
		Amount: -300, Status: models.StatusFailed, Timestamp: time.Now(),
	}
	require.NoError(t, db.Create(&failed).Error)

	balance, err := eng.SettledBalance(user.ID, currency.ID)
	require.NoError(t, err)
	require.Equal(t, int64(790), balance)
}
