package engine

import (
	"custodia/adapters"
	"custodia/models"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
)

// Task cursor names persisted in task_cursors
const (
	taskMoves               = "moves"
	taskWithdrawals         = "withdrawals"
	taskAggregationUser     = "aggregation_user"
	taskAggregationCurrency = "aggregation_currency"
)

// NotifyFunc delivers an administrator notification. Implementations
// must not block the settlement loop for long.
type NotifyFunc func(subject, body string)

// Settings carries the engine's runtime policy, read once at startup
type Settings struct {
	MovesBudget       time.Duration
	WithdrawalsBudget time.Duration
	AggregationBudget time.Duration

	// Max pending entries fetched per currency per tick
	BatchSize int

	// Compact settled moves older than this many months; 0 disables
	AggregateMonths int
}

// Engine settles the custodial ledger. The scheduler guarantees
// at-most-one concurrent invocation per task; within a run the engine
// is strictly single threaded and stops on its own once the task's
// time budget is spent.
type Engine struct {
	db       *gorm.DB
	registry *adapters.Registry
	notify   NotifyFunc
	now      func() time.Time
	cfg      Settings
}

// New builds an Engine over the given store and adapter registry
func New(db *gorm.DB, registry *adapters.Registry, notify NotifyFunc, cfg Settings) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Engine{
		db:       db,
		registry: registry,
		notify:   notify,
		now:      time.Now,
		cfg:      cfg,
	}
}

// budgetExceeded reports whether a task used up its wall clock budget
func (e *Engine) budgetExceeded(start time.Time, budget time.Duration) bool {
	return budget > 0 && e.now().Sub(start) >= budget
}

// notifyAdmins sends an admin notification if a sink is configured
func (e *Engine) notifyAdmins(subject, body string) {
	if e.notify == nil {
		log.Printf("[SETTLE-NOTIFY] no notification sink configured: %s", subject)
		return
	}
	e.notify(subject, body)
}

// getCursor loads a persisted task cursor, defaulting to -1 so the
// first scan starts at index 0
func (e *Engine) getCursor(name string) int {
	var cursor models.TaskCursor
	err := e.db.Where("name = ?", name).First(&cursor).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[SETTLE-CURSOR] failed to load cursor %s: %v", name, err)
		}
		return -1
	}
	return cursor.Position
}

// setCursor persists a task cursor position
func (e *Engine) setCursor(name string, position int) {
	var cursor models.TaskCursor
	err := e.db.Where("name = ?", name).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cursor = models.TaskCursor{Name: name, Position: position}
		if err := e.db.Create(&cursor).Error; err != nil {
			log.Printf("[SETTLE-CURSOR] failed to create cursor %s: %v", name, err)
		}
		return
	}
	if err != nil {
		log.Printf("[SETTLE-CURSOR] failed to load cursor %s: %v", name, err)
		return
	}

	cursor.Position = position
	if err := e.db.Save(&cursor).Error; err != nil {
		log.Printf("[SETTLE-CURSOR] failed to save cursor %s: %v", name, err)
	}
}

// persistOutcome writes an entry's final status, error and txid with a
// single atomic record update
func (e *Engine) persistOutcome(entry *models.Transaction) error {
	return e.db.Model(&models.Transaction{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":    entry.Status,
			"error_msg": entry.ErrorMsg,
			"tx_id":     entry.TxID,
		}).Error
}

// propagateToPair copies a move entry's terminal status and error to
// its paired entry, so a pair always settles as one unit from the
// caller's point of view. A pair lookup or write failure is logged and
// swallowed; the run continues with the next entry.
func (e *Engine) propagateToPair(entry *models.Transaction) {
	if entry.Category != models.CategoryMove {
		return
	}

	var pair models.Transaction
	var err error
	if entry.ParentID != 0 {
		err = e.db.First(&pair, entry.ParentID).Error
	} else {
		err = e.db.Where("parent_id = ?", entry.ID).First(&pair).Error
	}
	if err != nil {
		log.Printf("[SETTLE-MOVE] paired entry for transaction %d not found: %v", entry.ID, err)
		return
	}

	pair.Status = entry.Status
	pair.ErrorMsg = entry.ErrorMsg
	if err := e.persistOutcome(&pair); err != nil {
		log.Printf("[SETTLE-MOVE] CRITICAL: failed to persist paired entry %d of %d: %v", pair.ID, entry.ID, err)
		e.notifyAdmins(
			"Settlement persistence failure",
			"Failed to persist the paired entry of an internal transfer. Ledger entries "+
				"may be inconsistent and need manual review.",
		)
	}
}
