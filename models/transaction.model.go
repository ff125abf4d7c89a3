package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TransactionCategory defines the kind of ledger entry
type TransactionCategory string

const (
	CategoryDeposit    TransactionCategory = "deposit"
	CategoryWithdrawal TransactionCategory = "withdrawal"
	CategoryMove       TransactionCategory = "move"
)

// TransactionStatus defines the settlement state of a ledger entry.
// Transitions only move forward: pending -> done/failed/cancelled.
// The withdrawal pre-commit in the engine is the single documented
// exception (it writes done ahead of adapter confirmation).
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusDone      TransactionStatus = "done"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Transaction is one signed ledger entry. Amounts are integers in the
// currency's smallest unit; negative means debit. Fee is <= 0 and only
// ever recorded on the debit side. A move exists as two entries linked
// through ParentID whose amount+fee sum to zero across the pair.
type Transaction struct {
	gorm.Model
	Category   TransactionCategory `gorm:"type:varchar(20);not null;index" json:"category"`
	UserID     uint                `gorm:"not null;index" json:"userId"`
	CurrencyID uint                `gorm:"not null;index" json:"currencyId"`
	Amount     int64               `gorm:"not null" json:"amount"`
	Fee        int64               `gorm:"default:0" json:"fee"`
	Status     TransactionStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// Deposit / withdrawal only
	AddressID uint   `gorm:"default:0" json:"addressId"`
	TxID      string `gorm:"type:varchar(255);index" json:"txid"`

	// Idempotency token. Non-empty means a prior attempt is still
	// awaiting external confirmation; the engine must not re-submit.
	Nonce string `gorm:"type:varchar(64);index" json:"nonce"`

	Comment   string         `gorm:"type:text" json:"comment"`
	Tags      datatypes.JSON `json:"tags"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	ErrorMsg  string         `gorm:"type:text" json:"error"`

	// Move debit -> paired credit entry
	ParentID uint `gorm:"default:0;index" json:"parentId"`

	User     User     `gorm:"foreignKey:UserID" json:"-"`
	Currency Currency `gorm:"foreignKey:CurrencyID" json:"-"`
	Address  Address  `gorm:"foreignKey:AddressID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// IsTerminal reports whether the entry reached a final status
func (t *Transaction) IsTerminal() bool {
	return t.Status != StatusPending
}
