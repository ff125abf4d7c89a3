package ledgerController

// WithdrawalRequest is the validated payload for POST /ledger/withdraw.
// Amount is in the currency's smallest unit, always positive; the
// debit sign is applied when the ledger entry is created.
type WithdrawalRequest struct {
	Currency  string `json:"currency" validate:"required"`
	AddressID uint   `json:"addressId" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Comment   string `json:"comment" validate:"max=255"`
}

// MoveRequest is the validated payload for POST /ledger/move
type MoveRequest struct {
	ToUserID uint   `json:"toUserId" validate:"required"`
	Currency string `json:"currency" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Comment  string `json:"comment" validate:"max=255"`
}
