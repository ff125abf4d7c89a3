package adapters

import (
	"custodia/models"
	"fmt"
	"sync"
)

// WalletAdapter is the external capability a currency's wallet exposes.
// Implementations may talk to a remote node or do nothing at all; the
// settlement engine treats them as slow, unreliable black boxes.
type WalletAdapter interface {
	// HotBalance returns the funds immediately available for payouts,
	// in the currency's smallest unit.
	HotBalance(currency models.Currency) (int64, error)

	// ExecuteMove settles one internal transfer debit entry. A false
	// result without error means the adapter declined the transfer.
	ExecuteMove(entry *models.Transaction) (bool, error)

	// ExecuteWithdrawals pays out a whole batch, mutating each entry's
	// Status, ErrorMsg and TxID in place. A returned error covers
	// transport level failure; per entry outcomes live on the entries.
	ExecuteWithdrawals(batch []*models.Transaction) error

	// Housekeeping runs the adapter's periodic maintenance
	Housekeeping() error
}

// Registry resolves wallets to adapter instances, caching per wallet id
type Registry struct {
	mu    sync.Mutex
	cache map[uint]WalletAdapter
}

func NewRegistry() *Registry {
	return &Registry{cache: make(map[uint]WalletAdapter)}
}

// For returns the adapter bound to a wallet, or an error when the
// wallet names an unknown adapter. Callers treat the error as "no
// eligible currency", not as a fault.
func (r *Registry) For(wallet models.Wallet) (WalletAdapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter, ok := r.cache[wallet.ID]; ok {
		return adapter, nil
	}

	var adapter WalletAdapter
	switch wallet.Adapter {
	case "builtin":
		adapter = NewBuiltinAdapter()
	case "rpcnode":
		adapter = NewRPCNodeAdapter(wallet.Endpoint, wallet.Secret)
	default:
		return nil, fmt.Errorf("no adapter registered for %q", wallet.Adapter)
	}

	r.cache[wallet.ID] = adapter
	return adapter, nil
}

// Put registers a prebuilt adapter for a wallet id. Used by tests and
// by deployments wiring custom capabilities at startup.
func (r *Registry) Put(walletID uint, adapter WalletAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[walletID] = adapter
}
