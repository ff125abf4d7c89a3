package adapters

import (
	"custodia/models"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// RPCNodeAdapter talks to a remote wallet node over its JSON HTTP API.
// Every call carries a bearer token and a request id so the node can
// de-duplicate retried requests on its side.
type RPCNodeAdapter struct {
	client *resty.Client
}

// NewRPCNodeAdapter builds an adapter for one node endpoint
func NewRPCNodeAdapter(endpoint, secret string) *RPCNodeAdapter {
	client := resty.New().
		SetBaseURL(endpoint).
		SetAuthToken(secret).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &RPCNodeAdapter{client: client}
}

type nodeBalanceResponse struct {
	Balance int64  `json:"balance"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type nodeMoveResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message"`
}

type nodeWithdrawalItem struct {
	ID      uint   `json:"id"`
	Address string `json:"address"`
	Extra   string `json:"extra"`
	Amount  int64  `json:"amount"`
	Fee     int64  `json:"fee"`
	Nonce   string `json:"nonce"`
}

type nodeWithdrawalResult struct {
	ID      uint   `json:"id"`
	Ok      bool   `json:"ok"`
	TxID    string `json:"txid"`
	Message string `json:"message"`
}

type nodeWithdrawalsResponse struct {
	Results []nodeWithdrawalResult `json:"results"`
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
}

// HotBalance asks the node for the spendable balance of a currency
func (a *RPCNodeAdapter) HotBalance(currency models.Currency) (int64, error) {
	var result nodeBalanceResponse

	resp, err := a.client.R().
		SetHeader("X-Request-Id", uuid.NewString()).
		SetBody(map[string]interface{}{"symbol": currency.Symbol}).
		SetResult(&result).
		Post("/balance")
	if err != nil {
		return 0, fmt.Errorf("failed to fetch hot balance: %v", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("node error: %s", resp.String())
	}

	return result.Balance, nil
}

// ExecuteMove settles an internal transfer on the node side. Most
// nodes treat this as pure bookkeeping and simply acknowledge.
func (a *RPCNodeAdapter) ExecuteMove(entry *models.Transaction) (bool, error) {
	var result nodeMoveResponse

	resp, err := a.client.R().
		SetHeader("X-Request-Id", uuid.NewString()).
		SetBody(map[string]interface{}{
			"id":     entry.ID,
			"user":   entry.UserID,
			"amount": entry.Amount,
			"fee":    entry.Fee,
		}).
		SetResult(&result).
		Post("/move")
	if err != nil {
		return false, fmt.Errorf("failed to execute move: %v", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("node error: %s", resp.String())
	}
	if !result.Ok && result.Message != "" {
		return false, fmt.Errorf("%s", result.Message)
	}

	return result.Ok, nil
}

// ExecuteWithdrawals submits the whole batch in one call and maps the
// node's per item results back onto the entries in place.
func (a *RPCNodeAdapter) ExecuteWithdrawals(batch []*models.Transaction) error {
	items := make([]nodeWithdrawalItem, 0, len(batch))
	byID := make(map[uint]*models.Transaction, len(batch))
	for _, entry := range batch {
		items = append(items, nodeWithdrawalItem{
			ID:      entry.ID,
			Address: entry.Address.Address,
			Extra:   entry.Address.Extra,
			Amount:  entry.Amount,
			Fee:     entry.Fee,
			Nonce:   entry.Nonce,
		})
		byID[entry.ID] = entry
	}

	var result nodeWithdrawalsResponse

	resp, err := a.client.R().
		SetHeader("X-Request-Id", uuid.NewString()).
		SetBody(map[string]interface{}{"withdrawals": items}).
		SetResult(&result).
		Post("/withdrawals")
	if err != nil {
		return fmt.Errorf("failed to execute withdrawals: %v", err)
	}
	if resp.IsError() {
		return fmt.Errorf("node error: %s", resp.String())
	}

	for _, res := range result.Results {
		entry, ok := byID[res.ID]
		if !ok {
			continue
		}
		if res.Ok {
			entry.Status = models.StatusDone
			entry.TxID = res.TxID
			entry.ErrorMsg = ""
		} else {
			entry.Status = models.StatusFailed
			entry.ErrorMsg = res.Message
		}
	}

	return nil
}

// Housekeeping pings the node's maintenance endpoint
func (a *RPCNodeAdapter) Housekeeping() error {
	resp, err := a.client.R().
		SetHeader("X-Request-Id", uuid.NewString()).
		Post("/housekeeping")
	if err != nil {
		return fmt.Errorf("housekeeping call failed: %v", err)
	}
	if resp.IsError() {
		return fmt.Errorf("node error: %s", resp.String())
	}
	return nil
}
