package dto

import (
	"time"

	"github.com/livecast-io/livecast-api/internal/models"
)

// WalletResponse reports a user's current coin balance.
type WalletResponse struct {
	UserID      string `json:"user_id"`
	CoinBalance int64  `json:"coin_balance"`
	BalanceUSD  string `json:"balance_usd"`
}

// LedgerHistoryQuery filters the ledger history listing.
type LedgerHistoryQuery struct {
	Reason string `query:"reason" validate:"omitempty,max=64"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int    `query:"offset" validate:"omitempty,min=0"`
}

// CoinTransactionResponse is the serialized ledger row.
type CoinTransactionResponse struct {
	ID           uint              `json:"id"`
	UserID       string            `json:"user_id"`
	Amount       int64             `json:"amount"`
	Reason       string            `json:"reason"`
	BalanceAfter int64             `json:"balance_after"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// NewCoinTransactionResponse converts a ledger model into a DTO. Metadata
// values that are not strings are dropped rather than stringified.
func NewCoinTransactionResponse(tx models.CoinTransaction) CoinTransactionResponse {
	response := CoinTransactionResponse{
		ID:           tx.ID,
		UserID:       tx.UserID,
		Amount:       tx.Amount,
		Reason:       tx.Reason,
		BalanceAfter: tx.BalanceAfter,
		CreatedAt:    tx.CreatedAt,
	}
	if tx.Metadata != nil {
		response.Metadata = make(map[string]string)
		for key, value := range tx.Metadata {
			if str, ok := value.(string); ok {
				response.Metadata[key] = str
			}
		}
	}
	return response
}

// NewCoinTransactionResponseSlice converts ledger models into DTOs.
func NewCoinTransactionResponseSlice(items []models.CoinTransaction) []CoinTransactionResponse {
	out := make([]CoinTransactionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewCoinTransactionResponse(item))
	}
	return out
}
