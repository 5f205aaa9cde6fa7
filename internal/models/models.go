package models

import (
	"encoding/json"
	"time"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account is a custodial wallet account. Balances always carries one entry
// per supported currency, in micros.
type Account struct {
	ID            uuid.UUID                 `json:"id"`
	UserID        uuid.UUID                 `json:"user_id"`
	AccountNumber string                    `json:"account_number"`
	Balances      map[domain.Currency]int64 `json:"balances"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// Transaction is an append-only ledger entry. Rows are created in the same
// database transaction as the balance mutation they record and are never
// updated or deleted. Credits and conversions reference the acting account
// on both sides.
type Transaction struct {
	ID            int64            `json:"id"`
	FromAccountID uuid.UUID        `json:"from_account_id"`
	ToAccountID   uuid.UUID        `json:"to_account_id"`
	AmountMicros  int64            `json:"amount_micros"`
	Currency      domain.Currency  `json:"currency"`
	Type          string           `json:"type"` // "deposit", "transfer" or "exchange"
	FXRate        *decimal.Decimal `json:"fx_rate,omitempty"`
	Metadata      json.RawMessage  `json:"metadata,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
