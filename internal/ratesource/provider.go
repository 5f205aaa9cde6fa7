package ratesource

import (
	"context"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/shopspring/decimal"
)

// Provider supplies FX quotes. Quote returns the rate such that
// amountOut = amountIn * rate. Implementations must return an error wrapping
// models.ErrRateUnavailable when no positive rate can be produced.
type Provider interface {
	Quote(ctx context.Context, from, to domain.Currency) (decimal.Decimal, error)
}
