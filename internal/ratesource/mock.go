package ratesource

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/shopspring/decimal"
)

// usdValue is the value of one unit of each currency expressed in USD.
// Cross rates derive from the USD legs: rate(from, to) = usd[from] / usd[to].
var usdValue = map[domain.Currency]decimal.Decimal{
	domain.CurrencyARS:  decimal.RequireFromString("0.00071"),
	domain.CurrencyUSD:  decimal.RequireFromString("1"),
	domain.CurrencyEUR:  decimal.RequireFromString("1.087"),
	domain.CurrencyBTC:  decimal.RequireFromString("67000"),
	domain.CurrencyETH:  decimal.RequireFromString("3200"),
	domain.CurrencyUSDT: decimal.RequireFromString("0.999"),
}

// Mock is a static rate provider for tests and local runs. Latency and
// FailureRate make it behave like a flaky upstream when needed.
type Mock struct {
	Latency     time.Duration
	FailureRate float64
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Quote(ctx context.Context, from, to domain.Currency) (decimal.Decimal, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return decimal.Zero, fmt.Errorf("%w: %s", models.ErrRateUnavailable, ctx.Err())
		}
	}
	if m.FailureRate > 0 && rand.Float64() < m.FailureRate {
		return decimal.Zero, fmt.Errorf("%w: provider temporarily unavailable", models.ErrRateUnavailable)
	}

	if from == to {
		return decimal.NewFromInt(1), nil
	}
	fromLeg, ok1 := usdValue[from]
	toLeg, ok2 := usdValue[to]
	if !ok1 || !ok2 {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s/%s", models.ErrRateUnavailable, from, to)
	}
	return fromLeg.Div(toLeg), nil
}

// Fixed returns a provider that always quotes the same rate, regardless of
// the currency pair. Useful for deterministic conversion tests.
func Fixed(rate decimal.Decimal) Provider {
	return fixedProvider{rate: rate}
}

type fixedProvider struct {
	rate decimal.Decimal
}

func (p fixedProvider) Quote(ctx context.Context, from, to domain.Currency) (decimal.Decimal, error) {
	return p.rate, nil
}

// Failing returns a provider that always fails with ErrRateUnavailable.
func Failing() Provider {
	return failingProvider{}
}

type failingProvider struct{}

func (failingProvider) Quote(ctx context.Context, from, to domain.Currency) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("%w: provider down", models.ErrRateUnavailable)
}
