package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrencyValid(t *testing.T) {
	for _, c := range Currencies() {
		assert.True(t, c.Valid(), "expected %s to be valid", c)
	}

	assert.False(t, Currency("GBP").Valid())
	assert.False(t, Currency("usd").Valid())
	assert.False(t, Currency("").Valid())
}

func TestCurrenciesIsClosedSet(t *testing.T) {
	got := Currencies()
	assert.Equal(t, []Currency{
		CurrencyARS, CurrencyUSD, CurrencyEUR,
		CurrencyBTC, CurrencyETH, CurrencyUSDT,
	}, got)

	// Mutating the returned slice must not leak into the package set.
	got[0] = Currency("XXX")
	assert.Equal(t, CurrencyARS, Currencies()[0])
}
