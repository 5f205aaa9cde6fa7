package domain

// Currency is one of the fixed set of currencies the wallet supports.
type Currency string

const (
	CurrencyARS  Currency = "ARS"
	CurrencyUSD  Currency = "USD"
	CurrencyEUR  Currency = "EUR"
	CurrencyBTC  Currency = "BTC"
	CurrencyETH  Currency = "ETH"
	CurrencyUSDT Currency = "USDT"
)

// currencies lists every supported currency in a stable order. A balance set
// always contains exactly these keys.
var currencies = []Currency{
	CurrencyARS,
	CurrencyUSD,
	CurrencyEUR,
	CurrencyBTC,
	CurrencyETH,
	CurrencyUSDT,
}

// Currencies returns the supported currency set in stable order.
func Currencies() []Currency {
	out := make([]Currency, len(currencies))
	copy(out, currencies)
	return out
}

// Valid reports whether c belongs to the supported set.
func (c Currency) Valid() bool {
	for _, known := range currencies {
		if c == known {
			return true
		}
	}
	return false
}

func (c Currency) String() string {
	return string(c)
}
