package ratesource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USD", r.URL.Query().Get("from"))
		assert.Equal(t, "EUR", r.URL.Query().Get("to"))
		fmt.Fprint(w, `{"rate": "0.92"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	rate, err := client.Quote(context.Background(), domain.CurrencyUSD, domain.CurrencyEUR)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.92")))
}

func TestClientQuoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "upstream error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `not json`)
			},
		},
		{
			name: "unparseable rate",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"rate": "abc"}`)
			},
		},
		{
			name: "non-positive rate",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"rate": "0"}`)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			client := NewClient(srv.URL, time.Second)
			_, err := client.Quote(context.Background(), domain.CurrencyUSD, domain.CurrencyEUR)
			assert.ErrorIs(t, err, models.ErrRateUnavailable)
		})
	}
}

func TestClientQuoteUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := client.Quote(context.Background(), domain.CurrencyUSD, domain.CurrencyEUR)
	assert.ErrorIs(t, err, models.ErrRateUnavailable)
}
