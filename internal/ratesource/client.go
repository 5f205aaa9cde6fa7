package ratesource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/adeolu/wallet-multicurrency/internal/domain"
	"github.com/adeolu/wallet-multicurrency/internal/models"
	"github.com/shopspring/decimal"
)

// Client fetches quotes from an external rate service over HTTP. Quotes are
// fetched fresh per request; nothing is cached.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type quoteResponse struct {
	Rate string `json:"rate"`
}

func (c *Client) Quote(ctx context.Context, from, to domain.Currency) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s?from=%s&to=%s", c.baseURL, url.QueryEscape(from.String()), url.QueryEscape(to.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: build request: %s", models.ErrRateUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("%w: provider returned %d", models.ErrRateUnavailable, resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode response: %s", models.ErrRateUnavailable, err)
	}

	rate, err := decimal.NewFromString(body.Rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad rate %q", models.ErrRateUnavailable, body.Rate)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate %s", models.ErrRateUnavailable, rate)
	}
	return rate, nil
}
