package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"price_alert_backend/metrics"
	"price_alert_backend/models"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the Yahoo Finance query host used for quotes
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// CryptoQuoteSuffix is appended to crypto symbols to form the provider query key
const CryptoQuoteSuffix = "-USD"

// FetchError describes a failed price lookup for a symbol
type FetchError struct {
	Symbol string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("price fetch failed for %s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("price fetch failed for %s: %s", e.Symbol, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client fetches market prices from the quote provider
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a market data client. The timeout bounds every fetch so
// a slow provider cannot stall a monitoring cycle.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// YahooChartResponse represents the chart endpoint response
type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// QueryKey maps a stored symbol to the provider's query key. Crypto symbols
// are quoted against USD.
func QueryKey(symbol, assetClass string) string {
	if assetClass == models.AssetClassCrypto {
		return symbol + CryptoQuoteSuffix
	}
	return symbol
}

// FetchPrice fetches the current market price for a symbol. Failures are
// returned as *FetchError; there is no retry here, the monitor's schedule is
// the retry cadence.
func (c *Client) FetchPrice(ctx context.Context, symbol, assetClass string) (decimal.Decimal, error) {
	key := QueryKey(symbol, assetClass)
	url := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, key)

	start := time.Now()
	defer func() {
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return decimal.Zero, c.fetchError(symbol, "failed to create request", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, c.fetchError(symbol, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, c.fetchError(symbol, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, c.fetchError(symbol, "failed to read response", err)
	}

	var chartResp YahooChartResponse
	if err := json.Unmarshal(body, &chartResp); err != nil {
		return decimal.Zero, c.fetchError(symbol, "failed to parse response", err)
	}

	if chartResp.Chart.Error != nil {
		return decimal.Zero, c.fetchError(symbol, fmt.Sprintf("provider error: %s", chartResp.Chart.Error.Description), nil)
	}

	if len(chartResp.Chart.Result) == 0 {
		return decimal.Zero, c.fetchError(symbol, "no data for symbol", nil)
	}

	price := chartResp.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return decimal.Zero, c.fetchError(symbol, "no market price in response", nil)
	}

	return decimal.NewFromFloat(price), nil
}

func (c *Client) fetchError(symbol, reason string, err error) *FetchError {
	metrics.FetchErrorsTotal.Inc()
	return &FetchError{Symbol: symbol, Reason: reason, Err: err}
}
