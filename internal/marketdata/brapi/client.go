// Package brapi implements the market-data provider against the brapi.dev
// HTTP API: listed quotes, currency pairs and the Brazilian prime-rate and
// inflation series.
package brapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"investfolio/internal/marketdata"
	"investfolio/internal/timeseries"
)

type Client struct {
	host       string
	token      string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brapi error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host, token string) *Client {
	if host == "" {
		host = "https://brapi.dev/api"
	}
	host = strings.TrimRight(host, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		host:       host,
		token:      token,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.token != "" {
		query.Set("token", c.token)
	}
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// rangeFor maps an absolute start date onto the closest brapi range bucket.
func rangeFor(since time.Time) string {
	if since.IsZero() {
		return "max"
	}
	days := int(time.Since(since).Hours() / 24)
	switch {
	case days <= 5:
		return "5d"
	case days <= 31:
		return "1mo"
	case days <= 93:
		return "3mo"
	case days <= 186:
		return "6mo"
	case days <= 366:
		return "1y"
	case days <= 731:
		return "2y"
	case days <= 1830:
		return "5y"
	default:
		return "max"
	}
}

func (c *Client) QuoteHistory(ctx context.Context, symbol string, since time.Time) ([]marketdata.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	query := url.Values{}
	query.Set("range", rangeFor(since))
	query.Set("interval", "1d")
	body, err := c.doRequest(ctx, "/quote/"+url.PathEscape(symbol), query)
	if err != nil {
		return nil, err
	}
	return parseQuoteHistory(body, since)
}

func (c *Client) CurrencyHistory(ctx context.Context, pair string, since time.Time) ([]marketdata.Candle, error) {
	if pair == "" {
		return nil, fmt.Errorf("pair is required")
	}
	query := url.Values{}
	query.Set("currency", pair)
	body, err := c.doRequest(ctx, "/v2/currency", query)
	if err != nil {
		return nil, err
	}
	return parseCurrency(body, since)
}

func (c *Client) PrimeRateHistory(ctx context.Context, since time.Time) ([]marketdata.Candle, error) {
	query := historicalQuery(since)
	body, err := c.doRequest(ctx, "/v2/prime-rate", query)
	if err != nil {
		return nil, err
	}
	return parseDatedValues(body, "prime-rate", since)
}

func (c *Client) InflationHistory(ctx context.Context, since time.Time) ([]marketdata.Candle, error) {
	query := historicalQuery(since)
	body, err := c.doRequest(ctx, "/v2/inflation", query)
	if err != nil {
		return nil, err
	}
	return parseDatedValues(body, "inflation", since)
}

func historicalQuery(since time.Time) url.Values {
	query := url.Values{}
	query.Set("country", "brazil")
	query.Set("historical", "true")
	query.Set("sortBy", "date")
	query.Set("sortOrder", "asc")
	if !since.IsZero() {
		query.Set("start", since.Format("02/01/2006"))
		query.Set("end", time.Now().UTC().Format("02/01/2006"))
	}
	return query
}

type quoteHistoryResponse struct {
	Results []struct {
		Symbol              string            `json:"symbol"`
		HistoricalDataPrice []json.RawMessage `json:"historicalDataPrice"`
	} `json:"results"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// unixPoint is one daily observation keyed by a unix timestamp.
type unixPoint struct {
	Date  int64    `json:"date"`
	Close *float64 `json:"close"`
}

func parseQuoteHistory(body []byte, since time.Time) ([]marketdata.Candle, error) {
	var payload quoteHistoryResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode quote history: %w", err)
	}
	if payload.Error {
		return nil, fmt.Errorf("quote history rejected: %s", payload.Message)
	}
	if len(payload.Results) == 0 {
		return nil, marketdata.ErrNoHistory
	}
	var out []marketdata.Candle
	for _, raw := range payload.Results[0].HistoricalDataPrice {
		var p unixPoint
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if p.Close == nil {
			continue
		}
		day := timeseries.Day(time.Unix(p.Date, 0).UTC())
		if !since.IsZero() && day.Before(timeseries.Day(since)) {
			continue
		}
		out = append(out, marketdata.Candle{Date: day, Close: *p.Close, Raw: raw})
	}
	if len(out) == 0 {
		return nil, marketdata.ErrNoHistory
	}
	return out, nil
}

type currencyResponse struct {
	Currency []struct {
		BidPrice       string            `json:"bidPrice"`
		UpdatedAtDate  string            `json:"updatedAtDate"`
		HistoricalData []json.RawMessage `json:"historicalData"`
	} `json:"currency"`
}

func parseCurrency(body []byte, since time.Time) ([]marketdata.Candle, error) {
	var payload currencyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode currency history: %w", err)
	}
	if len(payload.Currency) == 0 {
		return nil, marketdata.ErrNoHistory
	}
	entry := payload.Currency[0]
	var out []marketdata.Candle
	for _, raw := range entry.HistoricalData {
		var p unixPoint
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if p.Close == nil {
			continue
		}
		day := timeseries.Day(time.Unix(p.Date, 0).UTC())
		if !since.IsZero() && day.Before(timeseries.Day(since)) {
			continue
		}
		out = append(out, marketdata.Candle{Date: day, Close: *p.Close, Raw: raw})
	}
	// The v2 endpoint always carries at least the spot quote.
	if len(out) == 0 && entry.BidPrice != "" {
		bid, err := strconv.ParseFloat(strings.ReplaceAll(entry.BidPrice, ",", "."), 64)
		if err == nil {
			day := timeseries.Today()
			if parsed, perr := time.Parse("2006-01-02", entry.UpdatedAtDate); perr == nil {
				day = timeseries.Day(parsed)
			}
			raw, _ := json.Marshal(map[string]string{
				"bidPrice":      entry.BidPrice,
				"updatedAtDate": entry.UpdatedAtDate,
			})
			out = append(out, marketdata.Candle{Date: day, Close: bid, Raw: raw})
		}
	}
	if len(out) == 0 {
		return nil, marketdata.ErrNoHistory
	}
	return out, nil
}

func parseDatedValues(body []byte, key string, since time.Time) ([]marketdata.Candle, error) {
	var payload map[string][]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s history: %w", key, err)
	}
	rows := payload[key]
	if len(rows) == 0 {
		return nil, marketdata.ErrNoHistory
	}
	var out []marketdata.Candle
	for _, raw := range rows {
		var r struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		day, err := time.Parse("02/01/2006", r.Date)
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(r.Value, ",", "."), 64)
		if err != nil {
			continue
		}
		day = timeseries.Day(day)
		if !since.IsZero() && day.Before(timeseries.Day(since)) {
			continue
		}
		out = append(out, marketdata.Candle{Date: day, Close: value, Raw: raw})
	}
	if len(out) == 0 {
		return nil, marketdata.ErrNoHistory
	}
	return out, nil
}
