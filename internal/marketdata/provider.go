package marketdata

import (
	"context"
	"errors"
	"time"
)

// Candle is one daily observation from the quote provider: a closing level
// for price series, a daily percentage for rate series.
type Candle struct {
	Date  time.Time
	Close float64
	Raw   []byte
}

// Provider is the outbound port to the quote vendor.
type Provider interface {
	// QuoteHistory returns daily closes for a listed ticker.
	QuoteHistory(ctx context.Context, symbol string, since time.Time) ([]Candle, error)
	// CurrencyHistory returns daily closes for a currency pair such as USD-BRL.
	CurrencyHistory(ctx context.Context, pair string, since time.Time) ([]Candle, error)
	// PrimeRateHistory returns the daily interbank rate in percent.
	PrimeRateHistory(ctx context.Context, since time.Time) ([]Candle, error)
	// InflationHistory returns the inflation index variation in percent.
	InflationHistory(ctx context.Context, since time.Time) ([]Candle, error)
}

// ErrNoHistory is returned when the provider or the local store has no
// observations at all for the requested series.
var ErrNoHistory = errors.New("marketdata: no history for series")
