package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"investfolio/internal/fixedincome"
	"investfolio/internal/models"
	"investfolio/internal/repository"
	"investfolio/internal/timeseries"
)

// Service keeps the local index_history table in sync with the provider and
// serves calendar-aligned value series to the consolidation pipeline. Rate
// indexes (CDI, IPCA) are zero-filled over days without an observation; price
// indexes (USD/BRL, equity benchmarks) are forward-filled.
type Service struct {
	Repo     repository.Repository
	Provider Provider
	Logger   *zap.Logger

	// FXPair is the provider-side pair identifier for the USD/BRL index,
	// e.g. "USD-BRL".
	FXPair string
	// LookbackDays re-fetches a small window before the newest stored
	// observation so late provider restatements are picked up.
	LookbackDays int
}

func (s *Service) log() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// EnsureDefaultIndexes registers the indexes the consolidation pipeline
// depends on when they are missing.
func (s *Service) EnsureDefaultIndexes(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	defaults := []models.MarketIndex{
		{Symbol: models.IndexSymbolUSDBRL, ShortName: "USD/BRL", Kind: models.IndexKindPrice, CurrencyCode: "BRL"},
		{Symbol: models.IndexSymbolCDI, ShortName: "CDI", Kind: models.IndexKindRate, CurrencyCode: "BRL"},
		{Symbol: models.IndexSymbolIPCA, ShortName: "IPCA", Kind: models.IndexKindRate, CurrencyCode: "BRL"},
	}
	for i := range defaults {
		existing, err := s.Repo.GetMarketIndexBySymbol(ctx, defaults[i].Symbol)
		if err != nil {
			return fmt.Errorf("lookup index %s: %w", defaults[i].Symbol, err)
		}
		if existing != nil {
			continue
		}
		if err := s.Repo.CreateMarketIndex(ctx, &defaults[i]); err != nil {
			return fmt.Errorf("create index %s: %w", defaults[i].Symbol, err)
		}
	}
	return nil
}

// RefreshAll refreshes every registered index. Failures are isolated per
// index; the first error is reported after all indexes were attempted.
func (s *Service) RefreshAll(ctx context.Context) error {
	if s == nil || s.Repo == nil || s.Provider == nil {
		return nil
	}
	indexes, err := s.Repo.ListMarketIndexes(ctx)
	if err != nil {
		return fmt.Errorf("list market indexes: %w", err)
	}
	var firstErr error
	for _, idx := range indexes {
		if err := s.RefreshIndex(ctx, idx); err != nil {
			s.log().Warn("index refresh failed",
				zap.String("symbol", idx.Symbol),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RefreshIndex fetches observations newer than the stored history (minus the
// lookback window) and upserts them on (index_id, date).
func (s *Service) RefreshIndex(ctx context.Context, index models.MarketIndex) error {
	if s == nil || s.Repo == nil || s.Provider == nil {
		return nil
	}
	var since time.Time
	latest, err := s.Repo.GetLatestIndexHistory(ctx, index.ID)
	if err != nil {
		return fmt.Errorf("latest history for %s: %w", index.Symbol, err)
	}
	if latest != nil {
		lookback := s.LookbackDays
		if lookback <= 0 {
			lookback = 10
		}
		since = timeseries.Day(latest.Date).AddDate(0, 0, -lookback)
	}

	var candles []Candle
	switch index.Symbol {
	case models.IndexSymbolUSDBRL:
		pair := s.FXPair
		if pair == "" {
			pair = "USD-BRL"
		}
		candles, err = s.Provider.CurrencyHistory(ctx, pair, since)
	case models.IndexSymbolCDI:
		candles, err = s.Provider.PrimeRateHistory(ctx, since)
	case models.IndexSymbolIPCA:
		candles, err = s.Provider.InflationHistory(ctx, since)
	default:
		candles, err = s.Provider.QuoteHistory(ctx, index.Symbol, since)
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", index.Symbol, err)
	}

	rows := make([]models.IndexHistory, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, models.IndexHistory{
			IndexID: index.ID,
			Date:    timeseries.Day(c.Date),
			Close:   decimal.NewFromFloat(c.Close),
			Raw:     datatypes.JSON(c.Raw),
		})
	}
	if err := s.Repo.UpsertIndexHistory(ctx, rows); err != nil {
		return fmt.Errorf("upsert %s history: %w", index.Symbol, err)
	}
	s.log().Info("index refreshed",
		zap.String("symbol", index.Symbol),
		zap.Int("rows", len(rows)))
	return nil
}

// IndexSeries projects the stored history of an index onto the given calendar
// dates, filling gaps according to the index kind.
func (s *Service) IndexSeries(ctx context.Context, index *models.MarketIndex, dates []time.Time) ([]float64, error) {
	if s == nil || s.Repo == nil || index == nil {
		return nil, ErrNoHistory
	}
	history, err := s.Repo.ListIndexHistory(ctx, index.ID, nil)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, index.Symbol)
	}
	byDate := make(map[time.Time]float64, len(history))
	for _, h := range history {
		byDate[timeseries.Day(h.Date)] = h.Close.InexactFloat64()
	}
	values := make([]float64, len(dates))
	for i, d := range dates {
		if v, ok := byDate[timeseries.Day(d)]; ok {
			values[i] = v
		} else {
			values[i] = timeseries.NaN()
		}
	}
	if index.Kind == models.IndexKindRate {
		return timeseries.FillZero(values), nil
	}
	return timeseries.ForwardFill(values), nil
}

// USDBRLSeries is IndexSeries for the well-known currency index.
func (s *Service) USDBRLSeries(ctx context.Context, dates []time.Time) ([]float64, error) {
	if s == nil || s.Repo == nil {
		return nil, ErrNoHistory
	}
	index, err := s.Repo.GetMarketIndexBySymbol(ctx, models.IndexSymbolUSDBRL)
	if err != nil {
		return nil, err
	}
	if index == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, models.IndexSymbolUSDBRL)
	}
	return s.IndexSeries(ctx, index, dates)
}

// IndexPoints returns the raw stored observations of an index for the
// fixed-income pricing model, which joins them by exact date.
func (s *Service) IndexPoints(ctx context.Context, indexID uint64) ([]fixedincome.IndexPoint, error) {
	if s == nil || s.Repo == nil {
		return nil, ErrNoHistory
	}
	index, err := s.Repo.GetMarketIndexByID(ctx, indexID)
	if err != nil {
		return nil, err
	}
	if index == nil {
		return nil, fmt.Errorf("unknown market index %d", indexID)
	}
	history, err := s.Repo.ListIndexHistory(ctx, indexID, nil)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, index.Symbol)
	}
	points := make([]fixedincome.IndexPoint, 0, len(history))
	for _, h := range history {
		points = append(points, fixedincome.IndexPoint{
			Date:  timeseries.Day(h.Date),
			Close: h.Close.InexactFloat64(),
		})
	}
	return points, nil
}

// AssetPriceSeries fetches daily closes for a listed ticker straight from the
// provider, keyed by calendar day.
func (s *Service) AssetPriceSeries(ctx context.Context, ticker string, since time.Time) (map[time.Time]float64, error) {
	if s == nil || s.Provider == nil {
		return nil, ErrNoHistory
	}
	candles, err := s.Provider.QuoteHistory(ctx, ticker, since)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]float64, len(candles))
	for _, c := range candles {
		out[timeseries.Day(c.Date)] = c.Close
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, ticker)
	}
	return out, nil
}
