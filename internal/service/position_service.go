package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"investfolio/internal/cache"
	"investfolio/internal/models"
	"investfolio/internal/repository"
	"investfolio/internal/returns"
	"investfolio/internal/timeseries"
)

// uncategorized is the bucket for assets without a category assignment.
const uncategorized = "uncategorized"

// SeriesPayload is the wire shape of a date-indexed set of named series.
// Missing points are null.
type SeriesPayload struct {
	Dates  []string              `json:"dates"`
	Series map[string][]*float64 `json:"series"`
}

// ReturnsPayload is the portfolio returns response: accumulated return per
// asset, and per category with the whole portfolio as one more named series.
type ReturnsPayload struct {
	Assets     SeriesPayload `json:"assets"`
	Categories SeriesPayload `json:"categories"`
}

// PatrimonyPayload tracks portfolio worth by day: total market value,
// accumulated contributions and the per-category breakdown.
type PatrimonyPayload struct {
	Dates      []string             `json:"dates"`
	Total      []float64            `json:"total"`
	Aported    []float64            `json:"aported"`
	Categories map[string][]float64 `json:"categories"`
}

// PositionView is one current holding joined with its asset.
type PositionView struct {
	AssetID            uint64   `json:"asset_id"`
	Ticker             string   `json:"ticker"`
	Name               string   `json:"name"`
	Class              string   `json:"class"`
	Category           string   `json:"category"`
	Date               string   `json:"date"`
	Quantity           float64  `json:"quantity"`
	Price              float64  `json:"price"`
	AveragePrice       float64  `json:"average_price"`
	Value              float64  `json:"value"`
	AccReturn          float64  `json:"acc_return"`
	TwelveMonthsReturn *float64 `json:"twelve_months_return"`
}

type PositionService struct {
	Repo   repository.Repository
	Cache  cache.Store
	Logger *zap.Logger
	TTL    time.Duration
}

func (s *PositionService) log() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *PositionService) cacheStore() cache.Store {
	if s == nil || s.Cache == nil {
		return cache.Noop{}
	}
	return s.Cache
}

// CurrentPositions returns the newest materialized row of every held asset.
func (s *PositionService) CurrentPositions(ctx context.Context, portfolioID uint64) ([]PositionView, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	positions, err := s.Repo.ListLatestPositions(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("latest positions: %w", err)
	}
	assets, categories, err := s.assetContext(ctx, portfolioID, positions)
	if err != nil {
		return nil, err
	}
	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		qty := p.Quantity.InexactFloat64()
		if qty <= 0 {
			continue
		}
		price := p.Price.InexactFloat64()
		view := PositionView{
			AssetID:            p.AssetID,
			Category:           uncategorized,
			Date:               p.Date.Format("2006-01-02"),
			Quantity:           qty,
			Price:              price,
			AveragePrice:       p.AveragePrice.InexactFloat64(),
			Value:              qty * price,
			AccReturn:          p.AccReturn,
			TwelveMonthsReturn: p.TwelveMonthsReturn,
		}
		if a, ok := assets[p.AssetID]; ok {
			view.Ticker = a.Ticker
			view.Name = a.Name
			view.Class = a.Class
		}
		if c, ok := categories[p.AssetID]; ok {
			view.Category = c
		}
		views = append(views, view)
	}
	return views, nil
}

// PositionHistory returns the raw materialized rows for one asset.
func (s *PositionService) PositionHistory(ctx context.Context, portfolioID, assetID uint64, since, until *time.Time) ([]models.Position, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListPositions(ctx, repository.ListPositionsParams{
		PortfolioID: portfolioID,
		AssetID:     &assetID,
		Since:       since,
		Until:       until,
	})
}

// PortfolioReturns builds (or serves from cache) the asset/category/portfolio
// accumulated return series.
func (s *PositionService) PortfolioReturns(ctx context.Context, portfolioID uint64) (ReturnsPayload, error) {
	key := fmt.Sprintf("portfolio:%d:returns", portfolioID)
	var cached ReturnsPayload
	if ok := s.fromCache(ctx, key, &cached); ok {
		return cached, nil
	}

	daily, err := s.dailyRows(ctx, portfolioID)
	if err != nil {
		return ReturnsPayload{}, err
	}
	portfolio := returns.PortfolioAccumulated(daily)
	categories := returns.CategoryAccumulated(daily)
	payload := ReturnsPayload{
		Assets:     seriesPayload(returns.AssetAccumulated(daily)),
		Categories: mergeSeries(categories, portfolio),
	}
	s.toCache(ctx, key, payload)
	return payload, nil
}

// PatrimonyEvolution builds (or serves from cache) the daily market value of
// the portfolio, total and per category, alongside accumulated contributions.
func (s *PositionService) PatrimonyEvolution(ctx context.Context, portfolioID uint64) (PatrimonyPayload, error) {
	key := fmt.Sprintf("portfolio:%d:patrimony", portfolioID)
	var cached PatrimonyPayload
	if ok := s.fromCache(ctx, key, &cached); ok {
		return cached, nil
	}

	daily, err := s.dailyRows(ctx, portfolioID)
	if err != nil {
		return PatrimonyPayload{}, err
	}

	dateIndex := map[time.Time]int{}
	var dates []time.Time
	for _, r := range daily {
		if _, ok := dateIndex[r.Date]; !ok {
			dateIndex[r.Date] = len(dates)
			dates = append(dates, r.Date)
		}
	}
	total := make([]float64, len(dates))
	contributions := make([]float64, len(dates))
	categories := map[string][]float64{}
	for _, r := range daily {
		i := dateIndex[r.Date]
		total[i] += r.Value
		contributions[i] += r.Contribution
		if _, ok := categories[r.Category]; !ok {
			categories[r.Category] = make([]float64, len(dates))
		}
		categories[r.Category][i] += r.Value
	}

	payload := PatrimonyPayload{
		Dates:      formatDates(dates),
		Total:      total,
		Aported:    timeseries.CumSum(contributions),
		Categories: categories,
	}
	s.toCache(ctx, key, payload)
	return payload, nil
}

// InvalidateCaches drops the cached aggregates of a portfolio; called after
// any mutation that triggers re-consolidation.
func (s *PositionService) InvalidateCaches(ctx context.Context, portfolioID uint64) {
	store := s.cacheStore()
	for _, key := range []string{
		fmt.Sprintf("portfolio:%d:returns", portfolioID),
		fmt.Sprintf("portfolio:%d:patrimony", portfolioID),
	} {
		if err := store.Delete(ctx, key); err != nil {
			s.log().Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// WarmCaches recomputes the cached aggregates, used by the nightly run.
func (s *PositionService) WarmCaches(ctx context.Context, portfolioID uint64) {
	s.InvalidateCaches(ctx, portfolioID)
	if _, err := s.PortfolioReturns(ctx, portfolioID); err != nil {
		s.log().Warn("returns cache warm failed", zap.Uint64("portfolio_id", portfolioID), zap.Error(err))
	}
	if _, err := s.PatrimonyEvolution(ctx, portfolioID); err != nil {
		s.log().Warn("patrimony cache warm failed", zap.Uint64("portfolio_id", portfolioID), zap.Error(err))
	}
}

// dailyRows loads every position row of the portfolio and annotates it with
// per-day derived figures for the aggregators.
func (s *PositionService) dailyRows(ctx context.Context, portfolioID uint64) ([]returns.DailyRow, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	positions, err := s.Repo.ListPositions(ctx, repository.ListPositionsParams{PortfolioID: portfolioID})
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	assets, categories, err := s.assetContext(ctx, portfolioID, positions)
	if err != nil {
		return nil, err
	}
	dividends, err := s.Repo.ListDividends(ctx, portfolioID, nil)
	if err != nil {
		return nil, fmt.Errorf("list dividends: %w", err)
	}
	divByAssetDate := map[uint64]map[time.Time]float64{}
	for _, d := range dividends {
		day := timeseries.Day(d.Date)
		if divByAssetDate[d.AssetID] == nil {
			divByAssetDate[d.AssetID] = map[time.Time]float64{}
		}
		divByAssetDate[d.AssetID][day] += d.Amount.InexactFloat64()
	}

	rows := make([]returns.Row, 0, len(positions))
	for _, p := range positions {
		row := returns.Row{
			Date:     timeseries.Day(p.Date),
			AssetID:  p.AssetID,
			Category: uncategorized,
			Quantity: p.Quantity.InexactFloat64(),
			Price:    p.Price.InexactFloat64(),
		}
		if a, ok := assets[p.AssetID]; ok {
			row.Ticker = a.Ticker
		}
		if c, ok := categories[p.AssetID]; ok {
			row.Category = c
		}
		if byDate, ok := divByAssetDate[p.AssetID]; ok {
			row.Dividend = byDate[row.Date]
		}
		rows = append(rows, row)
	}
	return returns.DailyReturns(rows), nil
}

func (s *PositionService) assetContext(ctx context.Context, portfolioID uint64, positions []models.Position) (map[uint64]models.Asset, map[uint64]string, error) {
	seen := map[uint64]bool{}
	var ids []uint64
	for _, p := range positions {
		if !seen[p.AssetID] {
			seen[p.AssetID] = true
			ids = append(ids, p.AssetID)
		}
	}
	assetList, err := s.Repo.ListAssetsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("list assets: %w", err)
	}
	assets := make(map[uint64]models.Asset, len(assetList))
	for _, a := range assetList {
		assets[a.ID] = a
	}
	categories, err := s.Repo.CategoryNamesByAsset(ctx, portfolioID)
	if err != nil {
		return nil, nil, fmt.Errorf("category names: %w", err)
	}
	return assets, categories, nil
}

func (s *PositionService) fromCache(ctx context.Context, key string, out any) bool {
	data, ok, err := s.cacheStore().Get(ctx, key)
	if err != nil {
		s.log().Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log().Warn("cache payload corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *PositionService) toCache(ctx context.Context, key string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := s.cacheStore().Set(ctx, key, data, ttl); err != nil {
		s.log().Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func seriesPayload(in returns.Series) SeriesPayload {
	out := SeriesPayload{
		Dates:  formatDates(in.Dates),
		Series: make(map[string][]*float64, len(in.Values)),
	}
	for name, values := range in.Values {
		col := make([]*float64, len(values))
		for i, v := range values {
			if timeseries.IsNaN(v) {
				continue
			}
			v := v
			col[i] = &v
		}
		out.Series[name] = col
	}
	return out
}

// mergeSeries folds extra named series into one payload; both inputs share
// the materialized calendar.
func mergeSeries(a, b returns.Series) SeriesPayload {
	out := seriesPayload(a)
	extra := seriesPayload(b)
	if out.Series == nil {
		out.Series = map[string][]*float64{}
	}
	if len(out.Dates) == 0 {
		out.Dates = extra.Dates
	}
	for name, values := range extra.Series {
		out.Series[name] = values
	}
	return out
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("2006-01-02")
	}
	return out
}
