// Package consolidator materializes daily position rows per (portfolio,
// asset): it normalizes and aggregates transactions, applies corporate
// events, joins market or model prices onto a calendar frame and persists the
// resulting BRL/USD return series with an atomic delete-then-upsert.
package consolidator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"investfolio/internal/corporate"
	"investfolio/internal/costbasis"
	"investfolio/internal/fixedincome"
	"investfolio/internal/models"
	"investfolio/internal/repository"
	"investfolio/internal/timeseries"
)

// MarketData is the slice of the market-data service the pipeline needs.
type MarketData interface {
	AssetPriceSeries(ctx context.Context, ticker string, since time.Time) (map[time.Time]float64, error)
	USDBRLSeries(ctx context.Context, dates []time.Time) ([]float64, error)
	IndexPoints(ctx context.Context, indexID uint64) ([]fixedincome.IndexPoint, error)
}

type Consolidator struct {
	Repo   repository.Repository
	Market MarketData
	Logger *zap.Logger

	// MaxParallelAssets bounds concurrent per-asset pipelines in one
	// portfolio run.
	MaxParallelAssets int
	// RecentWindow selects assets to revisit on incremental runs: those
	// with position rows inside the window. Zero disables the shortcut.
	RecentWindow time.Duration

	// now is swapped in tests to pin "today".
	now func() time.Time
}

func (c *Consolidator) log() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Consolidator) today() time.Time {
	if c != nil && c.now != nil {
		return timeseries.Day(c.now())
	}
	return timeseries.Today()
}

// ConsolidateAll runs every portfolio. Per-portfolio failures are logged and
// do not stop the sweep.
func (c *Consolidator) ConsolidateAll(ctx context.Context) error {
	if c == nil || c.Repo == nil {
		return nil
	}
	portfolios, err := c.Repo.ListPortfolios(ctx)
	if err != nil {
		return fmt.Errorf("list portfolios: %w", err)
	}
	for _, p := range portfolios {
		if err := c.ConsolidatePortfolio(ctx, p.ID); err != nil {
			c.log().Warn("portfolio consolidation failed",
				zap.Uint64("portfolio_id", p.ID),
				zap.Error(err))
		}
	}
	return nil
}

// ConsolidatePortfolio runs the per-asset pipeline for every asset of the
// portfolio, bounded by MaxParallelAssets. A single asset's failure is logged
// and swallowed so the rest of the portfolio still consolidates.
func (c *Consolidator) ConsolidatePortfolio(ctx context.Context, portfolioID uint64) error {
	if c == nil || c.Repo == nil {
		return nil
	}
	assetIDs, err := c.assetUniverse(ctx, portfolioID)
	if err != nil {
		return err
	}
	if len(assetIDs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := c.MaxParallelAssets
	if limit <= 0 {
		limit = 8
	}
	g.SetLimit(limit)
	for _, assetID := range assetIDs {
		assetID := assetID
		g.Go(func() error {
			if err := c.RecalculateAsset(gctx, portfolioID, assetID); err != nil {
				c.log().Warn("asset consolidation failed",
					zap.Uint64("portfolio_id", portfolioID),
					zap.Uint64("asset_id", assetID),
					zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// assetUniverse prefers assets with recent position rows (incremental run)
// and falls back to every asset that has transactions.
func (c *Consolidator) assetUniverse(ctx context.Context, portfolioID uint64) ([]uint64, error) {
	if c.RecentWindow > 0 {
		ids, err := c.Repo.ListRecentPositionAssetIDs(ctx, portfolioID, c.RecentWindow)
		if err != nil {
			return nil, fmt.Errorf("recent position assets: %w", err)
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}
	ids, err := c.Repo.ListTransactionAssetIDs(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("transaction assets: %w", err)
	}
	return ids, nil
}

// aggregated is one trading day after same-day aggregation, still in the
// broker's currency.
type aggregated struct {
	date     time.Time
	quantity float64
	price    float64
	currency string
}

// RecalculateAsset rebuilds the whole position history of one (portfolio,
// asset) pair from its raw transactions.
func (c *Consolidator) RecalculateAsset(ctx context.Context, portfolioID, assetID uint64) error {
	if c == nil || c.Repo == nil || c.Market == nil {
		return nil
	}
	asset, err := c.Repo.GetAssetByID(ctx, assetID)
	if err != nil {
		return fmt.Errorf("load asset %d: %w", assetID, err)
	}
	if asset == nil {
		return fmt.Errorf("asset %d not found", assetID)
	}

	txs, err := c.Repo.ListTransactions(ctx, repository.ListTransactionsParams{
		PortfolioID: portfolioID,
		AssetID:     &assetID,
	})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if len(txs) == 0 {
		return c.Repo.DeletePositions(ctx, portfolioID, assetID)
	}

	today := c.today()
	first := timeseries.Day(txs[0].Date)
	calendar := timeseries.Range(first, today)

	fx, err := c.Market.USDBRLSeries(ctx, calendar)
	if err != nil {
		return fmt.Errorf("usd/brl history: %w", err)
	}
	fxByDate := make(map[time.Time]float64, len(calendar))
	for i, d := range calendar {
		fxByDate[d] = fx[i]
	}

	days := aggregateByDay(txs)
	tradesBRL := normalizeTrades(days, fxByDate, "BRL")
	tradesUSD := normalizeTrades(days, fxByDate, "USD")

	events, err := c.loadEvents(ctx, assetID)
	if err != nil {
		return err
	}
	// The position path restates quantities only; quoted prices already
	// reflect the split.
	tradesBRL = corporate.AdjustQuantities(tradesBRL, events)
	tradesUSD = corporate.AdjustQuantities(tradesUSD, events)

	priceByDate, err := c.priceSeries(ctx, portfolioID, asset, tradesBRL, first, today)
	if err != nil {
		return err
	}

	basisBRL, err := costbasis.Compute(tradesBRL)
	if err != nil {
		return fmt.Errorf("cost basis (BRL): %w", err)
	}
	basisUSD, err := costbasis.Compute(tradesUSD)
	if err != nil {
		return fmt.Errorf("cost basis (USD): %w", err)
	}

	frame := buildFrame(calendar, asset, tradesBRL, basisBRL, basisUSD, priceByDate, fx)

	// A pair that never reaches a positive quantity has nothing to show;
	// a pair that closed out is truncated at its last held day.
	if frame.quantity[len(frame.quantity)-1] == 0 {
		last := -1
		for i, q := range frame.quantity {
			if q > 0 {
				last = i
			}
		}
		if last < 0 {
			return c.Repo.DeletePositions(ctx, portfolioID, assetID)
		}
		frame = frame.truncate(last + 1)
	}

	rows := frame.positions(portfolioID, assetID)
	return c.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := c.Repo.DeletePositionsTx(ctx, tx, portfolioID, assetID); err != nil {
			return err
		}
		return c.Repo.UpsertPositionsTx(ctx, tx, rows)
	})
}

func (c *Consolidator) loadEvents(ctx context.Context, assetID uint64) ([]corporate.Event, error) {
	items, err := c.Repo.ListEventsByAssetID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]corporate.Event, 0, len(items))
	for _, e := range items {
		events = append(events, corporate.Event{
			AssetID: e.AssetID,
			Date:    timeseries.Day(e.Date),
			Factor:  e.Factor.InexactFloat64(),
		})
	}
	return events, nil
}

// priceSeries resolves the native-currency daily closes: the market provider
// for quoted assets, the synthetic model for fixed income. A missing index
// history is fatal for the asset.
func (c *Consolidator) priceSeries(ctx context.Context, portfolioID uint64, asset *models.Asset, trades []costbasis.Trade, first, today time.Time) (map[time.Time]float64, error) {
	if !asset.IsFixedIncome() {
		prices, err := c.Market.AssetPriceSeries(ctx, asset.Ticker, first)
		if err != nil {
			return nil, fmt.Errorf("price history for %s: %w", asset.Ticker, err)
		}
		return prices, nil
	}

	if asset.FixedIncome == nil {
		return nil, fmt.Errorf("asset %s has no fixed-income terms", asset.Ticker)
	}
	points, err := c.Market.IndexPoints(ctx, asset.FixedIncome.IndexID)
	if err != nil {
		return nil, fmt.Errorf("index history for %s: %w", asset.Ticker, err)
	}
	dividends, err := c.Repo.ListDividends(ctx, portfolioID, &asset.ID)
	if err != nil {
		return nil, fmt.Errorf("list dividends: %w", err)
	}
	flows := make([]fixedincome.CashFlow, 0, len(dividends))
	for _, d := range dividends {
		flows = append(flows, fixedincome.CashFlow{
			Date:   timeseries.Day(d.Date),
			Amount: d.Amount.InexactFloat64(),
		})
	}
	series, err := fixedincome.PriceSeries(
		fixedincome.Kind(asset.FixedIncome.Kind),
		asset.FixedIncome.Fee.InexactFloat64(),
		trades, points, flows, today)
	if err != nil {
		return nil, fmt.Errorf("fixed-income pricing for %s: %w", asset.Ticker, err)
	}
	out := make(map[time.Time]float64, len(series))
	for _, p := range series {
		out[p.Date] = p.Close
	}
	return out, nil
}

// aggregateByDay folds same-day transactions into one: summed quantity,
// absolute-quantity-weighted price, the day's first currency.
func aggregateByDay(txs []models.Transaction) []aggregated {
	var out []aggregated
	for _, t := range txs {
		day := timeseries.Day(t.Date)
		qty := t.Quantity.InexactFloat64()
		price := t.Price.InexactFloat64()
		if n := len(out); n > 0 && out[n-1].date.Equal(day) {
			prev := &out[n-1]
			wPrev, wCur := math.Abs(prev.quantity), math.Abs(qty)
			if wPrev+wCur > 0 {
				prev.price = (prev.price*wPrev + price*wCur) / (wPrev + wCur)
			}
			prev.quantity += qty
			continue
		}
		out = append(out, aggregated{date: day, quantity: qty, price: price, currency: t.CurrencyCode})
	}
	return out
}

// normalizeTrades converts aggregated trades into the given valuation
// currency using the USD/BRL rate at the trade date.
func normalizeTrades(days []aggregated, fxByDate map[time.Time]float64, valuation string) []costbasis.Trade {
	out := make([]costbasis.Trade, 0, len(days))
	for _, d := range days {
		price := d.price
		rate, ok := fxByDate[d.date]
		if !ok {
			rate = timeseries.NaN()
		}
		switch valuation {
		case "USD":
			if d.currency != "USD" {
				price = price / rate
			}
		default:
			if d.currency == "USD" {
				price = price * rate
			}
		}
		out = append(out, costbasis.Trade{Date: d.date, Quantity: d.quantity, Price: price})
	}
	return out
}

// frame is the calendar-joined position table for one pair, all columns
// aligned to dates.
type frame struct {
	dates    []time.Time
	quantity []float64

	priceBRL, avgBRL, dailyBRL, accBRL []float64
	priceUSD, avgUSD, dailyUSD, accUSD []float64
	twelveBRL, twelveUSD               []*float64
}

func buildFrame(calendar []time.Time, asset *models.Asset, trades []costbasis.Trade, basisBRL, basisUSD []costbasis.Result, priceByDate map[time.Time]float64, fx []float64) frame {
	n := len(calendar)
	deltas := make([]float64, n)
	priceNative := make([]float64, n)
	avgBRL := make([]float64, n)
	avgUSD := make([]float64, n)
	for i := range calendar {
		priceNative[i] = timeseries.NaN()
		avgBRL[i] = timeseries.NaN()
		avgUSD[i] = timeseries.NaN()
	}

	index := make(map[time.Time]int, n)
	for i, d := range calendar {
		index[d] = i
	}
	for _, t := range trades {
		if i, ok := index[timeseries.Day(t.Date)]; ok {
			deltas[i] += t.Quantity
		}
	}
	for _, r := range basisBRL {
		if i, ok := index[timeseries.Day(r.Date)]; ok {
			avgBRL[i] = r.AveragePrice
		}
	}
	for _, r := range basisUSD {
		if i, ok := index[timeseries.Day(r.Date)]; ok {
			avgUSD[i] = r.AveragePrice
		}
	}
	for d, p := range priceByDate {
		if i, ok := index[timeseries.Day(d)]; ok {
			priceNative[i] = p
		}
	}

	quantity := timeseries.CumSum(deltas)
	for i := range quantity {
		quantity[i] = timeseries.Round(quantity[i], 6)
	}
	priceNative = timeseries.ForwardFill(priceNative)
	avgBRL = timeseries.ForwardFill(avgBRL)
	avgUSD = timeseries.ForwardFill(avgUSD)

	priceBRL := make([]float64, n)
	priceUSD := make([]float64, n)
	for i := range calendar {
		p := priceNative[i]
		if asset.CurrencyCode == "USD" {
			priceBRL[i] = p * fx[i]
			priceUSD[i] = p
		} else {
			priceBRL[i] = p
			priceUSD[i] = p / fx[i]
		}
		// Days before the first quote fall back to acquisition cost.
		if timeseries.IsNaN(priceBRL[i]) {
			priceBRL[i] = avgBRL[i]
		}
		if timeseries.IsNaN(priceUSD[i]) {
			priceUSD[i] = avgUSD[i]
		}
	}

	f := frame{
		dates:    calendar,
		quantity: quantity,
		priceBRL: priceBRL,
		avgBRL:   avgBRL,
		priceUSD: priceUSD,
		avgUSD:   avgUSD,
	}
	f.dailyBRL, f.accBRL, f.twelveBRL = returnColumns(calendar, priceBRL)
	f.dailyUSD, f.accUSD, f.twelveUSD = returnColumns(calendar, priceUSD)
	return f
}

// returnColumns derives daily, accumulated and twelve-month returns from a
// price column. The twelve-month figure is the ratio of accumulated returns
// against the exact date 365 days earlier, null when that date precedes the
// series.
func returnColumns(dates []time.Time, price []float64) (daily, acc []float64, twelve []*float64) {
	daily = timeseries.PctChange(price)
	acc = timeseries.CumProd1p(daily)
	daily = timeseries.FillZero(daily)

	accByDate := make(map[time.Time]float64, len(dates))
	for i, d := range dates {
		accByDate[d] = acc[i]
	}
	twelve = make([]*float64, len(dates))
	for i, d := range dates {
		back, ok := accByDate[d.AddDate(0, 0, -365)]
		if !ok {
			continue
		}
		v := (1+acc[i])/(1+back) - 1
		twelve[i] = &v
	}
	return daily, acc, twelve
}

func (f frame) truncate(n int) frame {
	return frame{
		dates:     f.dates[:n],
		quantity:  f.quantity[:n],
		priceBRL:  f.priceBRL[:n],
		avgBRL:    f.avgBRL[:n],
		dailyBRL:  f.dailyBRL[:n],
		accBRL:    f.accBRL[:n],
		twelveBRL: f.twelveBRL[:n],
		priceUSD:  f.priceUSD[:n],
		avgUSD:    f.avgUSD[:n],
		dailyUSD:  f.dailyUSD[:n],
		accUSD:    f.accUSD[:n],
		twelveUSD: f.twelveUSD[:n],
	}
}

func (f frame) positions(portfolioID, assetID uint64) []models.Position {
	rows := make([]models.Position, 0, len(f.dates))
	for i, d := range f.dates {
		rows = append(rows, models.Position{
			PortfolioID:           portfolioID,
			AssetID:               assetID,
			Date:                  d,
			Quantity:              dec(f.quantity[i]),
			Price:                 dec(f.priceBRL[i]),
			AveragePrice:          dec(f.avgBRL[i]),
			DailyReturn:           finite(f.dailyBRL[i]),
			AccReturn:             finite(f.accBRL[i]),
			TwelveMonthsReturn:    f.twelveBRL[i],
			PriceUSD:              dec(f.priceUSD[i]),
			AveragePriceUSD:       dec(f.avgUSD[i]),
			DailyReturnUSD:        finite(f.dailyUSD[i]),
			AccReturnUSD:          finite(f.accUSD[i]),
			TwelveMonthsReturnUSD: f.twelveUSD[i],
		})
	}
	return rows
}

func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Decimal{}
	}
	return decimal.NewFromFloat(v)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
