package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"investfolio/internal/corporate"
	"investfolio/internal/costbasis"
	"investfolio/internal/models"
	"investfolio/internal/repository"
	"investfolio/internal/timeseries"
)

// Reconsolidator triggers a position rebuild for one (portfolio, asset) pair.
type Reconsolidator interface {
	RecalculateAsset(ctx context.Context, portfolioID, assetID uint64) error
}

// FXSource serves the USD/BRL rate aligned to a calendar.
type FXSource interface {
	USDBRLSeries(ctx context.Context, dates []time.Time) ([]float64, error)
}

type TransactionService struct {
	Repo      repository.Repository
	Engine    Reconsolidator
	Positions *PositionService
	FX        FXSource
	Logger    *zap.Logger
}

func (s *TransactionService) log() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *TransactionService) List(ctx context.Context, portfolioID uint64, assetID *uint64) ([]models.Transaction, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListTransactions(ctx, repository.ListTransactionsParams{
		PortfolioID: portfolioID,
		AssetID:     assetID,
	})
}

func (s *TransactionService) Create(ctx context.Context, item *models.Transaction) error {
	if s == nil || s.Repo == nil || item == nil {
		return nil
	}
	item.Date = timeseries.Day(item.Date)
	if item.CurrencyCode == "" {
		item.CurrencyCode = "BRL"
	}
	if err := s.Repo.CreateTransaction(ctx, item); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	s.reconsolidate(ctx, item.PortfolioID, item.AssetID)
	return nil
}

func (s *TransactionService) Update(ctx context.Context, item *models.Transaction) error {
	if s == nil || s.Repo == nil || item == nil || item.ID == 0 {
		return nil
	}
	prev, err := s.Repo.GetTransactionByID(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", item.ID, err)
	}
	if prev == nil {
		return fmt.Errorf("transaction %d not found", item.ID)
	}
	item.Date = timeseries.Day(item.Date)
	if err := s.Repo.UpdateTransaction(ctx, item); err != nil {
		return fmt.Errorf("update transaction %d: %w", item.ID, err)
	}
	// Moving a trade across assets leaves a stale history behind.
	if prev.AssetID != item.AssetID || prev.PortfolioID != item.PortfolioID {
		s.reconsolidate(ctx, prev.PortfolioID, prev.AssetID)
	}
	s.reconsolidate(ctx, item.PortfolioID, item.AssetID)
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, id uint64) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	prev, err := s.Repo.GetTransactionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", id, err)
	}
	if prev == nil {
		return nil
	}
	if err := s.Repo.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	s.reconsolidate(ctx, prev.PortfolioID, prev.AssetID)
	return nil
}

func (s *TransactionService) reconsolidate(ctx context.Context, portfolioID, assetID uint64) {
	if s.Engine != nil {
		if err := s.Engine.RecalculateAsset(ctx, portfolioID, assetID); err != nil {
			s.log().Warn("re-consolidation after mutation failed",
				zap.Uint64("portfolio_id", portfolioID),
				zap.Uint64("asset_id", assetID),
				zap.Error(err))
		}
	}
	if s.Positions != nil {
		s.Positions.InvalidateCaches(ctx, portfolioID)
	}
}

// GainsRow is one trade of the gains view: realized profit against average
// cost, BRL-normalized, with the running position quantity.
type GainsRow struct {
	Date                string   `json:"date"`
	Ticker              string   `json:"ticker"`
	Quantity            float64  `json:"quantity"`
	Price               float64  `json:"price"`
	AveragePrice        float64  `json:"average_price"`
	RealizedProfit      float64  `json:"realized_profit"`
	AccumulatedQuantity float64  `json:"accumulated_quantity"`
	ProfitPct           *float64 `json:"profit_pct"`
}

// GainsView recomputes per-trade cost basis for the portfolio (optionally one
// asset), in BRL, with corporate events applied to quantity and price.
func (s *TransactionService) GainsView(ctx context.Context, portfolioID uint64, assetID *uint64) ([]GainsRow, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	txs, err := s.Repo.ListTransactions(ctx, repository.ListTransactionsParams{
		PortfolioID: portfolioID,
		AssetID:     assetID,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil
	}

	fxByDate, err := s.fxRates(ctx, txs)
	if err != nil {
		return nil, err
	}

	byAsset := map[uint64][]models.Transaction{}
	var ids []uint64
	for _, t := range txs {
		if _, ok := byAsset[t.AssetID]; !ok {
			ids = append(ids, t.AssetID)
		}
		byAsset[t.AssetID] = append(byAsset[t.AssetID], t)
	}
	assetList, err := s.Repo.ListAssetsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	tickers := map[uint64]string{}
	for _, a := range assetList {
		tickers[a.ID] = a.Ticker
	}

	var out []GainsRow
	for _, id := range ids {
		rows, err := s.assetGains(ctx, id, tickers[id], byAsset[id], fxByDate)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, nil
}

func (s *TransactionService) assetGains(ctx context.Context, assetID uint64, ticker string, txs []models.Transaction, fxByDate map[time.Time]float64) ([]GainsRow, error) {
	trades := make([]costbasis.Trade, 0, len(txs))
	for _, t := range txs {
		price := t.Price.InexactFloat64()
		if t.CurrencyCode == "USD" {
			price = price * fxByDate[timeseries.Day(t.Date)]
		}
		trades = append(trades, costbasis.Trade{
			Date:     timeseries.Day(t.Date),
			Quantity: t.Quantity.InexactFloat64(),
			Price:    price,
		})
	}
	eventRows, err := s.Repo.ListEventsByAssetID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]corporate.Event, 0, len(eventRows))
	for _, e := range eventRows {
		events = append(events, corporate.Event{
			AssetID: e.AssetID,
			Date:    timeseries.Day(e.Date),
			Factor:  e.Factor.InexactFloat64(),
		})
	}
	// The tax/gains path restates both legs so invested value is preserved.
	trades = corporate.AdjustTrades(trades, events)

	results, err := costbasis.Compute(trades)
	if err != nil {
		return nil, fmt.Errorf("cost basis for %s: %w", ticker, err)
	}
	rows := make([]GainsRow, 0, len(results))
	held := 0.0
	for _, r := range results {
		held = timeseries.Round(held+r.Quantity, 6)
		row := GainsRow{
			Date:                r.Date.Format("2006-01-02"),
			Ticker:              ticker,
			Quantity:            r.Quantity,
			Price:               r.Price,
			AveragePrice:        r.AveragePrice,
			RealizedProfit:      r.RealizedProfit,
			AccumulatedQuantity: held,
		}
		if r.Quantity < 0 && r.AveragePrice != 0 {
			pct := r.Price/r.AveragePrice - 1
			row.ProfitPct = &pct
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// fxRates builds a forward-filled USD/BRL lookup spanning the transactions.
// The fetch is skipped entirely when no trade needs conversion.
func (s *TransactionService) fxRates(ctx context.Context, txs []models.Transaction) (map[time.Time]float64, error) {
	needsFX := false
	for _, t := range txs {
		if t.CurrencyCode == "USD" {
			needsFX = true
			break
		}
	}
	if !needsFX || s.FX == nil {
		return map[time.Time]float64{}, nil
	}
	first := timeseries.Day(txs[0].Date)
	calendar := timeseries.Range(first, timeseries.Today())
	fx, err := s.FX.USDBRLSeries(ctx, calendar)
	if err != nil {
		return nil, fmt.Errorf("usd/brl history: %w", err)
	}
	out := make(map[time.Time]float64, len(calendar))
	for i, d := range calendar {
		out[d] = fx[i]
	}
	return out, nil
}
