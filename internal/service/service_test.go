package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"investfolio/internal/models"
	"investfolio/internal/repository"
	"investfolio/internal/tax"
)

type stubRepo struct {
	repository.Repository

	positions  []models.Position
	latest     []models.Position
	assets     []models.Asset
	categories map[uint64]string
	dividends  []models.Dividend
	txs        []models.Transaction
	events     []models.CorporateEvent
}

func (s *stubRepo) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	return s.positions, nil
}

func (s *stubRepo) ListLatestPositions(ctx context.Context, portfolioID uint64) ([]models.Position, error) {
	return s.latest, nil
}

func (s *stubRepo) ListAssetsByIDs(ctx context.Context, ids []uint64) ([]models.Asset, error) {
	return s.assets, nil
}

func (s *stubRepo) CategoryNamesByAsset(ctx context.Context, portfolioID uint64) (map[uint64]string, error) {
	return s.categories, nil
}

func (s *stubRepo) ListDividends(ctx context.Context, portfolioID uint64, assetID *uint64) ([]models.Dividend, error) {
	return s.dividends, nil
}

func (s *stubRepo) ListTransactions(ctx context.Context, params repository.ListTransactionsParams) ([]models.Transaction, error) {
	if len(params.AssetClasses) == 0 {
		return s.txs, nil
	}
	classByAsset := map[uint64]string{}
	for _, a := range s.assets {
		classByAsset[a.ID] = a.Class
	}
	var out []models.Transaction
	for _, t := range s.txs {
		for _, class := range params.AssetClasses {
			if classByAsset[t.AssetID] == class {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (s *stubRepo) ListEventsByAssetID(ctx context.Context, assetID uint64) ([]models.CorporateEvent, error) {
	var out []models.CorporateEvent
	for _, e := range s.events {
		if e.AssetID == assetID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubRepo) CreateEvent(ctx context.Context, item *models.CorporateEvent) error {
	item.ID = uint64(len(s.events) + 1)
	s.events = append(s.events, *item)
	return nil
}

func (s *stubRepo) GetEventByID(ctx context.Context, id uint64) (*models.CorporateEvent, error) {
	for _, e := range s.events {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) DeleteEvent(ctx context.Context, id uint64) error {
	var kept []models.CorporateEvent
	for _, e := range s.events {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return nil
}

func (s *stubRepo) ListPortfolioIDsByAsset(ctx context.Context, assetID uint64) ([]uint64, error) {
	var ids []uint64
	seen := map[uint64]bool{}
	for _, t := range s.txs {
		if t.AssetID == assetID && !seen[t.PortfolioID] {
			seen[t.PortfolioID] = true
			ids = append(ids, t.PortfolioID)
		}
	}
	return ids, nil
}

type recalcCall struct {
	portfolioID, assetID uint64
}

type stubEngine struct {
	calls []recalcCall
}

func (e *stubEngine) RecalculateAsset(ctx context.Context, portfolioID, assetID uint64) error {
	e.calls = append(e.calls, recalcCall{portfolioID, assetID})
	return nil
}

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func pos(assetID uint64, d int, qty, price float64) models.Position {
	return models.Position{
		PortfolioID: 1,
		AssetID:     assetID,
		Date:        day(d),
		Quantity:    decimal.NewFromFloat(qty),
		Price:       decimal.NewFromFloat(price),
	}
}

func TestPatrimonyEvolution(t *testing.T) {
	repo := &stubRepo{
		positions: []models.Position{
			pos(1, 1, 10, 100), pos(1, 2, 10, 110),
			pos(2, 1, 5, 50), pos(2, 2, 10, 50),
		},
		assets: []models.Asset{
			{ID: 1, Ticker: "AAAA4", Class: models.AssetClassStock},
			{ID: 2, Ticker: "BBBB11", Class: models.AssetClassFII},
		},
		categories: map[uint64]string{1: "stocks"},
	}
	svc := &PositionService{Repo: repo, Cache: newMemCache()}

	payload, err := svc.PatrimonyEvolution(context.Background(), 1)
	if err != nil {
		t.Fatalf("PatrimonyEvolution: %v", err)
	}
	if len(payload.Dates) != 2 {
		t.Fatalf("expected 2 dates, got %d", len(payload.Dates))
	}
	if payload.Total[0] != 10*100+5*50 {
		t.Fatalf("day 1 total = %v, want %v", payload.Total[0], 10*100+5*50)
	}
	if payload.Total[1] != 10*110+10*50 {
		t.Fatalf("day 2 total = %v, want %v", payload.Total[1], 10*110+10*50)
	}
	// Day 2 adds 5 units of asset 2 at price 50.
	if payload.Aported[1]-payload.Aported[0] != 5*50 {
		t.Fatalf("aported delta = %v, want 250", payload.Aported[1]-payload.Aported[0])
	}
	if _, ok := payload.Categories["stocks"]; !ok {
		t.Fatal("expected a stocks category series")
	}
	if _, ok := payload.Categories[uncategorized]; !ok {
		t.Fatal("expected an uncategorized series for asset 2")
	}
}

func TestPortfolioReturnsCached(t *testing.T) {
	repo := &stubRepo{
		positions: []models.Position{pos(1, 1, 10, 100), pos(1, 2, 10, 110)},
		assets:    []models.Asset{{ID: 1, Ticker: "AAAA4"}},
	}
	mem := newMemCache()
	svc := &PositionService{Repo: repo, Cache: mem}

	first, err := svc.PortfolioReturns(context.Background(), 1)
	if err != nil {
		t.Fatalf("PortfolioReturns: %v", err)
	}
	series, ok := first.Assets.Series["AAAA4"]
	if !ok {
		t.Fatal("expected an AAAA4 series")
	}
	if series[1] == nil || math.Abs(*series[1]-0.1) > 1e-9 {
		t.Fatalf("day 2 accumulated return = %v, want 0.1", series[1])
	}
	if _, ok := first.Categories.Series["portfolio"]; !ok {
		t.Fatal("expected a portfolio series among categories")
	}

	// The second call must come from the cache: drop the repo data and
	// expect an identical payload.
	repo.positions = nil
	second, err := svc.PortfolioReturns(context.Background(), 1)
	if err != nil {
		t.Fatalf("cached PortfolioReturns: %v", err)
	}
	if len(second.Assets.Series["AAAA4"]) != len(series) {
		t.Fatal("cached payload differs from computed payload")
	}

	svc.InvalidateCaches(context.Background(), 1)
	if len(mem.data) != 0 {
		t.Fatalf("expected empty cache after invalidation, got %d keys", len(mem.data))
	}
}

func tradeTx(assetID uint64, d int, qty, price float64) models.Transaction {
	return models.Transaction{
		PortfolioID:  1,
		AssetID:      assetID,
		Date:         day(d),
		Quantity:     decimal.NewFromFloat(qty),
		Price:        decimal.NewFromFloat(price),
		CurrencyCode: "BRL",
	}
}

func TestGainsViewRealizedProfit(t *testing.T) {
	repo := &stubRepo{
		txs: []models.Transaction{
			tradeTx(1, 1, 10, 100),
			tradeTx(1, 2, 10, 120),
			tradeTx(1, 3, -5, 150),
		},
		assets: []models.Asset{{ID: 1, Ticker: "AAAA4", Class: models.AssetClassStock}},
	}
	svc := &TransactionService{Repo: repo}

	rows, err := svc.GainsView(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("GainsView: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	sell := rows[2]
	if math.Abs(sell.RealizedProfit-200) > 1e-9 {
		t.Fatalf("realized profit = %v, want 200", sell.RealizedProfit)
	}
	if math.Abs(sell.AveragePrice-110) > 1e-9 {
		t.Fatalf("average price = %v, want 110", sell.AveragePrice)
	}
	if sell.AccumulatedQuantity != 15 {
		t.Fatalf("accumulated quantity = %v, want 15", sell.AccumulatedQuantity)
	}
	if sell.ProfitPct == nil || math.Abs(*sell.ProfitPct-(150.0/110-1)) > 1e-9 {
		t.Fatalf("profit pct = %v, want %v", sell.ProfitPct, 150.0/110-1)
	}
	if rows[0].ProfitPct != nil {
		t.Fatal("buy rows must not carry a profit pct")
	}
}

func TestGainsViewSplitPreservesInvestedValue(t *testing.T) {
	repo := &stubRepo{
		txs:    []models.Transaction{tradeTx(1, 1, 10, 100)},
		assets: []models.Asset{{ID: 1, Ticker: "AAAA4"}},
		events: []models.CorporateEvent{{
			AssetID: 1, Date: day(5), Factor: decimal.NewFromInt(2),
		}},
	}
	svc := &TransactionService{Repo: repo}

	rows, err := svc.GainsView(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("GainsView: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Quantity != 20 || rows[0].Price != 50 {
		t.Fatalf("split adjustment failed: qty=%v price=%v", rows[0].Quantity, rows[0].Price)
	}
	if rows[0].Quantity*rows[0].Price != 1000 {
		t.Fatalf("invested value changed: %v", rows[0].Quantity*rows[0].Price)
	}
}

func TestEventMutationReconsolidatesHolders(t *testing.T) {
	repo := &stubRepo{
		txs: []models.Transaction{
			tradeTx(1, 1, 10, 100),
			{PortfolioID: 2, AssetID: 1, Date: day(1),
				Quantity: decimal.NewFromInt(5), Price: decimal.NewFromInt(100), CurrencyCode: "BRL"},
		},
	}
	engine := &stubEngine{}
	mem := newMemCache()
	mem.data["portfolio:1:returns"] = []byte("{}")
	mem.data["portfolio:2:patrimony"] = []byte("{}")
	svc := &EventService{
		Repo:      repo,
		Engine:    engine,
		Positions: &PositionService{Repo: repo, Cache: mem},
	}

	event := &models.CorporateEvent{AssetID: 1, Date: day(5), Factor: decimal.NewFromInt(2)}
	if err := svc.Create(context.Background(), event); err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := []recalcCall{{1, 1}, {2, 1}}
	if len(engine.calls) != len(want) {
		t.Fatalf("expected %d recalculations, got %d", len(want), len(engine.calls))
	}
	for i, call := range engine.calls {
		if call != want[i] {
			t.Fatalf("recalculation %d = %+v, want %+v", i, call, want[i])
		}
	}
	if len(mem.data) != 0 {
		t.Fatalf("expected caches dropped for every holder, %d keys left", len(mem.data))
	}

	engine.calls = nil
	if err := svc.Delete(context.Background(), event.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(repo.events) != 0 {
		t.Fatalf("event not deleted: %d left", len(repo.events))
	}
	if len(engine.calls) != 2 {
		t.Fatalf("expected 2 recalculations after delete, got %d", len(engine.calls))
	}
}

func TestTaxReportStockScenario(t *testing.T) {
	repo := &stubRepo{
		assets: []models.Asset{{ID: 1, Ticker: "AAAA4", Class: models.AssetClassStock}},
		txs: []models.Transaction{
			// January: buy at 100, sell at 50 → loss 500.
			tradeTx(1, 1, 10, 100),
			tradeTx(1, 2, -10, 50),
			// March: buy at 100, sell 25000 gross with 3000 profit.
			{PortfolioID: 1, AssetID: 1, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				Quantity: decimal.NewFromInt(100), Price: decimal.NewFromInt(220), CurrencyCode: "BRL"},
			{PortfolioID: 1, AssetID: 1, Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
				Quantity: decimal.NewFromInt(-100), Price: decimal.NewFromInt(250), CurrencyCode: "BRL"},
		},
	}
	svc := &TaxService{Repo: repo}

	ledger, err := svc.ClassLedger(context.Background(), 1, tax.ClassStock, 2024)
	if err != nil {
		t.Fatalf("ClassLedger: %v", err)
	}
	if len(ledger) != 12 {
		t.Fatalf("expected a 12-month grid, got %d", len(ledger))
	}
	january := ledger[0]
	if !january.AccumulatedLoss.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("january accumulated loss = %s, want 500", january.AccumulatedLoss)
	}
	if !january.TaxDue.IsZero() {
		t.Fatalf("january tax due = %s, want 0", january.TaxDue)
	}
	february := ledger[1]
	if !february.AccumulatedLoss.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("february carried loss = %s, want 500", february.AccumulatedLoss)
	}
	march := ledger[2]
	if !march.GrossSales.Equal(decimal.NewFromInt(25000)) {
		t.Fatalf("march gross sales = %s, want 25000", march.GrossSales)
	}
	// profit 3000 minus carried loss 500, taxed at 15%.
	if !march.TaxDue.Equal(decimal.NewFromInt(375)) {
		t.Fatalf("march tax due = %s, want 375", march.TaxDue)
	}
	if !march.AccumulatedLoss.IsZero() {
		t.Fatalf("march accumulated loss = %s, want 0", march.AccumulatedLoss)
	}

	report, err := svc.Report(context.Background(), 1, "common", 2024)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(report.Darf) != 1 {
		t.Fatalf("expected 1 darf row, got %d", len(report.Darf))
	}
	if !report.Darf[0].TaxDue.Equal(decimal.NewFromInt(375)) {
		t.Fatalf("darf tax due = %s, want 375", report.Darf[0].TaxDue)
	}
}
