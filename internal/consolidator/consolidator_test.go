package consolidator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"investfolio/internal/fixedincome"
	"investfolio/internal/models"
	"investfolio/internal/repository"
)

type stubRepo struct {
	repository.Repository

	asset     *models.Asset
	txs       []models.Transaction
	events    []models.CorporateEvent
	dividends []models.Dividend

	persisted   []models.Position
	deleteCalls int
}

func (s *stubRepo) GetAssetByID(ctx context.Context, id uint64) (*models.Asset, error) {
	return s.asset, nil
}

func (s *stubRepo) ListTransactions(ctx context.Context, params repository.ListTransactionsParams) ([]models.Transaction, error) {
	return s.txs, nil
}

func (s *stubRepo) ListEventsByAssetID(ctx context.Context, assetID uint64) ([]models.CorporateEvent, error) {
	return s.events, nil
}

func (s *stubRepo) ListDividends(ctx context.Context, portfolioID uint64, assetID *uint64) ([]models.Dividend, error) {
	return s.dividends, nil
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func (s *stubRepo) DeletePositions(ctx context.Context, portfolioID, assetID uint64) error {
	s.deleteCalls++
	s.persisted = nil
	return nil
}

func (s *stubRepo) DeletePositionsTx(ctx context.Context, tx *gorm.DB, portfolioID, assetID uint64) error {
	s.persisted = nil
	return nil
}

func (s *stubRepo) UpsertPositionsTx(ctx context.Context, tx *gorm.DB, items []models.Position) error {
	s.persisted = append(s.persisted, items...)
	return nil
}

type stubMarket struct {
	prices map[time.Time]float64
	fxRate float64
	points []fixedincome.IndexPoint
}

func (m *stubMarket) AssetPriceSeries(ctx context.Context, ticker string, since time.Time) (map[time.Time]float64, error) {
	return m.prices, nil
}

func (m *stubMarket) USDBRLSeries(ctx context.Context, dates []time.Time) ([]float64, error) {
	out := make([]float64, len(dates))
	for i := range out {
		out[i] = m.fxRate
	}
	return out, nil
}

func (m *stubMarket) IndexPoints(ctx context.Context, indexID uint64) ([]fixedincome.IndexPoint, error) {
	return m.points, nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func tx(d int, qty, price float64, currency string) models.Transaction {
	return models.Transaction{
		PortfolioID:  1,
		AssetID:      1,
		Date:         day(d),
		Quantity:     decimal.NewFromFloat(qty),
		Price:        decimal.NewFromFloat(price),
		CurrencyCode: currency,
	}
}

func newConsolidator(repo *stubRepo, market *stubMarket, today time.Time) *Consolidator {
	return &Consolidator{
		Repo:   repo,
		Market: market,
		now:    func() time.Time { return today },
	}
}

func brlAsset() *models.Asset {
	return &models.Asset{ID: 1, Ticker: "TEST4", Class: models.AssetClassStock, CurrencyCode: "BRL"}
}

func TestRecalculateAssetBasic(t *testing.T) {
	repo := &stubRepo{
		asset: brlAsset(),
		txs:   []models.Transaction{tx(1, 10, 100, "BRL")},
	}
	market := &stubMarket{
		fxRate: 5,
		prices: map[time.Time]float64{
			day(1): 100, day(2): 102, day(4): 105,
		},
	}
	c := newConsolidator(repo, market, day(5))

	if err := c.RecalculateAsset(context.Background(), 1, 1); err != nil {
		t.Fatalf("RecalculateAsset: %v", err)
	}
	if len(repo.persisted) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(repo.persisted))
	}
	for i, row := range repo.persisted {
		if !row.Quantity.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("row %d quantity = %s, want 10", i, row.Quantity)
		}
	}
	// Day 3 has no quote and forward-fills day 2; day 5 forward-fills day 4.
	if got := repo.persisted[2].Price.InexactFloat64(); got != 102 {
		t.Fatalf("day 3 price = %v, want forward-filled 102", got)
	}
	if got := repo.persisted[4].Price.InexactFloat64(); got != 105 {
		t.Fatalf("day 5 price = %v, want forward-filled 105", got)
	}
	// USD track divides by the constant rate.
	if got := repo.persisted[1].PriceUSD.InexactFloat64(); math.Abs(got-102.0/5) > 1e-9 {
		t.Fatalf("day 2 price_usd = %v, want %v", got, 102.0/5)
	}
}

func TestRecalculateAssetAccReturnRoundTrip(t *testing.T) {
	repo := &stubRepo{
		asset: brlAsset(),
		txs:   []models.Transaction{tx(1, 10, 100, "BRL")},
	}
	market := &stubMarket{
		fxRate: 5,
		prices: map[time.Time]float64{
			day(1): 100, day(2): 110, day(3): 99, day(4): 120, day(5): 121,
		},
	}
	c := newConsolidator(repo, market, day(5))
	if err := c.RecalculateAsset(context.Background(), 1, 1); err != nil {
		t.Fatalf("RecalculateAsset: %v", err)
	}
	acc := 1.0
	for i, row := range repo.persisted {
		acc *= 1 + row.DailyReturn
		if math.Abs((acc-1)-row.AccReturn) > 1e-9 {
			t.Fatalf("row %d acc_return %v does not round-trip (%v)", i, row.AccReturn, acc-1)
		}
	}
	final := repo.persisted[len(repo.persisted)-1]
	if math.Abs(final.AccReturn-0.21) > 1e-9 {
		t.Fatalf("final acc_return = %v, want 0.21", final.AccReturn)
	}
}

func TestRecalculateAssetIdempotent(t *testing.T) {
	repo := &stubRepo{
		asset: brlAsset(),
		txs:   []models.Transaction{tx(1, 10, 100, "BRL"), tx(3, 5, 110, "BRL")},
	}
	market := &stubMarket{
		fxRate: 5,
		prices: map[time.Time]float64{day(1): 100, day(2): 101, day(3): 103, day(4): 104},
	}
	c := newConsolidator(repo, market, day(4))

	if err := c.RecalculateAsset(context.Background(), 1, 1); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := append([]models.Position(nil), repo.persisted...)
	if err := c.RecalculateAsset(context.Background(), 1, 1); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(first) != len(repo.persisted) {
		t.Fatalf("row count changed: %d vs %d", len(first), len(repo.persisted))
	}
	for i := range first {
		a, b := first[i], repo.persisted[i]
		if !a.Date.Equal(b.Date) || !a.Quantity.Equal(b.Quantity) ||
			!a.Price.Equal(b.Price) || !a.AveragePrice.Equal(b.AveragePrice) ||
			a.AccReturn != b.AccReturn {
			t.Fatalf("row %d differs between runs: %+v vs %+v", i, a, b)
		}
	}
}

func TestRecalculateAssetTruncatesClosedPosition(t *testing.T) {
	repo := &stubRepo{
		asset: brlAsset(),
		txs: []models.Transaction{
			tx(1, 10, 100, "BRL"),
			tx(5, -10, 120, "BRL"),
		},
	}
	market := &stubMarket{
		fxRate: 5,
		prices: map[time.Time]float64{day(1): 100, day(2): 105, day(3): 110, day(4): 115, day(5): 120},
	}
	c := newConsolidator(repo, market, day(8))

	if err := c.RecalculateAsset(context.Background(), 1, 1); err != nil {
		t.Fatalf("RecalculateAsset: %v", err)
	}
	if len(repo.persisted) != 4 {
		t.Fatalf("expected truncation at last held day (4 rows), got %d", len(repo.persisted))
	}
	last := repo.persisted[len(repo.persisted)-1]
	if !last.Date.Equal(day(4)) {
		t.Fatalf("last persisted date = %v, want %v", last.Date, day(4))
	}
	if !last.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("last quantity = %s, want 10", last.Quantity)
	}
}

func TestRecalculateAssetNoTransactionsDeletes(t *testing.T) {
	repo := &stubRepo{asset: brlAsset()}
	c := newConsolidator(repo, &stubMarket{fxRate: 5}, day(5))

	if err := c.RecalculateAsset(context.Background(), 1, 1); err != nil {
		t.Fatalf("RecalculateAsset: %v", err)
	}
	if repo.deleteCalls != 1 {
		t.Fatalf("expected one delete call, got %d", repo.deleteCalls)
	}
	if len(repo.persisted) != 0 {
		t.Fatalf("expected no persisted rows, got %d", len(repo.persisted))
	}
}

func TestRecalculateAssetAppliesSplit(t *testing.T) {
	repo := &stubRepo{
		asset: brlAsset(),
		txs:   []models.Transaction{tx(1, 10, 100, "BRL")},
		events: []models.CorporateEvent{{
			AssetID: 1,
			Date:    day(3),
			Factor:  decimal.NewFromInt(2),
			Kind:    "split",
		}},
	}
	market := &stubMarket{
		fxRate: 5,
		prices: map[time.Time]float64{day(1): 100, day(3): 50, day(4): 51},
	}
	c := newConsolidator(repo, market, day(4))

	if err := c.RecalculateAsset(context.Background(), 1, 1); err != nil {
		t.Fatalf("RecalculateAsset: %v", err)
	}
	for i, row := range repo.persisted {
		if !row.Quantity.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("row %d quantity = %s, want split-adjusted 20", i, row.Quantity)
		}
	}
}

func TestRecalculateAssetUSDNormalization(t *testing.T) {
	repo := &stubRepo{
		asset: &models.Asset{ID: 1, Ticker: "AAPL", Class: models.AssetClassBDR, CurrencyCode: "USD"},
		txs:   []models.Transaction{tx(1, 2, 200, "USD")},
	}
	market := &stubMarket{
		fxRate: 5,
		prices: map[time.Time]float64{day(1): 200, day(2): 210},
	}
	c := newConsolidator(repo, market, day(2))

	if err := c.RecalculateAsset(context.Background(), 1, 1); err != nil {
		t.Fatalf("RecalculateAsset: %v", err)
	}
	if len(repo.persisted) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(repo.persisted))
	}
	row := repo.persisted[1]
	if got := row.Price.InexactFloat64(); got != 210*5 {
		t.Fatalf("BRL price = %v, want %v", got, 210*5)
	}
	if got := row.PriceUSD.InexactFloat64(); got != 210 {
		t.Fatalf("USD price = %v, want 210", got)
	}
	if got := row.AveragePrice.InexactFloat64(); got != 200*5 {
		t.Fatalf("BRL average price = %v, want %v", got, 200*5)
	}
}

func TestAggregateByDayWeightedPrice(t *testing.T) {
	txs := []models.Transaction{
		tx(1, 10, 100, "BRL"),
		tx(1, 30, 120, "BRL"),
	}
	days := aggregateByDay(txs)
	if len(days) != 1 {
		t.Fatalf("expected 1 aggregated day, got %d", len(days))
	}
	if days[0].quantity != 40 {
		t.Fatalf("aggregated quantity = %v, want 40", days[0].quantity)
	}
	want := (10.0*100 + 30.0*120) / 40.0
	if math.Abs(days[0].price-want) > 1e-9 {
		t.Fatalf("aggregated price = %v, want %v", days[0].price, want)
	}
}

func TestAggregateByDayNetZero(t *testing.T) {
	txs := []models.Transaction{
		tx(1, 10, 100, "BRL"),
		tx(1, -10, 120, "BRL"),
	}
	days := aggregateByDay(txs)
	if len(days) != 1 {
		t.Fatalf("expected 1 aggregated day, got %d", len(days))
	}
	if days[0].quantity != 0 {
		t.Fatalf("aggregated quantity = %v, want 0", days[0].quantity)
	}
	// Weights are absolute quantities, so a flat day still yields a finite
	// traded price instead of dividing by the net quantity.
	if math.Abs(days[0].price-110) > 1e-9 {
		t.Fatalf("aggregated price = %v, want 110", days[0].price)
	}
}

func TestReturnColumnsTwelveMonths(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 400
	dates := make([]time.Time, n)
	price := make([]float64, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
		price[i] = 100 * math.Pow(1.001, float64(i))
	}
	_, acc, twelve := returnColumns(dates, price)

	if twelve[100] != nil {
		t.Fatalf("expected nil twelve-month return inside the first year")
	}
	i := 380
	j := i - 365
	want := (1 + acc[i]) / (1 + acc[j]) - 1
	if twelve[i] == nil {
		t.Fatalf("expected a twelve-month return at index %d", i)
	}
	if math.Abs(*twelve[i]-want) > 1e-12 {
		t.Fatalf("twelve-month return = %v, want %v", *twelve[i], want)
	}
}
