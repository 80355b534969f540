package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"investfolio/internal/corporate"
	"investfolio/internal/costbasis"
	"investfolio/internal/models"
	"investfolio/internal/repository"
	"investfolio/internal/tax"
	"investfolio/internal/timeseries"
)

// Tax report groups: "common" covers BR listed operations taxed together on
// the same DARF (stocks, ETFs, BDRs), each class still under its own rule.
var taxGroups = map[string][]tax.AssetClass{
	"common": {tax.ClassStock, tax.ClassETF, tax.ClassBDR},
	"fii":    {tax.ClassFII},
	"crypto": {tax.ClassCrypto},
}

// DarfRow is the per-month payable total across the classes of a report.
type DarfRow struct {
	Month  time.Time       `json:"month"`
	TaxDue decimal.Decimal `json:"tax_due"`
	Labels []string        `json:"labels"`
}

// TaxReport is the monthly ledger per asset class plus the DARF-style
// aggregate.
type TaxReport struct {
	Classes map[string][]tax.MonthResult `json:"classes"`
	Darf    []DarfRow                    `json:"darf"`
}

type TaxService struct {
	Repo repository.Repository
	// Rules may carry config overrides; nil falls back to the defaults.
	Rules map[tax.AssetClass]tax.ClassRule
}

func (s *TaxService) rules() map[tax.AssetClass]tax.ClassRule {
	if s != nil && s.Rules != nil {
		return s.Rules
	}
	return tax.DefaultRules()
}

// ClassLedger computes the monthly tax ledger of one asset class. Realized
// profits are computed per asset (average cost is an asset-level state) and
// merged by month. When fiscalYear is set the ledger is projected onto that
// year's twelve months.
func (s *TaxService) ClassLedger(ctx context.Context, portfolioID uint64, class tax.AssetClass, fiscalYear int) ([]tax.MonthResult, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	rule, err := tax.RuleFor(s.rules(), class)
	if err != nil {
		return nil, err
	}
	brl := "BRL"
	txs, err := s.Repo.ListTransactions(ctx, repository.ListTransactionsParams{
		PortfolioID:  portfolioID,
		AssetClasses: []string{string(class)},
		CurrencyCode: &brl,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s transactions: %w", class, err)
	}

	byAsset := map[uint64][]models.Transaction{}
	var ids []uint64
	for _, t := range txs {
		if _, ok := byAsset[t.AssetID]; !ok {
			ids = append(ids, t.AssetID)
		}
		byAsset[t.AssetID] = append(byAsset[t.AssetID], t)
	}

	var results []costbasis.Result
	for _, id := range ids {
		assetResults, err := s.assetResults(ctx, id, byAsset[id])
		if err != nil {
			return nil, err
		}
		results = append(results, assetResults...)
	}

	profits := costbasis.MonthlyProfits(results)
	months := make([]tax.Month, 0, len(profits))
	for _, p := range profits {
		months = append(months, tax.Month{
			Month:          p.Month,
			RealizedProfit: decimal.NewFromFloat(p.RealizedProfit),
			GrossSales:     decimal.NewFromFloat(p.GrossSales),
		})
	}
	ledger := tax.Calculator{Rule: rule}.Compute(months)
	if fiscalYear > 0 {
		ledger = tax.YearGrid(ledger, fiscalYear)
	}
	return ledger, nil
}

func (s *TaxService) assetResults(ctx context.Context, assetID uint64, txs []models.Transaction) ([]costbasis.Result, error) {
	trades := make([]costbasis.Trade, 0, len(txs))
	for _, t := range txs {
		trades = append(trades, costbasis.Trade{
			Date:     timeseries.Day(t.Date),
			Quantity: t.Quantity.InexactFloat64(),
			Price:    t.Price.InexactFloat64(),
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
	trades = corporate.AdjustTrades(trades, events)
	results, err := costbasis.Compute(trades)
	if err != nil {
		return nil, fmt.Errorf("cost basis for asset %d: %w", assetID, err)
	}
	return results, nil
}

// Report assembles the grouped monthly report. Group is one of "common",
// "fii", "crypto"; empty means all of them.
func (s *TaxService) Report(ctx context.Context, portfolioID uint64, group string, fiscalYear int) (TaxReport, error) {
	if s == nil || s.Repo == nil {
		return TaxReport{}, nil
	}
	var classes []tax.AssetClass
	if group == "" {
		for _, cs := range taxGroups {
			classes = append(classes, cs...)
		}
	} else {
		cs, ok := taxGroups[group]
		if !ok {
			return TaxReport{}, fmt.Errorf("unknown tax report group %q", group)
		}
		classes = cs
	}

	report := TaxReport{Classes: map[string][]tax.MonthResult{}}
	type darfAcc struct {
		total  decimal.Decimal
		labels []string
	}
	byMonth := map[time.Time]*darfAcc{}
	for _, class := range classes {
		ledger, err := s.ClassLedger(ctx, portfolioID, class, fiscalYear)
		if err != nil {
			return TaxReport{}, err
		}
		report.Classes[string(class)] = ledger
		for _, row := range ledger {
			if !row.TaxDue.IsPositive() {
				continue
			}
			acc, ok := byMonth[row.Month]
			if !ok {
				acc = &darfAcc{total: decimal.Zero}
				byMonth[row.Month] = acc
			}
			acc.total = acc.total.Add(row.TaxDue)
			acc.labels = append(acc.labels, string(class))
		}
	}
	for month, acc := range byMonth {
		sort.Strings(acc.labels)
		report.Darf = append(report.Darf, DarfRow{Month: month, TaxDue: acc.total, Labels: acc.labels})
	}
	sort.Slice(report.Darf, func(i, j int) bool { return report.Darf[i].Month.Before(report.Darf[j].Month) })
	return report, nil
}
