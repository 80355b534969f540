// Package fixedincome reconstructs a synthetic daily close series for
// instruments that have no market quote: index-linked bonds priced as a
// percentage of a reference index (e.g. 90% CDI) or as index plus a fixed
// annual spread (e.g. CDI+2%).
package fixedincome

import (
	"errors"
	"fmt"
	"math"
	"time"

	"investfolio/internal/costbasis"
	"investfolio/internal/timeseries"
)

// Kind is the closed set of fixed-income product types.
type Kind string

const (
	// PercIndex pays a percentage of the reference index.
	PercIndex Kind = "perc_index"
	// IndexPlus pays the index plus a compounding fixed annual spread.
	IndexPlus Kind = "index_plus"
	// FixedRate is a pure prefixed bond, outside the current product scope.
	FixedRate Kind = "fixed_rate"
)

// ErrNotImplemented is returned for FixedRate products.
var ErrNotImplemented = errors.New("fixedincome: fixed rate pricing not implemented")

// IndexPoint is one daily value of a reference index (a daily rate in percent
// for rate indexes like CDI).
type IndexPoint struct {
	Date  time.Time
	Close float64
}

// CashFlow is a dated cash amount received on the holding.
type CashFlow struct {
	Date   time.Time
	Amount float64
}

// businessDaysPerYear is the Brazilian convention for converting annual fixed
// rates to daily compounding.
const businessDaysPerYear = 252

// PriceSeries builds the daily close series from the first purchase up to
// today. The series covers every calendar day on which the cumulative
// transaction quantity is positive. The index input is joined by exact date
// and missing days contribute a zero rate; upstream index consolidation is
// responsible for zero-filling rate indexes over non-business days.
//
// Price at day t is
//
//	initialPrice * indexFactorAccumulated(t) * fixedRateFactor(t) - cumulative dividends per unit
//
// with the initial price taken from the first transaction (BRL).
func PriceSeries(kind Kind, fee float64, trades []costbasis.Trade, index []IndexPoint, dividends []CashFlow, today time.Time) ([]IndexPoint, error) {
	if len(trades) == 0 {
		return nil, errors.New("fixedincome: no transactions")
	}

	var multiplier, annualRate float64
	switch kind {
	case FixedRate:
		return nil, ErrNotImplemented
	case IndexPlus:
		multiplier = 1
		annualRate = fee
	case PercIndex:
		multiplier = fee
		annualRate = 0
	default:
		return nil, fmt.Errorf("fixedincome: unknown product kind %q", kind)
	}

	start := timeseries.Day(trades[0].Date)
	initialPrice := trades[0].Price
	for _, t := range trades {
		if d := timeseries.Day(t.Date); d.Before(start) {
			start = d
			initialPrice = t.Price
		}
	}

	qtyByDate := map[time.Time]float64{}
	for _, t := range trades {
		qtyByDate[timeseries.Day(t.Date)] += t.Quantity
	}
	indexByDate := map[time.Time]float64{}
	for _, p := range index {
		indexByDate[timeseries.Day(p.Date)] = p.Close
	}
	dividendByDate := map[time.Time]float64{}
	for _, d := range dividends {
		dividendByDate[timeseries.Day(d.Date)] += d.Amount
	}

	var (
		out        []IndexPoint
		qty        float64
		indexAcc   = 1.0
		divPerUnit = 0.0
	)
	var dailyFee float64
	if annualRate > 0 {
		dailyFee = math.Pow(1+annualRate, 1.0/businessDaysPerYear) - 1
	}

	var seriesStart time.Time
	for _, day := range timeseries.Range(start, timeseries.Day(today)) {
		qty += qtyByDate[day]
		if qty <= 0 {
			continue
		}
		if seriesStart.IsZero() {
			seriesStart = day
		}

		indexAcc *= 1 + indexByDate[day]/100*multiplier

		fixedRateFactor := 1.0
		if annualRate > 0 {
			busDays := timeseries.BusinessDays(seriesStart, day)
			fixedRateFactor = math.Pow(1+dailyFee, float64(busDays))
		}

		if amount := dividendByDate[day]; amount > 0 && qty > 0 {
			divPerUnit += amount / qty
		}

		out = append(out, IndexPoint{
			Date:  day,
			Close: initialPrice*indexAcc*fixedRateFactor - divPerUnit,
		})
	}
	return out, nil
}
