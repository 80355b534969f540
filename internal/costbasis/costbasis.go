// Package costbasis computes weighted-average acquisition cost and realized
// profit over an ordered trade sequence, and aggregates realized results per
// month for the tax ledger.
package costbasis

import (
	"errors"
	"math"
	"sort"
	"time"

	"investfolio/internal/timeseries"
)

// ErrOversell is returned when a sell would push the held quantity negative.
// After corporate-action adjustment this indicates inconsistent input data,
// not a valid short position.
var ErrOversell = errors.New("costbasis: sell exceeds held quantity")

// Trade is one buy (positive quantity) or sell (negative quantity) at a unit
// price, already currency-normalized and event-adjusted.
type Trade struct {
	Date     time.Time
	Quantity float64
	Price    float64
}

// Result annotates a trade with the running average price and the profit
// realized by it (zero for buys).
type Result struct {
	Trade
	AveragePrice   float64
	RealizedProfit float64
}

// book is the fold state carried across the trade sequence.
type book struct {
	qtyHeld   float64
	totalCost float64
	avgPrice  float64
}

func (b book) apply(t Trade) (book, Result, error) {
	r := Result{Trade: t}
	switch {
	case t.Quantity > 0:
		b.totalCost += t.Quantity * t.Price
		b.qtyHeld += t.Quantity
		b.avgPrice = b.totalCost / b.qtyHeld
	case t.Quantity < 0:
		sold := -t.Quantity
		if sold > b.qtyHeld+1e-9 {
			return b, r, ErrOversell
		}
		r.RealizedProfit = sold * (t.Price - b.avgPrice)
		b.totalCost -= b.avgPrice * sold
		b.qtyHeld += t.Quantity
		if math.Abs(b.qtyHeld) < 1e-9 {
			b.qtyHeld = 0
			b.totalCost = 0
			b.avgPrice = 0
		}
	}
	r.AveragePrice = b.avgPrice
	return b, r, nil
}

// Compute folds the trades in date order and returns one Result per trade.
func Compute(trades []Trade) ([]Result, error) {
	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var b book
	out := make([]Result, 0, len(sorted))
	for _, t := range sorted {
		var (
			r   Result
			err error
		)
		b, r, err = b.apply(t)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// MonthlyProfit holds the realized result of one calendar month for one asset
// class, the input row of the income tax engine.
type MonthlyProfit struct {
	Month          time.Time // first day of the month, UTC
	RealizedProfit float64
	GrossSales     float64
}

// MonthlyProfits groups realized profits and gross sale amounts by calendar
// month, sorted ascending. Gross sales is the positive total sold value of the
// month (|quantity|*price over sells).
func MonthlyProfits(results []Result) []MonthlyProfit {
	byMonth := map[time.Time]*MonthlyProfit{}
	for _, r := range results {
		d := timeseries.Day(r.Date)
		m := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		mp, ok := byMonth[m]
		if !ok {
			mp = &MonthlyProfit{Month: m}
			byMonth[m] = mp
		}
		mp.RealizedProfit += r.RealizedProfit
		if r.Quantity < 0 {
			mp.GrossSales += -r.Quantity * r.Price
		}
	}
	out := make([]MonthlyProfit, 0, len(byMonth))
	for _, mp := range byMonth {
		out = append(out, *mp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}
