// Package returns turns per-asset daily position rows into asset, portfolio
// and category return series. Asset returns combine price change with dividend
// yield over the day's base value (value minus same-day contribution);
// portfolio returns are value-weighted per day; category returns use
// beginning-of-period weights so a same-day contribution cannot inflate the
// category's return.
package returns

import (
	"sort"
	"time"

	"investfolio/internal/timeseries"
)

// Row is one materialized position day for one asset.
type Row struct {
	Date     time.Time
	AssetID  uint64
	Ticker   string
	Category string
	Quantity float64
	Price    float64
	Dividend float64
}

// DailyRow annotates a Row with derived per-day figures.
type DailyRow struct {
	Row
	Value        float64 // quantity * price
	Contribution float64 // same-day quantity delta * price
	NetValueDay  float64 // portfolio value net of the day's contributions
	AssetReturn  float64
}

// Series is a date-indexed set of named float columns, the pivoted output
// shape consumed by the API and the cache. Missing points are NaN.
type Series struct {
	Dates  []time.Time
	Values map[string][]float64
}

// DailyReturns computes value, contribution, net day value and the asset
// daily return for every row. Rows may arrive in any order; assets are
// processed in their own date order. A row whose base value is zero gets a
// zero return (a day with no prior holding has no meaningful yield base).
func DailyReturns(rows []Row) []DailyRow {
	out := make([]DailyRow, len(rows))
	for i, r := range rows {
		out[i] = DailyRow{Row: r, Value: r.Quantity * r.Price}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].AssetID < out[j].AssetID
	})

	// Per-asset quantity delta and price change need asset-ordered passes.
	byAsset := map[uint64][]int{}
	for i := range out {
		byAsset[out[i].AssetID] = append(byAsset[out[i].AssetID], i)
	}
	for _, idx := range byAsset {
		for k, i := range idx {
			if k == 0 {
				out[i].Contribution = 0
				out[i].AssetReturn = timeseries.NaN()
				continue
			}
			prev := out[idx[k-1]]
			out[i].Contribution = (out[i].Quantity - prev.Quantity) * out[i].Price
			if prev.Price == 0 {
				out[i].AssetReturn = timeseries.NaN()
			} else {
				out[i].AssetReturn = out[i].Price/prev.Price - 1
			}
		}
	}

	netByDate := map[time.Time]float64{}
	for i := range out {
		netByDate[out[i].Date] += out[i].Value - out[i].Contribution
	}
	for i := range out {
		out[i].NetValueDay = netByDate[out[i].Date]

		// The first day of a position has no price change to report, and a
		// zero base value leaves the dividend yield undefined; both resolve
		// to a zero return for the day.
		base := out[i].Value - out[i].Contribution
		if base == 0 || timeseries.IsNaN(out[i].AssetReturn) {
			out[i].AssetReturn = 0
			continue
		}
		out[i].AssetReturn += out[i].Dividend / base
	}
	return out
}

func sortedDates(rows []DailyRow) []time.Time {
	seen := map[time.Time]bool{}
	var dates []time.Time
	for _, r := range rows {
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// PortfolioAccumulated compounds the value-weighted daily returns into the
// single "portfolio" cumulative series.
func PortfolioAccumulated(rows []DailyRow) Series {
	dates := sortedDates(rows)
	pos := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		pos[d] = i
	}

	daily := make([]float64, len(dates))
	for _, r := range rows {
		if r.NetValueDay == 0 {
			continue
		}
		daily[pos[r.Date]] += r.Value / r.NetValueDay * r.AssetReturn
	}
	return Series{
		Dates:  dates,
		Values: map[string][]float64{"portfolio": timeseries.CumProd1p(daily)},
	}
}

// CategoryAccumulated compounds per-category daily returns weighted by each
// asset's previous-day base value within its category. An asset with no
// prior-day base value (a brand-new position) weighs zero that day.
func CategoryAccumulated(rows []DailyRow) Series {
	dates := sortedDates(rows)
	pos := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		pos[d] = i
	}

	// Previous-day base value per asset row, in asset date order.
	byAsset := map[uint64][]int{}
	for i := range rows {
		byAsset[rows[i].AssetID] = append(byAsset[rows[i].AssetID], i)
	}
	prevBase := make([]float64, len(rows))
	for _, idx := range byAsset {
		sort.Slice(idx, func(a, b int) bool { return rows[idx[a]].Date.Before(rows[idx[b]].Date) })
		for k, i := range idx {
			prevBase[i] = timeseries.NaN()
			if k > 0 {
				p := rows[idx[k-1]]
				if base := p.Value - p.Contribution; base != 0 {
					prevBase[i] = base
				}
			}
		}
	}

	type dateCategory struct {
		date     time.Time
		category string
	}
	totals := map[dateCategory]float64{}
	for i, r := range rows {
		if !timeseries.IsNaN(prevBase[i]) {
			totals[dateCategory{r.Date, r.Category}] += prevBase[i]
		}
	}

	categories := map[string][]float64{}
	for i, r := range rows {
		if _, ok := categories[r.Category]; !ok {
			categories[r.Category] = make([]float64, len(dates))
		}
		total := totals[dateCategory{r.Date, r.Category}]
		if timeseries.IsNaN(prevBase[i]) || total == 0 {
			continue
		}
		categories[r.Category][pos[r.Date]] += prevBase[i] / total * r.AssetReturn
	}

	values := make(map[string][]float64, len(categories))
	for name, daily := range categories {
		values[name] = timeseries.CumProd1p(daily)
	}
	return Series{Dates: dates, Values: values}
}

// AssetAccumulated compounds each asset's own return series, nulling the
// dates on which the position is fully exited (quantity zero).
func AssetAccumulated(rows []DailyRow) Series {
	dates := sortedDates(rows)
	pos := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		pos[d] = i
	}

	byTicker := map[string][]int{}
	for i := range rows {
		byTicker[rows[i].Ticker] = append(byTicker[rows[i].Ticker], i)
	}

	values := map[string][]float64{}
	for ticker, idx := range byTicker {
		sort.Slice(idx, func(a, b int) bool { return rows[idx[a]].Date.Before(rows[idx[b]].Date) })
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = timeseries.NaN()
		}
		acc := 1.0
		for _, i := range idx {
			acc *= 1 + rows[i].AssetReturn
			if rows[i].Quantity == 0 {
				continue
			}
			col[pos[rows[i].Date]] = acc - 1
		}
		values[ticker] = col
	}
	return Series{Dates: dates, Values: values}
}
