// Package corporate applies corporate actions (splits) retroactively to
// transaction history. Every transaction dated strictly before an event gets
// its quantity multiplied by the event factor; when price continuity matters
// (cost basis, tax) the price is divided by the same factor so invested value
// is preserved. Adjustment always starts from raw transactions, so one
// consolidation run applies each event exactly once.
package corporate

import (
	"sort"
	"time"

	"investfolio/internal/costbasis"
)

// Event is a retroactive multiplicative adjustment on an asset, e.g. a
// 2-for-1 split with Factor 2.
type Event struct {
	AssetID uint64
	Date    time.Time
	Factor  float64
}

// sortEvents returns the events ascending by date. Later events must see
// quantities already adjusted by earlier ones.
func sortEvents(events []Event) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return sorted
}

// AdjustQuantities rewrites quantities only, leaving raw prices untouched.
// This is what the position pipeline needs: the quoted market price already
// reflects the split, only the held quantity has to be restated.
func AdjustQuantities(trades []costbasis.Trade, events []Event) []costbasis.Trade {
	out := make([]costbasis.Trade, len(trades))
	copy(out, trades)
	for _, ev := range sortEvents(events) {
		for i := range out {
			if out[i].Date.Before(ev.Date) {
				out[i].Quantity *= ev.Factor
			}
		}
	}
	return out
}

// AdjustTrades rewrites quantity and price together so quantity*price is
// unchanged. Average-cost and realized-profit computations need this form.
func AdjustTrades(trades []costbasis.Trade, events []Event) []costbasis.Trade {
	out := make([]costbasis.Trade, len(trades))
	copy(out, trades)
	for _, ev := range sortEvents(events) {
		if ev.Factor == 0 {
			continue
		}
		for i := range out {
			if out[i].Date.Before(ev.Date) {
				out[i].Quantity *= ev.Factor
				out[i].Price /= ev.Factor
			}
		}
	}
	return out
}
