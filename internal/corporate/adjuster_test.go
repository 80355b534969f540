package corporate

import (
	"math"
	"testing"
	"time"

	"investfolio/internal/costbasis"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdjustTradesSplitPreservesValue(t *testing.T) {
	trades := []costbasis.Trade{
		{Date: day(2024, time.January, 10), Quantity: 10, Price: 100},
	}
	events := []Event{
		{Date: day(2024, time.February, 1), Factor: 2},
	}
	out := AdjustTrades(trades, events)
	if out[0].Quantity != 20 || out[0].Price != 50 {
		t.Fatalf("got qty=%v price=%v want 20/50", out[0].Quantity, out[0].Price)
	}
	if v := out[0].Quantity * out[0].Price; math.Abs(v-1000) > 1e-9 {
		t.Fatalf("invested value changed: %v", v)
	}
	// Input slice untouched.
	if trades[0].Quantity != 10 {
		t.Fatalf("input mutated")
	}
}

func TestAdjustStrictlyBefore(t *testing.T) {
	trades := []costbasis.Trade{
		{Date: day(2024, time.February, 1), Quantity: 10, Price: 100},
	}
	events := []Event{
		{Date: day(2024, time.February, 1), Factor: 2},
	}
	out := AdjustQuantities(trades, events)
	if out[0].Quantity != 10 {
		t.Fatalf("same-day transaction must not be adjusted, got %v", out[0].Quantity)
	}
}

func TestAdjustCumulativeEventsInDateOrder(t *testing.T) {
	trades := []costbasis.Trade{
		{Date: day(2024, time.January, 1), Quantity: 10, Price: 120},
		{Date: day(2024, time.March, 15), Quantity: 5, Price: 40},
	}
	// Given out of order on purpose.
	events := []Event{
		{Date: day(2024, time.April, 1), Factor: 3},
		{Date: day(2024, time.March, 1), Factor: 2},
	}
	out := AdjustQuantities(trades, events)
	// First trade: *2 then *3 = 60. Second trade: only the April event applies.
	if out[0].Quantity != 60 {
		t.Fatalf("first trade qty=%v want=60", out[0].Quantity)
	}
	if out[1].Quantity != 15 {
		t.Fatalf("second trade qty=%v want=15", out[1].Quantity)
	}
}
