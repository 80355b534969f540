package fixedincome

import (
	"errors"
	"math"
	"testing"
	"time"

	"investfolio/internal/costbasis"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceSeriesFixedRateNotImplemented(t *testing.T) {
	_, err := PriceSeries(FixedRate, 0.1,
		[]costbasis.Trade{{Date: day(2024, time.January, 1), Quantity: 1, Price: 1000}},
		nil, nil, day(2024, time.January, 10))
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("err=%v want ErrNotImplemented", err)
	}
}

func TestPriceSeriesUnknownKind(t *testing.T) {
	_, err := PriceSeries(Kind("whatever"), 0.1,
		[]costbasis.Trade{{Date: day(2024, time.January, 1), Quantity: 1, Price: 1000}},
		nil, nil, day(2024, time.January, 10))
	if err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestPriceSeriesPercIndex(t *testing.T) {
	// 90% of a flat 0.05%/day index over 3 days.
	trades := []costbasis.Trade{{Date: day(2024, time.April, 1), Quantity: 10, Price: 1000}}
	index := []IndexPoint{
		{Date: day(2024, time.April, 1), Close: 0.05},
		{Date: day(2024, time.April, 2), Close: 0.05},
		{Date: day(2024, time.April, 3), Close: 0.05},
	}
	out, err := PriceSeries(PercIndex, 0.9, trades, index, nil, day(2024, time.April, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len=%d want=3", len(out))
	}
	daily := 1 + 0.05/100*0.9
	want := 1000 * daily * daily * daily
	if got := out[2].Close; math.Abs(got-want) > 1e-9 {
		t.Fatalf("close=%v want=%v", got, want)
	}
}

func TestPriceSeriesIndexPlusSpread(t *testing.T) {
	// Index + 2% p.a.; zero index so only the prefixed leg moves the price.
	// Mon Apr 1 .. Mon Apr 8: 5 business days elapsed.
	trades := []costbasis.Trade{{Date: day(2024, time.April, 1), Quantity: 1, Price: 1000}}
	out, err := PriceSeries(IndexPlus, 0.02, trades, nil, nil, day(2024, time.April, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dailyFee := math.Pow(1.02, 1.0/252) - 1
	want := 1000 * math.Pow(1+dailyFee, 5)
	if got := out[len(out)-1].Close; math.Abs(got-want) > 1e-9 {
		t.Fatalf("close=%v want=%v", got, want)
	}
	// First day has zero elapsed business days.
	if got := out[0].Close; math.Abs(got-1000) > 1e-9 {
		t.Fatalf("first close=%v want=1000", got)
	}
}

func TestPriceSeriesDividendsReducePrice(t *testing.T) {
	trades := []costbasis.Trade{{Date: day(2024, time.April, 1), Quantity: 10, Price: 1000}}
	dividends := []CashFlow{{Date: day(2024, time.April, 2), Amount: 50}}
	out, err := PriceSeries(PercIndex, 1, trades, nil, dividends, day(2024, time.April, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Zero index: price stays 1000 minus 50/10 per unit from the dividend on.
	if got := out[0].Close; math.Abs(got-1000) > 1e-9 {
		t.Fatalf("day1 close=%v want=1000", got)
	}
	if got := out[1].Close; math.Abs(got-995) > 1e-9 {
		t.Fatalf("day2 close=%v want=995", got)
	}
	if got := out[2].Close; math.Abs(got-995) > 1e-9 {
		t.Fatalf("day3 close=%v want=995", got)
	}
}

func TestPriceSeriesSkipsDaysBeforePositiveQuantity(t *testing.T) {
	trades := []costbasis.Trade{{Date: day(2024, time.April, 3), Quantity: 10, Price: 1000}}
	out, err := PriceSeries(PercIndex, 1, trades, nil, nil, day(2024, time.April, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 || !out[0].Date.Equal(day(2024, time.April, 3)) {
		t.Fatalf("series must start at first purchase: %+v", out)
	}
}
