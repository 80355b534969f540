package timeseries

import (
	"math"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRangeInclusive(t *testing.T) {
	days := Range(date(2024, time.January, 30), date(2024, time.February, 2))
	if len(days) != 4 {
		t.Fatalf("len=%d want=4", len(days))
	}
	if !days[0].Equal(date(2024, time.January, 30)) || !days[3].Equal(date(2024, time.February, 2)) {
		t.Fatalf("range bounds wrong: %v .. %v", days[0], days[3])
	}
}

func TestBusinessDaysHalfOpen(t *testing.T) {
	// Mon 2024-01-01 .. Mon 2024-01-08 spans one full week: 5 weekdays.
	if got := BusinessDays(date(2024, time.January, 1), date(2024, time.January, 8)); got != 5 {
		t.Fatalf("got=%d want=5", got)
	}
	if got := BusinessDays(date(2024, time.January, 6), date(2024, time.January, 7)); got != 0 {
		t.Fatalf("saturday-only interval got=%d want=0", got)
	}
	if got := BusinessDays(date(2024, time.January, 8), date(2024, time.January, 8)); got != 0 {
		t.Fatalf("empty interval got=%d want=0", got)
	}
}

func TestForwardFill(t *testing.T) {
	in := []float64{math.NaN(), 10, math.NaN(), math.NaN(), 12}
	out := ForwardFill(in)
	if !math.IsNaN(out[0]) {
		t.Fatalf("leading NaN must stay NaN, got %v", out[0])
	}
	if out[2] != 10 || out[3] != 10 || out[4] != 12 {
		t.Fatalf("out=%v", out)
	}
}

func TestPctChange(t *testing.T) {
	out := PctChange([]float64{100, 110, 110, math.NaN()})
	if !math.IsNaN(out[0]) {
		t.Fatalf("first element must be NaN")
	}
	if math.Abs(out[1]-0.1) > 1e-12 {
		t.Fatalf("out[1]=%v want 0.1", out[1])
	}
	if out[2] != 0 {
		t.Fatalf("flat price must give 0, got %v", out[2])
	}
	if !math.IsNaN(out[3]) {
		t.Fatalf("missing value must give NaN")
	}
}

func TestCumProd1pRoundTrip(t *testing.T) {
	r := []float64{0.01, -0.02, 0.03}
	acc := CumProd1p(r)
	want := (1.01*0.98*1.03 - 1)
	if math.Abs(acc[2]-want) > 1e-12 {
		t.Fatalf("acc=%v want=%v", acc[2], want)
	}
}

func TestCumSumSkipsNaN(t *testing.T) {
	out := CumSum([]float64{1, math.NaN(), 2})
	if out[0] != 1 || out[1] != 1 || out[2] != 3 {
		t.Fatalf("out=%v", out)
	}
}

func TestRound(t *testing.T) {
	if got := Round(0.1234567, 6); got != 0.123457 {
		t.Fatalf("got=%v", got)
	}
}
