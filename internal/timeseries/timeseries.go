// Package timeseries provides the daily-series primitives the consolidation
// pipeline is built on: calendar-day ranges, forward fill, cumulative sums and
// products, and percentage changes. Missing values are represented as NaN so a
// column can be carried through joins before it is filled or zeroed.
package timeseries

import (
	"math"
	"time"
)

// Day truncates t to midnight UTC. All dates flowing through the engine are
// normalized with it so map lookups and joins compare equal.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func Today() time.Time {
	return Day(time.Now().UTC())
}

// Range returns every calendar day from start to end inclusive.
func Range(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}
	n := int(end.Sub(start).Hours()/24) + 1
	out := make([]time.Time, 0, n)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// BusinessDays counts weekdays in the half-open interval [start, end).
// No holiday calendar is applied.
func BusinessDays(start, end time.Time) int {
	start, end = Day(start), Day(end)
	if !start.Before(end) {
		return 0
	}
	n := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

// NaN is the missing-value marker for series columns.
func NaN() float64 { return math.NaN() }

func IsNaN(v float64) bool { return math.IsNaN(v) }

// ForwardFill carries the last seen valid value over NaN gaps. Leading NaNs
// stay NaN.
func ForwardFill(v []float64) []float64 {
	out := make([]float64, len(v))
	last := math.NaN()
	for i, x := range v {
		if !math.IsNaN(x) {
			last = x
		}
		out[i] = last
	}
	return out
}

// FillZero replaces NaN with 0.
func FillZero(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if math.IsNaN(x) {
			out[i] = 0
		} else {
			out[i] = x
		}
	}
	return out
}

// CumSum accumulates values left to right, treating NaN as 0.
func CumSum(v []float64) []float64 {
	out := make([]float64, len(v))
	sum := 0.0
	for i, x := range v {
		if !math.IsNaN(x) {
			sum += x
		}
		out[i] = sum
	}
	return out
}

// PctChange returns v[i]/v[i-1]-1. The first element, and any element whose
// predecessor is missing or zero, is NaN.
func PctChange(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		if i == 0 || math.IsNaN(v[i]) || math.IsNaN(v[i-1]) || v[i-1] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = v[i]/v[i-1] - 1
	}
	return out
}

// CumProd1p compounds a return series: out[i] = prod(1+r[0..i]) - 1.
// NaN returns compound as 0.
func CumProd1p(r []float64) []float64 {
	out := make([]float64, len(r))
	acc := 1.0
	for i, x := range r {
		if !math.IsNaN(x) {
			acc *= 1 + x
		}
		out[i] = acc - 1
	}
	return out
}

// Round rounds to the given number of decimal places, matching the 6-decimal
// tolerance used when accumulating transaction quantities.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) {
		return v
	}
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
