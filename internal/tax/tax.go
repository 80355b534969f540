// Package tax computes Brazilian capital-gains tax over monthly realized
// results, carrying losses forward across months. The state machine is
// inherently sequential: each month's liability depends on the accumulated
// loss left by every month before it.
package tax

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass selects the tax treatment of a group of assets.
type AssetClass string

const (
	ClassStock  AssetClass = "stock"
	ClassETF    AssetClass = "etf"
	ClassBDR    AssetClass = "bdr"
	ClassFII    AssetClass = "fii"
	ClassCrypto AssetClass = "crypto"
)

// ClassRule carries the parameters of one asset class: the tax rate on net
// realized profit and the monthly gross-sales threshold under which profit is
// exempt (zero disables the exemption).
type ClassRule struct {
	Rate      decimal.Decimal
	Exemption decimal.Decimal
}

// DefaultRules mirrors current Brazilian rules. Deployments can override
// them through configuration.
func DefaultRules() map[AssetClass]ClassRule {
	return map[AssetClass]ClassRule{
		ClassStock:  {Rate: decimal.NewFromFloat(0.15), Exemption: decimal.NewFromInt(20000)},
		ClassETF:    {Rate: decimal.NewFromFloat(0.15)},
		ClassBDR:    {Rate: decimal.NewFromFloat(0.15)},
		ClassFII:    {Rate: decimal.NewFromFloat(0.20)},
		ClassCrypto: {Rate: decimal.NewFromFloat(0.15), Exemption: decimal.NewFromInt(35000)},
	}
}

// RuleFor resolves the rule for a class from the given table.
func RuleFor(rules map[AssetClass]ClassRule, class AssetClass) (ClassRule, error) {
	rule, ok := rules[class]
	if !ok {
		return ClassRule{}, fmt.Errorf("tax: no rule for asset class %q", class)
	}
	return rule, nil
}

// Month is one month's realized aggregate for an asset class.
type Month struct {
	Month          time.Time // first day of the month, UTC
	RealizedProfit decimal.Decimal
	GrossSales     decimal.Decimal
}

// MonthResult is the tax ledger row for one month.
type MonthResult struct {
	Month           time.Time       `json:"month"`
	RealizedProfit  decimal.Decimal `json:"realized_profit"`
	GrossSales      decimal.Decimal `json:"gross_sales"`
	AccumulatedLoss decimal.Decimal `json:"accumulated_loss"`
	TaxDue          decimal.Decimal `json:"tax_due"`
}

// Calculator applies one class rule over an ordered month sequence.
type Calculator struct {
	Rule ClassRule
}

// Compute folds the months in chronological order. A loss month increases the
// accumulated loss and owes nothing. An exempt month (gross sales at or under
// the threshold) owes nothing and leaves the accumulated loss untouched.
// Otherwise the accumulated loss offsets the profit; if profit survives the
// offset, tax is due on it at the class rate (rounded to cents) and the loss
// resets to zero.
func (c Calculator) Compute(months []Month) []MonthResult {
	sorted := make([]Month, len(months))
	copy(sorted, months)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Month.Before(sorted[j].Month) })

	accLoss := decimal.Zero
	out := make([]MonthResult, 0, len(sorted))
	for _, m := range sorted {
		taxDue := decimal.Zero
		switch {
		case m.RealizedProfit.IsNegative():
			accLoss = accLoss.Add(m.RealizedProfit.Neg())
		case c.Rule.Exemption.IsPositive() && m.GrossSales.LessThanOrEqual(c.Rule.Exemption):
			// Exempt: the loss is not consumed.
		default:
			profitAfterLoss := m.RealizedProfit.Sub(accLoss)
			if profitAfterLoss.LessThanOrEqual(decimal.Zero) {
				accLoss = accLoss.Sub(m.RealizedProfit)
			} else {
				taxDue = profitAfterLoss.Mul(c.Rule.Rate).Round(2)
				accLoss = decimal.Zero
			}
		}
		out = append(out, MonthResult{
			Month:           m.Month,
			RealizedProfit:  m.RealizedProfit,
			GrossSales:      m.GrossSales,
			AccumulatedLoss: accLoss,
			TaxDue:          taxDue,
		})
	}
	return out
}

// YearGrid projects the ledger onto the twelve months of a fiscal year.
// Months with no activity show zero profit and tax, with the accumulated loss
// carried forward from the last active month.
func YearGrid(results []MonthResult, fiscalYear int) []MonthResult {
	byMonth := make(map[time.Time]MonthResult, len(results))
	for _, r := range results {
		byMonth[r.Month] = r
	}

	carried := decimal.Zero
	for _, r := range results {
		if r.Month.Year() < fiscalYear {
			carried = r.AccumulatedLoss
		}
	}

	out := make([]MonthResult, 0, 12)
	for m := time.January; m <= time.December; m++ {
		month := time.Date(fiscalYear, m, 1, 0, 0, 0, 0, time.UTC)
		if r, ok := byMonth[month]; ok {
			carried = r.AccumulatedLoss
			out = append(out, r)
			continue
		}
		out = append(out, MonthResult{
			Month:           month,
			RealizedProfit:  decimal.Zero,
			GrossSales:      decimal.Zero,
			AccumulatedLoss: carried,
			TaxDue:          decimal.Zero,
		})
	}
	return out
}
