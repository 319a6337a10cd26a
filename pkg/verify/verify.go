// Package verify runs deterministic post-answer checks over the tool results
// an agent turn produced. The checks are arithmetic and lexical only, so a
// failed check means the data or the answer is inconsistent, never that the
// model merely phrased something oddly.
package verify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quantfolio/quantfolio/pkg/tools"
	"github.com/quantfolio/quantfolio/pkg/tools/portfolio"
)

// Check identifiers.
const (
	CheckAllocationSum         = "allocation_sum"
	CheckPositivePrices        = "positive_prices"
	CheckTaxConsistency        = "tax_consistency"
	CheckNoHallucinatedSymbols = "no_hallucinated_symbols"
)

// Check is one verification outcome.
type Check struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Report is the verification result for a single agent turn. Verified is true
// only when every applicable check passed; a turn that triggered no checks is
// verified vacuously.
type Report struct {
	Verified bool    `json:"verified"`
	Checks   []Check `json:"checks"`
}

// Run verifies an agent turn. Only the first invocation of each tool feeds the
// checks; retries within the same turn are ignored. Failed tool invocations
// carry no data and trigger no checks.
func Run(invocations []tools.Invocation, answer string) Report {
	report := Report{Verified: true, Checks: []Check{}}

	if summary, ok := firstSummary(invocations); ok {
		report.add(checkAllocationSum(summary))
		report.add(checkPositivePrices(summary))
		report.add(checkNoHallucinatedSymbols(summary, answer))
	}
	if tax, ok := firstTax(invocations); ok {
		report.add(checkTaxConsistency(tax))
	}

	return report
}

func (r *Report) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Verified = false
	}
}

func firstSummary(invocations []tools.Invocation) (portfolio.SummaryResult, bool) {
	var out portfolio.SummaryResult
	raw, ok := firstResult(invocations, string(tools.ToolPortfolioSummary))
	if !ok || json.Unmarshal([]byte(raw), &out) != nil || !out.Success {
		return portfolio.SummaryResult{}, false
	}
	return out, true
}

func firstTax(invocations []tools.Invocation) (portfolio.TaxResult, bool) {
	var out portfolio.TaxResult
	raw, ok := firstResult(invocations, string(tools.ToolTaxEstimate))
	if !ok || json.Unmarshal([]byte(raw), &out) != nil || !out.Success {
		return portfolio.TaxResult{}, false
	}
	return out, true
}

func firstResult(invocations []tools.Invocation, name string) (string, bool) {
	for _, inv := range invocations {
		if inv.Tool == name {
			return inv.Result, true
		}
	}
	return "", false
}

// checkAllocationSum verifies that reported allocations sum to roughly 100%.
// The window is deliberately loose to absorb rounding and small cash drift.
func checkAllocationSum(summary portfolio.SummaryResult) Check {
	var sum float64
	for _, h := range summary.Holdings {
		sum += h.Allocation
	}
	if sum > 95 && sum < 105 {
		return Check{
			Check:  CheckAllocationSum,
			Passed: true,
			Detail: fmt.Sprintf("allocations sum to %.1f%%", sum),
		}
	}
	return Check{
		Check:  CheckAllocationSum,
		Passed: false,
		Detail: fmt.Sprintf("allocations sum to %.1f%%, expected between 95%% and 105%%", sum),
	}
}

// checkPositivePrices verifies that every reported holding has a positive
// market price.
func checkPositivePrices(summary portfolio.SummaryResult) Check {
	var offenders []string
	for _, h := range summary.Holdings {
		if h.MarketPrice <= 0 {
			offenders = append(offenders, h.Symbol)
		}
	}
	if len(offenders) == 0 {
		return Check{
			Check:  CheckPositivePrices,
			Passed: true,
			Detail: fmt.Sprintf("all %d holdings have positive market prices", len(summary.Holdings)),
		}
	}
	return Check{
		Check:  CheckPositivePrices,
		Passed: false,
		Detail: "non-positive market price for: " + strings.Join(offenders, ", "),
	}
}

// checkTaxConsistency verifies the tax estimate's aggregate cost basis and
// current value are both positive. A tax estimate over nothing means the
// upstream data and the estimate disagree about whether positions exist.
func checkTaxConsistency(tax portfolio.TaxResult) Check {
	if tax.Totals.CostBasis > 0 && tax.Totals.CurrentValue > 0 {
		return Check{
			Check:  CheckTaxConsistency,
			Passed: true,
			Detail: fmt.Sprintf("cost basis %.2f and current value %.2f are both positive", tax.Totals.CostBasis, tax.Totals.CurrentValue),
		}
	}
	return Check{
		Check:  CheckTaxConsistency,
		Passed: false,
		Detail: fmt.Sprintf("cost basis %.2f, current value %.2f; expected both positive", tax.Totals.CostBasis, tax.Totals.CurrentValue),
	}
}

// checkNoHallucinatedSymbols scans the answer for ticker-like tokens the
// portfolio does not contain. It only runs when the portfolio summary ran,
// since without it there is no ground truth to check against.
func checkNoHallucinatedSymbols(summary portfolio.SummaryResult, answer string) Check {
	symbols := make([]string, 0, len(summary.Holdings))
	for _, h := range summary.Holdings {
		symbols = append(symbols, h.Symbol)
	}
	known := knownSymbolSet(symbols)

	var unknown []string
	for _, token := range tickerLikeTokens(answer) {
		if _, ok := known[token]; !ok {
			unknown = append(unknown, token)
		}
	}
	if len(unknown) == 0 {
		return Check{
			Check:  CheckNoHallucinatedSymbols,
			Passed: true,
			Detail: "all ticker-like tokens in the answer match portfolio holdings",
		}
	}
	return Check{
		Check:  CheckNoHallucinatedSymbols,
		Passed: false,
		Detail: "answer mentions symbols not in the portfolio: " + strings.Join(unknown, ", "),
	}
}
