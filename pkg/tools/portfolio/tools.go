// Package portfolio provides portfolio analysis tools for the financial agent:
// the holdings summary, the risk assessment, and the tax estimate.
package portfolio

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/quantfolio/quantfolio/pkg/tools"
	"github.com/quantfolio/quantfolio/pkg/upstream"
)

func init() {
	tools.Register(tools.ToolDefinition{
		ID:   tools.ToolPortfolioSummary,
		Name: "Portfolio Summary",
		Description: "Get the user's current portfolio: every holding with allocation " +
			"percentage, market price, quantity and value, plus aggregate totals",
		Category: tools.CategoryPortfolio,
	}, NewPortfolioSummaryTool)

	tools.Register(tools.ToolDefinition{
		ID:          tools.ToolRiskAssessment,
		Name:        "Risk Assessment",
		Description: "Analyze portfolio concentration, diversification and risk flags",
		Category:    tools.CategoryPortfolio,
	}, NewRiskAssessmentTool)

	tools.Register(tools.ToolDefinition{
		ID:          tools.ToolTaxEstimate,
		Name:        "Tax Estimate",
		Description: "Estimate capital gains tax from cost basis and unrealized gains",
		Category:    tools.CategoryPortfolio,
	}, NewTaxEstimateTool)
}

// TaxDisclaimer accompanies every tax estimate.
const TaxDisclaimer = "This is a rough estimate for informational purposes only and not tax advice. Consult a tax professional."

const defaultTaxRatePercent = 15.0

// ==================== portfolio_summary ====================

// SummaryHolding is one position as reported to the model.
type SummaryHolding struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Currency      string  `json:"currency"`
	AssetClass    string  `json:"assetClass"`
	AssetSubClass string  `json:"assetSubClass,omitempty"`
	Allocation    float64 `json:"allocation"`
	MarketPrice   float64 `json:"marketPrice"`
	Quantity      float64 `json:"quantity"`
	Value         float64 `json:"value"`
}

// SummaryTotals aggregates the holdings list.
type SummaryTotals struct {
	TotalValue float64 `json:"totalValue"`
	Positions  int     `json:"positions"`
	Currency   string  `json:"currency,omitempty"`
}

// SummaryResult is the portfolio_summary success payload.
type SummaryResult struct {
	Success  bool             `json:"success"`
	Holdings []SummaryHolding `json:"holdings"`
	Summary  SummaryTotals    `json:"summary"`
}

// SummaryInput carries no arguments; the tool always reports the full portfolio.
type SummaryInput struct{}

// NewPortfolioSummaryTool creates the portfolio_summary tool.
func NewPortfolioSummaryTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: string(tools.ToolPortfolioSummary),
		Desc: "Get the user's current portfolio holdings with allocation percentages, market prices, " +
			"quantities and values, plus aggregate totals. Use this for any question about what the user " +
			"owns, portfolio composition, allocation or weighting. Questions about cost basis or taxes " +
			"belong to tax_estimate instead.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, func(ctx context.Context, input *SummaryInput) (string, error) {
		result := runPortfolioSummary(ctx, tc)
		tc.Recorder.Record(string(tools.ToolPortfolioSummary), input, result)
		return result, nil
	})
}

func runPortfolioSummary(ctx context.Context, tc *tools.ToolContext) string {
	details, err := tc.Portfolio.GetPortfolioDetails(ctx, tc.UserID)
	if err != nil {
		return tools.FailureJSON("failed to fetch portfolio: %v", err)
	}

	holdings := sortedHoldings(details)
	out := SummaryResult{Success: true, Holdings: make([]SummaryHolding, 0, len(holdings))}
	for _, h := range holdings {
		out.Holdings = append(out.Holdings, SummaryHolding{
			Name:          h.Name,
			Symbol:        h.Symbol,
			Currency:      h.Currency,
			AssetClass:    h.AssetClass,
			AssetSubClass: h.AssetSubClass,
			Allocation:    h.Allocation,
			MarketPrice:   h.MarketPrice,
			Quantity:      h.Quantity,
			Value:         h.Value,
		})
		out.Summary.TotalValue += h.Value
	}
	out.Summary.Positions = len(out.Holdings)
	out.Summary.Currency = details.Currency

	return tools.MarshalResult(out)
}

// sortedHoldings flattens the symbol-keyed holdings map in descending value
// order so payloads are deterministic.
func sortedHoldings(details *upstream.PortfolioDetails) []upstream.Holding {
	holdings := make([]upstream.Holding, 0, len(details.Holdings))
	for _, h := range details.Holdings {
		holdings = append(holdings, h)
	}
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].Value != holdings[j].Value {
			return holdings[i].Value > holdings[j].Value
		}
		return holdings[i].Symbol < holdings[j].Symbol
	})
	return holdings
}

// ==================== risk_assessment ====================

// PositionWeight is one position's share of total portfolio value.
type PositionWeight struct {
	Symbol  string  `json:"symbol"`
	Percent float64 `json:"percent"`
}

// SectorWeight is one sector's share of total portfolio value.
type SectorWeight struct {
	Sector  string  `json:"sector"`
	Percent float64 `json:"percent"`
}

// RiskResult is the risk_assessment success payload.
type RiskResult struct {
	Success              bool               `json:"success"`
	Message              string             `json:"message,omitempty"`
	TotalValue           float64            `json:"totalValue"`
	Positions            int                `json:"positions"`
	Top3Concentration    float64            `json:"top3ConcentrationPercent"`
	PositionWeights      []PositionWeight   `json:"positionWeights,omitempty"`
	AssetClassBreakdown  map[string]float64 `json:"assetClassBreakdown,omitempty"`
	SectorBreakdown      []SectorWeight     `json:"sectorBreakdown,omitempty"`
	RiskFlags            []string           `json:"riskFlags"`
	DiversificationScore string             `json:"diversificationScore"`
}

// RiskInput carries no arguments.
type RiskInput struct{}

// NewRiskAssessmentTool creates the risk_assessment tool.
func NewRiskAssessmentTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: string(tools.ToolRiskAssessment),
		Desc: "Assess portfolio risk: concentration of the largest positions, asset class and sector " +
			"breakdowns, qualitative risk flags and an overall diversification score. Use this when the " +
			"user asks how risky, concentrated or diversified their portfolio is.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, func(ctx context.Context, input *RiskInput) (string, error) {
		result := runRiskAssessment(ctx, tc)
		tc.Recorder.Record(string(tools.ToolRiskAssessment), input, result)
		return result, nil
	})
}

func runRiskAssessment(ctx context.Context, tc *tools.ToolContext) string {
	details, err := tc.Portfolio.GetPortfolioDetails(ctx, tc.UserID)
	if err != nil {
		return tools.FailureJSON("failed to fetch portfolio: %v", err)
	}

	holdings := sortedHoldings(details)
	var totalValue float64
	for _, h := range holdings {
		totalValue += h.Value
	}

	// Zero total value is a degenerate success, not an error: the model should
	// tell the user there is nothing to assess.
	if totalValue <= 0 {
		return tools.MarshalResult(RiskResult{
			Success:              true,
			Message:              "The portfolio has no positions with market value, so there is nothing to assess.",
			RiskFlags:            []string{},
			DiversificationScore: scoreFromFlags(nil),
		})
	}

	out := RiskResult{
		Success:             true,
		TotalValue:          totalValue,
		Positions:           len(holdings),
		AssetClassBreakdown: make(map[string]float64),
	}

	sectorTotals := make(map[string]float64)
	for i, h := range holdings {
		percent := h.Value / totalValue * 100
		out.PositionWeights = append(out.PositionWeights, PositionWeight{Symbol: h.Symbol, Percent: percent})
		if i < 3 {
			out.Top3Concentration += percent
		}
		class := h.AssetClass
		if class == "" {
			class = "UNKNOWN"
		}
		out.AssetClassBreakdown[class] += percent
		sector := h.Sector
		if sector == "" {
			sector = "Other"
		}
		sectorTotals[sector] += percent
	}

	for sector, percent := range sectorTotals {
		out.SectorBreakdown = append(out.SectorBreakdown, SectorWeight{Sector: sector, Percent: percent})
	}
	sort.Slice(out.SectorBreakdown, func(i, j int) bool {
		if out.SectorBreakdown[i].Percent != out.SectorBreakdown[j].Percent {
			return out.SectorBreakdown[i].Percent > out.SectorBreakdown[j].Percent
		}
		return out.SectorBreakdown[i].Sector < out.SectorBreakdown[j].Sector
	})
	if len(out.SectorBreakdown) > 10 {
		out.SectorBreakdown = out.SectorBreakdown[:10]
	}

	out.RiskFlags = riskFlags(out.PositionWeights, out.Top3Concentration, out.AssetClassBreakdown)
	out.DiversificationScore = scoreFromFlags(out.RiskFlags)

	return tools.MarshalResult(out)
}

// riskFlags applies the flag policy: few positions, single-position
// concentration over 30%, top-3 concentration over 60%, single asset class.
func riskFlags(weights []PositionWeight, top3 float64, classes map[string]float64) []string {
	flags := []string{}
	if len(weights) < 5 {
		flags = append(flags, fmt.Sprintf("Low diversification: only %d position(s)", len(weights)))
	}
	for _, w := range weights {
		if w.Percent > 30 {
			flags = append(flags, fmt.Sprintf("High concentration: %s is %.1f%% of the portfolio", w.Symbol, w.Percent))
		}
	}
	if top3 > 60 {
		flags = append(flags, fmt.Sprintf("Top 3 positions make up %.1f%% of the portfolio", top3))
	}
	if len(classes) == 1 {
		flags = append(flags, "All holdings are in a single asset class")
	}
	return flags
}

func scoreFromFlags(flags []string) string {
	switch {
	case len(flags) == 0:
		return "Good"
	case len(flags) <= 2:
		return "Moderate"
	default:
		return "Poor"
	}
}

// ==================== tax_estimate ====================

// TaxPosition is the per-symbol tax estimate.
type TaxPosition struct {
	Symbol         string  `json:"symbol"`
	Quantity       float64 `json:"quantity"`
	CostBasis      float64 `json:"costBasis"`
	CurrentValue   float64 `json:"currentValue"`
	UnrealizedGain float64 `json:"unrealizedGain"`
	GainPercent    string  `json:"gainPercent"`
	EstimatedTax   float64 `json:"estimatedTax"`
}

// TaxTotals aggregates across positions.
type TaxTotals struct {
	CostBasis      float64 `json:"costBasis"`
	CurrentValue   float64 `json:"currentValue"`
	UnrealizedGain float64 `json:"unrealizedGain"`
	EstimatedTax   float64 `json:"estimatedTax"`
}

// TaxResult is the tax_estimate success payload.
type TaxResult struct {
	Success    bool          `json:"success"`
	TaxRate    float64       `json:"taxRatePercent"`
	Positions  []TaxPosition `json:"positions"`
	Totals     TaxTotals     `json:"totals"`
	Disclaimer string        `json:"disclaimer"`
}

// TaxInput optionally overrides the assumed capital gains tax rate.
type TaxInput struct {
	TaxRate float64 `json:"taxRate,omitempty"`
}

// NewTaxEstimateTool creates the tax_estimate tool.
func NewTaxEstimateTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: string(tools.ToolTaxEstimate),
		Desc: "Estimate capital gains tax: per-position cost basis derived from buy/sell history " +
			"(including fees), unrealized gains and the estimated tax at a given rate. Use this for any " +
			"question about cost basis, unrealized gains or taxes. Allocation questions belong to " +
			"portfolio_summary instead.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"taxRate": {Type: schema.Number, Required: false, Desc: "Capital gains tax rate in percent (default: 15)"},
		}),
	}, func(ctx context.Context, input *TaxInput) (string, error) {
		result := runTaxEstimate(ctx, tc, input)
		tc.Recorder.Record(string(tools.ToolTaxEstimate), input, result)
		return result, nil
	})
}

func runTaxEstimate(ctx context.Context, tc *tools.ToolContext, input *TaxInput) string {
	rate := input.TaxRate
	if rate <= 0 {
		rate = defaultTaxRatePercent
	}

	activities, err := tc.Orders.GetActivities(ctx, tc.UserID)
	if err != nil {
		return tools.FailureJSON("failed to fetch transaction history: %v", err)
	}
	details, err := tc.Portfolio.GetPortfolioDetails(ctx, tc.UserID)
	if err != nil {
		return tools.FailureJSON("failed to fetch portfolio: %v", err)
	}

	basis := costBasisBySymbol(activities)
	symbols := make([]string, 0, len(basis))
	for symbol := range basis {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	out := TaxResult{Success: true, TaxRate: rate, Positions: []TaxPosition{}, Disclaimer: TaxDisclaimer}
	for _, symbol := range symbols {
		b := basis[symbol]
		if b.Quantity <= 0 {
			continue
		}
		costBasis := b.CostBasis()
		currentValue := details.Holdings[symbol].Value
		gain := currentValue - costBasis
		pos := TaxPosition{
			Symbol:         symbol,
			Quantity:       b.Quantity,
			CostBasis:      costBasis,
			CurrentValue:   currentValue,
			UnrealizedGain: gain,
			GainPercent:    gainPercent(gain, costBasis),
			EstimatedTax:   estimatedTax(gain, rate),
		}
		out.Positions = append(out.Positions, pos)
		out.Totals.CostBasis += pos.CostBasis
		out.Totals.CurrentValue += pos.CurrentValue
		out.Totals.UnrealizedGain += pos.UnrealizedGain
		out.Totals.EstimatedTax += pos.EstimatedTax
	}

	return tools.MarshalResult(out)
}

// symbolBasis is the signed accumulation of one symbol's buy/sell activity.
type symbolBasis struct {
	Cost     float64
	Fees     float64
	Quantity float64
}

// CostBasis is accumulated cost plus accumulated fees.
func (b symbolBasis) CostBasis() float64 {
	return b.Cost + b.Fees
}

// costBasisBySymbol accumulates signed cost per symbol: BUY adds
// quantity*unitPrice and the fee, SELL subtracts quantity*unitPrice. Sell fees
// are deliberately not subtracted from cost basis, which keeps the estimate
// conservative.
func costBasisBySymbol(activities []upstream.Activity) map[string]symbolBasis {
	basis := make(map[string]symbolBasis)
	for _, a := range activities {
		b := basis[a.Symbol]
		switch a.Type {
		case upstream.ActivityBuy:
			b.Cost += a.Quantity * a.UnitPrice
			b.Quantity += a.Quantity
			b.Fees += a.Fee
		case upstream.ActivitySell:
			b.Cost -= a.Quantity * a.UnitPrice
			b.Quantity -= a.Quantity
		}
		basis[a.Symbol] = b
	}
	return basis
}

// gainPercent is undefined when the cost basis is zero.
func gainPercent(gain, costBasis float64) string {
	if costBasis == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", gain/costBasis*100)
}

func estimatedTax(gain, ratePercent float64) float64 {
	if gain <= 0 {
		return 0
	}
	return gain * ratePercent / 100
}
