package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quantfolio/quantfolio/pkg/tools"
	"github.com/quantfolio/quantfolio/pkg/upstream"
)

type stubPortfolio struct {
	details *upstream.PortfolioDetails
	err     error
}

func (s stubPortfolio) GetPortfolioDetails(ctx context.Context, userID string) (*upstream.PortfolioDetails, error) {
	return s.details, s.err
}

type stubOrders struct {
	activities []upstream.Activity
	err        error
}

func (s stubOrders) GetActivities(ctx context.Context, userID string) ([]upstream.Activity, error) {
	return s.activities, s.err
}

func newToolContext(portfolio stubPortfolio, orders stubOrders) *tools.ToolContext {
	return tools.NewToolContext(portfolio, nil, orders, "user-1")
}

func details(holdings ...upstream.Holding) *upstream.PortfolioDetails {
	out := &upstream.PortfolioDetails{Currency: "USD", Holdings: make(map[string]upstream.Holding)}
	for _, h := range holdings {
		out.Holdings[h.Symbol] = h
	}
	return out
}

func TestPortfolioSummarySortedByValue(t *testing.T) {
	tc := newToolContext(stubPortfolio{details: details(
		upstream.Holding{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF", Allocation: 40, MarketPrice: 250, Quantity: 5, Value: 1250},
		upstream.Holding{Symbol: "AAPL", Name: "Apple Inc.", Allocation: 60, MarketPrice: 190, Quantity: 10, Value: 1900},
	)}, stubOrders{})

	var out SummaryResult
	if err := json.Unmarshal([]byte(runPortfolioSummary(context.Background(), tc)), &out); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if !out.Success {
		t.Fatalf("Success = false")
	}
	if len(out.Holdings) != 2 || out.Holdings[0].Symbol != "AAPL" {
		t.Fatalf("Holdings = %+v, want AAPL first by value", out.Holdings)
	}
	if out.Summary.TotalValue != 3150 {
		t.Fatalf("TotalValue = %v, want 3150", out.Summary.TotalValue)
	}
	if out.Summary.Positions != 2 {
		t.Fatalf("Positions = %d, want 2", out.Summary.Positions)
	}
}

func TestPortfolioSummaryUpstreamError(t *testing.T) {
	tc := newToolContext(stubPortfolio{err: errors.New("connection refused")}, stubOrders{})

	result := runPortfolioSummary(context.Background(), tc)
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(result), &out); err != nil {
		t.Fatalf("unmarshal failure payload: %v", err)
	}
	if out.Success {
		t.Fatalf("Success = true on upstream error")
	}
	if !strings.Contains(out.Error, "connection refused") {
		t.Fatalf("Error = %q, want upstream cause included", out.Error)
	}
}

func TestRiskFlagsPolicy(t *testing.T) {
	equity := map[string]float64{"EQUITY": 80, "FIXED_INCOME": 20}
	single := map[string]float64{"EQUITY": 100}

	cases := []struct {
		name      string
		weights   []PositionWeight
		top3      float64
		classes   map[string]float64
		wantFlags int
		wantScore string
	}{
		{
			name: "well diversified",
			weights: []PositionWeight{
				{Symbol: "A", Percent: 20}, {Symbol: "B", Percent: 20}, {Symbol: "C", Percent: 20},
				{Symbol: "D", Percent: 20}, {Symbol: "E", Percent: 20},
			},
			top3: 60, classes: equity,
			wantFlags: 0, wantScore: "Good",
		},
		{
			name:    "few positions",
			weights: []PositionWeight{{Symbol: "A", Percent: 25}, {Symbol: "B", Percent: 25}, {Symbol: "C", Percent: 25}, {Symbol: "D", Percent: 25}},
			top3:    75, classes: equity,
			wantFlags: 2, wantScore: "Moderate",
		},
		{
			name:    "concentrated single class",
			weights: []PositionWeight{{Symbol: "A", Percent: 70}, {Symbol: "B", Percent: 30}},
			top3:    100, classes: single,
			wantFlags: 4, wantScore: "Poor",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			flags := riskFlags(tt.weights, tt.top3, tt.classes)
			if len(flags) != tt.wantFlags {
				t.Fatalf("riskFlags() = %v, want %d flags", flags, tt.wantFlags)
			}
			if got := scoreFromFlags(flags); got != tt.wantScore {
				t.Fatalf("scoreFromFlags() = %q, want %q", got, tt.wantScore)
			}
		})
	}
}

func TestRiskAssessmentZeroValuePortfolio(t *testing.T) {
	tc := newToolContext(stubPortfolio{details: details()}, stubOrders{})

	var out RiskResult
	if err := json.Unmarshal([]byte(runRiskAssessment(context.Background(), tc)), &out); err != nil {
		t.Fatalf("unmarshal risk result: %v", err)
	}
	if !out.Success {
		t.Fatalf("Success = false, want degenerate success")
	}
	if out.Message == "" {
		t.Fatalf("Message empty, want explanation of empty portfolio")
	}
	if len(out.RiskFlags) != 0 {
		t.Fatalf("RiskFlags = %v, want none", out.RiskFlags)
	}
}

func TestRiskAssessmentConcentration(t *testing.T) {
	tc := newToolContext(stubPortfolio{details: details(
		upstream.Holding{Symbol: "AAPL", AssetClass: "EQUITY", Sector: "Technology", Value: 7000},
		upstream.Holding{Symbol: "VTI", AssetClass: "EQUITY", Sector: "Diversified", Value: 3000},
	)}, stubOrders{})

	var out RiskResult
	if err := json.Unmarshal([]byte(runRiskAssessment(context.Background(), tc)), &out); err != nil {
		t.Fatalf("unmarshal risk result: %v", err)
	}
	if out.Top3Concentration != 100 {
		t.Fatalf("Top3Concentration = %v, want 100", out.Top3Concentration)
	}
	if out.PositionWeights[0].Symbol != "AAPL" || out.PositionWeights[0].Percent != 70 {
		t.Fatalf("PositionWeights[0] = %+v, want AAPL at 70%%", out.PositionWeights[0])
	}
	if out.DiversificationScore != "Poor" {
		t.Fatalf("DiversificationScore = %q, want Poor", out.DiversificationScore)
	}
}

func TestCostBasisBuySell(t *testing.T) {
	basis := costBasisBySymbol([]upstream.Activity{
		{Type: upstream.ActivityBuy, Symbol: "AAPL", Quantity: 10, UnitPrice: 100, Fee: 5},
		{Type: upstream.ActivitySell, Symbol: "AAPL", Quantity: 4, UnitPrice: 120, Fee: 3},
	})

	b := basis["AAPL"]
	if b.Quantity != 6 {
		t.Fatalf("Quantity = %v, want 6", b.Quantity)
	}
	// Sell proceeds reduce cost; sell fees do not.
	if got := b.CostBasis(); got != 525 {
		t.Fatalf("CostBasis() = %v, want 525", got)
	}
}

func TestCostBasisOrderIndependent(t *testing.T) {
	forward := []upstream.Activity{
		{Type: upstream.ActivityBuy, Symbol: "VTI", Quantity: 8, UnitPrice: 200, Fee: 2},
		{Type: upstream.ActivitySell, Symbol: "VTI", Quantity: 3, UnitPrice: 240},
		{Type: upstream.ActivityBuy, Symbol: "VTI", Quantity: 2, UnitPrice: 250, Fee: 1},
	}
	reversed := []upstream.Activity{forward[2], forward[1], forward[0]}

	a := costBasisBySymbol(forward)["VTI"]
	b := costBasisBySymbol(reversed)["VTI"]
	if a != b {
		t.Fatalf("basis differs by order: %+v vs %+v", a, b)
	}
}

func TestTaxEstimateDefaultRate(t *testing.T) {
	tc := newToolContext(
		stubPortfolio{details: details(upstream.Holding{Symbol: "AAPL", Value: 1900})},
		stubOrders{activities: []upstream.Activity{
			{Type: upstream.ActivityBuy, Symbol: "AAPL", Quantity: 10, UnitPrice: 100, Fee: 0, Date: time.Now()},
		}},
	)

	var out TaxResult
	if err := json.Unmarshal([]byte(runTaxEstimate(context.Background(), tc, &TaxInput{})), &out); err != nil {
		t.Fatalf("unmarshal tax result: %v", err)
	}
	if out.TaxRate != 15 {
		t.Fatalf("TaxRate = %v, want 15", out.TaxRate)
	}
	if len(out.Positions) != 1 {
		t.Fatalf("Positions = %+v, want 1", out.Positions)
	}
	pos := out.Positions[0]
	if pos.UnrealizedGain != 900 {
		t.Fatalf("UnrealizedGain = %v, want 900", pos.UnrealizedGain)
	}
	if pos.EstimatedTax != 135 {
		t.Fatalf("EstimatedTax = %v, want 135", pos.EstimatedTax)
	}
	if pos.GainPercent != "90.00%" {
		t.Fatalf("GainPercent = %q, want 90.00%%", pos.GainPercent)
	}
	if out.Disclaimer != TaxDisclaimer {
		t.Fatalf("Disclaimer = %q", out.Disclaimer)
	}
}

func TestTaxEstimateCustomRateAndLossNotTaxed(t *testing.T) {
	tc := newToolContext(
		stubPortfolio{details: details(
			upstream.Holding{Symbol: "AAPL", Value: 1900},
			upstream.Holding{Symbol: "VTI", Value: 800},
		)},
		stubOrders{activities: []upstream.Activity{
			{Type: upstream.ActivityBuy, Symbol: "AAPL", Quantity: 10, UnitPrice: 100},
			{Type: upstream.ActivityBuy, Symbol: "VTI", Quantity: 5, UnitPrice: 200},
		}},
	)

	var out TaxResult
	if err := json.Unmarshal([]byte(runTaxEstimate(context.Background(), tc, &TaxInput{TaxRate: 20})), &out); err != nil {
		t.Fatalf("unmarshal tax result: %v", err)
	}
	if out.TaxRate != 20 {
		t.Fatalf("TaxRate = %v, want 20", out.TaxRate)
	}
	// AAPL gains 900 taxed at 20%; VTI's 200 loss owes nothing.
	if out.Totals.EstimatedTax != 180 {
		t.Fatalf("Totals.EstimatedTax = %v, want 180", out.Totals.EstimatedTax)
	}
	if out.Totals.UnrealizedGain != 700 {
		t.Fatalf("Totals.UnrealizedGain = %v, want 700", out.Totals.UnrealizedGain)
	}
}

func TestTaxEstimateZeroCostBasis(t *testing.T) {
	tc := newToolContext(
		stubPortfolio{details: details(upstream.Holding{Symbol: "GIFT", Value: 500})},
		stubOrders{activities: []upstream.Activity{
			{Type: upstream.ActivityBuy, Symbol: "GIFT", Quantity: 5, UnitPrice: 0},
		}},
	)

	var out TaxResult
	if err := json.Unmarshal([]byte(runTaxEstimate(context.Background(), tc, &TaxInput{})), &out); err != nil {
		t.Fatalf("unmarshal tax result: %v", err)
	}
	if out.Positions[0].GainPercent != "N/A" {
		t.Fatalf("GainPercent = %q, want N/A with zero cost basis", out.Positions[0].GainPercent)
	}
}

func TestTaxEstimateSoldOutPositionExcluded(t *testing.T) {
	tc := newToolContext(
		stubPortfolio{details: details(upstream.Holding{Symbol: "AAPL", Value: 1900})},
		stubOrders{activities: []upstream.Activity{
			{Type: upstream.ActivityBuy, Symbol: "AAPL", Quantity: 10, UnitPrice: 100},
			{Type: upstream.ActivityBuy, Symbol: "OLD", Quantity: 3, UnitPrice: 50},
			{Type: upstream.ActivitySell, Symbol: "OLD", Quantity: 3, UnitPrice: 60},
		}},
	)

	var out TaxResult
	if err := json.Unmarshal([]byte(runTaxEstimate(context.Background(), tc, &TaxInput{})), &out); err != nil {
		t.Fatalf("unmarshal tax result: %v", err)
	}
	if len(out.Positions) != 1 || out.Positions[0].Symbol != "AAPL" {
		t.Fatalf("Positions = %+v, want AAPL only", out.Positions)
	}
}

func TestTaxEstimateUpstreamError(t *testing.T) {
	tc := newToolContext(stubPortfolio{details: details()}, stubOrders{err: errors.New("ledger unavailable")})

	result := runTaxEstimate(context.Background(), tc, &TaxInput{})
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal([]byte(result), &out); err != nil {
		t.Fatalf("unmarshal failure payload: %v", err)
	}
	if out.Success {
		t.Fatalf("Success = true on ledger error")
	}
}
