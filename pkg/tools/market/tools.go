// Package market provides the symbol lookup tool for the financial agent.
package market

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/quantfolio/quantfolio/pkg/tools"
)

const maxMatches = 5

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          tools.ToolMarketData,
		Name:        "Market Data",
		Description: "Search tradable symbols by name or ticker",
		Category:    tools.CategoryMarket,
	}, NewMarketDataTool)
}

// Match is one lookup result as reported to the model.
type Match struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	DataSource    string `json:"dataSource"`
	AssetClass    string `json:"assetClass,omitempty"`
	AssetSubClass string `json:"assetSubClass,omitempty"`
}

// LookupResult is the market_data success payload.
type LookupResult struct {
	Success bool    `json:"success"`
	Query   string  `json:"query"`
	Matches []Match `json:"matches"`
}

// LookupInput is the free-text search query.
type LookupInput struct {
	Query string `json:"query"`
}

// NewMarketDataTool creates the market_data tool.
func NewMarketDataTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: string(tools.ToolMarketData),
		Desc: "Search for tradable symbols (stocks, ETFs, funds) by company name or ticker. Use this " +
			"when the user asks about an instrument that may not be in their portfolio, or wants to " +
			"find a symbol. Returns up to 5 matches.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Required: true, Desc: "Free-text search query, e.g. a company name or ticker"},
		}),
	}, func(ctx context.Context, input *LookupInput) (string, error) {
		result := runLookup(ctx, tc, input)
		tc.Recorder.Record(string(tools.ToolMarketData), input, result)
		return result, nil
	})
}

func runLookup(ctx context.Context, tc *tools.ToolContext, input *LookupInput) string {
	matches, err := tc.Market.SearchSymbols(ctx, tc.UserID, input.Query)
	if err != nil {
		return tools.FailureJSON("failed to look up symbols: %v", err)
	}
	if len(matches) == 0 {
		return tools.FailureJSON("no matching symbols found for %q", input.Query)
	}
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	out := LookupResult{Success: true, Query: input.Query, Matches: make([]Match, 0, len(matches))}
	for _, m := range matches {
		out.Matches = append(out.Matches, Match{
			Symbol:        m.Symbol,
			Name:          m.Name,
			Currency:      m.Currency,
			DataSource:    m.DataSource,
			AssetClass:    m.AssetClass,
			AssetSubClass: m.AssetSubClass,
		})
	}
	return tools.MarshalResult(out)
}
