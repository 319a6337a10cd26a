// Package orders provides the transaction history tool for the financial agent.
package orders

import (
	"context"
	"sort"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/quantfolio/quantfolio/pkg/tools"
)

const defaultLimit = 20

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          tools.ToolTransactionHistory,
		Name:        "Transaction History",
		Description: "List the user's most recent buy/sell transactions",
		Category:    tools.CategoryOrders,
	}, NewTransactionHistoryTool)
}

// Transaction is one ledger entry as reported to the model.
type Transaction struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unitPrice"`
	Fee       float64   `json:"fee"`
	Currency  string    `json:"currency"`
	Date      time.Time `json:"date"`
}

// HistoryResult is the transaction_history success payload. Total counts all
// transactions on record, not just the returned page.
type HistoryResult struct {
	Success      bool          `json:"success"`
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
}

// HistoryInput optionally bounds the number of returned transactions.
type HistoryInput struct {
	Limit int `json:"limit,omitempty"`
}

// NewTransactionHistoryTool creates the transaction_history tool.
func NewTransactionHistoryTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: string(tools.ToolTransactionHistory),
		Desc: "List the user's buy and sell transactions, newest first. Use this when the user asks " +
			"what they bought or sold, or about recent account activity.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"limit": {Type: schema.Integer, Required: false, Desc: "Maximum number of transactions to return (default: 20)"},
		}),
	}, func(ctx context.Context, input *HistoryInput) (string, error) {
		result := runHistory(ctx, tc, input)
		tc.Recorder.Record(string(tools.ToolTransactionHistory), input, result)
		return result, nil
	})
}

func runHistory(ctx context.Context, tc *tools.ToolContext, input *HistoryInput) string {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	activities, err := tc.Orders.GetActivities(ctx, tc.UserID)
	if err != nil {
		return tools.FailureJSON("failed to fetch transaction history: %v", err)
	}

	sort.Slice(activities, func(i, j int) bool {
		return activities[i].Date.After(activities[j].Date)
	})

	out := HistoryResult{Success: true, Total: len(activities), Transactions: []Transaction{}}
	for i, a := range activities {
		if i >= limit {
			break
		}
		out.Transactions = append(out.Transactions, Transaction{
			Type:      a.Type,
			Symbol:    a.Symbol,
			Quantity:  a.Quantity,
			UnitPrice: a.UnitPrice,
			Fee:       a.Fee,
			Currency:  a.Currency,
			Date:      a.Date,
		})
	}
	return tools.MarshalResult(out)
}
