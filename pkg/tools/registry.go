// Package tools provides the built-in tool catalog for the financial agent.
// The catalog is fixed: the orchestration loop only ever dispatches through
// tools registered here.
package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/tool"
)

// ToolID identifies a built-in tool
type ToolID string

// Tool identifiers. These names are part of the model-facing contract.
const (
	ToolPortfolioSummary   ToolID = "portfolio_summary"
	ToolMarketData         ToolID = "market_data"
	ToolTransactionHistory ToolID = "transaction_history"
	ToolRiskAssessment     ToolID = "risk_assessment"
	ToolTaxEstimate        ToolID = "tax_estimate"
)

// ToolCategory represents the category of a tool
type ToolCategory string

// Tool categories
const (
	CategoryPortfolio ToolCategory = "portfolio"
	CategoryMarket    ToolCategory = "market"
	CategoryOrders    ToolCategory = "orders"
)

// ToolDefinition describes a built-in tool
type ToolDefinition struct {
	ID          ToolID       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
}

// ToolFactory is a function that creates a tool instance bound to a request
// context.
type ToolFactory func(ctx *ToolContext) tool.InvokableTool

// Registry manages built-in tools
type Registry struct {
	definitions map[ToolID]ToolDefinition
	factories   map[ToolID]ToolFactory
	mu          sync.RWMutex
}

// Global registry instance
var globalRegistry = &Registry{
	definitions: make(map[ToolID]ToolDefinition),
	factories:   make(map[ToolID]ToolFactory),
}

// Register registers a tool with its definition and factory
func Register(def ToolDefinition, factory ToolFactory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	globalRegistry.definitions[def.ID] = def
	globalRegistry.factories[def.ID] = factory
}

// GetTool returns an invokable tool by ID
func GetTool(id ToolID, ctx *ToolContext) (tool.InvokableTool, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	factory, exists := globalRegistry.factories[id]
	if !exists {
		return nil, fmt.Errorf("unknown tool: %s", id)
	}
	return factory(ctx), nil
}

// GetToolDefinition returns a tool definition by ID
func GetToolDefinition(id ToolID) (ToolDefinition, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	def, ok := globalRegistry.definitions[id]
	return def, ok
}

// ListToolDefinitions returns all available tool definitions sorted by
// category and name
func ListToolDefinitions() []ToolDefinition {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolDefinition, 0, len(globalRegistry.definitions))
	for _, def := range globalRegistry.definitions {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// GetToolsByIDs returns tools for specific IDs, in the given order
func GetToolsByIDs(ids []ToolID, ctx *ToolContext) []tool.InvokableTool {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	var tools []tool.InvokableTool
	for _, id := range ids {
		if factory, ok := globalRegistry.factories[id]; ok {
			tools = append(tools, factory(ctx))
		}
	}
	return tools
}

// CatalogIDs returns the fixed tool catalog exposed to the model.
func CatalogIDs() []ToolID {
	return []ToolID{
		ToolPortfolioSummary,
		ToolMarketData,
		ToolTransactionHistory,
		ToolRiskAssessment,
		ToolTaxEstimate,
	}
}

// IsRegistered checks if a tool ID is registered
func IsRegistered(id ToolID) bool {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	_, exists := globalRegistry.definitions[id]
	return exists
}
