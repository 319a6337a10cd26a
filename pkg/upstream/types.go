// Package upstream provides typed clients for the portfolio engine, the
// symbol lookup service, and the order ledger. The agent tools consume these
// through the narrow interfaces declared in pkg/tools.
package upstream

import "time"

// Holding is one position in a user's portfolio.
type Holding struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Currency      string  `json:"currency"`
	AssetClass    string  `json:"assetClass"`
	AssetSubClass string  `json:"assetSubClass"`
	Sector        string  `json:"sector,omitempty"`
	Allocation    float64 `json:"allocationInPercentage"`
	MarketPrice   float64 `json:"marketPrice"`
	Quantity      float64 `json:"quantity"`
	Value         float64 `json:"valueInBaseCurrency"`
}

// PortfolioDetails is the holdings snapshot returned by the portfolio engine,
// keyed by symbol.
type PortfolioDetails struct {
	Holdings map[string]Holding `json:"holdings"`
	Currency string             `json:"currency"`
}

// SymbolMatch is one result from the symbol lookup service.
type SymbolMatch struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	DataSource    string `json:"dataSource"`
	AssetClass    string `json:"assetClass,omitempty"`
	AssetSubClass string `json:"assetSubClass,omitempty"`
}

// Activity types recorded by the order ledger.
const (
	ActivityBuy  = "BUY"
	ActivitySell = "SELL"
)

// Activity is one BUY/SELL entry from the order ledger.
type Activity struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unitPrice"`
	Fee       float64   `json:"fee"`
	Currency  string    `json:"currency"`
	Date      time.Time `json:"date"`
}
