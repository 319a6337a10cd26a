package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/quantfolio/quantfolio/pkg/upstream"
)

// PortfolioService fetches the current holdings snapshot for a user.
type PortfolioService interface {
	GetPortfolioDetails(ctx context.Context, userID string) (*upstream.PortfolioDetails, error)
}

// MarketDataService looks up tradable symbols by free-text query.
type MarketDataService interface {
	SearchSymbols(ctx context.Context, userID, query string) ([]upstream.SymbolMatch, error)
}

// OrderService fetches BUY/SELL activities from the order ledger.
type OrderService interface {
	GetActivities(ctx context.Context, userID string) ([]upstream.Activity, error)
}

// ToolContext provides the upstream services and request identity needed by
// tools. One ToolContext is allocated per chat call; the Recorder it carries
// is the request-scoped accumulator of tool invocations.
type ToolContext struct {
	Portfolio PortfolioService
	Market    MarketDataService
	Orders    OrderService

	// Authenticated user the call executes for.
	UserID string

	// Recorder collects invocations for the verification layer and for the
	// persisted tool-call summary.
	Recorder *Recorder
}

// NewToolContext creates a tool context for one chat call.
func NewToolContext(portfolio PortfolioService, market MarketDataService, orders OrderService, userID string) *ToolContext {
	return &ToolContext{
		Portfolio: portfolio,
		Market:    market,
		Orders:    orders,
		UserID:    userID,
		Recorder:  NewRecorder(),
	}
}

// Invocation is one recorded tool call: name, serialized arguments, and the
// raw result payload the model observed.
type Invocation struct {
	Tool   string
	Args   json.RawMessage
	Result string
}

// Recorder accumulates tool invocations in call order. It is allocated fresh
// per request and never shared across calls.
type Recorder struct {
	mu          sync.Mutex
	invocations []Invocation
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one invocation. args may be any JSON-marshalable value.
func (r *Recorder) Record(tool string, args any, result string) {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, Invocation{Tool: tool, Args: raw, Result: result})
}

// Invocations returns the recorded invocations in call order.
func (r *Recorder) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Invocation, len(r.invocations))
	copy(out, r.invocations)
	return out
}

// First returns the first invocation of the named tool.
func (r *Recorder) First(tool string) (Invocation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invocations {
		if inv.Tool == tool {
			return inv, true
		}
	}
	return Invocation{}, false
}
