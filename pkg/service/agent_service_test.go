package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/quantfolio/quantfolio/pkg/config"
	"github.com/quantfolio/quantfolio/pkg/models"
	_ "github.com/quantfolio/quantfolio/pkg/tools/all"
	"github.com/quantfolio/quantfolio/pkg/upstream"
)

// scriptedChatModel replays a fixed sequence of responses. When the script is
// exhausted the last response repeats, which lets tests simulate a model that
// never stops requesting tools.
type scriptedChatModel struct {
	mu        sync.Mutex
	script    []*schema.Message
	calls     int
	lastInput []*schema.Message
}

func (m *scriptedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastInput = input
	if len(m.script) == 0 {
		return nil, errors.New("no scripted responses")
	}
	idx := m.calls
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.calls++
	return m.script[idx], nil
}

func (m *scriptedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (m *scriptedChatModel) WithTools(tools []*schema.ToolInfo) (einoModel.ToolCallingChatModel, error) {
	return m, nil
}

func (m *scriptedChatModel) generateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *scriptedChatModel) lastGenerateInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInput
}

type stubPortfolio struct {
	details *upstream.PortfolioDetails
	err     error
}

func (s stubPortfolio) GetPortfolioDetails(ctx context.Context, userID string) (*upstream.PortfolioDetails, error) {
	return s.details, s.err
}

type stubMarket struct {
	matches []upstream.SymbolMatch
	err     error
}

func (s stubMarket) SearchSymbols(ctx context.Context, userID, query string) ([]upstream.SymbolMatch, error) {
	return s.matches, s.err
}

type stubOrders struct {
	activities []upstream.Activity
	err        error
}

func (s stubOrders) GetActivities(ctx context.Context, userID string) ([]upstream.Activity, error) {
	return s.activities, s.err
}

func testHoldings() *upstream.PortfolioDetails {
	return &upstream.PortfolioDetails{
		Currency: "USD",
		Holdings: map[string]upstream.Holding{
			"AAPL": {Symbol: "AAPL", Name: "Apple Inc.", AssetClass: "EQUITY", Sector: "Technology", Allocation: 60, MarketPrice: 190, Quantity: 10, Value: 1900},
			"VTI":  {Symbol: "VTI", Name: "Vanguard Total Stock Market ETF", AssetClass: "EQUITY", Sector: "Diversified", Allocation: 40, MarketPrice: 250, Quantity: 5, Value: 1250},
		},
	}
}

func newTestAgent(t *testing.T, model einoModel.ToolCallingChatModel) (*AgentService, *ChatStoreService) {
	t.Helper()
	store := newTestStore(t)
	svc := NewAgentService(store, &config.AppConfig{}, stubPortfolio{details: testHoldings()}, stubMarket{}, stubOrders{})
	svc.chatModel = model
	return svc, store
}

func toolCallMessage(name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       "call-1",
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

func TestChatToolCallThenAnswer(t *testing.T) {
	model := &scriptedChatModel{script: []*schema.Message{
		toolCallMessage("portfolio_summary", "{}"),
		schema.AssistantMessage("Your portfolio is 60% AAPL and 40% VTI.", nil),
	}}
	svc, store := newTestAgent(t, model)

	resp, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "What is my allocation?"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Message != "Your portfolio is 60% AAPL and 40% VTI." {
		t.Fatalf("Message = %q", resp.Message)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Tool != "portfolio_summary" {
		t.Fatalf("ToolCalls = %+v, want one portfolio_summary call", resp.ToolCalls)
	}
	if !resp.Verification.Verified {
		t.Fatalf("Verification.Verified = false: %+v", resp.Verification.Checks)
	}
	if len(resp.Verification.Checks) != 3 {
		t.Fatalf("len(Checks) = %d, want 3", len(resp.Verification.Checks))
	}

	messages, err := store.GetMessages(resp.ConversationID)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want user + assistant", len(messages))
	}
	if messages[1].Role != models.RoleAssistant {
		t.Fatalf("messages[1].Role = %q, want assistant", messages[1].Role)
	}
	if len(messages[1].ToolCalls) != 1 {
		t.Fatalf("persisted ToolCalls = %+v, want 1 record", messages[1].ToolCalls)
	}
}

func TestChatHallucinatedSymbolFailsVerification(t *testing.T) {
	model := &scriptedChatModel{script: []*schema.Message{
		toolCallMessage("portfolio_summary", "{}"),
		schema.AssistantMessage("You should rotate out of AAPL into ZZZZ.", nil),
	}}
	svc, _ := newTestAgent(t, model)

	resp, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "Any suggestions?"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Verification.Verified {
		t.Fatalf("Verification.Verified = true, want false for unknown symbol")
	}
}

func TestChatStepCeilingTerminates(t *testing.T) {
	// The script never leaves tool-call mode, so the loop must stop on its own.
	model := &scriptedChatModel{script: []*schema.Message{
		toolCallMessage("portfolio_summary", "{}"),
	}}
	svc, _ := newTestAgent(t, model)

	resp, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "Loop forever"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v, want ceiling to end the turn cleanly", err)
	}
	if got := model.generateCalls(); got != maxAgentSteps {
		t.Fatalf("generate calls = %d, want %d", got, maxAgentSteps)
	}
	if resp.Message != "" {
		t.Fatalf("Message = %q, want empty when the model never produced text", resp.Message)
	}
	if len(resp.ToolCalls) != maxAgentSteps {
		t.Fatalf("len(ToolCalls) = %d, want %d", len(resp.ToolCalls), maxAgentSteps)
	}
}

func TestChatNoMessages(t *testing.T) {
	svc, _ := newTestAgent(t, &scriptedChatModel{})

	if _, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{}); err != ErrNoMessages {
		t.Fatalf("Chat() error = %v, want ErrNoMessages", err)
	}
}

func TestChatUnknownConversation(t *testing.T) {
	svc, _ := newTestAgent(t, &scriptedChatModel{})

	_, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{
		ConversationID: "does-not-exist",
		Messages:       []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
	})
	if err != ErrConversationNotFound {
		t.Fatalf("Chat() error = %v, want ErrConversationNotFound", err)
	}
}

func TestChatTitleFromFirstUserMessage(t *testing.T) {
	model := &scriptedChatModel{script: []*schema.Message{
		schema.AssistantMessage("Hello!", nil),
	}}
	svc, store := newTestAgent(t, model)

	long := strings.Repeat("x", 80)
	resp, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: long}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	conv, err := store.GetConversation(resp.ConversationID, "user-1")
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if len([]rune(conv.Title)) != conversationTitleLimit {
		t.Fatalf("len(Title) = %d runes, want %d", len([]rune(conv.Title)), conversationTitleLimit)
	}
	if !strings.HasPrefix(long, conv.Title) {
		t.Fatalf("Title = %q is not a prefix of the message", conv.Title)
	}
}

func TestChatNonStringContentGetsDefaultTitle(t *testing.T) {
	model := &scriptedChatModel{script: []*schema.Message{
		schema.AssistantMessage("Understood.", nil),
	}}
	svc, store := newTestAgent(t, model)

	resp, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: map[string]any{"type": "text", "text": "hi"}}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	conv, err := store.GetConversation(resp.ConversationID, "user-1")
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if conv.Title != models.DefaultConversationTitle {
		t.Fatalf("Title = %q, want %q", conv.Title, models.DefaultConversationTitle)
	}
}

func TestChatFirstTurnKeepsSuppliedHistory(t *testing.T) {
	model := &scriptedChatModel{script: []*schema.Message{
		schema.AssistantMessage("Your name is Pat.", nil),
	}}
	svc, store := newTestAgent(t, model)

	resp, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: "My name is Pat."},
			{Role: models.RoleAssistant, Content: "Nice to meet you, Pat."},
			{Role: models.RoleUser, Content: "What is my name?"},
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	input := model.lastGenerateInput()
	if len(input) != 4 {
		t.Fatalf("len(input) = %d, want system + 3 supplied messages", len(input))
	}
	if input[1].Content != "My name is Pat." {
		t.Fatalf("input[1].Content = %q, want first supplied message", input[1].Content)
	}
	if input[2].Role != schema.Assistant {
		t.Fatalf("input[2].Role = %q, want assistant", input[2].Role)
	}

	messages, err := store.GetMessages(resp.ConversationID)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("len(messages) = %d, want 3 supplied + 1 assistant reply", len(messages))
	}
}

func TestChatContinuesExistingConversation(t *testing.T) {
	model := &scriptedChatModel{script: []*schema.Message{
		schema.AssistantMessage("First answer.", nil),
	}}
	svc, store := newTestAgent(t, model)

	first, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "one"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	model.mu.Lock()
	model.script = []*schema.Message{schema.AssistantMessage("Second answer.", nil)}
	model.calls = 0
	model.mu.Unlock()

	second, err := svc.Chat(context.Background(), "user-1", &models.ChatRequest{
		ConversationID: first.ConversationID,
		Messages:       []models.ChatMessage{{Role: models.RoleUser, Content: "two"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("ConversationID = %q, want %q", second.ConversationID, first.ConversationID)
	}

	summaries, err := store.ListConversations("user-1")
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("len(summaries) = %d, want 1", len(summaries))
	}
	if summaries[0].MessageCount != 4 {
		t.Fatalf("MessageCount = %d, want 4", summaries[0].MessageCount)
	}
}
