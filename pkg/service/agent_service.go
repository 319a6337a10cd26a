// Agent orchestration - drives the model/tool loop for one chat turn.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qianfan"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/quantfolio/quantfolio/pkg/config"
	"github.com/quantfolio/quantfolio/pkg/event"
	"github.com/quantfolio/quantfolio/pkg/models"
	"github.com/quantfolio/quantfolio/pkg/tools"
	"github.com/quantfolio/quantfolio/pkg/utils"
	"github.com/quantfolio/quantfolio/pkg/verify"
)

// maxAgentSteps bounds the model/tool loop. When the ceiling is reached the
// turn ends with whatever text the model last produced.
const maxAgentSteps = 5

// conversationTitleLimit bounds auto-generated conversation titles, in runes.
const conversationTitleLimit = 60

const systemPrompt = `You are a financial assistant for a personal portfolio manager. You answer questions about the user's holdings, transactions, risk and taxes using the available tools, never from memory.

Tool routing:
- Questions about what the user owns, portfolio composition, allocation or weighting: use portfolio_summary.
- Questions about cost basis, unrealized gains or taxes: use tax_estimate.
- Questions about how risky, concentrated or diversified the portfolio is: use risk_assessment.
- Looking up a ticker, company or fund by name: use market_data.
- Questions about past trades, buys and sells: use transaction_history.

Rules:
- Only mention symbols that appear in tool results. Never invent tickers, prices or quantities.
- When a tool reports an error, tell the user what went wrong instead of guessing.
- Keep answers concise and concrete, with actual numbers from the tool results.
- Tax figures are estimates, not advice; say so when you present them.`

// AgentService runs agent chat turns: it owns conversation resolution, the
// orchestration loop, verification and persistence of both sides of the turn.
type AgentService struct {
	store     *ChatStoreService
	cfg       *config.AppConfig
	portfolio tools.PortfolioService
	market    tools.MarketDataService
	orders    tools.OrderService
	logger    *slog.Logger

	// chatModel overrides config-based model construction when set.
	chatModel einoModel.ToolCallingChatModel
}

// NewAgentService creates a new agent service.
func NewAgentService(store *ChatStoreService, cfg *config.AppConfig, portfolio tools.PortfolioService, market tools.MarketDataService, orders tools.OrderService) *AgentService {
	return &AgentService{
		store:     store,
		cfg:       cfg,
		portfolio: portfolio,
		market:    market,
		orders:    orders,
		logger:    utils.GetLogger(),
	}
}

// getChatModel constructs the chat model for the configured provider.
func (s *AgentService) getChatModel(ctx context.Context) (einoModel.ToolCallingChatModel, error) {
	if s.chatModel != nil {
		return s.chatModel, nil
	}

	modelConfig := s.cfg.Model

	switch modelConfig.Provider {
	case "openai", "custom":
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: modelConfig.BaseURL,
			APIKey:  modelConfig.APIKey,
			Model:   modelConfig.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
		}
		return chatModel, nil

	case "ark":
		timeout := time.Second * 600
		retries := 3
		chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:    modelConfig.BaseURL,
			Region:     modelConfig.Region,
			Timeout:    &timeout,
			RetryTimes: &retries,
			APIKey:     modelConfig.APIKey,
			Model:      modelConfig.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Ark model: %w", err)
		}
		return chatModel, nil

	case "deepseek":
		chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			BaseURL: modelConfig.BaseURL,
			APIKey:  modelConfig.APIKey,
			Model:   modelConfig.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create DeepSeek model: %w", err)
		}
		return chatModel, nil

	case "anthropic":
		baseURL := modelConfig.BaseURL
		chatModel, err := claude.NewChatModel(ctx, &claude.Config{
			BaseURL:   &baseURL,
			APIKey:    modelConfig.APIKey,
			Model:     modelConfig.Model,
			MaxTokens: 8192,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Claude model: %w", err)
		}
		return chatModel, nil

	case "ollama":
		chatModel, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: modelConfig.BaseURL,
			Model:   modelConfig.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama model: %w", err)
		}
		return chatModel, nil

	case "google":
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  modelConfig.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client: genaiClient,
			Model:  modelConfig.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini model: %w", err)
		}
		return chatModel, nil

	case "qianfan":
		qianfanConfig := qianfan.GetQianfanSingletonConfig()
		qianfanConfig.BaseURL = modelConfig.BaseURL
		qianfanConfig.BearerToken = modelConfig.APIKey
		chatModel, err := qianfan.NewChatModel(ctx, &qianfan.ChatModelConfig{
			Model: modelConfig.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Qianfan model: %w", err)
		}
		return chatModel, nil

	case "qwen":
		chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
			BaseURL: modelConfig.BaseURL,
			APIKey:  modelConfig.APIKey,
			Model:   modelConfig.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Qwen model: %w", err)
		}
		return chatModel, nil

	default:
		return nil, fmt.Errorf("unsupported model provider: %s", modelConfig.Provider)
	}
}

// Chat runs one agent turn for the user: resolves the conversation, persists
// the user message, drives the orchestration loop, verifies the answer and
// persists the assistant message.
func (s *AgentService) Chat(ctx context.Context, userID string, req *models.ChatRequest) (*models.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	conv, err := s.resolveConversation(userID, req)
	if err != nil {
		return nil, err
	}

	// A first turn may carry prior context in the request; persist the whole
	// array so the rebuilt history includes it. Continuations carry only the
	// newest message, earlier ones are already stored.
	incoming := req.Messages[len(req.Messages)-1:]
	if req.ConversationID == "" {
		incoming = req.Messages
	}
	for _, msg := range incoming {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		if err := s.store.AppendMessage(&models.Message{
			ConversationID: conv.ID,
			Role:           msg.Role,
			Content:        contentText(msg.Content),
		}); err != nil {
			return nil, fmt.Errorf("failed to save message: %w", err)
		}
	}

	history, err := s.buildHistory(conv.ID)
	if err != nil {
		return nil, err
	}

	toolCtx := tools.NewToolContext(s.portfolio, s.market, s.orders, userID)
	baseTools := invokableToBase(tools.GetToolsByIDs(tools.CatalogIDs(), toolCtx))

	answer, err := s.runAgentLoop(ctx, conv.ID, history, baseTools)
	if err != nil {
		return nil, err
	}

	invocations := toolCtx.Recorder.Invocations()
	report := verify.Run(invocations, answer)

	records := make(models.ToolCallRecords, 0, len(invocations))
	for _, inv := range invocations {
		records = append(records, models.ToolCallRecord{Tool: inv.Tool, Args: inv.Args})
	}

	if err := s.store.AppendMessage(&models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        answer,
		ToolCalls:      records,
	}); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}
	if err := s.store.TouchConversation(conv.ID); err != nil {
		s.logger.Warn("Failed to touch conversation", "conversationID", conv.ID, "error", err)
	}

	event.Emit(event.TurnCompletedEvent{
		ConversationID: conv.ID,
		UserID:         userID,
		ToolCalls:      len(records),
		Verified:       report.Verified,
	})

	return &models.ChatResponse{
		ConversationID: conv.ID,
		Message:        answer,
		ToolCalls:      records,
		Verification:   report,
	}, nil
}

// resolveConversation loads the requested conversation or creates a new one
// titled after the first user message.
func (s *AgentService) resolveConversation(userID string, req *models.ChatRequest) (*models.Conversation, error) {
	if req.ConversationID != "" {
		return s.store.GetConversation(req.ConversationID, userID)
	}

	conv, err := s.store.CreateConversation(userID, conversationTitle(req.Messages))
	if err != nil {
		return nil, err
	}
	event.Emit(event.ConversationCreatedEvent{ConversationID: conv.ID, UserID: userID})
	return conv, nil
}

// runAgentLoop drives the bounded model/tool loop. Hitting the step ceiling is
// not an error: the model keeps requesting tools, and the best available text
// is returned as the answer.
func (s *AgentService) runAgentLoop(ctx context.Context, conversationID string, history []*schema.Message, baseTools []tool.BaseTool) (string, error) {
	chatModel, err := s.getChatModel(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get chat model: %w", err)
	}

	toolsInfo := make([]*schema.ToolInfo, 0, len(baseTools))
	for _, t := range baseTools {
		info, err := t.Info(ctx)
		if err != nil {
			s.logger.Warn("Failed to get tool info", "error", err)
			continue
		}
		toolsInfo = append(toolsInfo, info)
	}
	chatModel, err = chatModel.WithTools(toolsInfo)
	if err != nil {
		return "", fmt.Errorf("failed to bind tools: %w", err)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{Tools: baseTools})
	if err != nil {
		return "", fmt.Errorf("failed to create tools node: %w", err)
	}

	var lastText string
	for step := 1; step <= maxAgentSteps; step++ {
		response, err := chatModel.Generate(ctx, history)
		if err != nil {
			return "", fmt.Errorf("failed to generate response: %w", err)
		}
		history = append(history, response)
		if response.Content != "" {
			lastText = response.Content
		}

		if len(response.ToolCalls) == 0 {
			return response.Content, nil
		}

		for _, tc := range response.ToolCalls {
			event.Emit(event.ToolCallStartedEvent{ConversationID: conversationID, Tool: tc.Function.Name, Step: step})
		}
		results, err := toolsNode.Invoke(ctx, response)
		if err != nil {
			return "", fmt.Errorf("failed to execute tools: %w", err)
		}
		for _, tc := range response.ToolCalls {
			event.Emit(event.ToolCallCompletedEvent{ConversationID: conversationID, Tool: tc.Function.Name, Step: step})
		}
		history = append(history, results...)
	}

	s.logger.Warn("Agent step ceiling reached", "conversationID", conversationID, "steps", maxAgentSteps)
	return lastText, nil
}

// buildHistory converts the stored conversation into model messages, system
// prompt first.
func (s *AgentService) buildHistory(conversationID string) ([]*schema.Message, error) {
	stored, err := s.store.GetMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	history := make([]*schema.Message, 0, len(stored)+1)
	history = append(history, schema.SystemMessage(systemPrompt))
	for _, msg := range stored {
		switch msg.Role {
		case models.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case models.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history, nil
}

// conversationTitle derives a title from the first user message, truncated to
// conversationTitleLimit runes.
func conversationTitle(messages []models.ChatMessage) string {
	for _, msg := range messages {
		if msg.Role != models.RoleUser {
			continue
		}
		text, ok := msg.Content.(string)
		if !ok {
			break
		}
		text = strings.TrimSpace(text)
		if text == "" {
			break
		}
		runes := []rune(text)
		if len(runes) > conversationTitleLimit {
			return string(runes[:conversationTitleLimit])
		}
		return text
	}
	return models.DefaultConversationTitle
}

// contentText serializes message content for storage. Strings pass through;
// structured content is stored as JSON.
func contentText(content any) string {
	if text, ok := content.(string); ok {
		return text
	}
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(data)
}

func invokableToBase(invokables []tool.InvokableTool) []tool.BaseTool {
	base := make([]tool.BaseTool, 0, len(invokables))
	for _, t := range invokables {
		base = append(base, t)
	}
	return base
}
