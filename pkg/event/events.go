package event

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	ConversationCreated = "conversation.created"
	ConversationDeleted = "conversation.deleted"
	ToolCallStarted     = "agent.toolCallStarted"
	ToolCallCompleted   = "agent.toolCallCompleted"
	TurnCompleted       = "agent.turnCompleted"
)

// ============================================================================
// Conversation Events
// ============================================================================

// ConversationCreatedEvent is emitted when a conversation is created.
type ConversationCreatedEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (e ConversationCreatedEvent) EventName() string { return ConversationCreated }

// ConversationDeletedEvent is emitted when a conversation is deleted.
type ConversationDeletedEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (e ConversationDeletedEvent) EventName() string { return ConversationDeleted }

// ============================================================================
// Agent Events
// ============================================================================

// ToolCallStartedEvent is emitted when the agent invokes a tool.
type ToolCallStartedEvent struct {
	ConversationID string `json:"conversationId"`
	Tool           string `json:"tool"`
	Step           int    `json:"step"`
}

func (e ToolCallStartedEvent) EventName() string { return ToolCallStarted }

// ToolCallCompletedEvent is emitted when a tool invocation returns.
type ToolCallCompletedEvent struct {
	ConversationID string `json:"conversationId"`
	Tool           string `json:"tool"`
	Step           int    `json:"step"`
}

func (e ToolCallCompletedEvent) EventName() string { return ToolCallCompleted }

// TurnCompletedEvent is emitted when an agent turn finishes, verified or not.
type TurnCompletedEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	ToolCalls      int    `json:"toolCalls"`
	Verified       bool   `json:"verified"`
}

func (e TurnCompletedEvent) EventName() string { return TurnCompleted }
