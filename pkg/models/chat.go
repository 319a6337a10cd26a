// API types for the agent chat endpoints.
package models

import (
	"github.com/quantfolio/quantfolio/pkg/db"
	"github.com/quantfolio/quantfolio/pkg/verify"
)

// ========== Type aliases for database types ==========
// These allow other packages to use models.Message instead of db.Message

type Conversation = db.Conversation
type Message = db.Message
type ToolCallRecord = db.ToolCallRecord
type ToolCallRecords = db.ToolCallRecords

// ========== Constant aliases from db package ==========

const (
	RoleUser      = db.RoleUser
	RoleAssistant = db.RoleAssistant

	DefaultConversationTitle = db.DefaultConversationTitle
)

// ========== Agent chat API types ==========

// ChatRequest is the POST /agent/chat request body. Content is usually a
// string; clients that send structured content get it serialized verbatim.
type ChatRequest struct {
	ConversationID string        `json:"conversationId,omitempty"`
	Messages       []ChatMessage `json:"messages"`
}

// ChatMessage is one message in a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ChatResponse is the POST /agent/chat response body.
type ChatResponse struct {
	ConversationID string           `json:"conversationId"`
	Message        string           `json:"message"`
	ToolCalls      []ToolCallRecord `json:"toolCalls"`
	Verification   verify.Report    `json:"verification"`
}

// ========== Conversation API types ==========

// ConversationSummary is one conversation in a listing, with its message count.
type ConversationSummary struct {
	Conversation
	MessageCount int64 `json:"messageCount"`
}

// ConversationListResponse is the response for listing conversations.
type ConversationListResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}

// ConversationDetailResponse is one conversation with its full message history.
type ConversationDetailResponse struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}
