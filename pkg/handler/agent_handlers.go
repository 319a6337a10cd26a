// Agent HTTP handlers - chat and conversation management
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quantfolio/quantfolio/pkg/event"
	"github.com/quantfolio/quantfolio/pkg/models"
	"github.com/quantfolio/quantfolio/pkg/service"
)

// AgentHandler handles agent chat and conversation HTTP requests
type AgentHandler struct {
	agentService *service.AgentService
	store        *service.ChatStoreService
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agentService *service.AgentService, store *service.ChatStoreService) *AgentHandler {
	return &AgentHandler{
		agentService: agentService,
		store:        store,
	}
}

// RegisterRoutes registers agent routes
func (h *AgentHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/agent/chat", h.Chat)

	conversations := r.Group("/agent/conversations")
	{
		conversations.GET("", h.ListConversations)
		conversations.GET("/:id", h.GetConversation)
		conversations.DELETE("/:id", h.DeleteConversation)
	}
}

// Chat runs one agent turn
// POST /api/v1/agent/chat
func (h *AgentHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.agentService.Chat(c.Request.Context(), c.GetString("userID"), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoMessages):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "agent turn failed"})
		}
		return
	}
	c.JSON(http.StatusOK, response)
}

// ListConversations lists the user's conversations
// GET /api/v1/agent/conversations
func (h *AgentHandler) ListConversations(c *gin.Context) {
	summaries, err := h.store.ListConversations(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, models.ConversationListResponse{Conversations: summaries})
}

// GetConversation returns one conversation with its messages
// GET /api/v1/agent/conversations/:id
func (h *AgentHandler) GetConversation(c *gin.Context) {
	userID := c.GetString("userID")

	conv, err := h.store.GetConversation(c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	messages, err := h.store.GetMessages(conv.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, models.ConversationDetailResponse{Conversation: *conv, Messages: messages})
}

// DeleteConversation deletes a conversation and its messages
// DELETE /api/v1/agent/conversations/:id
func (h *AgentHandler) DeleteConversation(c *gin.Context) {
	userID := c.GetString("userID")
	id := c.Param("id")

	if err := h.store.DeleteConversation(id, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete conversation"})
		return
	}
	event.Emit(event.ConversationDeletedEvent{ConversationID: id, UserID: userID})
	c.JSON(http.StatusOK, gin.H{"success": true})
}
