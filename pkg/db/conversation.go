// Database models for agent chat conversations
package db

import "time"

// Conversation represents one user's chat thread with the agent.
// A conversation exclusively owns its messages; deleting it removes them.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"index;size:64;not null"`
	Title     string    `json:"title" gorm:"size:200;default:'New conversation'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// DefaultConversationTitle is used when the first user message has no text content.
const DefaultConversationTitle = "New conversation"
