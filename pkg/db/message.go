// Database models for agent chat messages
package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single persisted conversation turn.
// Messages are immutable once written.
type Message struct {
	ID             string `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string `json:"conversation_id" gorm:"index;size:36;not null"`

	Role    string `json:"role" gorm:"size:20;not null"` // user, assistant
	Content string `json:"content" gorm:"type:text"`

	// ToolCalls records which tools the agent invoked while producing this
	// message (assistant turns only). Raw tool results are not persisted.
	ToolCalls ToolCallRecords `json:"tool_calls,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

func (*Message) TableName() string {
	return "messages"
}

// ToolCallRecord is a compact summary of one tool invocation: the tool name
// and the arguments it was called with, in call order.
type ToolCallRecord struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args,omitempty"`
}

// ToolCallRecords is stored as a JSON text column.
type ToolCallRecords []ToolCallRecord

// Value implements driver.Valuer.
func (r ToolCallRecords) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *ToolCallRecords) Scan(value any) error {
	if value == nil {
		*r = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("unsupported tool_calls column type %T", value)
	}
}
