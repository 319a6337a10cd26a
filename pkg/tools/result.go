package tools

import (
	"encoding/json"
	"fmt"
)

// FailureJSON formats a tool failure in the uniform result shape. Tool
// failures are payloads the model observes, never Go errors.
func FailureJSON(format string, a ...any) string {
	b, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   fmt.Sprintf(format, a...),
	})
	return string(b)
}

// MarshalResult serializes a success payload, falling back to a failure
// payload if the value cannot be marshaled.
func MarshalResult(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return FailureJSON("failed to serialize tool result: %v", err)
	}
	return string(b)
}
