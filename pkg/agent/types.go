package agent

import (
	"errors"
	"net"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// Role is the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to the model
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolSchema describes a tool offered to the model
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// PartType discriminates response parts
type PartType string

const (
	PartText    PartType = "text"
	PartToolUse PartType = "tool_use"
)

// Part is one element of a model response: either text or a tool use
type Part struct {
	Type  PartType       `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// TextPart builds a text part
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ToolUsePart builds a tool-use part
func ToolUsePart(id, name string, input map[string]any) Part {
	return Part{Type: PartToolUse, ID: id, Name: name, Input: input}
}

// Request is one inference request
type Request struct {
	Messages  []Message
	Tools     []ToolSchema
	Model     string
	MaxTokens int
	// Temperature is omitted from the request when nil.
	Temperature *float64
}

// Response is the parsed model reply. Messages echoes the request messages.
type Response struct {
	Messages []Message
	Parts    []Part
	Usage    *TokenUsage
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return retryableStatus(oaErr.StatusCode)
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return retryableStatus(anErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	// Network errors
	if strings.Contains(errMsg, "econnreset") || strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "etimedout") || strings.Contains(errMsg, "connection refused") {
		return true
	}

	// Rate limits
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(errMsg, code) {
			return true
		}
	}

	return false
}

func retryableStatus(code int) bool {
	return code == 429 || code == 408 || code >= 500
}
