package agent

import (
	"context"
	"encoding/json"
	"errors"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ErrRateLimited is wrapped by clients when the provider throttles the
// request. The orchestrator turns it into a friendly retry message instead
// of an error response.
var ErrRateLimited = errors.New("agent: llm rate limited")

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult carries the outcome of one tool call back to the model.
type ToolResult struct {
	ID      string
	Content string
	IsError bool
}

// ChatMessage is one turn in the conversation. Assistant messages may carry
// tool calls; user messages may carry tool results.
type ChatMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolSpec describes one tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	Tools       []ToolSpec
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	ToolCalls  []ToolCall
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
