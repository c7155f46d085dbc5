package core

import (
	"context"
	"fmt"

	"github.com/repurpoai/pharmintel/config"
)

// ChatMessage is one message in a model conversation.
type ChatMessage struct {
	Role       string         `json:"role"` // system, user, assistant, tool
	Content    string         `json:"content"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

// ChatToolCall is a tool invocation requested by the model.
type ChatToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// ToolSchema describes one callable tool to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ChatResult carries the model reply plus token usage.
type ChatResult struct {
	Message      ChatMessage
	InputTokens  int64
	OutputTokens int64
}

// LLMProvider is the interface all model backends must satisfy.
type LLMProvider interface {
	// Chat sends the conversation plus tool schemas and returns the model's
	// next message, which either carries tool calls or final content.
	Chat(ctx context.Context, model string, messages []ChatMessage, tools []ToolSchema) (ChatResult, error)
	// CalculateCost converts token usage into an estimated USD cost.
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// NewLLMProvider creates an LLM provider based on configuration.
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}
	for _, provider := range cfg.Providers {
		switch provider.Type {
		case "openai":
			return NewOpenAIProvider(provider), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", provider.Type)
		}
	}
	return nil, fmt.Errorf("no valid LLM providers found")
}
