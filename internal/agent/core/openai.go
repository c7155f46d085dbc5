package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/repurpoai/pharmintel/config"
)

// OpenAIProvider implements LLMProvider against the OpenAI chat completions API.
type OpenAIProvider struct {
	config config.LLMProvider
	models map[string]config.LLMModel
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg config.LLMProvider) *OpenAIProvider {
	return &OpenAIProvider{
		config: cfg,
		models: cfg.Models,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

// Chat sends the conversation to OpenAI and returns the next model message.
func (p *OpenAIProvider) Chat(ctx context.Context, model string, messages []ChatMessage, tools []ToolSchema) (ChatResult, error) {
	apiKey := p.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return ChatResult{}, fmt.Errorf("OpenAI API key not configured")
	}

	m, ok := p.models[model]
	if !ok {
		return ChatResult{}, fmt.Errorf("model %s not configured", model)
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = m.Name
	}

	msgs := make([]openaiMessage, 0, len(messages))
	for _, msg := range messages {
		om := openaiMessage{Role: msg.Role, Content: msg.Content, ToolCallID: msg.ToolCallID, Name: msg.Name}
		for _, tc := range msg.ToolCalls {
			otc := openaiToolCall{ID: tc.ID, Type: "function"}
			otc.Function.Name = tc.Name
			otc.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		msgs = append(msgs, om)
	}

	payload := map[string]interface{}{
		"model":    apiModel,
		"messages": msgs,
	}
	if m.Temperature != 0 {
		payload["temperature"] = m.Temperature
	}
	if m.MaxTokens != 0 {
		payload["max_tokens"] = m.MaxTokens
	}
	if len(tools) > 0 {
		var toolDefs []map[string]interface{}
		for _, t := range tools {
			params := t.Parameters
			if params == nil {
				params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
			}
			toolDefs = append(toolDefs, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  params,
				},
			})
		}
		payload["tools"] = toolDefs
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ChatResult{}, fmt.Errorf("marshal: %w", err)
	}

	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return ChatResult{}, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ChatResult{}, fmt.Errorf("OpenAI status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message openaiMessage `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChatResult{}, fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return ChatResult{}, fmt.Errorf("no choices")
	}

	reply := out.Choices[0].Message
	msg := ChatMessage{Role: reply.Role, Content: reply.Content}
	for _, tc := range reply.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ChatToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return ChatResult{
		Message:      msg,
		InputTokens:  int64(out.Usage.PromptTokens),
		OutputTokens: int64(out.Usage.CompletionTokens),
	}, nil
}

// CalculateCost calculates the cost for a given number of tokens.
func (p *OpenAIProvider) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	m, ok := p.models[model]
	if !ok {
		return 0.0
	}
	return float64(inputTokens)/1000.0*m.CostPer1K + float64(outputTokens)/1000.0*m.CostPer1KOutput
}
