package core

import (
	"context"
	"time"
)

// Result statuses used by sub-agent callers and the master report.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the tagged outcome of one sub-agent call.
type Result struct {
	Status   string `json:"status"`
	Agent    string `json:"agent"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Success builds a success result for the named agent.
func Success(agent, response string) Result {
	return Result{Status: StatusSuccess, Agent: agent, Response: response}
}

// Failure builds an error result for the named agent.
func Failure(agent, msg string) Result {
	return Result{Status: StatusError, Agent: agent, Error: msg}
}

// Tool is a function the agent runtime can invoke. Tools never return an
// error: upstream failures come back as structured payloads for the model
// to reason about.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema for the arguments object
	Execute     ToolFunc
}

// ToolFunc executes one tool invocation with decoded arguments.
type ToolFunc func(ctx context.Context, args map[string]interface{}) map[string]interface{}

// AgentDef is a declarative binding of model, instruction and tools.
// The runtime interprets the instruction and decides which tools to invoke.
type AgentDef struct {
	Name        string
	Model       string
	Description string
	Instruction string
	Tools       []Tool
}

// EventType tags the kind of one streamed runtime event.
const (
	EventTypeModelResponse = "model_response"
	EventTypeToolCall      = "tool_call"
	EventTypeToolResponse  = "tool_response"
)

// ToolCallInfo describes a tool invocation requested by the model.
type ToolCallInfo struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolResponseInfo carries the payload a tool returned.
type ToolResponseInfo struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// Event is one unit of streamed output from a single agent run.
type Event struct {
	ID           string
	Type         string
	Final        bool
	TextParts    []string
	ToolCall     *ToolCallInfo
	ToolResponse *ToolResponseInfo
	Raw          string
	CreatedAt    time.Time
}

// Text joins the event's text parts with newline separators.
func (e Event) Text() string {
	out := ""
	for i, p := range e.TextParts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}
