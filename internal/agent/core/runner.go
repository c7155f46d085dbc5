package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/repurpoai/pharmintel/config"
	"github.com/repurpoai/pharmintel/internal/agent/telemetry"
)

// EmitFunc receives events as a run produces them. It is called from the
// goroutine executing Run, never concurrently.
type EmitFunc func(Event)

// AgentRuntime is the surface a transport needs to drive an agent.
type AgentRuntime interface {
	// Run executes one user turn to completion, emitting events along the
	// way. The final model response is emitted with Final set.
	Run(ctx context.Context, message string, emit EmitFunc) (Result, error)
	Close() error
}

// Canceler is implemented by runtimes that can abort an in-flight run.
type Canceler interface {
	Cancel() bool
}

// UserInputSender is implemented by runtimes that accept out-of-band user
// replies while a run is in progress.
type UserInputSender interface {
	SendUserInput(ctx context.Context, text string) error
}

// Session runs a single agent definition against an LLM provider, keeping
// conversation history across turns. One Run at a time.
type Session struct {
	def       AgentDef
	provider  LLMProvider
	telemetry *telemetry.Telemetry
	cfg       config.AgentsConfig
	logger    *log.Logger

	mu      sync.Mutex
	history []ChatMessage
	running bool
	cancel  context.CancelFunc
}

// NewSession builds a session for the given agent definition.
func NewSession(def AgentDef, provider LLMProvider, tel *telemetry.Telemetry, cfg config.AgentsConfig, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	s := &Session{
		def:       def,
		provider:  provider,
		telemetry: tel,
		cfg:       cfg,
		logger:    logger,
	}
	if def.Instruction != "" {
		s.history = append(s.history, ChatMessage{Role: "system", Content: def.Instruction})
	}
	return s
}

// Run executes one user turn. It returns an error if a run is already in
// progress on this session.
func (s *Session) Run(ctx context.Context, message string, emit EmitFunc) (Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("agent %s: run already in progress", s.def.Name)
	}
	var runCtx context.Context
	var cancel context.CancelFunc
	if s.cfg.AgentTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.AgentTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	s.running = true
	s.cancel = cancel
	s.history = append(s.history, ChatMessage{Role: "user", Content: message})
	s.mu.Unlock()

	started := time.Now()
	res, err := s.run(runCtx, emit)

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.mu.Unlock()
	cancel()

	if s.telemetry != nil {
		status := StatusSuccess
		if err != nil {
			status = StatusError
		}
		s.telemetry.RecordAgentRun(s.def.Name, status, time.Since(started))
	}
	return res, err
}

func (s *Session) run(ctx context.Context, emit EmitFunc) (Result, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	toolsByName := make(map[string]Tool, len(s.def.Tools))
	schemas := make([]ToolSchema, 0, len(s.def.Tools))
	for _, t := range s.def.Tools {
		toolsByName[t.Name] = t
		schemas = append(schemas, ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}

	maxRounds := s.cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 8
	}

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return Result{Status: StatusError, Agent: s.def.Name, Error: err.Error()}, err
		}

		res, err := s.provider.Chat(ctx, s.def.Model, s.snapshotHistory(), schemas)
		if err != nil {
			return Result{Status: StatusError, Agent: s.def.Name, Error: err.Error()}, err
		}
		if s.telemetry != nil {
			s.telemetry.RecordLLMUsage(s.def.Model, res.InputTokens, res.OutputTokens,
				s.provider.CalculateCost(res.InputTokens, res.OutputTokens, s.def.Model))
		}

		s.appendHistory(res.Message)

		if len(res.Message.ToolCalls) == 0 {
			emit(Event{
				ID:        uuid.New().String(),
				Type:      EventTypeModelResponse,
				Final:     true,
				TextParts: []string{res.Message.Content},
				CreatedAt: time.Now(),
			})
			return Result{Status: StatusSuccess, Agent: s.def.Name, Response: res.Message.Content}, nil
		}

		if round >= maxRounds {
			err := fmt.Errorf("agent %s: exceeded %d tool rounds", s.def.Name, maxRounds)
			return Result{Status: StatusError, Agent: s.def.Name, Error: err.Error()}, err
		}

		for _, tc := range res.Message.ToolCalls {
			out := s.execTool(ctx, toolsByName, tc, emit)
			payload, merr := json.Marshal(out)
			if merr != nil {
				payload = []byte(fmt.Sprintf(`{"status":"error","error_message":%q}`, merr.Error()))
			}
			s.appendHistory(ChatMessage{
				Role:       "tool",
				Content:    string(payload),
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})
		}
	}
}

func (s *Session) execTool(ctx context.Context, tools map[string]Tool, tc ChatToolCall, emit EmitFunc) map[string]interface{} {
	var args map[string]interface{}
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			args = map[string]interface{}{}
		}
	}
	emit(Event{
		ID:        uuid.New().String(),
		Type:      EventTypeToolCall,
		ToolCall:  &ToolCallInfo{Name: tc.Name, Args: args},
		CreatedAt: time.Now(),
	})

	tool, ok := tools[tc.Name]
	var out map[string]interface{}
	started := time.Now()
	if !ok {
		out = map[string]interface{}{"status": StatusError, "error_message": fmt.Sprintf("unknown tool %q", tc.Name)}
	} else {
		out = tool.Execute(ctx, args)
	}
	if out == nil {
		out = map[string]interface{}{"status": StatusError, "error_message": "tool returned nothing"}
	}

	status, _ := out["status"].(string)
	if status == "" {
		status = StatusSuccess
	}
	if s.telemetry != nil {
		s.telemetry.RecordToolCall(s.def.Name, tc.Name, status, time.Since(started))
	}
	s.logger.Printf("[AGENT %s] tool %s status=%s in %v", s.def.Name, tc.Name, status, time.Since(started))

	emit(Event{
		ID:           uuid.New().String(),
		Type:         EventTypeToolResponse,
		ToolResponse: &ToolResponseInfo{Name: tc.Name, Response: out},
		CreatedAt:    time.Now(),
	})
	return out
}

func (s *Session) snapshotHistory() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) appendHistory(msg ChatMessage) {
	s.mu.Lock()
	s.history = append(s.history, msg)
	s.mu.Unlock()
}

// Cancel aborts the in-flight run, if any. It reports whether a run was
// actually canceled.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Close releases the session. Any in-flight run is canceled.
func (s *Session) Close() error {
	s.Cancel()
	return nil
}
