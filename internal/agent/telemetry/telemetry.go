// Package telemetry tracks agent executions, tool calls and LLM spend.
// Counters are exported through the prometheus registry served on /metrics.
package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/repurpoai/pharmintel/config"
)

var (
	agentRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmintel_agent_runs_total",
		Help: "Agent runs by agent name and terminal status.",
	}, []string{"agent", "status"})

	agentRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmintel_agent_run_duration_seconds",
		Help:    "Wall-clock duration of agent runs.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"agent"})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmintel_tool_calls_total",
		Help: "Tool invocations by agent, tool and payload status.",
	}, []string{"agent", "tool", "status"})

	llmTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmintel_llm_tokens_total",
		Help: "LLM tokens consumed by model and direction.",
	}, []string{"model", "direction"})

	llmCostTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmintel_llm_cost_usd_total",
		Help: "Estimated LLM spend in USD by model.",
	}, []string{"model"})
)

// Telemetry records runtime metrics and keeps a running cost tally.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu          sync.RWMutex
	totalCost   float64
	totalTokens int64
	agentRuns   map[string]int64
}

// NewTelemetry creates a new telemetry instance.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		config:    cfg,
		logger:    log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		agentRuns: make(map[string]int64),
	}
}

// RecordAgentRun records one completed agent run.
func (t *Telemetry) RecordAgentRun(agent, status string, d time.Duration) {
	if !t.config.Enabled {
		return
	}
	agentRunsTotal.WithLabelValues(agent, status).Inc()
	agentRunDuration.WithLabelValues(agent).Observe(d.Seconds())

	t.mu.Lock()
	t.agentRuns[agent]++
	t.mu.Unlock()
}

// RecordToolCall records one tool invocation with its payload status.
func (t *Telemetry) RecordToolCall(agent, tool, status string, d time.Duration) {
	if !t.config.Enabled {
		return
	}
	toolCallsTotal.WithLabelValues(agent, tool, status).Inc()
}

// RecordLLMUsage records token usage and estimated cost for one model call.
func (t *Telemetry) RecordLLMUsage(model string, inputTokens, outputTokens int64, cost float64) {
	if !t.config.Enabled {
		return
	}
	llmTokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	llmTokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))

	t.mu.Lock()
	t.totalTokens += inputTokens + outputTokens
	if t.config.CostTracking {
		llmCostTotal.WithLabelValues(model).Add(cost)
		t.totalCost += cost
	}
	t.mu.Unlock()
}

// TotalCost returns the accumulated estimated spend in USD.
func (t *Telemetry) TotalCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalCost
}

// TotalTokens returns the accumulated token count.
func (t *Telemetry) TotalTokens() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalTokens
}
