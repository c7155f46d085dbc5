// Package agents wires the specialist pharma agents to the shared runtime.
// Each sub-package owns its tool set and agent definition; the plumbing for
// acquiring sessions and invoking them lives here.
package agents

import (
	"context"
	"log"

	"github.com/repurpoai/pharmintel/config"
	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agent/telemetry"
)

// Deps bundles everything a sub-agent caller needs. Build one per process
// and share it; the registry keeps a single session per agent.
type Deps struct {
	Registry      *core.Registry
	Provider      core.LLMProvider
	Telemetry     *telemetry.Telemetry
	Agents        config.AgentsConfig
	Sources       config.SourcesConfig
	Client        *core.HTTPClient
	Logger        *log.Logger
	SubAgentModel string
	MasterModel   string
}

// NewDeps builds the shared dependency bundle from configuration.
func NewDeps(cfg config.Config, provider core.LLMProvider, tel *telemetry.Telemetry, cache core.ToolCache, logger *log.Logger) Deps {
	if logger == nil {
		logger = log.New(log.Writer(), "[AGENTS] ", log.LstdFlags)
	}
	client := core.NewHTTPClient(cfg.Sources.RequestTimeout, cfg.Sources.MaxRetries, cfg.Sources.RetryBackoff)
	if cache != nil && cfg.Sources.ToolCacheEnabled {
		client = client.WithCache(cache)
	}
	return Deps{
		Registry:      core.NewRegistry(),
		Provider:      provider,
		Telemetry:     tel,
		Agents:        cfg.Agents,
		Sources:       cfg.Sources,
		Client:        client,
		Logger:        logger,
		SubAgentModel: cfg.LLM.Routing.SubAgents,
		MasterModel:   cfg.LLM.Routing.Master,
	}
}

// Call runs one turn of the named agent through the shared registry. It
// never returns an error: failures come back as an error-status result so
// fan-out callers can aggregate without special cases.
func Call(ctx context.Context, d Deps, def core.AgentDef, agent, query string) core.Result {
	rt, err := d.Registry.Acquire(def.Name, func() (core.AgentRuntime, error) {
		return core.NewSession(def, d.Provider, d.Telemetry, d.Agents, d.Logger), nil
	})
	if err != nil {
		return core.Failure(agent, err.Error())
	}
	res, err := rt.Run(ctx, query, nil)
	if err != nil {
		return core.Failure(agent, err.Error())
	}
	res.Agent = agent
	return res
}
