// Package clinical summarizes registered clinical trials for a condition or
// drug using the ClinicalTrials.gov v2 API.
package clinical

import (
	"context"
	"fmt"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

const AgentTag = "clinical"

const instruction = `You are a clinical trials intelligence assistant.
Use the fetch_trials tool to retrieve registered studies for the requested
condition or drug, then summarize study phases, statuses, sponsors and
enrollment in a concise, structured answer.`

// Def builds the clinical trials agent definition.
func Def(d agents.Deps) core.AgentDef {
	return core.AgentDef{
		Name:        "clinical_trials_intel_agent",
		Model:       d.SubAgentModel,
		Description: "Agent that summarizes clinical trial data",
		Instruction: instruction,
		Tools: []core.Tool{
			fetchTrialsTool(d),
		},
	}
}

// Call asks the clinical agent about a condition or drug.
func Call(ctx context.Context, d agents.Deps, query string, maxResults int) core.Result {
	if maxResults <= 0 {
		maxResults = d.Sources.DefaultMaxResults
	}
	prompt := fmt.Sprintf("%s\n\nmax_results=%d", query, maxResults)
	return agents.Call(ctx, d, Def(d), AgentTag, prompt)
}
