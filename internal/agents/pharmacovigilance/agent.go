// Package pharmacovigilance tracks drug safety signals using the FDA FAERS
// adverse event database.
package pharmacovigilance

import (
	"context"
	"encoding/json"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

const AgentTag = "pharmacovigilance"

const instruction = `You are a Pharmacovigilance Intelligence Agent.

Responsibilities:
- Understand the drug name.
- Only use the summarized output from the safety_summary tool.
- Analyze serious vs non-serious cases, top reactions, outcomes, and demographics.
- Provide concise, medically-safe insights.
- Do not process raw adverse event reports directly.
- Ask clarifying questions if the drug name is ambiguous.`

// Def builds the pharmacovigilance agent definition.
func Def(d agents.Deps) core.AgentDef {
	return core.AgentDef{
		Name:        "pharmacovigilance_agent",
		Model:       d.SubAgentModel,
		Description: "Tracks drug safety signals using FAERS.",
		Instruction: instruction,
		Tools: []core.Tool{
			safetySummaryTool(d),
		},
	}
}

// Call asks the pharmacovigilance agent about a drug.
func Call(ctx context.Context, d agents.Deps, drugName string) core.Result {
	prompt, _ := json.Marshal(map[string]string{"drug_name": drugName})
	return agents.Call(ctx, d, Def(d), AgentTag, string(prompt))
}
