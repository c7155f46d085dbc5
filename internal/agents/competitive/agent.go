// Package competitive assembles a competitive landscape for a drug from
// free public sources: ChEMBL, PubChem and openFDA drug labels.
package competitive

import (
	"context"
	"encoding/json"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

const AgentTag = "competitive_landscape"

const instruction = `You are a Competitive Landscape Agent. Given a drug
name, use the competitive_landscape tool to gather compound records,
synonyms, manufacturers and brands, then summarize the competitive
environment: who markets the molecule, close analogues, and notable gaps
in the data. Report unavailable sources plainly instead of guessing.`

// Def builds the competitive landscape agent definition.
func Def(d agents.Deps) core.AgentDef {
	return core.AgentDef{
		Name:        "competitive_landscape_agent",
		Model:       d.SubAgentModel,
		Description: "Analyzes the competitive environment for a drug.",
		Instruction: instruction,
		Tools: []core.Tool{
			landscapeTool(d),
		},
	}
}

// Call asks the competitive agent about a drug.
func Call(ctx context.Context, d agents.Deps, drugName string) core.Result {
	prompt, _ := json.Marshal(map[string]string{"drug_name": drugName})
	return agents.Call(ctx, d, Def(d), AgentTag, string(prompt))
}
