// Package patents provides patent intelligence for a drug using the
// PatentsView full-text search API.
package patents

import (
	"context"
	"encoding/json"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

const AgentTag = "patent_regulatory"

const instruction = `You are a Patent & Regulatory Intelligence Agent.
- Understand the drug name.
- Use the search_patents tool to fetch granted US patents mentioning it.
- Return a structured response with patent numbers, titles and grant dates.
- Provide a concise summary of the patent landscape and likely exclusivity
  concerns.`

// Def builds the patent intelligence agent definition.
func Def(d agents.Deps) core.AgentDef {
	return core.AgentDef{
		Name:        "patent_regulatory_agent",
		Model:       d.SubAgentModel,
		Description: "Fetches and analyzes patents for a drug.",
		Instruction: instruction,
		Tools: []core.Tool{
			searchPatentsTool(d),
		},
	}
}

// Call asks the patent agent about a drug.
func Call(ctx context.Context, d agents.Deps, drugName string) core.Result {
	prompt, _ := json.Marshal(map[string]string{"drug_name": drugName})
	return agents.Call(ctx, d, Def(d), AgentTag, string(prompt))
}
