// Package literature searches PubMed and summarizes recent publications for
// a drug or research topic via the NCBI E-utilities.
package literature

import (
	"context"
	"fmt"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

const AgentTag = "literature"

const instruction = `You are a research assistant. When a user asks about
literature or research topics, search PubMed with the literature_summary
tool and present the latest article summaries with titles, journals,
publication dates and authors.`

// Def builds the literature agent definition.
func Def(d agents.Deps) core.AgentDef {
	return core.AgentDef{
		Name:        "literature_agent",
		Model:       d.SubAgentModel,
		Description: "Searches PubMed articles and provides summaries.",
		Instruction: instruction,
		Tools: []core.Tool{
			literatureSummaryTool(d),
		},
	}
}

// Call asks the literature agent about a drug, optionally scoped to a topic.
func Call(ctx context.Context, d agents.Deps, drugName, topic string, maxResults int) core.Result {
	query := drugName
	if topic != "" {
		query = fmt.Sprintf("%s %s", drugName, topic)
	}
	if maxResults <= 0 {
		maxResults = d.Sources.DefaultMaxResults
	}
	prompt := fmt.Sprintf("%s\n\nmax_results=%d", query, maxResults)
	return agents.Call(ctx, d, Def(d), AgentTag, prompt)
}
