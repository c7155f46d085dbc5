// Package exim provides pharmaceutical export and import trade analytics
// backed by UN Comtrade annual flows.
package exim

import (
	"context"
	"encoding/json"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

const AgentTag = "exim"

const instruction = `You are an EXIM analytics assistant for pharmaceuticals.
When asked to analyze a product opportunity:
1. Use fetch_trade_data to retrieve historical trade flows for the relevant
   HS codes (measured-dosage pharma products are usually under HS 3004).
2. Extract top importing countries by value, trends across the requested
   years and typical unit value ranges where quantity is present.
3. Summarize risks and next steps.
Output must be a structured, JSON-serializable summary.`

// Def builds the EXIM trade agent definition.
func Def(d agents.Deps) core.AgentDef {
	return core.AgentDef{
		Name:        "exim_agent",
		Model:       d.SubAgentModel,
		Description: "High level EXIM trade analytics agent tailored to pharmaceuticals.",
		Instruction: instruction,
		Tools: []core.Tool{
			fetchTradeDataTool(d),
		},
	}
}

// Call asks the EXIM agent to analyze an export opportunity.
func Call(ctx context.Context, d agents.Deps, productDescription, exporterCountry, importerCountry string, startYear int) core.Result {
	if exporterCountry == "" {
		exporterCountry = d.Sources.DefaultExporterCode
	}
	prompt, _ := json.Marshal(map[string]interface{}{
		"product_description": productDescription,
		"exporter_country":    exporterCountry,
		"importer_country":    importerCountry,
		"start_year":          startYear,
	})
	return agents.Call(ctx, d, Def(d), AgentTag, string(prompt))
}
