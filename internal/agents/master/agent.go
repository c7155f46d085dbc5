package master

import (
	"context"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

const AgentTag = "master"

const instruction = `You are a Master Pharmaceutical Intelligence Agent that
coordinates specialized sub-agents to provide comprehensive drug analysis
and market intelligence.

CORE RESPONSIBILITIES:
- Orchestrate requests across six specialized domains
- Synthesize multi-source pharmaceutical data into actionable insights
- Ensure data consistency and identify correlations across domains

TOOL GUIDELINES:
- Use comprehensive_drug_analysis for full reports on a drug
- Use the individual query tools for focused analysis on one domain
- Handle errors gracefully and report incomplete data transparently
- Prioritize data from official regulatory databases when available

OUTPUT STANDARDS:
- Structure responses with clear sections for each domain
- Flag conflicting information across sources
- Provide actionable recommendations based on the synthesis`

// Def builds the master agent definition. The fan-out and the individual
// domain queries are exposed as tools so one conversation can mix both.
func Def(d agents.Deps) core.AgentDef {
	return core.AgentDef{
		Name:        "master_pharma_intelligence_agent",
		Model:       d.MasterModel,
		Description: "Master pharma agent orchestrating sub-agents for comprehensive pharmaceutical intelligence.",
		Instruction: instruction,
		Tools: []core.Tool{
			comprehensiveAnalysisTool(d),
			sectionTool(d, "query_clinical_trials", "Retrieve clinical trial data for a drug or condition.", SectionClinicalTrials),
			sectionTool(d, "query_competitive_landscape", "Analyze competitor drugs, manufacturers and market positioning.", SectionCompetitive),
			sectionTool(d, "query_literature", "Search scientific publications and research findings.", SectionLiterature),
			sectionTool(d, "query_patents_regulatory", "Patent status and exclusivity intelligence.", SectionPatents),
			sectionTool(d, "query_pharmacovigilance", "Safety data, adverse events and risk profiles.", SectionPharmacovigilance),
			sectionTool(d, "query_exim_trade", "Import and export trade flows for pharma products.", SectionEximTrade),
		},
	}
}

// NewSession builds a fresh master session through the shared registry so
// transports reuse a single conversation per process.
func NewSession(d agents.Deps) (core.AgentRuntime, error) {
	return d.Registry.Acquire(AgentTag, func() (core.AgentRuntime, error) {
		return core.NewSession(Def(d), d.Provider, d.Telemetry, d.Agents, d.Logger), nil
	})
}

func comprehensiveAnalysisTool(d agents.Deps) core.Tool {
	return core.Tool{
		Name:        "comprehensive_drug_analysis",
		Description: "Run all specialist analyses for a drug concurrently and return the aggregated report.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"drug_name": map[string]interface{}{
					"type":        "string",
					"description": "Drug name to analyze",
				},
				"condition": map[string]interface{}{
					"type":        "string",
					"description": "Optional condition to scope the clinical trials search",
				},
				"include_trade": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether to include the EXIM trade section",
				},
				"exporter_country": map[string]interface{}{
					"type":        "string",
					"description": "Exporter country code for the trade section",
				},
			},
			"required": []string{"drug_name"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) map[string]interface{} {
			drugName, _ := args["drug_name"].(string)
			if drugName == "" {
				return map[string]interface{}{"status": core.StatusError, "error_message": "drug_name is required"}
			}
			includeTrade := true
			if v, ok := args["include_trade"].(bool); ok {
				includeTrade = v
			}
			req := AnalysisRequest{
				DrugName:        drugName,
				Condition:       agents.StringArg(args, "condition", ""),
				IncludeTrade:    includeTrade,
				ExporterCountry: agents.StringArg(args, "exporter_country", ""),
			}
			report := ComprehensiveDrugAnalysis(ctx, d, req)
			return map[string]interface{}{"status": core.StatusSuccess, "report": report}
		},
	}
}

// sectionTool exposes one specialist domain as a focused master tool.
func sectionTool(d agents.Deps, name, description, sectionKey string) core.Tool {
	return core.Tool{
		Name:        name,
		Description: description,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"drug_name": map[string]interface{}{
					"type":        "string",
					"description": "Drug name to analyze",
				},
			},
			"required": []string{"drug_name"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) map[string]interface{} {
			drugName, _ := args["drug_name"].(string)
			if drugName == "" {
				return map[string]interface{}{"status": core.StatusError, "error_message": "drug_name is required"}
			}
			res := QuerySection(ctx, d, sectionKey, drugName)
			return map[string]interface{}{
				"status":   res.Status,
				"agent":    res.Agent,
				"response": res.Response,
				"error":    res.Error,
			}
		},
	}
}
