package clinical

import (
	"context"
	"fmt"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

// fetchTrialsTool queries the ClinicalTrials.gov v2 studies endpoint. Like
// every tool it returns upstream failures as payloads instead of errors.
func fetchTrialsTool(d agents.Deps) core.Tool {
	return core.Tool{
		Name:        "fetch_trials",
		Description: "Fetch registered clinical trials for a condition or drug from ClinicalTrials.gov.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"condition": map[string]interface{}{
					"type":        "string",
					"description": "Condition or drug name to search for",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of studies to return",
				},
			},
			"required": []string{"condition"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) map[string]interface{} {
			condition, _ := args["condition"].(string)
			if condition == "" {
				return map[string]interface{}{"status": core.StatusError, "error_message": "condition is required"}
			}
			maxResults := agents.IntArg(args, "max_results", d.Sources.DefaultMaxResults)

			var out map[string]interface{}
			err := d.Client.GetJSON(ctx, d.Sources.ClinicalTrialsURL+"/studies", map[string]string{
				"query.term": condition,
				"pageSize":   fmt.Sprintf("%d", maxResults),
			}, nil, &out)
			if err != nil {
				return map[string]interface{}{"status": core.StatusError, "error_message": err.Error()}
			}
			return map[string]interface{}{"status": core.StatusSuccess, "studies": out}
		},
	}
}
