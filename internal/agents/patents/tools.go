package patents

import (
	"context"
	"net/http"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

// Patent is one trimmed PatentsView record.
type Patent struct {
	Number string `json:"number"`
	Title  string `json:"title"`
	Date   string `json:"date"`
}

// searchPatentsTool queries PatentsView for granted patents whose title
// mentions the drug.
func searchPatentsTool(d agents.Deps) core.Tool {
	return core.Tool{
		Name:        "search_patents",
		Description: "Search granted US patents whose titles mention a drug name.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"drug_name": map[string]interface{}{
					"type":        "string",
					"description": "Drug name to search patent titles for",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of patents to return",
				},
			},
			"required": []string{"drug_name"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) map[string]interface{} {
			drugName, _ := args["drug_name"].(string)
			if drugName == "" {
				return map[string]interface{}{"status": core.StatusError, "error_message": "drug_name is required"}
			}
			limit := agents.IntArg(args, "limit", 50)

			patents, err := SearchPatents(ctx, d, drugName, limit)
			if err != nil {
				return map[string]interface{}{"status": core.StatusError, "error_message": err.Error()}
			}
			return map[string]interface{}{
				"status":    core.StatusSuccess,
				"drug_name": drugName,
				"patents":   patents,
				"summary": map[string]interface{}{
					"total": len(patents),
				},
			}
		},
	}
}

// SearchPatents posts a title query to PatentsView and trims the result.
func SearchPatents(ctx context.Context, d agents.Deps, drugName string, limit int) ([]Patent, error) {
	body := map[string]interface{}{
		"q": map[string]interface{}{
			"_text_any": map[string]interface{}{"patent_title": drugName},
		},
		"f": []string{"patent_number", "patent_title", "patent_date"},
		"o": map[string]interface{}{"per_page": limit},
	}
	var out struct {
		Patents []struct {
			PatentNumber string `json:"patent_number"`
			PatentTitle  string `json:"patent_title"`
			PatentDate   string `json:"patent_date"`
		} `json:"patents"`
	}
	if err := d.Client.DoJSON(ctx, http.MethodPost, d.Sources.PatentsViewURL, nil, body, &out); err != nil {
		return nil, err
	}
	patents := make([]Patent, 0, len(out.Patents))
	for _, p := range out.Patents {
		if len(patents) >= limit {
			break
		}
		patents = append(patents, Patent{Number: p.PatentNumber, Title: p.PatentTitle, Date: p.PatentDate})
	}
	return patents, nil
}
