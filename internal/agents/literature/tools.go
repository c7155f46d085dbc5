package literature

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

// esearchResult is the subset of the esearch XML response the pipeline
// needs: the history handle for the follow-up esummary call.
type esearchResult struct {
	XMLName  xml.Name `xml:"eSearchResult"`
	Count    int      `xml:"Count"`
	WebEnv   string   `xml:"WebEnv"`
	QueryKey string   `xml:"QueryKey"`
}

// ArticleSummary is one formatted PubMed record.
type ArticleSummary struct {
	Title   string   `json:"title"`
	Journal string   `json:"journal"`
	PubDate string   `json:"pub_date"`
	Authors []string `json:"authors"`
}

// searchPubMed runs esearch with usehistory and returns the WebEnv and
// QueryKey handles.
func searchPubMed(ctx context.Context, d agents.Deps, query string, retmax int) (esearchResult, error) {
	params := map[string]string{
		"db":         "pubmed",
		"term":       query,
		"retmax":     fmt.Sprintf("%d", retmax),
		"usehistory": "y",
	}
	if d.Sources.NCBIAPIKey != "" {
		params["api_key"] = d.Sources.NCBIAPIKey
	}
	full := d.Sources.PubMedURL + "/esearch.fcgi"
	u, err := core.URLWithParams(full, params)
	if err != nil {
		return esearchResult{}, err
	}
	body, err := d.Client.GetBytes(ctx, u, nil)
	if err != nil {
		return esearchResult{}, err
	}
	var res esearchResult
	if err := xml.Unmarshal(body, &res); err != nil {
		return esearchResult{}, fmt.Errorf("esearch response: %w", err)
	}
	return res, nil
}

// fetchSummaries runs esummary against the search history handle.
func fetchSummaries(ctx context.Context, d agents.Deps, webEnv, queryKey string, retmax int) (map[string]interface{}, error) {
	params := map[string]string{
		"db":        "pubmed",
		"query_key": queryKey,
		"WebEnv":    webEnv,
		"retmax":    fmt.Sprintf("%d", retmax),
		"retmode":   "json",
	}
	if d.Sources.NCBIAPIKey != "" {
		params["api_key"] = d.Sources.NCBIAPIKey
	}
	var out map[string]interface{}
	err := d.Client.GetJSON(ctx, d.Sources.PubMedURL+"/esummary.fcgi", params, nil, &out)
	return out, err
}

// formatSummaries flattens the esummary result block into article records.
func formatSummaries(summaries map[string]interface{}) []ArticleSummary {
	result, _ := summaries["result"].(map[string]interface{})
	var out []ArticleSummary
	for uid, raw := range result {
		if uid == "uids" {
			continue
		}
		article, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		rec := ArticleSummary{
			Title:   agents.StringArg(article, "title", "N/A"),
			Journal: agents.StringArg(article, "fulljournalname", "N/A"),
			PubDate: agents.StringArg(article, "pubdate", "N/A"),
		}
		if authors, ok := article["authors"].([]interface{}); ok {
			for _, a := range authors {
				if am, ok := a.(map[string]interface{}); ok {
					if name, ok := am["name"].(string); ok {
						rec.Authors = append(rec.Authors, name)
					}
				}
			}
		}
		out = append(out, rec)
	}
	return out
}

// literatureSummaryTool runs the search-then-summarize pipeline.
func literatureSummaryTool(d agents.Deps) core.Tool {
	return core.Tool{
		Name:        "literature_summary",
		Description: "Search PubMed and fetch top article summaries with title, journal, publication date and authors.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Research query to search in PubMed",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of articles to return",
				},
			},
			"required": []string{"query"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) map[string]interface{} {
			query, _ := args["query"].(string)
			if query == "" {
				return map[string]interface{}{"status": core.StatusError, "error_message": "query is required"}
			}
			retmax := agents.IntArg(args, "max_results", d.Sources.DefaultMaxResults)

			search, err := searchPubMed(ctx, d, query, retmax)
			if err != nil {
				return map[string]interface{}{"status": core.StatusError, "error_message": fmt.Sprintf("error fetching literature: %v", err)}
			}
			if search.WebEnv == "" || search.QueryKey == "" {
				return map[string]interface{}{"status": core.StatusError, "error_message": "no results found for the given query"}
			}

			summaries, err := fetchSummaries(ctx, d, search.WebEnv, search.QueryKey, retmax)
			if err != nil {
				return map[string]interface{}{"status": core.StatusError, "error_message": fmt.Sprintf("error fetching literature: %v", err)}
			}

			articles := formatSummaries(summaries)
			if len(articles) == 0 {
				return map[string]interface{}{"status": core.StatusSuccess, "message": "no article summaries found"}
			}
			return map[string]interface{}{"status": core.StatusSuccess, "articles": articles}
		},
	}
}
