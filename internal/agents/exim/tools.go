package exim

import (
	"context"
	"fmt"
	"time"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

// yearQuery records the parameters sent for one requested year.
type yearQuery struct {
	Year   int               `json:"year"`
	Params map[string]string `json:"params"`
}

// yearResponse is the per-year outcome; a failed year carries its error
// instead of aborting the whole fetch.
type yearResponse struct {
	Year   int                    `json:"year"`
	Status string                 `json:"status"`
	Body   map[string]interface{} `json:"body,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// FetchTradeData queries UN Comtrade annually for each year in the range.
// Individual year failures are recorded inline; only when every year fails
// does the payload carry an error status.
func FetchTradeData(ctx context.Context, d agents.Deps, hsCode, reporter, partner string, startYear, endYear int) map[string]interface{} {
	if hsCode == "" {
		return map[string]interface{}{"status": core.StatusError, "message": "hs_code is required"}
	}
	if startYear == 0 {
		startYear = time.Now().Year() - 1
	}
	if endYear < startYear {
		endYear = startYear
	}
	if reporter == "" || reporter == "all" {
		reporter = "0"
	}
	if partner == "" || partner == "all" {
		partner = "0"
	}

	var queries []yearQuery
	var responses []yearResponse
	anyOK := false

	for yr := startYear; yr <= endYear; yr++ {
		params := map[string]string{
			"max":  "5000",
			"type": "C",
			"freq": "A",
			"px":   "HS",
			"ps":   fmt.Sprintf("%d", yr),
			"r":    reporter,
			"p":    partner,
			"cc":   hsCode,
		}
		queries = append(queries, yearQuery{Year: yr, Params: params})

		var body map[string]interface{}
		if err := d.Client.GetJSON(ctx, d.Sources.ComtradeURL, params, nil, &body); err != nil {
			responses = append(responses, yearResponse{Year: yr, Status: core.StatusError, Error: err.Error()})
			continue
		}
		anyOK = true
		responses = append(responses, yearResponse{Year: yr, Status: "ok", Body: body})
	}

	details := map[string]interface{}{
		"queries":   queries,
		"responses": responses,
	}
	if !anyOK {
		return map[string]interface{}{"status": core.StatusError, "message": "no_valid_responses", "details": details}
	}
	return map[string]interface{}{"status": core.StatusSuccess, "data": details}
}

// fetchTradeDataTool wraps FetchTradeData for the agent runtime.
func fetchTradeDataTool(d agents.Deps) core.Tool {
	return core.Tool{
		Name:        "fetch_trade_data",
		Description: "Fetch annual UN Comtrade trade flows for an HS commodity code across a year range.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"hs_code": map[string]interface{}{
					"type":        "string",
					"description": "HS commodity code, e.g. 3004",
				},
				"reporter": map[string]interface{}{
					"type":        "string",
					"description": "Reporter country numeric code or all",
				},
				"partner": map[string]interface{}{
					"type":        "string",
					"description": "Partner country numeric code or all",
				},
				"start_year": map[string]interface{}{
					"type": "integer",
				},
				"end_year": map[string]interface{}{
					"type": "integer",
				},
			},
			"required": []string{"hs_code"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) map[string]interface{} {
			hsCode, _ := args["hs_code"].(string)
			reporter := agents.StringArg(args, "reporter", "all")
			partner := agents.StringArg(args, "partner", "all")
			startYear := agents.IntArg(args, "start_year", 0)
			endYear := agents.IntArg(args, "end_year", startYear)
			return FetchTradeData(ctx, d, hsCode, reporter, partner, startYear, endYear)
		},
	}
}
