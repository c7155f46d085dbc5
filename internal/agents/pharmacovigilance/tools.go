package pharmacovigilance

import (
	"context"
	"fmt"
	"sort"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

// ReactionCount pairs a MedDRA reaction term with its report count.
type ReactionCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Analysis aggregates a batch of FAERS reports into safety signals.
type Analysis struct {
	Seriousness  map[string]int  `json:"seriousness"`
	Outcomes     map[string]int  `json:"outcomes"`
	TopReactions []ReactionCount `json:"top_reactions"`
	Genders      map[string]int  `json:"gender_distribution"`
	MeanAge      float64         `json:"mean_age"`
	AgeKnown     bool            `json:"age_known"`
}

// fetchAdverseEvents pulls raw FAERS reports for the drug.
func fetchAdverseEvents(ctx context.Context, d agents.Deps, drugName string, limit int) ([]map[string]interface{}, error) {
	var out struct {
		Results []map[string]interface{} `json:"results"`
	}
	err := d.Client.GetJSON(ctx, d.Sources.OpenFDAURL+"/drug/event.json", map[string]string{
		"search": fmt.Sprintf("patient.drug.medicinalproduct:%s", drugName),
		"limit":  fmt.Sprintf("%d", limit),
	}, map[string]string{"User-Agent": "pharmintel/1.0"}, &out)
	if err != nil {
		return nil, fmt.Errorf("FAERS API error: %w", err)
	}
	if len(out.Results) == 0 {
		return nil, fmt.Errorf("no adverse event reports found for this drug")
	}
	return out.Results, nil
}

// AnalyzeAdverseEvents tallies seriousness, outcomes, reaction frequency and
// demographics across a batch of FAERS reports.
func AnalyzeAdverseEvents(events []map[string]interface{}) Analysis {
	a := Analysis{
		Seriousness: map[string]int{"serious": 0, "nonserious": 0},
		Outcomes:    map[string]int{},
		Genders:     map[string]int{"male": 0, "female": 0, "unknown": 0},
	}
	genderMap := map[string]string{"1": "male", "2": "female", "0": "unknown"}
	reactions := map[string]int{}

	var ageSum float64
	var ageCount int

	for _, e := range events {
		if s, _ := e["serious"].(string); s == "1" {
			a.Seriousness["serious"]++
		} else {
			a.Seriousness["nonserious"]++
		}

		outcome, _ := e["seriousnessoutcome"].(string)
		if outcome == "" {
			outcome = "unknown"
		}
		a.Outcomes[outcome]++

		patient, _ := e["patient"].(map[string]interface{})

		if rs, ok := patient["reaction"].([]interface{}); ok {
			for _, r := range rs {
				rm, ok := r.(map[string]interface{})
				if !ok {
					continue
				}
				term, _ := rm["reactionmeddrapt"].(string)
				if term == "" {
					term = "Unknown"
				}
				reactions[term]++
			}
		}

		sex, _ := patient["patientsex"].(string)
		g, ok := genderMap[sex]
		if !ok {
			g = "unknown"
		}
		a.Genders[g]++

		switch age := patient["patientonsetage"].(type) {
		case string:
			var f float64
			if _, err := fmt.Sscanf(age, "%f", &f); err == nil {
				ageSum += f
				ageCount++
			}
		case float64:
			ageSum += age
			ageCount++
		}
	}

	for term, n := range reactions {
		a.TopReactions = append(a.TopReactions, ReactionCount{Term: term, Count: n})
	}
	sort.Slice(a.TopReactions, func(i, j int) bool {
		if a.TopReactions[i].Count != a.TopReactions[j].Count {
			return a.TopReactions[i].Count > a.TopReactions[j].Count
		}
		return a.TopReactions[i].Term < a.TopReactions[j].Term
	})
	if len(a.TopReactions) > 10 {
		a.TopReactions = a.TopReactions[:10]
	}

	if ageCount > 0 {
		a.MeanAge = ageSum / float64(ageCount)
		a.AgeKnown = true
	}
	return a
}

// safetySummaryTool fetches, analyzes and condenses FAERS data so the model
// never sees raw reports.
func safetySummaryTool(d agents.Deps) core.Tool {
	return core.Tool{
		Name:        "safety_summary",
		Description: "Fetch FAERS adverse event reports for a drug, analyze patterns and return a concise safety summary.",
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

			events, err := fetchAdverseEvents(ctx, d, drugName, 30)
			if err != nil {
				return map[string]interface{}{"status": core.StatusError, "error_message": err.Error()}
			}
			analysis := AnalyzeAdverseEvents(events)

			meanAge := "NA"
			if analysis.AgeKnown {
				meanAge = fmt.Sprintf("%.1f", analysis.MeanAge)
			}
			summary := fmt.Sprintf(
				"Drug: %s\nSerious vs Non-Serious: %v\nTop Reactions: %v\nOutcomes: %v\nGender Distribution: %v\nMean Age: %s\n",
				drugName, analysis.Seriousness, analysis.TopReactions, analysis.Outcomes, analysis.Genders, meanAge)

			return map[string]interface{}{
				"status":  core.StatusSuccess,
				"drug":    drugName,
				"summary": summary,
			}
		},
	}
}
