// Package master coordinates the specialist pharma agents and exposes the
// comprehensive drug analysis fan-out.
package master

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
	"github.com/repurpoai/pharmintel/internal/agents/clinical"
	"github.com/repurpoai/pharmintel/internal/agents/competitive"
	"github.com/repurpoai/pharmintel/internal/agents/exim"
	"github.com/repurpoai/pharmintel/internal/agents/literature"
	"github.com/repurpoai/pharmintel/internal/agents/patents"
	"github.com/repurpoai/pharmintel/internal/agents/pharmacovigilance"
)

// Section keys in the comprehensive report.
const (
	SectionClinicalTrials    = "clinical_trials"
	SectionCompetitive       = "competitive_landscape"
	SectionLiterature        = "literature"
	SectionPharmacovigilance = "pharmacovigilance"
	SectionPatents           = "patents_regulatory"
	SectionEximTrade         = "exim_trade"
)

// AnalysisRequest describes one comprehensive analysis.
type AnalysisRequest struct {
	DrugName        string `json:"drug_name"`
	Condition       string `json:"condition,omitempty"`
	IncludeTrade    bool   `json:"include_trade"`
	ExporterCountry string `json:"exporter_country,omitempty"`
}

// Summary tallies section outcomes.
type Summary struct {
	TotalSections     int `json:"total_sections"`
	SuccessfulQueries int `json:"successful_queries"`
	FailedQueries     int `json:"failed_queries"`
}

// SectionResult is one specialist outcome under its section key.
type SectionResult struct {
	Key    string
	Result core.Result
}

// Sections holds specialist results in task submission order and marshals
// to a JSON object whose keys keep that order.
type Sections []SectionResult

// Get returns the result stored under key.
func (s Sections) Get(key string) (core.Result, bool) {
	for _, sec := range s {
		if sec.Key == key {
			return sec.Result, true
		}
	}
	return core.Result{}, false
}

func (s Sections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sec := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sec.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(sec.Result)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Sections) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("sections: expected JSON object")
	}
	out := Sections{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("sections: expected string key")
		}
		var res core.Result
		if err := dec.Decode(&res); err != nil {
			return err
		}
		out = append(out, SectionResult{Key: key, Result: res})
	}
	*s = out
	return nil
}

// Report is the aggregated output of one comprehensive analysis. Every
// section is always present; failures carry their error in place.
type Report struct {
	DrugName          string    `json:"drug_name"`
	AnalysisTimestamp time.Time `json:"analysis_timestamp"`
	Sections          Sections  `json:"sections"`
	Summary           Summary   `json:"summary"`
}

// ComprehensiveDrugAnalysis fans the request out to every specialist agent
// concurrently and aggregates the results. It never fails as a whole: a
// panicking or erroring section degrades to an error result.
func ComprehensiveDrugAnalysis(ctx context.Context, d agents.Deps, req AnalysisRequest) Report {
	type section struct {
		key string
		run func(context.Context) core.Result
	}

	condition := req.Condition
	if condition == "" {
		condition = req.DrugName
	}
	exporter := req.ExporterCountry
	if exporter == "" {
		exporter = d.Sources.DefaultExporterCode
	}

	sections := []section{
		{SectionClinicalTrials, func(ctx context.Context) core.Result {
			return clinical.Call(ctx, d, condition, 0)
		}},
		{SectionCompetitive, func(ctx context.Context) core.Result {
			return competitive.Call(ctx, d, req.DrugName)
		}},
		{SectionLiterature, func(ctx context.Context) core.Result {
			return literature.Call(ctx, d, req.DrugName, "", 0)
		}},
		{SectionPharmacovigilance, func(ctx context.Context) core.Result {
			return pharmacovigilance.Call(ctx, d, req.DrugName)
		}},
		{SectionPatents, func(ctx context.Context) core.Result {
			return patents.Call(ctx, d, req.DrugName)
		}},
	}
	if req.IncludeTrade {
		sections = append(sections, section{SectionEximTrade, func(ctx context.Context) core.Result {
			return exim.Call(ctx, d, req.DrugName, exporter, "", 0)
		}})
	}

	maxConcurrent := d.Agents.MaxConcurrentAgents
	if maxConcurrent <= 0 {
		maxConcurrent = len(sections)
	}
	sem := make(chan struct{}, maxConcurrent)

	report := Report{
		DrugName:          req.DrugName,
		AnalysisTimestamp: time.Now().UTC(),
	}

	// per-section result slots keep the task submission order in the output
	results := make([]core.Result, len(sections))
	var wg sync.WaitGroup
	for i, s := range sections {
		wg.Add(1)
		go func(i int, s section) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = runSection(ctx, s.key, s.run)
		}(i, s)
	}
	wg.Wait()

	for i, s := range sections {
		report.Sections = append(report.Sections, SectionResult{Key: s.key, Result: results[i]})
	}

	report.Summary.TotalSections = len(report.Sections)
	for _, sec := range report.Sections {
		if sec.Result.Status == core.StatusSuccess {
			report.Summary.SuccessfulQueries++
		} else {
			report.Summary.FailedQueries++
		}
	}
	return report
}

// QuerySection invokes a single specialist domain for a drug.
func QuerySection(ctx context.Context, d agents.Deps, sectionKey, drugName string) core.Result {
	run := func(ctx context.Context) core.Result {
		switch sectionKey {
		case SectionClinicalTrials:
			return clinical.Call(ctx, d, drugName, 0)
		case SectionCompetitive:
			return competitive.Call(ctx, d, drugName)
		case SectionLiterature:
			return literature.Call(ctx, d, drugName, "", 0)
		case SectionPharmacovigilance:
			return pharmacovigilance.Call(ctx, d, drugName)
		case SectionPatents:
			return patents.Call(ctx, d, drugName)
		case SectionEximTrade:
			return exim.Call(ctx, d, drugName, d.Sources.DefaultExporterCode, "", 0)
		default:
			return core.Failure(sectionKey, "unknown analysis section")
		}
	}
	return runSection(ctx, sectionKey, run)
}

// runSection isolates one section so a panic degrades to an error result
// instead of taking the whole analysis down.
func runSection(ctx context.Context, key string, run func(context.Context) core.Result) (res core.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = core.Failure(key, fmt.Sprintf("panic: %v", r))
		}
	}()
	return run(ctx)
}
