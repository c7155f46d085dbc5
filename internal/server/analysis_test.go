package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/repurpoai/pharmintel/config"
	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
	"github.com/repurpoai/pharmintel/internal/agents/master"
	"github.com/repurpoai/pharmintel/internal/runtime"
)

type fixedProvider struct{ answer string }

func (p fixedProvider) Chat(ctx context.Context, model string, messages []core.ChatMessage, tools []core.ToolSchema) (core.ChatResult, error) {
	return core.ChatResult{Message: core.ChatMessage{Role: "assistant", Content: p.answer}}, nil
}

func (p fixedProvider) CalculateCost(in, out int64, model string) float64 { return 0 }

func newAnalysisTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	d := agents.Deps{
		Registry:      core.NewRegistry(),
		Provider:      fixedProvider{answer: "section text"},
		Agents:        config.AgentsConfig{MaxConcurrentAgents: 3},
		Sources:       config.SourcesConfig{DefaultExporterCode: "699", DefaultMaxResults: 10},
		Client:        core.NewHTTPClient(time.Second, 0, time.Millisecond),
		Logger:        log.New(io.Discard, "", 0),
		SubAgentModel: "sub",
		MasterModel:   "master",
	}
	e := echo.New()
	h := &AnalysisHandler{Deps: d}
	h.Register(e.Group("/api/analysis"), []byte("test-secret"))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	tok, err := runtime.SignJWT("user-1", []byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return srv, tok
}

func TestAnalysisEndpoint(t *testing.T) {
	srv, tok := newAnalysisTestServer(t)

	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/analysis", tok, `{"drug_name":"aspirin","include_trade":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var report master.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.DrugName != "aspirin" {
		t.Fatalf("unexpected report: %#v", report)
	}
	if len(report.Sections) != 5 || report.Summary.SuccessfulQueries != 5 {
		t.Fatalf("unexpected sections: %#v", report.Summary)
	}
	if _, ok := report.Sections.Get(master.SectionEximTrade); ok {
		t.Fatalf("trade section should be excluded")
	}
}

func TestAnalysisEndpointDefaultsIncludeTrade(t *testing.T) {
	srv, tok := newAnalysisTestServer(t)

	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/analysis", tok, `{"drug_name":"aspirin"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var report master.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := report.Sections.Get(master.SectionEximTrade); !ok {
		t.Fatalf("trade section should be included by default: %#v", report.Summary)
	}
}

func TestAnalysisEndpointRequiresDrugName(t *testing.T) {
	srv, tok := newAnalysisTestServer(t)

	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/analysis", tok, `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAnalysisEndpointRequiresAuth(t *testing.T) {
	srv, _ := newAnalysisTestServer(t)

	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/analysis", "", `{"drug_name":"aspirin"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
