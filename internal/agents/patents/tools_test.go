package patents

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/repurpoai/pharmintel/config"
	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
)

func testDeps(apiURL string) agents.Deps {
	return agents.Deps{
		Sources: config.SourcesConfig{PatentsViewURL: apiURL},
		Client:  core.NewHTTPClient(time.Second, 0, time.Millisecond),
		Logger:  log.New(io.Discard, "", 0),
	}
}

func TestSearchPatents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		q := body["q"].(map[string]interface{})["_text_any"].(map[string]interface{})
		if q["patent_title"] != "semaglutide" {
			t.Errorf("unexpected query body: %#v", body)
		}
		w.Write([]byte(`{"patents":[
			{"patent_number":"10123456","patent_title":"Semaglutide formulations","patent_date":"2021-03-02"},
			{"patent_number":"10234567","patent_title":"GLP-1 delivery","patent_date":"2022-07-19"}
		]}`))
	}))
	defer srv.Close()

	got, err := SearchPatents(context.Background(), testDeps(srv.URL), "semaglutide", 50)
	if err != nil {
		t.Fatalf("SearchPatents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 patents, got %#v", got)
	}
	if got[0] != (Patent{Number: "10123456", Title: "Semaglutide formulations", Date: "2021-03-02"}) {
		t.Fatalf("unexpected patent: %#v", got[0])
	}
}

func TestSearchPatentsRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"patents":[
			{"patent_number":"1","patent_title":"a","patent_date":"2020-01-01"},
			{"patent_number":"2","patent_title":"b","patent_date":"2020-01-02"},
			{"patent_number":"3","patent_title":"c","patent_date":"2020-01-03"}
		]}`))
	}))
	defer srv.Close()

	got, err := SearchPatents(context.Background(), testDeps(srv.URL), "x", 2)
	if err != nil {
		t.Fatalf("SearchPatents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit to trim results, got %#v", got)
	}
}

func TestSearchPatentsToolErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tool := searchPatentsTool(testDeps(srv.URL))
	out := tool.Execute(context.Background(), map[string]interface{}{"drug_name": "x"})
	if out["status"] != core.StatusError {
		t.Fatalf("expected error payload, got %#v", out)
	}
}

func TestSearchPatentsToolSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"patents":[{"patent_number":"1","patent_title":"a","patent_date":"2020-01-01"}]}`))
	}))
	defer srv.Close()

	tool := searchPatentsTool(testDeps(srv.URL))
	out := tool.Execute(context.Background(), map[string]interface{}{"drug_name": "x"})
	if out["status"] != core.StatusSuccess {
		t.Fatalf("unexpected payload: %#v", out)
	}
	summary := out["summary"].(map[string]interface{})
	if summary["total"].(int) != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}
