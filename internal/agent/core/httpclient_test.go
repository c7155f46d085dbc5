package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDoJSONRetriesUntilSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(time.Second, 2, time.Millisecond)
	var out map[string]interface{}
	if err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if out["ok"] != true {
		t.Fatalf("unexpected body: %#v", out)
	}
}

func TestDoJSONResendsBodyOnRetry(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		bodies = append(bodies, string(buf[:n]))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(time.Second, 1, time.Millisecond)
	err := c.DoJSON(context.Background(), http.MethodPost, srv.URL, nil, map[string]string{"q": "aspirin"}, nil)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(bodies))
	}
	for i, b := range bodies {
		if !strings.Contains(b, "aspirin") {
			t.Fatalf("attempt %d body missing payload: %q", i, b)
		}
	}
}

func TestDoJSONReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such study"))
	}))
	defer srv.Close()

	c := NewHTTPClient(time.Second, 0, time.Millisecond)
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "no such study") {
		t.Fatalf("expected status error with body, got %v", err)
	}
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string][]byte{}
	}
	c.m[key] = value
}

func TestGetJSONUsesCache(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"n":1}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(time.Second, 0, time.Millisecond).WithCache(&mapCache{})
	for i := 0; i < 3; i++ {
		var out map[string]interface{}
		if err := c.GetJSON(context.Background(), srv.URL, map[string]string{"q": "x"}, nil, &out); err != nil {
			t.Fatalf("GetJSON: %v", err)
		}
		if out["n"].(float64) != 1 {
			t.Fatalf("unexpected body: %#v", out)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}
}

func TestURLWithParams(t *testing.T) {
	got, err := URLWithParams("https://api.example.com/studies", map[string]string{"pageSize": "5", "query.term": "aspirin"})
	if err != nil {
		t.Fatalf("URLWithParams: %v", err)
	}
	if !strings.Contains(got, "pageSize=5") || !strings.Contains(got, "query.term=aspirin") {
		t.Fatalf("params missing: %q", got)
	}

	same, err := URLWithParams("https://api.example.com/studies", nil)
	if err != nil || same != "https://api.example.com/studies" {
		t.Fatalf("expected passthrough without params, got %q %v", same, err)
	}
}
