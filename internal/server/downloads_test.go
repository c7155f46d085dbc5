package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/repurpoai/pharmintel/internal/runtime"
	"github.com/repurpoai/pharmintel/internal/store"
)

func newDownloadsTestServer(t *testing.T) (*httptest.Server, sqlmock.Sqlmock, string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := echo.New()
	h := &DownloadsHandler{Store: &store.Store{DB: db}}
	h.Register(e.Group("/api/downloads"), []byte("test-secret"))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	tok, err := runtime.SignJWT("user-1", []byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return srv, mock, tok
}

func TestDownloadsRequireAuth(t *testing.T) {
	srv, _, _ := newDownloadsTestServer(t)

	resp := doAuthed(t, http.MethodGet, srv.URL+"/api/downloads", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPostDownload(t *testing.T) {
	srv, mock, tok := newDownloadsTestServer(t)

	meta, _ := json.Marshal(map[string]interface{}{"format": "pdf"})
	query := regexp.QuoteMeta(`INSERT INTO downloads (user_id, filename, url, metadata) VALUES ($1,$2,$3,$4)
		 RETURNING id, user_id, filename, url, metadata, created_at`)
	mock.ExpectQuery(query).
		WithArgs("user-1", "report.pdf", "https://files.example.com/report.pdf", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "filename", "url", "metadata", "created_at"}).
			AddRow(int64(3), "user-1", "report.pdf", "https://files.example.com/report.pdf", meta, time.Now()))

	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/downloads", tok,
		`{"filename":"report.pdf","url":"https://files.example.com/report.pdf","meta":{"format":"pdf"}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var out DownloadOut
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != 3 || out.Filename != "report.pdf" {
		t.Fatalf("unexpected download: %+v", out)
	}
	if out.Meta["format"] != "pdf" {
		t.Fatalf("metadata not round-tripped: %+v", out.Meta)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostDownloadRequiresFields(t *testing.T) {
	srv, _, tok := newDownloadsTestServer(t)

	resp := doAuthed(t, http.MethodPost, srv.URL+"/api/downloads", tok, `{"filename":"report.pdf"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListDownloads(t *testing.T) {
	srv, mock, tok := newDownloadsTestServer(t)

	query := regexp.QuoteMeta(`SELECT id, user_id, filename, url, metadata, created_at
		 FROM downloads WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`)
	mock.ExpectQuery(query).
		WithArgs("user-1", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "filename", "url", "metadata", "created_at"}).
			AddRow(int64(2), "user-1", "b.csv", "https://files.example.com/b.csv", []byte(`{}`), time.Now()).
			AddRow(int64(1), "user-1", "a.csv", "https://files.example.com/a.csv", nil, time.Now()))

	resp := doAuthed(t, http.MethodGet, srv.URL+"/api/downloads", tok, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out []DownloadOut
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].Filename != "b.csv" || out[1].Filename != "a.csv" {
		t.Fatalf("unexpected downloads: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
