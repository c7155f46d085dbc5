package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func TestCreateUser(t *testing.T) {
	st, mock := newMockStore(t)

	query := regexp.QuoteMeta(`INSERT INTO users (email, password_hash) VALUES ($1,$2) RETURNING id, email, password_hash, created_at`)
	now := time.Now()
	mock.ExpectQuery(query).
		WithArgs("alice@example.com", "$argon2id$hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("user-1", "alice@example.com", "$argon2id$hash", now))

	u, err := st.CreateUser(context.Background(), "alice@example.com", "$argon2id$hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID != "user-1" || u.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %#v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	st, mock := newMockStore(t)

	query := regexp.QuoteMeta(`INSERT INTO users (email, password_hash) VALUES ($1,$2) RETURNING id, email, password_hash, created_at`)
	mock.ExpectQuery(query).
		WithArgs("alice@example.com", "h").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := st.CreateUser(context.Background(), "alice@example.com", "h")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestGetConversationOwnership(t *testing.T) {
	st, mock := newMockStore(t)

	query := regexp.QuoteMeta(`SELECT id, user_id, title, created_at FROM conversations WHERE id=$1`)
	mock.ExpectQuery(query).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}).
			AddRow("conv-1", "other-user", "hi", time.Now()))

	_, err := st.GetConversation(context.Background(), "conv-1", "user-1")
	if !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
}

func TestCreateMessageChecksOwnership(t *testing.T) {
	st, mock := newMockStore(t)

	convQuery := regexp.QuoteMeta(`SELECT id, user_id, title, created_at FROM conversations WHERE id=$1`)
	mock.ExpectQuery(convQuery).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}).
			AddRow("conv-1", "user-1", "hi", time.Now()))

	msgQuery := regexp.QuoteMeta(`INSERT INTO messages (user_id, conversation_id, role, content, metadata) VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, user_id, conversation_id, role, content, metadata, created_at`)
	mock.ExpectQuery(msgQuery).
		WithArgs("user-1", "conv-1", "user", "hello", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "conversation_id", "role", "content", "metadata", "created_at"}).
			AddRow(int64(7), "user-1", "conv-1", "user", "hello", []byte(`{"k":"v"}`), time.Now()))

	m, err := st.CreateMessage(context.Background(), "user-1", "conv-1", "user", "hello", map[string]interface{}{"k": "v"})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID != 7 || m.Meta["k"].(string) != "v" {
		t.Fatalf("unexpected message: %#v", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStorePairCreatesConversation(t *testing.T) {
	st, mock := newMockStore(t)

	convQuery := regexp.QuoteMeta(`INSERT INTO conversations (user_id, title) VALUES ($1, NULLIF($2,'')) RETURNING id, user_id, title, created_at`)
	mock.ExpectQuery(convQuery).
		WithArgs("user-1", "what is aspirin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}).
			AddRow("conv-9", "user-1", "what is aspirin", time.Now()))

	msgQuery := regexp.QuoteMeta(`INSERT INTO messages (user_id, conversation_id, role, content, metadata) VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, user_id, conversation_id, role, content, metadata, created_at`)
	rows := func(id int64, role, content string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "user_id", "conversation_id", "role", "content", "metadata", "created_at"}).
			AddRow(id, "user-1", "conv-9", role, content, nil, time.Now())
	}
	mock.ExpectQuery(msgQuery).
		WithArgs("user-1", "conv-9", "user", "what is aspirin", sqlmock.AnyArg()).
		WillReturnRows(rows(1, "user", "what is aspirin"))
	mock.ExpectQuery(msgQuery).
		WithArgs("user-1", "conv-9", "assistant", "a drug", sqlmock.AnyArg()).
		WillReturnRows(rows(2, "assistant", "a drug"))

	c, err := st.StorePair(context.Background(), "user-1", "", "what is aspirin", "a drug")
	if err != nil {
		t.Fatalf("StorePair: %v", err)
	}
	if c.ID != "conv-9" {
		t.Fatalf("unexpected conversation: %#v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStorePairRejectsForeignConversation(t *testing.T) {
	st, mock := newMockStore(t)

	query := regexp.QuoteMeta(`SELECT id, user_id, title, created_at FROM conversations WHERE id=$1`)
	mock.ExpectQuery(query).
		WithArgs("conv-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}).
			AddRow("conv-2", "someone-else", nil, time.Now()))

	_, err := st.StorePair(context.Background(), "user-1", "conv-2", "q", "a")
	if !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
}

func TestListConversationMessagesOrdersAscending(t *testing.T) {
	st, mock := newMockStore(t)

	convQuery := regexp.QuoteMeta(`SELECT id, user_id, title, created_at FROM conversations WHERE id=$1`)
	mock.ExpectQuery(convQuery).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}).
			AddRow("conv-1", "user-1", nil, time.Now()))

	listQuery := regexp.QuoteMeta(`SELECT id, user_id, conversation_id, role, content, metadata, created_at
		 FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC LIMIT $2`)
	mock.ExpectQuery(listQuery).
		WithArgs("conv-1", 500).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "conversation_id", "role", "content", "metadata", "created_at"}).
			AddRow(int64(1), "user-1", "conv-1", "user", "q", nil, time.Now()).
			AddRow(int64(2), "user-1", "conv-1", "assistant", "a", nil, time.Now()))

	msgs, err := st.ListConversationMessages(context.Background(), "user-1", "conv-1", 0)
	if err != nil {
		t.Fatalf("ListConversationMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %#v", msgs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateDownload(t *testing.T) {
	st, mock := newMockStore(t)

	query := regexp.QuoteMeta(`INSERT INTO downloads (user_id, filename, url, metadata) VALUES ($1,$2,$3,$4)
		 RETURNING id, user_id, filename, url, metadata, created_at`)
	mock.ExpectQuery(query).
		WithArgs("user-1", "report.pdf", "https://files/report.pdf", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "filename", "url", "metadata", "created_at"}).
			AddRow(int64(3), "user-1", "report.pdf", "https://files/report.pdf", nil, time.Now()))

	d, err := st.CreateDownload(context.Background(), "user-1", "report.pdf", "https://files/report.pdf", nil)
	if err != nil {
		t.Fatalf("CreateDownload: %v", err)
	}
	if d.ID != 3 || d.Filename != "report.pdf" {
		t.Fatalf("unexpected download: %#v", d)
	}
}

func TestCreateDetachedMessage(t *testing.T) {
	st, mock := newMockStore(t)

	query := regexp.QuoteMeta(`INSERT INTO messages (user_id, conversation_id, role, content, metadata) VALUES ($1,NULL,$2,$3,$4)
		 RETURNING id, user_id, conversation_id, role, content, metadata, created_at`)
	mock.ExpectQuery(query).
		WithArgs("user-1", "assistant", "final answer", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "conversation_id", "role", "content", "metadata", "created_at"}).
			AddRow(int64(11), "user-1", nil, "assistant", "final answer", nil, time.Now()))

	m, err := st.CreateDetachedMessage(context.Background(), "user-1", "assistant", "final answer", nil)
	if err != nil {
		t.Fatalf("CreateDetachedMessage: %v", err)
	}
	if m.ID != 11 || m.ConversationID != "" {
		t.Fatalf("unexpected message: %#v", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTruncateTitle(t *testing.T) {
	short := "what is aspirin"
	if got := TruncateTitle(short); got != short {
		t.Fatalf("short title changed: %q", got)
	}

	long := strings.Repeat("a", 300)
	if got := TruncateTitle(long); len(got) != 120 {
		t.Fatalf("expected 120 bytes, got %d", len(got))
	}

	// a 120-byte cut would land mid-rune; the dangling bytes must be dropped
	multibyte := "a" + strings.Repeat("€", 60)
	got := TruncateTitle(multibyte)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated title is not valid UTF-8: %q", got)
	}
	if want := "a" + strings.Repeat("€", 39); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if !strings.HasPrefix(multibyte, got) {
		t.Fatalf("truncated title is not a prefix of the content: %q", got)
	}
}
