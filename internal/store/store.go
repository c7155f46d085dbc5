// Package store persists users, conversations, messages and downloads in
// Postgres using plain SQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
)

// Store wraps the Postgres connection pool.
type Store struct {
	DB *sql.DB
}

// ErrNotOwned is returned when a row exists but belongs to another user.
var ErrNotOwned = errors.New("store: resource does not belong to user")

// ErrEmailTaken is returned when signup hits the unique email constraint.
var ErrEmailTaken = errors.New("store: email already registered")

// User is one account row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Conversation groups messages under a user-owned thread. IDs are generated
// server side by Postgres.
type Conversation struct {
	ID        string
	UserID    string
	Title     sql.NullString
	CreatedAt time.Time
}

// Message is one persisted chat message. ConversationID is empty for
// messages stored without a conversation.
type Message struct {
	ID             int64
	UserID         string
	ConversationID string
	Role           string
	Content        string
	Meta           map[string]interface{}
	CreatedAt      time.Time
}

// Download records a generated artifact offered to a user.
type Download struct {
	ID        int64
	UserID    string
	Filename  string
	URL       string
	Meta      map[string]interface{}
	CreatedAt time.Time
}

// New constructs the Store from DATABASE_URL or the POSTGRES_* environment.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) (User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1,$2) RETURNING id, email, password_hash, created_at`,
		email, hash).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// titleMaxBytes caps conversation titles derived from message content.
const titleMaxBytes = 120

// TruncateTitle cuts s to the title byte limit without splitting a
// multibyte rune at the cut point.
func TruncateTitle(s string) string {
	if len(s) <= titleMaxBytes {
		return s
	}
	b := []byte(s)[:titleMaxBytes]
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}

// Conversation operations

// CreateConversation inserts a conversation and returns the row with the
// server-generated id.
func (s *Store) CreateConversation(ctx context.Context, userID, title string) (Conversation, error) {
	var c Conversation
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO conversations (user_id, title) VALUES ($1, NULLIF($2,'')) RETURNING id, user_id, title, created_at`,
		userID, title).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt)
	return c, err
}

// GetConversation loads a conversation and checks it belongs to userID.
func (s *Store) GetConversation(ctx context.Context, id, userID string) (Conversation, error) {
	var c Conversation
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at FROM conversations WHERE id=$1`, id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt)
	if err != nil {
		return Conversation{}, err
	}
	if c.UserID != userID {
		return Conversation{}, ErrNotOwned
	}
	return c, nil
}

func (s *Store) ListConversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, title, created_at FROM conversations WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Message operations

// CreateMessage inserts a message into an existing conversation after
// verifying the conversation belongs to the same user.
func (s *Store) CreateMessage(ctx context.Context, userID, conversationID, role, content string, meta map[string]interface{}) (Message, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return Message{}, err
	}
	return s.insertMessage(ctx, userID, conversationID, role, content, meta)
}

// CreateMessageWithConversation starts a new conversation titled from the
// content and inserts the message into it in one transaction.
func (s *Store) CreateMessageWithConversation(ctx context.Context, userID, role, content string, meta map[string]interface{}) (Message, Conversation, error) {
	title := TruncateTitle(content)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, Conversation{}, err
	}
	defer tx.Rollback()

	var c Conversation
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO conversations (user_id, title) VALUES ($1, NULLIF($2,'')) RETURNING id, user_id, title, created_at`,
		userID, title).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt); err != nil {
		return Message{}, Conversation{}, err
	}

	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return Message{}, Conversation{}, err
	}
	var m Message
	var cid sql.NullString
	var rawMeta []byte
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO messages (user_id, conversation_id, role, content, metadata) VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, user_id, conversation_id, role, content, metadata, created_at`,
		userID, c.ID, role, content, metaJSON).
		Scan(&m.ID, &m.UserID, &cid, &m.Role, &m.Content, &rawMeta, &m.CreatedAt); err != nil {
		return Message{}, Conversation{}, err
	}
	m.ConversationID = cid.String
	if err := tx.Commit(); err != nil {
		return Message{}, Conversation{}, err
	}
	m.Meta = unmarshalMeta(rawMeta)
	return m, c, nil
}

// StorePair persists a user message and the assistant reply as one unit,
// creating the conversation when conversationID is empty. Returns the
// conversation the pair landed in.
func (s *Store) StorePair(ctx context.Context, userID, conversationID, userContent, assistantContent string) (Conversation, error) {
	var c Conversation
	if conversationID == "" {
		title := TruncateTitle(userContent)
		var err error
		c, err = s.CreateConversation(ctx, userID, title)
		if err != nil {
			return Conversation{}, err
		}
	} else {
		var err error
		c, err = s.GetConversation(ctx, conversationID, userID)
		if err != nil {
			return Conversation{}, err
		}
	}
	if _, err := s.insertMessage(ctx, userID, c.ID, "user", userContent, nil); err != nil {
		return Conversation{}, err
	}
	if _, err := s.insertMessage(ctx, userID, c.ID, "assistant", assistantContent, nil); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// CreateDetachedMessage stores a message that belongs to no conversation,
// which happens when conversation creation failed mid-stream. The chat
// history must survive even when the thread does not.
func (s *Store) CreateDetachedMessage(ctx context.Context, userID, role, content string, meta map[string]interface{}) (Message, error) {
	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return Message{}, err
	}
	var m Message
	var cid sql.NullString
	var rawMeta []byte
	err = s.DB.QueryRowContext(ctx,
		`INSERT INTO messages (user_id, conversation_id, role, content, metadata) VALUES ($1,NULL,$2,$3,$4)
		 RETURNING id, user_id, conversation_id, role, content, metadata, created_at`,
		userID, role, content, metaJSON).
		Scan(&m.ID, &m.UserID, &cid, &m.Role, &m.Content, &rawMeta, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	m.ConversationID = cid.String
	m.Meta = unmarshalMeta(rawMeta)
	return m, nil
}

func (s *Store) insertMessage(ctx context.Context, userID, conversationID, role, content string, meta map[string]interface{}) (Message, error) {
	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return Message{}, err
	}
	var m Message
	var cid sql.NullString
	var rawMeta []byte
	err = s.DB.QueryRowContext(ctx,
		`INSERT INTO messages (user_id, conversation_id, role, content, metadata) VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, user_id, conversation_id, role, content, metadata, created_at`,
		userID, conversationID, role, content, metaJSON).
		Scan(&m.ID, &m.UserID, &cid, &m.Role, &m.Content, &rawMeta, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	m.ConversationID = cid.String
	m.Meta = unmarshalMeta(rawMeta)
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, conversation_id, role, content, metadata, created_at
		 FROM messages WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *Store) ListConversationMessages(ctx context.Context, userID, conversationID string, limit int) ([]Message, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, conversation_id, role, content, metadata, created_at
		 FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC LIMIT $2`,
		conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		var cid sql.NullString
		var rawMeta []byte
		if err := rows.Scan(&m.ID, &m.UserID, &cid, &m.Role, &m.Content, &rawMeta, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ConversationID = cid.String
		m.Meta = unmarshalMeta(rawMeta)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Download operations

func (s *Store) CreateDownload(ctx context.Context, userID, filename, url string, meta map[string]interface{}) (Download, error) {
	metaJSON, err := marshalMeta(meta)
	if err != nil {
		return Download{}, err
	}
	var d Download
	var rawMeta []byte
	err = s.DB.QueryRowContext(ctx,
		`INSERT INTO downloads (user_id, filename, url, metadata) VALUES ($1,$2,$3,$4)
		 RETURNING id, user_id, filename, url, metadata, created_at`,
		userID, filename, url, metaJSON).
		Scan(&d.ID, &d.UserID, &d.Filename, &d.URL, &rawMeta, &d.CreatedAt)
	if err != nil {
		return Download{}, err
	}
	d.Meta = unmarshalMeta(rawMeta)
	return d, nil
}

func (s *Store) ListDownloads(ctx context.Context, userID string, limit int) ([]Download, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, filename, url, metadata, created_at
		 FROM downloads WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Download
	for rows.Next() {
		var d Download
		var rawMeta []byte
		if err := rows.Scan(&d.ID, &d.UserID, &d.Filename, &d.URL, &rawMeta, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Meta = unmarshalMeta(rawMeta)
		out = append(out, d)
	}
	return out, rows.Err()
}

func marshalMeta(meta map[string]interface{}) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}

func unmarshalMeta(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
