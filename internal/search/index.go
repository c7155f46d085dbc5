// Package search maintains a full-text index over persisted messages so
// users can search their conversation history.
package search

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve"
	_ "github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/mapping"

	"github.com/repurpoai/pharmintel/internal/store"
)

// MessageDoc is the indexed shape of one message.
type MessageDoc struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// Hit is one search result.
type Hit struct {
	MessageID      int64   `json:"message_id"`
	ConversationID string  `json:"conversation_id"`
	Role           string  `json:"role"`
	Content        string  `json:"content"`
	Score          float64 `json:"score"`
}

// MessageIndex wraps a bleve index keyed by message id. Index writes are
// best effort: a failed write only degrades search, never persistence.
type MessageIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

func buildMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	doc.AddFieldMappingsAt("user_id", keyword)
	doc.AddFieldMappingsAt("conversation_id", keyword)
	doc.AddFieldMappingsAt("role", keyword)

	content := bleve.NewTextFieldMapping()
	doc.AddFieldMappingsAt("content", content)

	m.DefaultMapping = doc
	return m
}

// Open opens or creates the message index at path. An empty path builds an
// in-memory index.
func Open(path string) (*MessageIndex, error) {
	m := buildMapping()
	if path == "" {
		idx, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, err
		}
		return &MessageIndex{index: idx}, nil
	}
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return nil, err
	}
	return &MessageIndex{index: idx}, nil
}

// IndexMessage adds one persisted message to the index.
func (mi *MessageIndex) IndexMessage(msg store.Message) error {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.index.Index(strconv.FormatInt(msg.ID, 10), MessageDoc{
		UserID:         msg.UserID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Search runs a full-text query scoped to one user's messages.
func (mi *MessageIndex) Search(userID, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	content := bleve.NewMatchQuery(query)
	content.SetField("content")
	owner := bleve.NewTermQuery(userID)
	owner.SetField("user_id")
	q := bleve.NewConjunctionQuery(content, owner)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"conversation_id", "role", "content"}
	res, err := mi.index.Search(req)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad document id %q", h.ID)
		}
		hit := Hit{MessageID: id, Score: h.Score}
		if v, ok := h.Fields["conversation_id"].(string); ok {
			hit.ConversationID = v
		}
		if v, ok := h.Fields["role"].(string); ok {
			hit.Role = v
		}
		if v, ok := h.Fields["content"].(string); ok {
			hit.Content = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the underlying index.
func (mi *MessageIndex) Close() error {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.index.Close()
}
