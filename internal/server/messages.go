package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/repurpoai/pharmintel/internal/runtime"
	"github.com/repurpoai/pharmintel/internal/search"
	"github.com/repurpoai/pharmintel/internal/store"
)

// MessagesHandler serves message and conversation history plus full-text
// search over the caller's messages.
type MessagesHandler struct {
	Store  *store.Store
	Index  *search.MessageIndex
	Logger *log.Logger
}

func (h *MessagesHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("/messages", h.postMessage)
	g.GET("/messages", h.listMessages)
	g.GET("/messages/search", h.searchMessages)
	g.GET("/conversations", h.listConversations)
	g.GET("/conversations/:id/messages", h.listConversationMessages)
}

func (h *MessagesHandler) postMessage(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req MessageCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	role := req.Role
	if role == "" {
		role = "user"
	}

	var msg store.Message
	var err error
	if req.ConversationID == "" {
		msg, _, err = h.Store.CreateMessageWithConversation(c.Request().Context(), userID, role, req.Content, req.Meta)
	} else {
		msg, err = h.Store.CreateMessage(c.Request().Context(), userID, req.ConversationID, role, req.Content, req.Meta)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotOwned) {
			return echo.NewHTTPError(http.StatusForbidden, "conversation does not belong to user")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.indexMessage(msg)
	return c.JSON(http.StatusCreated, messageOut(msg))
}

func (h *MessagesHandler) listMessages(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit := queryInt(c, "limit", 100)
	msgs, err := h.Store.ListMessages(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]MessageOut, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageOut(m))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MessagesHandler) searchMessages(c echo.Context) error {
	userID := c.Get("user_id").(string)
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	if h.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search index not available")
	}
	hits, err := h.Index.Search(userID, q, queryInt(c, "limit", 20))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hits)
}

func (h *MessagesHandler) listConversations(c echo.Context) error {
	userID := c.Get("user_id").(string)
	convs, err := h.Store.ListConversations(c.Request().Context(), userID, queryInt(c, "limit", 100))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]ConversationOut, 0, len(convs))
	for _, cv := range convs {
		out = append(out, conversationOut(cv))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MessagesHandler) listConversationMessages(c echo.Context) error {
	userID := c.Get("user_id").(string)
	convID := c.Param("id")
	msgs, err := h.Store.ListConversationMessages(c.Request().Context(), userID, convID, queryInt(c, "limit", 500))
	if err != nil {
		if errors.Is(err, store.ErrNotOwned) {
			return echo.NewHTTPError(http.StatusForbidden, "conversation does not belong to user")
		}
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	out := make([]MessageOut, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageOut(m))
	}
	return c.JSON(http.StatusOK, out)
}

// indexMessage feeds the search index. Failures only degrade search.
func (h *MessagesHandler) indexMessage(msg store.Message) {
	if h.Index == nil {
		return
	}
	if err := h.Index.IndexMessage(msg); err != nil && h.Logger != nil {
		h.Logger.Printf("index message %d: %v", msg.ID, err)
	}
}

func messageOut(m store.Message) MessageOut {
	return MessageOut{
		ID:             m.ID,
		UserID:         m.UserID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Meta:           m.Meta,
		CreatedAt:      m.CreatedAt,
	}
}

func conversationOut(c store.Conversation) ConversationOut {
	out := ConversationOut{ID: c.ID, UserID: c.UserID, CreatedAt: c.CreatedAt}
	if c.Title.Valid {
		out.Title = c.Title.String
	}
	return out
}

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
