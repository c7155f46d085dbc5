package server

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/repurpoai/pharmintel/internal/agent/core"
	"github.com/repurpoai/pharmintel/internal/agents"
	"github.com/repurpoai/pharmintel/internal/agents/master"
	"github.com/repurpoai/pharmintel/internal/runtime"
	"github.com/repurpoai/pharmintel/internal/search"
	"github.com/repurpoai/pharmintel/internal/store"
)

// Client -> server message types on /ws/master.
const (
	clientTypeUserMessage = "user_message"
	clientTypeHumanReply  = "human_reply"
	clientTypeInterrupt   = "interrupt"
	clientTypeStorePair   = "store_pair"
)

// Server -> client message types.
const (
	serverTypeEvent               = "event"
	serverTypeError               = "error"
	serverTypeDone                = "done"
	serverTypeInfo                = "info"
	serverTypeConversationCreated = "conversation_created"
)

type clientMessage struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Query          string `json:"query,omitempty"`
}

type serverMessage struct {
	Type           string                 `json:"type"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	Message        string                 `json:"message,omitempty"`
	ConversationID string                 `json:"conversation_id,omitempty"`
}

// streamItem is the tagged unit flowing from the runner goroutine to the
// socket loop. Exactly one run feeds the channel at a time.
type streamItem struct {
	kind  string // event, error, done
	event core.Event
	err   string
}

// WSHandler drives the master agent over a WebSocket, streaming runtime
// events as they happen.
type WSHandler struct {
	Deps   agents.Deps
	Store  *store.Store
	Index  *search.MessageIndex
	Secret []byte
	Logger *log.Logger
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws/master", h.serve)
}

// serve upgrades the connection and runs the message loop. One reader
// goroutine feeds inbound messages; all writes happen on this goroutine.
func (h *WSHandler) serve(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	userID := h.authenticate(c)

	// fresh master session per connection keeps conversation context local
	session := core.NewSession(master.Def(h.Deps), h.Deps.Provider, h.Deps.Telemetry, h.Deps.Agents, h.Deps.Logger)
	defer session.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	inbound := make(chan clientMessage)
	go func() {
		defer close(inbound)
		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	var items chan streamItem // nil while no run is active
	var conversationID string

	for {
		select {
		case msg, ok := <-inbound:
			if !ok {
				h.Logger.Printf("websocket client disconnected")
				return nil
			}
			switch msg.Type {
			case clientTypeUserMessage:
				if items != nil {
					h.send(conn, serverMessage{Type: serverTypeError, Message: "a run is already in progress"})
					continue
				}
				conversationID = h.prepareConversation(ctx, conn, userID, msg)
				h.persistUserMessage(ctx, userID, conversationID, msg.Content)
				items = h.startRun(ctx, session, msg.Content)

			case clientTypeHumanReply:
				if sender, ok := core.AgentRuntime(session).(core.UserInputSender); ok {
					if err := sender.SendUserInput(ctx, msg.Content); err != nil {
						h.send(conn, serverMessage{Type: serverTypeError, Message: err.Error()})
					}
				} else {
					h.send(conn, serverMessage{Type: serverTypeError, Message: "runner does not support human_reply"})
				}

			case clientTypeInterrupt:
				if canceler, ok := core.AgentRuntime(session).(core.Canceler); ok {
					canceler.Cancel()
					h.send(conn, serverMessage{Type: serverTypeInfo, Message: "runner cancelled"})
				} else {
					h.send(conn, serverMessage{Type: serverTypeError, Message: "runner cancel not supported"})
				}

			case clientTypeStorePair:
				h.handleStorePair(ctx, conn, userID, msg)

			default:
				h.send(conn, serverMessage{Type: serverTypeError, Message: "unknown message type: " + msg.Type})
			}

		case it := <-items:
			switch it.kind {
			case "event":
				h.send(conn, serverMessage{Type: serverTypeEvent, Payload: serializeEvent(it.event)})
				if it.event.Final && it.event.Text() != "" {
					h.persistAssistantMessage(ctx, userID, conversationID, it.event.Text())
				}
			case "error":
				h.send(conn, serverMessage{Type: serverTypeError, Message: it.err})
				// the done sentinel still arrives; swallow it so the next
				// turn starts clean
				for it := range items {
					if it.kind == "done" {
						break
					}
				}
				items = nil
			case "done":
				h.send(conn, serverMessage{Type: serverTypeDone})
				items = nil
			}
		}
	}
}

// startRun executes one master turn in the background, feeding events into
// the returned channel and always closing it after the done sentinel.
func (h *WSHandler) startRun(ctx context.Context, session *core.Session, content string) chan streamItem {
	items := make(chan streamItem, 64)
	go func() {
		defer close(items)
		_, err := session.Run(ctx, content, func(ev core.Event) {
			select {
			case items <- streamItem{kind: "event", event: ev}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			h.Logger.Printf("runner error: %v", err)
			select {
			case items <- streamItem{kind: "error", err: err.Error()}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case items <- streamItem{kind: "done"}:
		case <-ctx.Done():
		}
	}()
	return items
}

// serializeEvent converts a runtime event into the wire payload.
func serializeEvent(ev core.Event) map[string]interface{} {
	out := map[string]interface{}{
		"is_final": ev.Final,
		"type":     ev.Type,
	}
	if text := ev.Text(); text != "" {
		out["text"] = text
	}
	if ev.ToolCall != nil {
		out["tool_call"] = ev.ToolCall
	}
	if ev.ToolResponse != nil {
		out["tool_response"] = ev.ToolResponse
	}
	if _, hasText := out["text"]; !hasText && ev.ToolCall == nil && ev.ToolResponse == nil {
		raw := ev.Raw
		if len(raw) > 2000 {
			raw = raw[:2000]
		}
		out["raw"] = raw
	}
	return out
}

// authenticate resolves the caller from the Authorization header or auth
// cookie. Anonymous connections still stream, they just skip persistence.
func (h *WSHandler) authenticate(c echo.Context) string {
	tok := runtime.ExtractToken(c)
	if tok == "" {
		return ""
	}
	sub, err := runtime.ParseJWT(tok, h.Secret)
	if err != nil {
		return ""
	}
	return sub
}

// prepareConversation reuses the client-provided conversation or creates a
// new one, echoing the created id back to the client.
func (h *WSHandler) prepareConversation(ctx context.Context, conn *websocket.Conn, userID string, msg clientMessage) string {
	if msg.ConversationID != "" {
		return msg.ConversationID
	}
	if userID == "" {
		return ""
	}
	conv, err := h.Store.CreateConversation(ctx, userID, store.TruncateTitle(msg.Content))
	if err != nil {
		h.Logger.Printf("failed to persist conversation: %v", err)
		return ""
	}
	h.send(conn, serverMessage{Type: serverTypeConversationCreated, ConversationID: conv.ID})
	return conv.ID
}

func (h *WSHandler) persistUserMessage(ctx context.Context, userID, conversationID, content string) {
	h.persistMessage(ctx, userID, conversationID, "user", content)
}

func (h *WSHandler) persistAssistantMessage(ctx context.Context, userID, conversationID, content string) {
	h.persistMessage(ctx, userID, conversationID, "assistant", content)
}

// persistMessage stores one chat message best effort: a failed write is
// logged and streaming continues. A known user with no conversation still
// gets the message persisted, just without conversation linkage.
func (h *WSHandler) persistMessage(ctx context.Context, userID, conversationID, role, content string) {
	if userID == "" {
		return
	}
	var msg store.Message
	var err error
	if conversationID == "" {
		msg, err = h.Store.CreateDetachedMessage(ctx, userID, role, content, nil)
	} else {
		msg, err = h.Store.CreateMessage(ctx, userID, conversationID, role, content, nil)
	}
	if err != nil {
		h.Logger.Printf("failed to persist %s message: %v", role, err)
		return
	}
	if h.Index != nil {
		if err := h.Index.IndexMessage(msg); err != nil {
			h.Logger.Printf("failed to index %s message: %v", role, err)
		}
	}
}

func (h *WSHandler) handleStorePair(ctx context.Context, conn *websocket.Conn, userID string, msg clientMessage) {
	if userID != "" && msg.Query != "" {
		if _, err := h.Store.StorePair(ctx, userID, msg.ConversationID, msg.Query, msg.Content); err != nil {
			h.Logger.Printf("failed to store pair: %v", err)
		}
	}
	h.send(conn, serverMessage{Type: serverTypeInfo, Message: "stored_pair"})
}

func (h *WSHandler) send(conn *websocket.Conn, msg serverMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		h.Logger.Printf("websocket write failed: %v", err)
	}
}
