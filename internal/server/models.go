package server

import "time"

// HTTPError is the unified error body returned by the API.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest is the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the issued JWT.
type TokenResponse struct {
	Token string `json:"token"`
}

// MessageCreateRequest posts one message, optionally into an existing
// conversation. An empty conversation id starts a new one.
type MessageCreateRequest struct {
	ConversationID string                 `json:"conversation_id,omitempty"`
	Role           string                 `json:"role,omitempty"`
	Content        string                 `json:"content"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

// MessageOut is one message row as returned by the API.
type MessageOut struct {
	ID             int64                  `json:"id"`
	UserID         string                 `json:"user_id"`
	ConversationID string                 `json:"conversation_id"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// ConversationOut is one conversation row as returned by the API.
type ConversationOut struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DownloadCreateRequest registers a generated artifact.
type DownloadCreateRequest struct {
	Filename string                 `json:"filename"`
	URL      string                 `json:"url"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// DownloadOut is one download row as returned by the API.
type DownloadOut struct {
	ID        int64                  `json:"id"`
	UserID    string                 `json:"user_id"`
	Filename  string                 `json:"filename"`
	URL       string                 `json:"url"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// AnalysisRequestBody is the synchronous analysis payload.
type AnalysisRequestBody struct {
	DrugName        string `json:"drug_name"`
	Condition       string `json:"condition,omitempty"`
	IncludeTrade    *bool  `json:"include_trade,omitempty"`
	ExporterCountry string `json:"exporter_country,omitempty"`
}
