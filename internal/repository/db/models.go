package db

import "time"

// ConversationStatus is the lifecycle state of a conversation.
// The only legal transitions are active -> archived and active -> deleted;
// deleted is terminal and rows are never physically removed.
type ConversationStatus string

const (
	StatusActive   ConversationStatus = "active"
	StatusArchived ConversationStatus = "archived"
	StatusDeleted  ConversationStatus = "deleted"
)

// MessageType identifies the author of a message
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
	MessageAgent     MessageType = "agent"
)

// Metadata is a free-form key-value map attached to conversations, messages
// and sessions. Recognized message keys: "question_context" (encrypted at
// rest), "question_context_enc" (bool marker), "regenerated", "regenerated_at",
// "doc_id", and the list-valued "documents"/"sources"/"docs". Unknown keys
// pass through opaquely.
type Metadata map[string]any

// Conversation represents a conversation in the database
type Conversation struct {
	ID            string             `json:"id"`
	DomainID      string             `json:"domain_id"`
	Title         string             `json:"title"`
	Summary       string             `json:"summary,omitempty"`
	Status        ConversationStatus `json:"status"`
	Metadata      Metadata           `json:"metadata,omitempty"`
	MessageCount  int                `json:"message_count"`
	TotalTokens   int                `json:"total_tokens"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
}

// ConversationSummary is the list/search projection of a conversation
type ConversationSummary struct {
	ID            string             `json:"id"`
	DomainID      string             `json:"domain_id"`
	Title         string             `json:"title"`
	Summary       string             `json:"summary,omitempty"`
	Status        ConversationStatus `json:"status"`
	MessageCount  int                `json:"message_count"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Message represents a message in a conversation. ChatID is the client-supplied
// correlation id: at most one message exists per (conversation_id, chat_id)
// pair, so a repeated write with the same pair updates in place.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	ChatID         *string         `json:"chat_id,omitempty"`
	MessageType    MessageType     `json:"message_type"`
	Content        string          `json:"content"`
	Metadata       Metadata        `json:"metadata,omitempty"`
	ReferenceLinks []ReferenceLink `json:"reference_links,omitempty"`
	TokenCount     *int            `json:"token_count,omitempty"`
	Liked          int             `json:"liked"`
	FeedbackText   *string         `json:"feedback_text,omitempty"`
	FeedbackAt     *time.Time      `json:"feedback_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ReferenceLink is a source link owned by a message; it is removed with the
// owning message row (FK cascade).
type ReferenceLink struct {
	ID            string    `json:"id"`
	MessageID     string    `json:"message_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title,omitempty"`
	ReferenceType string    `json:"reference_type"`
	Metadata      Metadata  `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// UserSession tracks per-domain activity. ActiveConversationID is a weak
// reference; the conversation it points at may no longer exist.
type UserSession struct {
	DomainID             string     `json:"domain_id"`
	SessionID            string     `json:"session_id,omitempty"`
	LastActivity         *time.Time `json:"last_activity,omitempty"`
	ActiveConversationID *string    `json:"active_conversation_id,omitempty"`
	Metadata             Metadata   `json:"metadata,omitempty"`
}

// ConversationUpdate carries the fields of a partial conversation update.
// Nil pointers leave the corresponding column untouched.
type ConversationUpdate struct {
	Title    *string
	Summary  *string
	Status   *ConversationStatus
	Metadata Metadata
}
