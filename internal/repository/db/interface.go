package db

import (
	"context"
	"time"
)

// Database defines the interface for all durable-store operations.
// This allows for easier testing through mocking and decouples the services
// from the specific database implementation.
//
// Content and selected metadata fields are stored exactly as given; the
// service layer owns encryption and decryption around these calls.
type Database interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id, domainID string) (*Conversation, error)
	UpdateConversation(ctx context.Context, id, domainID string, update ConversationUpdate) error
	SoftDeleteConversation(ctx context.Context, id, domainID string) (bool, error)
	ListConversations(ctx context.Context, domainID string, limit, offset int) ([]ConversationSummary, error)
	BumpConversationCounters(ctx context.Context, conversationID string, tokens int, at time.Time) error
	TouchConversation(ctx context.Context, conversationID string) error

	// Messages
	InsertMessage(ctx context.Context, msg *Message) error
	GetMessageByChatID(ctx context.Context, conversationID, chatID string) (*Message, error)
	UpdateMessageByChatID(ctx context.Context, conversationID, chatID, content string, metadata Metadata, at time.Time) error
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	UpdateFeedback(ctx context.Context, conversationID, messageID string, liked int, feedbackText *string, feedbackAt *time.Time) (bool, error)
	UpdateFeedbackByChatID(ctx context.Context, conversationID, chatID string, liked int, feedbackText *string, feedbackAt *time.Time) (string, error)

	// Reference links
	InsertReferenceLink(ctx context.Context, link *ReferenceLink) error
	ListReferenceLinks(ctx context.Context, messageID string) ([]ReferenceLink, error)

	// Search
	SearchConversations(ctx context.Context, domainID, query string, limit, offset int) ([]ConversationSummary, int, error)

	// Sessions
	UpsertSession(ctx context.Context, session *UserSession) error
	GetSession(ctx context.Context, domainID string) (*UserSession, error)

	Close() error
}
