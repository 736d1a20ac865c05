package testutil

import (
	"context"
	"errors"
	"time"

	"workpal/internal/repository/db"
)

// MockDatabase is a mock implementation of db.Database for testing. Each
// method delegates to its Func field when set and errors otherwise.
type MockDatabase struct {
	// Conversation mocks
	CreateConversationFunc       func(ctx context.Context, conv *db.Conversation) error
	GetConversationFunc          func(ctx context.Context, id, domainID string) (*db.Conversation, error)
	UpdateConversationFunc       func(ctx context.Context, id, domainID string, update db.ConversationUpdate) error
	SoftDeleteConversationFunc   func(ctx context.Context, id, domainID string) (bool, error)
	ListConversationsFunc        func(ctx context.Context, domainID string, limit, offset int) ([]db.ConversationSummary, error)
	BumpConversationCountersFunc func(ctx context.Context, conversationID string, tokens int, at time.Time) error
	TouchConversationFunc        func(ctx context.Context, conversationID string) error

	// Message mocks
	InsertMessageFunc          func(ctx context.Context, msg *db.Message) error
	GetMessageByChatIDFunc     func(ctx context.Context, conversationID, chatID string) (*db.Message, error)
	UpdateMessageByChatIDFunc  func(ctx context.Context, conversationID, chatID, content string, metadata db.Metadata, at time.Time) error
	ListMessagesFunc           func(ctx context.Context, conversationID string) ([]db.Message, error)
	UpdateFeedbackFunc         func(ctx context.Context, conversationID, messageID string, liked int, feedbackText *string, feedbackAt *time.Time) (bool, error)
	UpdateFeedbackByChatIDFunc func(ctx context.Context, conversationID, chatID string, liked int, feedbackText *string, feedbackAt *time.Time) (string, error)

	// Reference link mocks
	InsertReferenceLinkFunc func(ctx context.Context, link *db.ReferenceLink) error
	ListReferenceLinksFunc  func(ctx context.Context, messageID string) ([]db.ReferenceLink, error)

	// Search mocks
	SearchConversationsFunc func(ctx context.Context, domainID, query string, limit, offset int) ([]db.ConversationSummary, int, error)

	// Session mocks
	UpsertSessionFunc func(ctx context.Context, session *db.UserSession) error
	GetSessionFunc    func(ctx context.Context, domainID string) (*db.UserSession, error)
}

var errNotImplemented = errors.New("not implemented")

func (m *MockDatabase) CreateConversation(ctx context.Context, conv *db.Conversation) error {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(ctx, conv)
	}
	return errNotImplemented
}

func (m *MockDatabase) GetConversation(ctx context.Context, id, domainID string) (*db.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, id, domainID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateConversation(ctx context.Context, id, domainID string, update db.ConversationUpdate) error {
	if m.UpdateConversationFunc != nil {
		return m.UpdateConversationFunc(ctx, id, domainID, update)
	}
	return errNotImplemented
}

func (m *MockDatabase) SoftDeleteConversation(ctx context.Context, id, domainID string) (bool, error) {
	if m.SoftDeleteConversationFunc != nil {
		return m.SoftDeleteConversationFunc(ctx, id, domainID)
	}
	return false, errNotImplemented
}

func (m *MockDatabase) ListConversations(ctx context.Context, domainID string, limit, offset int) ([]db.ConversationSummary, error) {
	if m.ListConversationsFunc != nil {
		return m.ListConversationsFunc(ctx, domainID, limit, offset)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) BumpConversationCounters(ctx context.Context, conversationID string, tokens int, at time.Time) error {
	if m.BumpConversationCountersFunc != nil {
		return m.BumpConversationCountersFunc(ctx, conversationID, tokens, at)
	}
	return nil
}

func (m *MockDatabase) TouchConversation(ctx context.Context, conversationID string) error {
	if m.TouchConversationFunc != nil {
		return m.TouchConversationFunc(ctx, conversationID)
	}
	return nil
}

func (m *MockDatabase) InsertMessage(ctx context.Context, msg *db.Message) error {
	if m.InsertMessageFunc != nil {
		return m.InsertMessageFunc(ctx, msg)
	}
	return errNotImplemented
}

func (m *MockDatabase) GetMessageByChatID(ctx context.Context, conversationID, chatID string) (*db.Message, error) {
	if m.GetMessageByChatIDFunc != nil {
		return m.GetMessageByChatIDFunc(ctx, conversationID, chatID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateMessageByChatID(ctx context.Context, conversationID, chatID, content string, metadata db.Metadata, at time.Time) error {
	if m.UpdateMessageByChatIDFunc != nil {
		return m.UpdateMessageByChatIDFunc(ctx, conversationID, chatID, content, metadata, at)
	}
	return errNotImplemented
}

func (m *MockDatabase) ListMessages(ctx context.Context, conversationID string) ([]db.Message, error) {
	if m.ListMessagesFunc != nil {
		return m.ListMessagesFunc(ctx, conversationID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateFeedback(ctx context.Context, conversationID, messageID string, liked int, feedbackText *string, feedbackAt *time.Time) (bool, error) {
	if m.UpdateFeedbackFunc != nil {
		return m.UpdateFeedbackFunc(ctx, conversationID, messageID, liked, feedbackText, feedbackAt)
	}
	return false, errNotImplemented
}

func (m *MockDatabase) UpdateFeedbackByChatID(ctx context.Context, conversationID, chatID string, liked int, feedbackText *string, feedbackAt *time.Time) (string, error) {
	if m.UpdateFeedbackByChatIDFunc != nil {
		return m.UpdateFeedbackByChatIDFunc(ctx, conversationID, chatID, liked, feedbackText, feedbackAt)
	}
	return "", errNotImplemented
}

func (m *MockDatabase) InsertReferenceLink(ctx context.Context, link *db.ReferenceLink) error {
	if m.InsertReferenceLinkFunc != nil {
		return m.InsertReferenceLinkFunc(ctx, link)
	}
	return errNotImplemented
}

func (m *MockDatabase) ListReferenceLinks(ctx context.Context, messageID string) ([]db.ReferenceLink, error) {
	if m.ListReferenceLinksFunc != nil {
		return m.ListReferenceLinksFunc(ctx, messageID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) SearchConversations(ctx context.Context, domainID, query string, limit, offset int) ([]db.ConversationSummary, int, error) {
	if m.SearchConversationsFunc != nil {
		return m.SearchConversationsFunc(ctx, domainID, query, limit, offset)
	}
	return nil, 0, errNotImplemented
}

func (m *MockDatabase) UpsertSession(ctx context.Context, session *db.UserSession) error {
	if m.UpsertSessionFunc != nil {
		return m.UpsertSessionFunc(ctx, session)
	}
	return errNotImplemented
}

func (m *MockDatabase) GetSession(ctx context.Context, domainID string) (*db.UserSession, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, domainID)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) Close() error { return nil }
