// Package conversation implements the cache-aside orchestrator over the
// durable store, the cache store and the encryption gateway.
//
// Writes go to the durable store first and are mirrored into the cache with a
// sliding TTL; reads prefer the cache and repopulate it on miss. Cache
// failures are never fatal. Concurrent mutation of the same row is
// last-writer-wins, bounded by single-statement atomicity.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workpal/internal/cache"
	"workpal/internal/logger"
	"workpal/internal/protect"
	"workpal/internal/repository/db"
	"workpal/pkg/validation"
)

// domainListMax bounds the cached per-domain conversation list
const domainListMax = 50

// Service is the conversation repository. Construct with NewService and pass
// the instance into request handlers; there is no package-level state.
type Service struct {
	db        db.Database
	cache     cache.Store
	protector *protect.Protector
	ttl       time.Duration
}

// NewService creates a conversation Service with injected collaborators.
// protector may be nil, which disables encryption.
func NewService(database db.Database, store cache.Store, protector *protect.Protector, ttl time.Duration) *Service {
	return &Service{
		db:        database,
		cache:     store,
		protector: protector,
		ttl:       ttl,
	}
}

// CreateParams carries the inputs for a new conversation
type CreateParams struct {
	Title    string
	Summary  string
	Metadata db.Metadata
}

// MessageParams carries the inputs for a new or regenerated message. ChatID
// is the client correlation id: a second write with the same ChatID updates
// the existing row instead of inserting.
type MessageParams struct {
	ChatID         *string
	MessageType    db.MessageType
	Content        string
	Metadata       db.Metadata
	TokenCount     *int
	ReferenceLinks []ReferenceLinkParams
}

// ReferenceLinkParams carries the inputs for a message source link
type ReferenceLinkParams struct {
	URL           string
	Title         string
	ReferenceType string
	Metadata      db.Metadata
}

// ConversationWithMessages is the full read projection of a conversation
type ConversationWithMessages struct {
	db.Conversation
	Messages []db.Message `json:"messages"`
}

// Create validates and persists a new conversation, then mirrors it into the
// cache. Mirroring failures are non-fatal.
func (s *Service) Create(ctx context.Context, domainID string, params CreateParams) (*db.Conversation, error) {
	title, err := validation.ValidateTitle(params.Title)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conv := &db.Conversation{
		ID:        uuid.New().String(),
		DomainID:  domainID,
		Title:     title,
		Summary:   params.Summary,
		Status:    db.StatusActive,
		Metadata:  params.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	cache.Put(ctx, s.cache, cache.ConversationKey(conv.ID), s.ttl, conv)
	cache.Put(ctx, s.cache, cache.MessagesKey(conv.ID), s.ttl, []db.Message{})
	s.prependToDomainList(ctx, domainID, summaryOf(conv))
	s.cacheTitle(ctx, domainID, conv.ID, conv.Title, conv.UpdatedAt)
	s.RefreshTTL(ctx, conv.ID, domainID)

	return conv, nil
}

// Get returns a conversation with its messages. The cache is consulted first;
// a cached record owned by a different domain is treated as not found so
// cross-domain data never leaks, even from cache.
func (s *Service) Get(ctx context.Context, conversationID, domainID string) (*ConversationWithMessages, error) {
	if cached, ok := cache.GetCached[db.Conversation](ctx, s.cache, cache.ConversationKey(conversationID)); ok {
		if cached.DomainID != domainID {
			return nil, db.ErrNotFound
		}
		messages, haveMessages := cache.GetCached[[]db.Message](ctx, s.cache, cache.MessagesKey(conversationID))
		if !haveMessages {
			var err error
			if messages, err = s.loadMessages(ctx, conversationID); err != nil {
				logger.Log.WithError(err).WithFields(logrus.Fields{"conversation_id": conversationID}).
					Warn("Failed to load messages, serving conversation without them")
				messages = []db.Message{}
			}
		}
		s.RefreshTTL(ctx, conversationID, domainID)
		return &ConversationWithMessages{Conversation: cached, Messages: messages}, nil
	}

	conv, err := s.db.GetConversation(ctx, conversationID, domainID)
	if err != nil {
		return nil, err
	}

	messages, err := s.loadMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	cache.Put(ctx, s.cache, cache.ConversationKey(conversationID), s.ttl, conv)
	s.RefreshTTL(ctx, conversationID, domainID)
	return &ConversationWithMessages{Conversation: *conv, Messages: messages}, nil
}

// loadMessages reads a conversation's messages from the durable store,
// decrypts them and mirrors the decrypted list into the cache
func (s *Service) loadMessages(ctx context.Context, conversationID string) ([]db.Message, error) {
	messages, err := s.db.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		s.decryptMessage(ctx, &messages[i])
	}
	if messages == nil {
		messages = []db.Message{}
	}
	cache.Put(ctx, s.cache, cache.MessagesKey(conversationID), s.ttl, messages)
	return messages, nil
}

// Update applies a partial update to the durable store and replaces the
// cached record wholesale, so readers never observe a half-updated value.
// A title change invalidates the domain list so later lists see the rename.
func (s *Service) Update(ctx context.Context, conversationID, domainID string, update db.ConversationUpdate) (*db.Conversation, error) {
	if update.Title != nil {
		title, err := validation.ValidateTitle(*update.Title)
		if err != nil {
			return nil, err
		}
		update.Title = &title
	}

	if err := s.db.UpdateConversation(ctx, conversationID, domainID, update); err != nil {
		return nil, err
	}

	conv, err := s.db.GetConversation(ctx, conversationID, domainID)
	if err != nil {
		return nil, err
	}

	cache.Put(ctx, s.cache, cache.ConversationKey(conversationID), s.ttl, conv)
	if update.Title != nil {
		s.cacheTitle(ctx, domainID, conversationID, conv.Title, conv.UpdatedAt)
		if err := s.cache.Delete(ctx, cache.DomainConversationsKey(domainID)); err != nil {
			logger.Log.WithError(err).Warn("Failed to invalidate domain conversation list")
		}
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": conversationID}).Info("Updated conversation")
	return conv, nil
}

// Delete soft-deletes a conversation and evicts it from every cache. The
// domain list is evicted rather than patched; the next read rebuilds it.
func (s *Service) Delete(ctx context.Context, conversationID, domainID string) (bool, error) {
	deleted, err := s.db.SoftDeleteConversation(ctx, conversationID, domainID)
	if err != nil || !deleted {
		return deleted, err
	}

	if err := s.cache.Delete(ctx,
		cache.ConversationKey(conversationID),
		cache.MessagesKey(conversationID),
		cache.DomainConversationsKey(domainID),
	); err != nil {
		logger.Log.WithError(err).Warn("Failed to evict deleted conversation from cache")
	}
	if err := s.cache.HDel(ctx, cache.TitlesKey(domainID), conversationID); err != nil {
		logger.Log.WithError(err).Warn("Failed to remove deleted conversation from title index")
	}

	return true, nil
}

// AddMessage appends a message to a conversation, or updates the existing row
// when the correlation id was seen before (regenerated responses). The cached
// message list is patched in place rather than invalidated.
func (s *Service) AddMessage(ctx context.Context, conversationID, domainID string, params MessageParams) (*db.Message, error) {
	if err := validation.ValidateContent(params.Content); err != nil {
		return nil, err
	}
	if err := validation.ValidateMessageType(params.MessageType); err != nil {
		return nil, err
	}

	if _, err := s.db.GetConversation(ctx, conversationID, domainID); err != nil {
		return nil, err
	}

	if params.ChatID != nil {
		existing, err := s.db.GetMessageByChatID(ctx, conversationID, *params.ChatID)
		if err == nil {
			return s.regenerateMessage(ctx, conversationID, domainID, existing, params)
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}

	return s.insertMessage(ctx, conversationID, domainID, params)
}

func (s *Service) insertMessage(ctx context.Context, conversationID, domainID string, params MessageParams) (*db.Message, error) {
	now := time.Now().UTC()
	msg := &db.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		ChatID:         params.ChatID,
		MessageType:    params.MessageType,
		Content:        params.Content,
		Metadata:       params.Metadata,
		TokenCount:     params.TokenCount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	stored := *msg
	stored.Content = s.protector.Encrypt(ctx, msg.Content)
	stored.Metadata = s.protector.EncryptMetadata(ctx, msg.Metadata)

	if err := s.db.InsertMessage(ctx, &stored); err != nil {
		return nil, err
	}

	tokens := 0
	if params.TokenCount != nil {
		tokens = *params.TokenCount
	}
	// Counters are advisory; a failed bump must not fail the write
	if err := s.db.BumpConversationCounters(ctx, conversationID, tokens, now); err != nil {
		logger.Log.WithError(err).Warn("Failed to update conversation counters")
	}

	for _, linkParams := range params.ReferenceLinks {
		link := &db.ReferenceLink{
			ID:            uuid.New().String(),
			MessageID:     msg.ID,
			URL:           linkParams.URL,
			Title:         linkParams.Title,
			ReferenceType: linkParams.ReferenceType,
			Metadata:      linkParams.Metadata,
			CreatedAt:     now,
		}
		if link.ReferenceType == "" {
			link.ReferenceType = "url"
		}
		if err := s.db.InsertReferenceLink(ctx, link); err != nil {
			logger.Log.WithError(err).WithField("url", link.URL).Warn("Failed to store reference link")
			continue
		}
		msg.ReferenceLinks = append(msg.ReferenceLinks, *link)
	}

	s.upsertCachedMessage(ctx, conversationID, msg, "")
	s.RefreshTTL(ctx, conversationID, domainID)

	logger.Log.WithFields(logrus.Fields{"message_id": msg.ID, "conversation_id": conversationID}).Info("Added message")
	return msg, nil
}

// regenerateMessage rewrites an existing message identified by its chat_id,
// merging metadata and marking the regeneration
func (s *Service) regenerateMessage(ctx context.Context, conversationID, domainID string, existing *db.Message, params MessageParams) (*db.Message, error) {
	now := time.Now().UTC()

	// Merge on decrypted metadata so the question-context field is never
	// encrypted twice
	merged := make(db.Metadata)
	for k, v := range s.protector.DecryptMetadata(ctx, existing.Metadata) {
		merged[k] = v
	}
	for k, v := range params.Metadata {
		merged[k] = v
	}
	merged["regenerated"] = true
	merged["regenerated_at"] = now.Format(time.RFC3339)

	encContent := s.protector.Encrypt(ctx, params.Content)
	encMetadata := s.protector.EncryptMetadata(ctx, merged)

	if err := s.db.UpdateMessageByChatID(ctx, conversationID, *params.ChatID, encContent, encMetadata, now); err != nil {
		return nil, err
	}
	if err := s.db.TouchConversation(ctx, conversationID); err != nil {
		logger.Log.WithError(err).Warn("Failed to update conversation timestamp")
	}

	updated := *existing
	updated.Content = params.Content
	updated.Metadata = merged
	updated.UpdatedAt = now

	s.upsertCachedMessage(ctx, conversationID, &updated, *params.ChatID)
	s.touchCachedConversation(ctx, conversationID, now)
	s.RefreshTTL(ctx, conversationID, domainID)

	logger.Log.WithFields(logrus.Fields{
		"message_id": updated.ID,
		"chat_id":    *params.ChatID,
	}).Info("Updated regenerated message")
	return &updated, nil
}

// UpdateMessageContent rewrites a message's content by correlation id
func (s *Service) UpdateMessageContent(ctx context.Context, conversationID, chatID, domainID, content string, metadata db.Metadata) (*db.Message, error) {
	if err := validation.ValidateContent(content); err != nil {
		return nil, err
	}
	if _, err := s.db.GetConversation(ctx, conversationID, domainID); err != nil {
		return nil, err
	}
	existing, err := s.db.GetMessageByChatID(ctx, conversationID, chatID)
	if err != nil {
		return nil, err
	}
	return s.regenerateMessage(ctx, conversationID, domainID, existing, MessageParams{
		ChatID:   &chatID,
		Content:  content,
		Metadata: metadata,
	})
}

// BulkResult reports the outcome of a bulk message write
type BulkResult struct {
	ConversationID string        `json:"conversation_id"`
	Created        []db.Message  `json:"created_messages"`
	Failed         []BulkFailure `json:"failed_messages,omitempty"`
}

// BulkFailure records one message that could not be written
type BulkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkAddMessages writes several messages; per-message failures are collected
// rather than aborting the batch
func (s *Service) BulkAddMessages(ctx context.Context, conversationID, domainID string, batch []MessageParams) (*BulkResult, error) {
	if _, err := s.db.GetConversation(ctx, conversationID, domainID); err != nil {
		return nil, err
	}

	result := &BulkResult{ConversationID: conversationID}
	for i, params := range batch {
		msg, err := s.AddMessage(ctx, conversationID, domainID, params)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{Index: i, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, *msg)
	}
	return result, nil
}

// UpdateFeedback writes a feedback score and optional text for a message.
// Returns false when the conversation or message is not visible to the domain.
func (s *Service) UpdateFeedback(ctx context.Context, conversationID, messageID, domainID string, score int, text *string) (bool, error) {
	if err := validation.ValidateFeedbackScore(score); err != nil {
		return false, err
	}
	if _, err := s.db.GetConversation(ctx, conversationID, domainID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	feedbackAt := feedbackTimestamp(score, text)
	updated, err := s.db.UpdateFeedback(ctx, conversationID, messageID, score, text, feedbackAt)
	if err != nil || !updated {
		return false, err
	}

	s.patchCachedFeedback(ctx, conversationID, messageID, score, text, feedbackAt)
	s.RefreshTTL(ctx, conversationID, domainID)
	return true, nil
}

// UpdateFeedbackByChatID is the correlation-id variant of UpdateFeedback
func (s *Service) UpdateFeedbackByChatID(ctx context.Context, conversationID, chatID, domainID string, score int, text *string) (bool, error) {
	if err := validation.ValidateFeedbackScore(score); err != nil {
		return false, err
	}
	if _, err := s.db.GetConversation(ctx, conversationID, domainID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	feedbackAt := feedbackTimestamp(score, text)
	messageID, err := s.db.UpdateFeedbackByChatID(ctx, conversationID, chatID, score, text, feedbackAt)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	s.patchCachedFeedback(ctx, conversationID, messageID, score, text, feedbackAt)
	s.RefreshTTL(ctx, conversationID, domainID)
	return true, nil
}

// feedbackTimestamp is nil when score 0 and no text, signalling no feedback
func feedbackTimestamp(score int, text *string) *time.Time {
	if score == 0 && (text == nil || *text == "") {
		return nil
	}
	now := time.Now().UTC()
	return &now
}

// RecentMessages returns the last limit messages of a conversation,
// cache-preferred with a durable-store fallback. docID optionally filters to
// messages referencing that document in their metadata.
func (s *Service) RecentMessages(ctx context.Context, conversationID, domainID string, limit int, docID string) ([]db.Message, error) {
	if _, err := s.db.GetConversation(ctx, conversationID, domainID); err != nil {
		return nil, err
	}

	messages, ok := cache.GetCached[[]db.Message](ctx, s.cache, cache.MessagesKey(conversationID))
	if !ok {
		var err error
		messages, err = s.loadMessages(ctx, conversationID)
		if err != nil {
			return nil, err
		}
	}

	messages = filterByDoc(messages, docID)
	s.RefreshTTL(ctx, conversationID, domainID)
	return lastN(messages, limit), nil
}

// RecentMessagesCacheOnly is the no-fallback variant of RecentMessages, used
// where staleness beats added latency. A cache miss returns an empty slice.
func (s *Service) RecentMessagesCacheOnly(ctx context.Context, conversationID, domainID string, limit int, docID string) ([]db.Message, error) {
	messages, ok := cache.GetCached[[]db.Message](ctx, s.cache, cache.MessagesKey(conversationID))
	if !ok {
		return []db.Message{}, nil
	}
	messages = filterByDoc(messages, docID)
	s.RefreshTTL(ctx, conversationID, domainID)
	return lastN(messages, limit), nil
}

// filterByDoc keeps messages whose metadata carries the document id, either
// directly under doc_id or inside one of the list-valued containers
func filterByDoc(messages []db.Message, docID string) []db.Message {
	if docID == "" {
		return messages
	}
	filtered := make([]db.Message, 0, len(messages))
	for _, msg := range messages {
		if messageReferencesDoc(msg.Metadata, docID) {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func messageReferencesDoc(metadata db.Metadata, docID string) bool {
	if metadata == nil {
		return false
	}
	if id, ok := metadata["doc_id"].(string); ok && id == docID {
		return true
	}
	for _, key := range []string{"documents", "sources", "docs"} {
		list, ok := metadata[key].([]any)
		if !ok {
			continue
		}
		for _, entry := range list {
			if id, ok := entry.(string); ok && id == docID {
				return true
			}
		}
	}
	return false
}

func lastN(messages []db.Message, limit int) []db.Message {
	if limit > 0 && len(messages) > limit {
		return messages[len(messages)-limit:]
	}
	return messages
}

// List returns a page of the domain's conversations, newest activity first.
// The cache holds the newest entries; a miss loads from the durable
// store and repopulates it.
func (s *Service) List(ctx context.Context, domainID string, limit, offset int) ([]db.ConversationSummary, error) {
	key := cache.DomainConversationsKey(domainID)

	if cached, ok := cache.GetCached[[]db.ConversationSummary](ctx, s.cache, key); ok {
		if err := s.cache.Expire(ctx, s.ttl, key); err != nil {
			logger.Log.WithError(err).Warn("Failed to refresh domain list TTL")
		}
		return pageOf(cached, limit, offset), nil
	}

	fetch := offset + limit
	if fetch < domainListMax {
		fetch = domainListMax
	}
	summaries, err := s.db.ListConversations(ctx, domainID, fetch, 0)
	if err != nil {
		return nil, err
	}

	cachedSlice := summaries
	if len(cachedSlice) > domainListMax {
		cachedSlice = cachedSlice[:domainListMax]
	}
	cache.Put(ctx, s.cache, key, s.ttl, cachedSlice)

	return pageOf(summaries, limit, offset), nil
}

func pageOf(summaries []db.ConversationSummary, limit, offset int) []db.ConversationSummary {
	if offset >= len(summaries) {
		return []db.ConversationSummary{}
	}
	end := offset + limit
	if limit <= 0 || end > len(summaries) {
		end = len(summaries)
	}
	return summaries[offset:end]
}

// RefreshTTL slides the idle expiry on every cache entry belonging to the
// conversation and its domain, and records the domain's current activity.
// Called on every successful access, reads included.
func (s *Service) RefreshTTL(ctx context.Context, conversationID, domainID string) {
	err := s.cache.Expire(ctx, s.ttl,
		cache.ConversationKey(conversationID),
		cache.MessagesKey(conversationID),
		cache.DomainConversationsKey(domainID),
	)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to refresh cache TTLs")
	}

	activity := []byte(time.Now().UTC().Format(time.RFC3339))
	if err := s.cache.Set(ctx, cache.ActivityKey(domainID), activity, s.ttl); err != nil {
		logger.Log.WithError(err).Warn("Failed to record domain activity")
	}
}

// decryptMessage restores plaintext content and metadata on a message read
// from the durable store
func (s *Service) decryptMessage(ctx context.Context, msg *db.Message) {
	msg.Content = s.protector.Decrypt(ctx, msg.Content)
	msg.Metadata = s.protector.DecryptMetadata(ctx, msg.Metadata)
}
