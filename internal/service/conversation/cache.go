package conversation

import (
	"context"
	"encoding/json"
	"time"

	"workpal/internal/cache"
	"workpal/internal/logger"
	"workpal/internal/repository/db"
)

// FeedbackEntry is the cached point-lookup value for a message's feedback
type FeedbackEntry struct {
	Liked        int        `json:"liked"`
	FeedbackText *string    `json:"feedback_text,omitempty"`
	FeedbackAt   *time.Time `json:"feedback_at,omitempty"`
}

func summaryOf(conv *db.Conversation) db.ConversationSummary {
	return db.ConversationSummary{
		ID:            conv.ID,
		DomainID:      conv.DomainID,
		Title:         conv.Title,
		Summary:       conv.Summary,
		Status:        conv.Status,
		MessageCount:  conv.MessageCount,
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
		UpdatedAt:     conv.UpdatedAt,
	}
}

// upsertCachedMessage patches the cached message list in place: replace the
// entry matching the message id or chat id, otherwise append. When the list
// is not cached at all, it is left for the next read to rebuild, so the cache
// never holds a partial transcript.
func (s *Service) upsertCachedMessage(ctx context.Context, conversationID string, msg *db.Message, matchChatID string) {
	key := cache.MessagesKey(conversationID)
	messages, ok := cache.GetCached[[]db.Message](ctx, s.cache, key)
	if !ok {
		return
	}

	replaced := false
	for i := range messages {
		sameChat := matchChatID != "" && messages[i].ChatID != nil && *messages[i].ChatID == matchChatID
		if sameChat || messages[i].ID == msg.ID {
			messages[i] = *msg
			replaced = true
			break
		}
	}
	if !replaced {
		messages = append(messages, *msg)
	}
	cache.Put(ctx, s.cache, key, s.ttl, messages)
}

// touchCachedConversation advances the cached record's updated_at without
// reloading it from the durable store
func (s *Service) touchCachedConversation(ctx context.Context, conversationID string, at time.Time) {
	key := cache.ConversationKey(conversationID)
	conv, ok := cache.GetCached[db.Conversation](ctx, s.cache, key)
	if !ok {
		return
	}
	conv.UpdatedAt = at
	cache.Put(ctx, s.cache, key, s.ttl, conv)
}

// prependToDomainList puts a new conversation at the head of the cached
// domain list, truncated to the newest entries
func (s *Service) prependToDomainList(ctx context.Context, domainID string, summary db.ConversationSummary) {
	key := cache.DomainConversationsKey(domainID)
	summaries, _ := cache.GetCached[[]db.ConversationSummary](ctx, s.cache, key)

	summaries = append([]db.ConversationSummary{summary}, summaries...)
	if len(summaries) > domainListMax {
		summaries = summaries[:domainListMax]
	}
	cache.Put(ctx, s.cache, key, s.ttl, summaries)
}

// cacheTitle records a conversation title in the domain's title index hash
func (s *Service) cacheTitle(ctx context.Context, domainID, conversationID, title string, updatedAt time.Time) {
	entry, err := json.Marshal(cache.TitleEntry{Title: title, UpdatedAt: updatedAt})
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to marshal title index entry")
		return
	}

	key := cache.TitlesKey(domainID)
	if err := s.cache.HSet(ctx, key, conversationID, entry); err != nil {
		logger.Log.WithError(err).Warn("Failed to cache conversation title")
		return
	}
	if err := s.cache.Expire(ctx, s.ttl, key); err != nil {
		logger.Log.WithError(err).Warn("Failed to set title index TTL")
	}
}

// patchCachedFeedback updates the message inside the cached list and writes
// the dedicated feedback entry for point lookups
func (s *Service) patchCachedFeedback(ctx context.Context, conversationID, messageID string, score int, text *string, feedbackAt *time.Time) {
	key := cache.MessagesKey(conversationID)
	if messages, ok := cache.GetCached[[]db.Message](ctx, s.cache, key); ok {
		for i := range messages {
			if messages[i].ID == messageID {
				messages[i].Liked = score
				messages[i].FeedbackText = text
				messages[i].FeedbackAt = feedbackAt
				break
			}
		}
		cache.Put(ctx, s.cache, key, s.ttl, messages)
	}

	cache.Put(ctx, s.cache, cache.FeedbackKey(conversationID, messageID), s.ttl, FeedbackEntry{
		Liked:        score,
		FeedbackText: text,
		FeedbackAt:   feedbackAt,
	})
}
