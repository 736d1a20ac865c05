// Package search implements two-tier conversation title search: a cache-tier
// scan over the domain's title index, with a durable-store fallback.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"workpal/internal/cache"
	"workpal/internal/logger"
	"workpal/internal/repository/db"
)

// Source values reported in a Result
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// Service performs conversation search for a domain
type Service struct {
	db    db.Database
	cache cache.Store
	ttl   time.Duration
}

// NewService creates a search Service with injected stores
func NewService(database db.Database, store cache.Store, ttl time.Duration) *Service {
	return &Service{db: database, cache: store, ttl: ttl}
}

// Result is a page of search matches plus the total count and the tier that
// produced it
type Result struct {
	Conversations []db.ConversationSummary `json:"conversations"`
	TotalCount    int                      `json:"total_count"`
	Query         string                   `json:"query"`
	Limit         int                      `json:"limit"`
	Offset        int                      `json:"offset"`
	Source        string                   `json:"source"`
}

// Search matches conversation titles case-insensitively. When the cache tier
// returns any hits it is authoritative for the call and the durable store is
// not consulted: the title index only covers recently active conversations,
// so older matches can be missed while the cache is warm. That staleness is
// the accepted price of the latency win. Cache-tier errors fall through to
// the durable tier; durable-tier errors are fatal.
func (s *Service) Search(ctx context.Context, domainID, query string, limit, offset int) (*Result, error) {
	if hits := s.searchTitleIndex(ctx, domainID, query); len(hits) > 0 {
		page := paginate(hits, limit, offset)
		return &Result{
			Conversations: page,
			TotalCount:    len(hits),
			Query:         query,
			Limit:         limit,
			Offset:        offset,
			Source:        SourceCache,
		}, nil
	}

	summaries, total, err := s.db.SearchConversations(ctx, domainID, query, limit, offset)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []db.ConversationSummary{}
	}

	return &Result{
		Conversations: summaries,
		TotalCount:    total,
		Query:         query,
		Limit:         limit,
		Offset:        offset,
		Source:        SourceDatabase,
	}, nil
}

// searchTitleIndex scans the domain's title hash for substring matches,
// newest first. Any failure is swallowed so the durable tier can take over.
func (s *Service) searchTitleIndex(ctx context.Context, domainID, query string) []db.ConversationSummary {
	key := cache.TitlesKey(domainID)

	entries, err := s.cache.HGetAll(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.Log.WithError(err).Warn("Title index scan failed, falling back to database")
		}
		return nil
	}

	needle := strings.ToLower(query)
	var matches []db.ConversationSummary
	for conversationID, raw := range entries {
		var entry cache.TitleEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logger.Log.WithFields(logrus.Fields{"conversation_id": conversationID}).Warn("Skipping unreadable title index entry")
			continue
		}
		if !strings.Contains(strings.ToLower(entry.Title), needle) {
			continue
		}
		matches = append(matches, s.summaryFor(ctx, domainID, conversationID, entry))
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})

	if err := s.cache.Expire(ctx, s.ttl, key); err != nil {
		logger.Log.WithError(err).Warn("Failed to refresh title index TTL")
	}
	return matches
}

// summaryFor builds a search hit, enriching it from the cached conversation
// record when one is present and owned by the domain
func (s *Service) summaryFor(ctx context.Context, domainID, conversationID string, entry cache.TitleEntry) db.ConversationSummary {
	if conv, ok := cache.GetCached[db.Conversation](ctx, s.cache, cache.ConversationKey(conversationID)); ok && conv.DomainID == domainID {
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
	return db.ConversationSummary{
		ID:        conversationID,
		DomainID:  domainID,
		Title:     entry.Title,
		Status:    db.StatusActive,
		UpdatedAt: entry.UpdatedAt,
	}
}

func paginate(summaries []db.ConversationSummary, limit, offset int) []db.ConversationSummary {
	if offset >= len(summaries) {
		return []db.ConversationSummary{}
	}
	end := offset + limit
	if limit <= 0 || end > len(summaries) {
		end = len(summaries)
	}
	return summaries[offset:end]
}
