package search

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"workpal/internal/cache"
	"workpal/internal/repository/db"
	"workpal/internal/testutil"
)

const (
	testDomain = "hr-east"
	testTTL    = 15 * time.Minute
)

func seedTitle(t *testing.T, mem *testutil.MemoryCache, domainID, conversationID, title string, updatedAt time.Time) {
	t.Helper()
	raw, err := json.Marshal(cache.TitleEntry{Title: title, UpdatedAt: updatedAt})
	if err != nil {
		t.Fatalf("marshal title entry: %v", err)
	}
	if err := mem.HSet(context.Background(), cache.TitlesKey(domainID), conversationID, raw); err != nil {
		t.Fatalf("seed title index: %v", err)
	}
}

func TestSearch_CacheTierAuthoritative(t *testing.T) {
	now := time.Now().UTC()
	mem := testutil.NewMemoryCache()
	seedTitle(t, mem, testDomain, "conv-1", "Vacation policy questions", now)
	seedTitle(t, mem, testDomain, "conv-2", "Payroll setup", now.Add(-time.Hour))
	seedTitle(t, mem, testDomain, "conv-3", "Vacation carryover", now.Add(-2*time.Hour))

	service := NewService(&testutil.MockDatabase{
		SearchConversationsFunc: func(ctx context.Context, domainID, query string, limit, offset int) ([]db.ConversationSummary, int, error) {
			t.Error("durable store consulted although the cache tier had hits")
			return nil, 0, nil
		},
	}, mem, testTTL)

	result, err := service.Search(context.Background(), testDomain, "VACATION", 10, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Source != SourceCache {
		t.Errorf("Search() source = %q, want %q", result.Source, SourceCache)
	}
	if result.TotalCount != 2 {
		t.Errorf("Search() total = %d, want 2", result.TotalCount)
	}
	if len(result.Conversations) != 2 {
		t.Fatalf("Search() hits = %d, want 2", len(result.Conversations))
	}
	// Newest activity first
	if result.Conversations[0].ID != "conv-1" || result.Conversations[1].ID != "conv-3" {
		t.Errorf("Search() order = [%s %s], want [conv-1 conv-3]",
			result.Conversations[0].ID, result.Conversations[1].ID)
	}
}

func TestSearch_CacheTierPagination(t *testing.T) {
	now := time.Now().UTC()
	mem := testutil.NewMemoryCache()
	for i, id := range []string{"conv-1", "conv-2", "conv-3"} {
		seedTitle(t, mem, testDomain, id, "weekly standup notes", now.Add(-time.Duration(i)*time.Minute))
	}

	service := NewService(&testutil.MockDatabase{}, mem, testTTL)

	result, err := service.Search(context.Background(), testDomain, "standup", 1, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.TotalCount != 3 {
		t.Errorf("Search() total = %d, want 3 across all pages", result.TotalCount)
	}
	if len(result.Conversations) != 1 || result.Conversations[0].ID != "conv-2" {
		t.Errorf("Search() page = %+v, want [conv-2]", result.Conversations)
	}
}

func TestSearch_FallsBackToDatabaseOnEmptyIndex(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		SearchConversationsFunc: func(ctx context.Context, domainID, query string, limit, offset int) ([]db.ConversationSummary, int, error) {
			return []db.ConversationSummary{{ID: "conv-9", DomainID: domainID, Title: "Archived budget talk"}}, 7, nil
		},
	}
	service := NewService(mockDB, testutil.NewMemoryCache(), testTTL)

	result, err := service.Search(context.Background(), testDomain, "budget", 10, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Source != SourceDatabase {
		t.Errorf("Search() source = %q, want %q", result.Source, SourceDatabase)
	}
	if result.TotalCount != 7 || len(result.Conversations) != 1 {
		t.Errorf("Search() = %d hits, total %d, want 1 hit with total 7", len(result.Conversations), result.TotalCount)
	}
}

func TestSearch_CacheErrorFallsThrough(t *testing.T) {
	mem := testutil.NewMemoryCache()
	mem.FailReads = true

	called := false
	service := NewService(&testutil.MockDatabase{
		SearchConversationsFunc: func(ctx context.Context, domainID, query string, limit, offset int) ([]db.ConversationSummary, int, error) {
			called = true
			return nil, 0, nil
		},
	}, mem, testTTL)

	result, err := service.Search(context.Background(), testDomain, "anything", 10, 0)
	if err != nil {
		t.Fatalf("Search() error = %v, want cache failure swallowed", err)
	}
	if !called {
		t.Error("Search() did not fall back to the durable store")
	}
	if result.Conversations == nil {
		t.Error("Search() conversations = nil, want empty slice")
	}
}

func TestSearch_IgnoresOtherDomainCachedRecord(t *testing.T) {
	now := time.Now().UTC()
	mem := testutil.NewMemoryCache()
	seedTitle(t, mem, testDomain, "conv-1", "Vacation policy", now)
	// Cached record claims another domain; the hit must not expose its fields
	cache.Put(context.Background(), mem, cache.ConversationKey("conv-1"), testTTL, db.Conversation{
		ID:       "conv-1",
		DomainID: "hr-west",
		Title:    "Vacation policy",
		Summary:  "private notes",
	})

	service := NewService(&testutil.MockDatabase{}, mem, testTTL)

	result, err := service.Search(context.Background(), testDomain, "vacation", 10, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Conversations) != 1 {
		t.Fatalf("Search() hits = %d, want 1", len(result.Conversations))
	}
	if result.Conversations[0].Summary != "" {
		t.Error("Search() leaked a cached record owned by another domain")
	}
	if result.Conversations[0].DomainID != testDomain {
		t.Errorf("Search() hit domain = %q, want %q", result.Conversations[0].DomainID, testDomain)
	}
}
