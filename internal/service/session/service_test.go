package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"workpal/internal/cache"
	"workpal/internal/config"
	"workpal/internal/repository/db"
	"workpal/internal/testutil"
)

const (
	testDomain = "hr-east"
	testTTL    = 15 * time.Minute
)

var testSessionConfig = config.SessionConfig{
	Secret:          []byte("0123456789abcdef0123456789abcdef"),
	TokenExpiration: 24 * time.Hour,
}

func TestUpdate_MintsTokenWhenAbsent(t *testing.T) {
	var stored *db.UserSession
	mockDB := &testutil.MockDatabase{
		UpsertSessionFunc: func(ctx context.Context, session *db.UserSession) error {
			stored = session
			return nil
		},
	}
	mem := testutil.NewMemoryCache()
	service := NewService(mockDB, mem, testTTL, testSessionConfig)

	convID := "conv-1"
	session, err := service.Update(context.Background(), testDomain, &convID, db.Metadata{"channel": "web"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if stored == nil {
		t.Fatal("Update() did not reach the durable store")
	}
	if session.SessionID == "" {
		t.Fatal("Update() did not mint a session token")
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(session.SessionID, claims, func(token *jwt.Token) (any, error) {
		return testSessionConfig.Secret, nil
	})
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims.DomainID != testDomain {
		t.Errorf("token domain = %q, want %q", claims.DomainID, testDomain)
	}

	fields, err := mem.HGetAll(context.Background(), cache.SessionKey(testDomain))
	if err != nil {
		t.Fatalf("session not mirrored into cache: %v", err)
	}
	if fields["active_conversation_id"] != convID {
		t.Errorf("mirrored active conversation = %q, want %q", fields["active_conversation_id"], convID)
	}
	if mem.TTL(cache.SessionKey(testDomain)) != testTTL {
		t.Errorf("session TTL = %v, want %v", mem.TTL(cache.SessionKey(testDomain)), testTTL)
	}
}

func TestUpdate_KeepsProvidedSessionID(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		UpsertSessionFunc: func(ctx context.Context, session *db.UserSession) error { return nil },
	}
	service := NewService(mockDB, testutil.NewMemoryCache(), testTTL, testSessionConfig)

	session, err := service.Update(context.Background(), testDomain, nil, db.Metadata{"session_id": "existing-token"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if session.SessionID != "existing-token" {
		t.Errorf("Update() session id = %q, want the provided one", session.SessionID)
	}
}

func TestUpdate_ClearedFieldsDoNotSurviveInCache(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		UpsertSessionFunc: func(ctx context.Context, session *db.UserSession) error { return nil },
	}
	mem := testutil.NewMemoryCache()
	service := NewService(mockDB, mem, testTTL, testSessionConfig)
	ctx := context.Background()

	convID := "conv-1"
	if _, err := service.Update(ctx, testDomain, &convID, db.Metadata{"session_id": "tok", "channel": "web"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// Clearing the active conversation must clear it in the mirror too, not
	// just in the durable store
	if _, err := service.Update(ctx, testDomain, nil, db.Metadata{"session_id": "tok"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	session, err := service.Get(ctx, testDomain)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if session.ActiveConversationID != nil {
		t.Errorf("Get() active conversation = %q, want nil after it was cleared", *session.ActiveConversationID)
	}
	if _, ok := session.Metadata["channel"]; ok {
		t.Error("Get() served metadata dropped by the last update")
	}
}

func TestUpdate_DatabaseErrorIsFatal(t *testing.T) {
	dbErr := errors.New("connection refused")
	mockDB := &testutil.MockDatabase{
		UpsertSessionFunc: func(ctx context.Context, session *db.UserSession) error { return dbErr },
	}
	service := NewService(mockDB, testutil.NewMemoryCache(), testTTL, testSessionConfig)

	if _, err := service.Update(context.Background(), testDomain, nil, nil); !errors.Is(err, dbErr) {
		t.Errorf("Update() error = %v, want the durable-store error", err)
	}
}

func TestUpdate_CacheFailureNonFatal(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		UpsertSessionFunc: func(ctx context.Context, session *db.UserSession) error { return nil },
	}
	mem := testutil.NewMemoryCache()
	mem.FailWrites = true
	service := NewService(mockDB, mem, testTTL, testSessionConfig)

	if _, err := service.Update(context.Background(), testDomain, nil, nil); err != nil {
		t.Errorf("Update() with cache down error = %v, want nil", err)
	}
}

func TestGet_PrefersCache(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	mem := testutil.NewMemoryCache()
	ctx := context.Background()
	key := cache.SessionKey(testDomain)
	for field, value := range map[string]string{
		"domain_id":              testDomain,
		"session_id":             "cached-token",
		"last_activity":          now.Format(time.RFC3339),
		"active_conversation_id": "conv-7",
		"metadata":               `{"channel":"slack"}`,
	} {
		if err := mem.HSet(ctx, key, field, []byte(value)); err != nil {
			t.Fatalf("seed session hash: %v", err)
		}
	}

	service := NewService(&testutil.MockDatabase{
		GetSessionFunc: func(ctx context.Context, domainID string) (*db.UserSession, error) {
			t.Error("Get() reached the durable store on a cache hit")
			return nil, db.ErrNotFound
		},
	}, mem, testTTL, testSessionConfig)

	session, err := service.Get(ctx, testDomain)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if session.SessionID != "cached-token" {
		t.Errorf("Get() session id = %q, want cached-token", session.SessionID)
	}
	if session.LastActivity == nil || !session.LastActivity.Equal(now) {
		t.Errorf("Get() last activity = %v, want %v", session.LastActivity, now)
	}
	if session.ActiveConversationID == nil || *session.ActiveConversationID != "conv-7" {
		t.Errorf("Get() active conversation = %v, want conv-7", session.ActiveConversationID)
	}
	if session.Metadata["channel"] != "slack" {
		t.Errorf("Get() metadata = %v, want decoded map", session.Metadata)
	}
}

func TestGet_FallsBackToDatabase(t *testing.T) {
	want := &db.UserSession{DomainID: testDomain, SessionID: "db-token"}
	service := NewService(&testutil.MockDatabase{
		GetSessionFunc: func(ctx context.Context, domainID string) (*db.UserSession, error) {
			return want, nil
		},
	}, testutil.NewMemoryCache(), testTTL, testSessionConfig)

	session, err := service.Get(context.Background(), testDomain)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if session.SessionID != "db-token" {
		t.Errorf("Get() session id = %q, want db-token", session.SessionID)
	}
}

func TestGet_NotFound(t *testing.T) {
	service := NewService(&testutil.MockDatabase{
		GetSessionFunc: func(ctx context.Context, domainID string) (*db.UserSession, error) {
			return nil, db.ErrNotFound
		},
	}, testutil.NewMemoryCache(), testTTL, testSessionConfig)

	if _, err := service.Get(context.Background(), "unknown-domain"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
