// Package session tracks per-domain activity: an opaque session token, the
// active conversation pointer and a metadata map, mirrored between the
// durable store and a cache hash with TTL.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"workpal/internal/cache"
	"workpal/internal/config"
	"workpal/internal/logger"
	"workpal/internal/repository/db"
)

// Claims carries the domain scope inside a minted session token
type Claims struct {
	DomainID string `json:"domain_id"`
	jwt.RegisteredClaims
}

// Service is the session activity tracker
type Service struct {
	db       db.Database
	cache    cache.Store
	ttl      time.Duration
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates a session Service with injected stores
func NewService(database db.Database, store cache.Store, ttl time.Duration, cfg config.SessionConfig) *Service {
	return &Service{
		db:       database,
		cache:    store,
		ttl:      ttl,
		secret:   cfg.Secret,
		tokenTTL: cfg.TokenExpiration,
	}
}

// Update upserts the domain's session in the durable store and mirrors the
// full session into the cache hash. The active conversation reference is
// weak: it may point at a conversation that no longer exists.
func (s *Service) Update(ctx context.Context, domainID string, activeConversationID *string, metadata db.Metadata) (*db.UserSession, error) {
	now := time.Now().UTC()

	sessionID, _ := metadata["session_id"].(string)
	if sessionID == "" {
		var err error
		sessionID, err = s.mintToken(domainID, now)
		if err != nil {
			return nil, fmt.Errorf("error minting session token: %w", err)
		}
	}

	session := &db.UserSession{
		DomainID:             domainID,
		SessionID:            sessionID,
		LastActivity:         &now,
		ActiveConversationID: activeConversationID,
		Metadata:             metadata,
	}

	if err := s.db.UpsertSession(ctx, session); err != nil {
		return nil, err
	}

	s.mirrorSession(ctx, session)
	return session, nil
}

// Get returns the domain's session, cache-preferred. A cache miss falls back
// to the durable store without synchronously repopulating the cache.
func (s *Service) Get(ctx context.Context, domainID string) (*db.UserSession, error) {
	if session, ok := s.cachedSession(ctx, domainID); ok {
		return session, nil
	}
	return s.db.GetSession(ctx, domainID)
}

// mintToken issues a signed HS256 token scoped to the domain
func (s *Service) mintToken(domainID string, now time.Time) (string, error) {
	claims := &Claims{
		DomainID: domainID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// mirrorSession rewrites the session hash best-effort. The key is dropped
// first so fields cleared in this update do not survive from the previous
// mirror.
func (s *Service) mirrorSession(ctx context.Context, session *db.UserSession) {
	key := cache.SessionKey(session.DomainID)

	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Log.WithError(err).Warn("Failed to clear session hash before mirroring")
		return
	}

	fields := map[string]string{
		"domain_id":  session.DomainID,
		"session_id": session.SessionID,
	}
	if session.LastActivity != nil {
		fields["last_activity"] = session.LastActivity.Format(time.RFC3339)
	}
	if session.ActiveConversationID != nil {
		fields["active_conversation_id"] = *session.ActiveConversationID
	}
	if session.Metadata != nil {
		raw, err := json.Marshal(session.Metadata)
		if err != nil {
			logger.Log.WithError(err).Warn("Failed to marshal session metadata for cache")
		} else {
			fields["metadata"] = string(raw)
		}
	}

	for field, value := range fields {
		if err := s.cache.HSet(ctx, key, field, []byte(value)); err != nil {
			logger.Log.WithError(err).Warn("Failed to mirror session into cache")
			return
		}
	}
	if err := s.cache.Expire(ctx, s.ttl, key); err != nil {
		logger.Log.WithError(err).Warn("Failed to set session TTL")
	}
}

// cachedSession reads and decodes the session hash; any failure is a miss
func (s *Service) cachedSession(ctx context.Context, domainID string) (*db.UserSession, bool) {
	fields, err := s.cache.HGetAll(ctx, cache.SessionKey(domainID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.Log.WithError(err).Warn("Session cache read failed, falling back to database")
		}
		return nil, false
	}

	session := &db.UserSession{
		DomainID:  domainID,
		SessionID: fields["session_id"],
	}
	if raw, ok := fields["last_activity"]; ok && raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			session.LastActivity = &ts
		}
	}
	if raw, ok := fields["active_conversation_id"]; ok && raw != "" {
		session.ActiveConversationID = &raw
	}
	if raw, ok := fields["metadata"]; ok && raw != "" {
		var meta db.Metadata
		if err := json.Unmarshal([]byte(raw), &meta); err == nil {
			session.Metadata = meta
		}
	}
	return session, true
}
