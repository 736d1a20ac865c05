package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"workpal/internal/repository/db"
)

// UpsertSession writes a per-domain session row, replacing any existing one
func (p *PostgresDB) UpsertSession(ctx context.Context, session *db.UserSession) error {
	meta, err := marshalMetadata(session.Metadata)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO wl_user_sessions (domain_id, session_id, last_activity, active_conversation_id, metadata, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (domain_id) DO UPDATE SET
		session_id = EXCLUDED.session_id,
		last_activity = EXCLUDED.last_activity,
		active_conversation_id = EXCLUDED.active_conversation_id,
		metadata = EXCLUDED.metadata,
		updated_at = NOW()
	`

	_, err = p.conn.ExecContext(ctx, query,
		session.DomainID, session.SessionID, session.LastActivity, session.ActiveConversationID, meta)
	if err != nil {
		return fmt.Errorf("error upserting session: %w", err)
	}
	return nil
}

// GetSession retrieves a domain's session row
func (p *PostgresDB) GetSession(ctx context.Context, domainID string) (*db.UserSession, error) {
	query := `
	SELECT domain_id, COALESCE(session_id, ''), last_activity, active_conversation_id, metadata
	FROM wl_user_sessions
	WHERE domain_id = $1
	`

	var session db.UserSession
	var lastActivity sql.NullTime
	var activeConversationID sql.NullString
	var meta sql.NullString

	err := p.conn.QueryRowContext(ctx, query, domainID).Scan(
		&session.DomainID, &session.SessionID, &lastActivity, &activeConversationID, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving session: %w", err)
	}

	if lastActivity.Valid {
		session.LastActivity = &lastActivity.Time
	}
	if activeConversationID.Valid {
		session.ActiveConversationID = &activeConversationID.String
	}
	session.Metadata = unmarshalMetadata(meta)
	return &session, nil
}
