package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"workpal/internal/logger"
	"workpal/internal/repository/db"
)

// CreateConversation inserts a new conversation row
func (p *PostgresDB) CreateConversation(ctx context.Context, conv *db.Conversation) error {
	meta, err := marshalMetadata(conv.Metadata)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO wl_conversations (id, domain_id, title, summary, status, metadata, message_count, total_tokens, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = p.conn.ExecContext(ctx, query,
		conv.ID, conv.DomainID, conv.Title, conv.Summary, string(conv.Status),
		meta, conv.MessageCount, conv.TotalTokens, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating conversation: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": conv.ID, "domain_id": conv.DomainID}).Info("Created new conversation")
	return nil
}

// GetConversation retrieves a conversation scoped to a domain. Soft-deleted
// rows and rows owned by another domain both come back as ErrNotFound.
func (p *PostgresDB) GetConversation(ctx context.Context, id, domainID string) (*db.Conversation, error) {
	query := `
	SELECT id, domain_id, title, COALESCE(summary, ''), status, metadata, message_count, total_tokens, created_at, updated_at, last_message_at
	FROM wl_conversations
	WHERE id = $1 AND domain_id = $2 AND status != 'deleted'
	`

	conv, err := scanConversation(p.conn.QueryRowContext(ctx, query, id, domainID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving conversation: %w", err)
	}
	return conv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*db.Conversation, error) {
	var conv db.Conversation
	var status string
	var meta sql.NullString
	var lastMessageAt sql.NullTime

	err := row.Scan(&conv.ID, &conv.DomainID, &conv.Title, &conv.Summary, &status,
		&meta, &conv.MessageCount, &conv.TotalTokens, &conv.CreatedAt, &conv.UpdatedAt, &lastMessageAt)
	if err != nil {
		return nil, err
	}

	conv.Status = db.ConversationStatus(status)
	conv.Metadata = unmarshalMetadata(meta)
	if lastMessageAt.Valid {
		conv.LastMessageAt = &lastMessageAt.Time
	}
	return &conv, nil
}

// UpdateConversation applies a partial update. Only non-nil fields are
// written; the statement is parameterized, never string-built from values.
// Returns db.ErrNotFound when no row matched.
func (p *PostgresDB) UpdateConversation(ctx context.Context, id, domainID string, update db.ConversationUpdate) error {
	var setClauses []string
	var args []any

	addSet := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if update.Title != nil {
		addSet("title", *update.Title)
	}
	if update.Summary != nil {
		addSet("summary", *update.Summary)
	}
	if update.Status != nil {
		addSet("status", string(*update.Status))
	}
	if update.Metadata != nil {
		meta, err := marshalMetadata(update.Metadata)
		if err != nil {
			return err
		}
		addSet("metadata", meta)
	}

	if len(setClauses) == 0 {
		return nil
	}
	setClauses = append(setClauses, "updated_at = NOW()")

	args = append(args, id, domainID)
	query := fmt.Sprintf(`
	UPDATE wl_conversations
	SET %s
	WHERE id = $%d AND domain_id = $%d AND status != 'deleted'
	`, strings.Join(setClauses, ", "), len(args)-1, len(args))

	result, err := p.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking update result: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": id, "rows": affected}).Debug("Updated conversation")
	return nil
}

// SoftDeleteConversation marks a conversation deleted. The row is retained;
// returns false when the conversation was already deleted or never existed.
func (p *PostgresDB) SoftDeleteConversation(ctx context.Context, id, domainID string) (bool, error) {
	query := `
	UPDATE wl_conversations
	SET status = 'deleted', updated_at = NOW()
	WHERE id = $1 AND domain_id = $2 AND status != 'deleted'
	`

	result, err := p.conn.ExecContext(ctx, query, id, domainID)
	if err != nil {
		return false, fmt.Errorf("error deleting conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking delete result: %w", err)
	}

	if affected > 0 {
		logger.Log.WithField("conversation_id", id).Info("Soft-deleted conversation")
	}
	return affected > 0, nil
}

// ListConversations retrieves a domain's conversations ordered by most recent
// activity, excluding deleted ones
func (p *PostgresDB) ListConversations(ctx context.Context, domainID string, limit, offset int) ([]db.ConversationSummary, error) {
	query := `
	SELECT id, domain_id, title, COALESCE(summary, ''), status, message_count, last_message_at, created_at, updated_at
	FROM wl_conversations
	WHERE domain_id = $1 AND status != 'deleted'
	ORDER BY COALESCE(last_message_at, created_at) DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := p.conn.QueryContext(ctx, query, domainID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]db.ConversationSummary, error) {
	var summaries []db.ConversationSummary
	for rows.Next() {
		var s db.ConversationSummary
		var status string
		var lastMessageAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.DomainID, &s.Title, &s.Summary, &status,
			&s.MessageCount, &lastMessageAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		s.Status = db.ConversationStatus(status)
		if lastMessageAt.Valid {
			s.LastMessageAt = &lastMessageAt.Time
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// SearchConversations matches title or summary case-insensitively and returns
// the paginated slice plus the total match count
func (p *PostgresDB) SearchConversations(ctx context.Context, domainID, query string, limit, offset int) ([]db.ConversationSummary, int, error) {
	pattern := "%" + query + "%"

	var total int
	countQuery := `
	SELECT COUNT(*)
	FROM wl_conversations
	WHERE domain_id = $1 AND status != 'deleted'
	AND (title ILIKE $2 OR summary ILIKE $2)
	`
	if err := p.conn.QueryRowContext(ctx, countQuery, domainID, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting search results: %w", err)
	}

	searchQuery := `
	SELECT id, domain_id, title, COALESCE(summary, ''), status, message_count, last_message_at, created_at, updated_at
	FROM wl_conversations
	WHERE domain_id = $1 AND status != 'deleted'
	AND (title ILIKE $2 OR summary ILIKE $2)
	ORDER BY COALESCE(last_message_at, created_at) DESC
	LIMIT $3 OFFSET $4
	`

	rows, err := p.conn.QueryContext(ctx, searchQuery, domainID, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("error searching conversations: %w", err)
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// BumpConversationCounters advances the advisory message/token counters and
// the last-message timestamp after a message insert
func (p *PostgresDB) BumpConversationCounters(ctx context.Context, conversationID string, tokens int, at time.Time) error {
	query := `
	UPDATE wl_conversations
	SET message_count = message_count + 1,
	    total_tokens = total_tokens + $2,
	    last_message_at = $3,
	    updated_at = $3
	WHERE id = $1
	`

	if _, err := p.conn.ExecContext(ctx, query, conversationID, tokens, at); err != nil {
		return fmt.Errorf("error updating conversation counters: %w", err)
	}
	return nil
}

// TouchConversation refreshes a conversation's updated_at timestamp
func (p *PostgresDB) TouchConversation(ctx context.Context, conversationID string) error {
	query := `UPDATE wl_conversations SET updated_at = NOW() WHERE id = $1`
	if _, err := p.conn.ExecContext(ctx, query, conversationID); err != nil {
		return fmt.Errorf("error updating conversation timestamp: %w", err)
	}
	return nil
}
