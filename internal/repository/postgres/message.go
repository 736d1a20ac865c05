package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"workpal/internal/logger"
	"workpal/internal/repository/db"
)

// InsertMessage persists a new message row. Content and metadata arrive
// already encrypted where encryption applies.
func (p *PostgresDB) InsertMessage(ctx context.Context, msg *db.Message) error {
	meta, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO wl_messages (id, conversation_id, chat_id, message_type, content, metadata, token_count, liked, feedback_text, feedback_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = p.conn.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.ChatID, string(msg.MessageType), msg.Content,
		meta, msg.TokenCount, msg.Liked, msg.FeedbackText, msg.FeedbackAt,
		msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error adding message: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"message_id": msg.ID, "conversation_id": msg.ConversationID}).Debug("Added message to conversation")
	return nil
}

const messageColumns = `id, conversation_id, chat_id, message_type, content, metadata, token_count, liked, feedback_text, feedback_at, created_at, updated_at`

func scanMessage(row rowScanner) (*db.Message, error) {
	var msg db.Message
	var chatID sql.NullString
	var msgType string
	var meta sql.NullString
	var tokenCount sql.NullInt64
	var feedbackText sql.NullString
	var feedbackAt sql.NullTime

	err := row.Scan(&msg.ID, &msg.ConversationID, &chatID, &msgType, &msg.Content,
		&meta, &tokenCount, &msg.Liked, &feedbackText, &feedbackAt,
		&msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	msg.MessageType = db.MessageType(msgType)
	msg.Metadata = unmarshalMetadata(meta)
	if chatID.Valid {
		msg.ChatID = &chatID.String
	}
	if tokenCount.Valid {
		count := int(tokenCount.Int64)
		msg.TokenCount = &count
	}
	if feedbackText.Valid {
		msg.FeedbackText = &feedbackText.String
	}
	if feedbackAt.Valid {
		msg.FeedbackAt = &feedbackAt.Time
	}
	return &msg, nil
}

// GetMessageByChatID looks up a message by its client correlation id
func (p *PostgresDB) GetMessageByChatID(ctx context.Context, conversationID, chatID string) (*db.Message, error) {
	query := `
	SELECT ` + messageColumns + `
	FROM wl_messages
	WHERE conversation_id = $1 AND chat_id = $2
	`

	msg, err := scanMessage(p.conn.QueryRowContext(ctx, query, conversationID, chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving message by chat_id: %w", err)
	}
	return msg, nil
}

// UpdateMessageByChatID rewrites content and metadata for a regenerated
// response, keyed by the correlation id
func (p *PostgresDB) UpdateMessageByChatID(ctx context.Context, conversationID, chatID, content string, metadata db.Metadata, at time.Time) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	query := `
	UPDATE wl_messages
	SET content = $3, metadata = $4, updated_at = $5
	WHERE conversation_id = $1 AND chat_id = $2
	`

	result, err := p.conn.ExecContext(ctx, query, conversationID, chatID, content, meta, at)
	if err != nil {
		return fmt.Errorf("error updating message: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking message update result: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// ListMessages retrieves all messages of a conversation in creation order
func (p *PostgresDB) ListMessages(ctx context.Context, conversationID string) ([]db.Message, error) {
	query := `
	SELECT ` + messageColumns + `
	FROM wl_messages
	WHERE conversation_id = $1
	ORDER BY created_at ASC
	`

	rows, err := p.conn.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []db.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// UpdateFeedback writes a feedback score and text for a message. A nil
// feedbackAt clears the feedback timestamp (score 0, empty text).
func (p *PostgresDB) UpdateFeedback(ctx context.Context, conversationID, messageID string, liked int, feedbackText *string, feedbackAt *time.Time) (bool, error) {
	query := `
	UPDATE wl_messages
	SET liked = $3, feedback_text = $4, feedback_at = $5
	WHERE conversation_id = $1 AND id = $2
	`

	result, err := p.conn.ExecContext(ctx, query, conversationID, messageID, liked, feedbackText, feedbackAt)
	if err != nil {
		return false, fmt.Errorf("error updating message feedback: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking feedback update result: %w", err)
	}
	return affected > 0, nil
}

// UpdateFeedbackByChatID is the correlation-id variant of UpdateFeedback.
// Returns the id of the updated message so callers can patch caches.
func (p *PostgresDB) UpdateFeedbackByChatID(ctx context.Context, conversationID, chatID string, liked int, feedbackText *string, feedbackAt *time.Time) (string, error) {
	query := `
	UPDATE wl_messages
	SET liked = $3, feedback_text = $4, feedback_at = $5
	WHERE conversation_id = $1 AND chat_id = $2
	RETURNING id
	`

	var messageID string
	err := p.conn.QueryRowContext(ctx, query, conversationID, chatID, liked, feedbackText, feedbackAt).Scan(&messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", db.ErrNotFound
		}
		return "", fmt.Errorf("error updating message feedback by chat_id: %w", err)
	}
	return messageID, nil
}

// InsertReferenceLink persists a source link owned by a message
func (p *PostgresDB) InsertReferenceLink(ctx context.Context, link *db.ReferenceLink) error {
	meta, err := marshalMetadata(link.Metadata)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO wl_reference_links (id, message_id, url, title, reference_type, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = p.conn.ExecContext(ctx, query,
		link.ID, link.MessageID, link.URL, link.Title, link.ReferenceType, meta, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("error adding reference link: %w", err)
	}
	return nil
}

// ListReferenceLinks retrieves the links owned by a message
func (p *PostgresDB) ListReferenceLinks(ctx context.Context, messageID string) ([]db.ReferenceLink, error) {
	query := `
	SELECT id, message_id, url, COALESCE(title, ''), reference_type, metadata, created_at
	FROM wl_reference_links
	WHERE message_id = $1
	ORDER BY created_at ASC
	`

	rows, err := p.conn.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("error querying reference links: %w", err)
	}
	defer rows.Close()

	var links []db.ReferenceLink
	for rows.Next() {
		var link db.ReferenceLink
		var meta sql.NullString
		if err := rows.Scan(&link.ID, &link.MessageID, &link.URL, &link.Title,
			&link.ReferenceType, &meta, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning reference link: %w", err)
		}
		link.Metadata = unmarshalMetadata(meta)
		links = append(links, link)
	}
	return links, rows.Err()
}
