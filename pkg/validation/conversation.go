package validation

import (
	"strings"

	"workpal/internal/repository/db"
)

// ValidateTitle checks a conversation title and returns it trimmed
func ValidateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", &db.ValidationError{Field: "title", Reason: "cannot be empty"}
	}
	return trimmed, nil
}

// ValidateContent checks message content at creation time
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &db.ValidationError{Field: "content", Reason: "cannot be empty"}
	}
	return nil
}

// ValidateFeedbackScore checks a feedback score; -1 dislike, 0 none, 1 like
func ValidateFeedbackScore(score int) error {
	if score < -1 || score > 1 {
		return &db.ValidationError{Field: "score", Reason: "must be -1, 0 or 1"}
	}
	return nil
}

// ValidateMessageType checks the message author type
func ValidateMessageType(messageType db.MessageType) error {
	switch messageType {
	case db.MessageUser, db.MessageAssistant, db.MessageSystem, db.MessageAgent:
		return nil
	}
	return &db.ValidationError{Field: "message_type", Reason: "must be user, assistant, system or agent"}
}
