// Package cache provides the Redis-backed cache store, the cache key scheme
// and the shared cache-aside read helper.
package cache

import "fmt"

// Key derivation is pure and deterministic; every cached entity has exactly
// one key.

// ConversationKey is the key for a single conversation record
func ConversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s", conversationID)
}

// MessagesKey is the key for a conversation's full message list
func MessagesKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

// DomainConversationsKey is the key for a domain's most-recent conversation
// list (at most 50 entries, sorted by last activity)
func DomainConversationsKey(domainID string) string {
	return fmt.Sprintf("domain:%s:conversations", domainID)
}

// TitlesKey is the key for a domain's title index hash used by search;
// fields are conversation ids, values hold {title, updated_at}
func TitlesKey(domainID string) string {
	return fmt.Sprintf("domain:%s:titles", domainID)
}

// FeedbackKey is the key for a message's feedback point lookup
func FeedbackKey(conversationID, messageID string) string {
	return fmt.Sprintf("conversation:%s:message:%s:feedback", conversationID, messageID)
}

// SessionKey is the key for a domain's session hash
func SessionKey(domainID string) string {
	return fmt.Sprintf("domain:%s:session", domainID)
}

// ActivityKey is the key for a domain's last-activity timestamp
func ActivityKey(domainID string) string {
	return fmt.Sprintf("domain:%s:activity", domainID)
}
