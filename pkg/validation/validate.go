// Package validation rejects malformed requests before any store or
// provider call.
package validation

import (
	"github.com/westbrookdaniel/chat/pkg/models"
)

// ValidateCreateThread checks a create-thread request.
func ValidateCreateThread(owner string, msgs []models.Message) error {
	if owner == "" {
		return models.Validation("owner", "is required")
	}
	return ValidateMessages(msgs)
}

// ValidateMessages checks the structural invariants of a message list:
// unique ids, known roles, non-nil parts.
func ValidateMessages(msgs []models.Message) error {
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			return models.Validation("messages", "message id is required")
		}
		if _, dup := seen[m.ID]; dup {
			return models.Validation("messages", "duplicate message id "+m.ID)
		}
		seen[m.ID] = struct{}{}
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			return models.Validation("messages", "unknown role "+m.Role)
		}
		if len(m.Parts) == 0 {
			return models.Validation("messages", "message has no parts")
		}
	}
	return nil
}

// ValidateChatTurn checks a stream-turn request: the history must be
// non-empty and end on a user turn.
func ValidateChatTurn(threadID string, msgs []models.Message) error {
	if threadID == "" {
		return models.Validation("thread_id", "is required")
	}
	if err := ValidateMessages(msgs); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return models.Validation("messages", "at least one message is required")
	}
	if msgs[len(msgs)-1].Role != models.RoleUser {
		return models.Validation("messages", "last message must be a user turn")
	}
	return nil
}
