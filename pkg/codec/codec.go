// Package codec converts raw user input into the canonical message-list
// representation and merges server-produced responses back into it. Both
// the HTTP handler and the client-side session controller go through the
// same merge so optimistic and persisted state converge.
package codec

import (
	"strings"
	"time"

	"github.com/westbrookdaniel/chat/pkg/models"
	"github.com/westbrookdaniel/chat/pkg/utils"
)

// BuildUserMessage builds a user turn from free text plus already-packed
// attachments.
func BuildUserMessage(text string, attachments []models.Attachment) models.Message {
	return models.Message{
		ID:          utils.GenMessageID(),
		Role:        models.RoleUser,
		CreatedTS:   time.Now().UTC().UnixNano(),
		Parts:       []models.Part{{Type: models.PartText, Text: text}},
		Attachments: attachments,
	}
}

// BuildBootstrapMessage is BuildUserMessage plus the bootstrap marker.
// Used only for the first turn of a brand-new thread.
func BuildBootstrapMessage(text string, attachments []models.Attachment) models.Message {
	m := BuildUserMessage(text, attachments)
	m.Bootstrap = true
	return m
}

// MergeResponse appends response messages that are not already present by
// id. Idempotent: merging the same response twice yields the same list,
// so a retried merge never duplicates an assistant turn. Appending a
// reply also clears any bootstrap marker on the existing messages.
func MergeResponse(existing, response []models.Message) []models.Message {
	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}
	out := make([]models.Message, len(existing), len(existing)+len(response))
	copy(out, existing)
	appended := false
	for _, m := range response {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
		appended = true
	}
	if appended {
		StripBootstrap(out)
	}
	return out
}

// ExtractPlainText concatenates all text parts of a message in order,
// excluding reasoning and unknown part types.
func ExtractPlainText(m models.Message) string {
	return m.Content()
}

// HistoryPlainText renders a whole history as role-prefixed lines. Feeds
// the title-synthesis prompt.
func HistoryPlainText(msgs []models.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		txt := m.Content()
		if txt == "" {
			continue
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(txt)
		b.WriteString("\n")
	}
	return b.String()
}

// StripBootstrap clears the bootstrap marker in place and reports whether
// any marker was present.
func StripBootstrap(msgs []models.Message) bool {
	stripped := false
	for i := range msgs {
		if msgs[i].Bootstrap {
			msgs[i].Bootstrap = false
			stripped = true
		}
	}
	return stripped
}

// TruncateForEdit replaces the text of the message at index k with text,
// strips its bootstrap marker and discards everything after it. The
// returned slice is the working list [0..k] inclusive, ready for a fresh
// invocation. Ordering is always strip -> mutate -> truncate.
func TruncateForEdit(msgs []models.Message, k int, text string) []models.Message {
	if k < 0 || k >= len(msgs) {
		return msgs
	}
	out := make([]models.Message, k+1)
	copy(out, msgs[:k+1])
	out[k].Bootstrap = false
	replaceText(&out[k], text)
	return out
}

// TruncateForRetry discards the message at index k and everything after
// it, returning [0..k) ready for regeneration.
func TruncateForRetry(msgs []models.Message, k int) []models.Message {
	if k < 0 || k > len(msgs) {
		return msgs
	}
	out := make([]models.Message, k)
	copy(out, msgs[:k])
	return out
}

// replaceText swaps the first text part's content, dropping any further
// text parts so the message reads as the single edited body. Non-text
// parts are preserved untouched.
func replaceText(m *models.Message, text string) {
	parts := make([]models.Part, 0, len(m.Parts))
	replaced := false
	for _, p := range m.Parts {
		if p.Type == models.PartText {
			if !replaced {
				parts = append(parts, models.Part{Type: models.PartText, Text: text})
				replaced = true
			}
			continue
		}
		parts = append(parts, p)
	}
	if !replaced {
		parts = append(parts, models.Part{Type: models.PartText, Text: text})
	}
	m.Parts = parts
}
