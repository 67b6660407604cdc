package models

import "strings"

// Message roles. Threads only ever hold user and assistant turns; the
// system prompt for title synthesis is supplied out of band.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part types. Unknown types are preserved on the wire and skipped by
// consumers so newer servers can keep talking to older clients.
const (
	PartText      = "text"
	PartReasoning = "reasoning"
)

// Part is one tagged segment of a message body.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Attachment references user-supplied file content. URI is either a
// durable remote location (persisted messages) or a local blob reference
// for an in-flight turn; both share this shape.
type Attachment struct {
	URI         string `json:"uri"`
	ContentType string `json:"content_type"`
	Name        string `json:"name"`
}

// Message is one half of a turn inside a thread. Parts is the source of
// truth for rendering and continuation; Content derives the plain text view.
type Message struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	CreatedTS   int64        `json:"created_ts"`
	Parts       []Part       `json:"parts"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// Bootstrap marks the first user message of a brand-new thread that has
	// never received an assistant reply. Cleared on first edit or reply.
	Bootstrap bool `json:"bootstrap,omitempty"`
}

// Content returns the concatenation of all text parts in order.
// Reasoning and unknown part types are excluded.
func (m Message) Content() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
