// Package chat models the conversation between a user and the retrieval assistant.
package chat

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/search/cluster"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

// Role identifies the author of a message.
type Role string

// Roles.
const (
	User      Role = "user"
	Assistant Role = "assistant"
)

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool { return r == User || r == Assistant }

// Message is one turn of the conversation. Only assistant messages carry citations,
// and those citations are always clustered.
type Message struct {
	role      Role
	text      string
	citations []result.Result
}

// NewUserMessage creates a user turn. Blank text is rejected.
func NewUserMessage(text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, domain.ErrEmptyMessage
	}
	return Message{role: User, text: text}, nil
}

// NewAssistantMessage creates an assistant turn and clusters its citations.
func NewAssistantMessage(text string, citations []result.Result) Message {
	var cs []result.Result
	if len(citations) > 0 {
		cs = cluster.Cluster(citations)
	}
	return Message{role: Assistant, text: text, citations: cs}
}

// Role returns the message author.
func (m Message) Role() Role { return m.role }

// Text returns the message body.
func (m Message) Text() string { return m.text }

// Citations returns a copy of the clustered citations.
func (m Message) Citations() []result.Result { return slices.Clone(m.citations) }

// Citation returns the citation at index i.
func (m Message) Citation(i int) (result.Result, bool) {
	if i < 0 || i >= len(m.citations) {
		return result.Result{}, false
	}
	return m.citations[i], true
}

// WithoutCitations returns a copy carrying only role and text.
func (m Message) WithoutCitations() Message {
	return Message{role: m.role, text: m.text}
}

type messageRecord struct {
	Role      Role            `json:"role"`
	Text      string          `json:"text"`
	Citations []result.Result `json:"citations,omitempty"`
}

// MarshalJSON encodes the message for session persistence.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageRecord{Role: m.role, Text: m.text, Citations: m.citations})
}

// UnmarshalJSON decodes a persisted message. Citations are kept as stored.
func (m *Message) UnmarshalJSON(data []byte) error {
	var rec messageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if !rec.Role.IsValid() {
		return fmt.Errorf("unknown role %q", rec.Role)
	}
	if rec.Role == User && len(rec.Citations) > 0 {
		return fmt.Errorf("user message with citations")
	}
	*m = Message{role: rec.Role, text: rec.Text, citations: rec.Citations}
	return nil
}
