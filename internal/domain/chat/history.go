package chat

import (
	"encoding/json"
	"slices"
)

// History is an append-only conversation log. Appending never touches messages
// already held by earlier History values.
type History struct {
	messages []Message
}

// Append returns a history with m added at the end.
func (h History) Append(m Message) History {
	next := make([]Message, len(h.messages), len(h.messages)+1)
	copy(next, h.messages)
	return History{messages: append(next, m)}
}

// Len returns the number of messages.
func (h History) Len() int { return len(h.messages) }

// At returns the message at index i.
func (h History) At(i int) (Message, bool) {
	if i < 0 || i >= len(h.messages) {
		return Message{}, false
	}
	return h.messages[i], true
}

// Messages returns a copy of all messages in order.
func (h History) Messages() []Message { return slices.Clone(h.messages) }

// Outgoing is the history sent to the backend: only the latest message, stripped
// of citations. Empty history yields nil.
func (h History) Outgoing() []Message {
	if len(h.messages) == 0 {
		return nil
	}
	return []Message{h.messages[len(h.messages)-1].WithoutCitations()}
}

// MarshalJSON encodes the history as a message array.
func (h History) MarshalJSON() ([]byte, error) {
	if h.messages == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.messages)
}

// UnmarshalJSON decodes a message array.
func (h *History) UnmarshalJSON(data []byte) error {
	var ms []Message
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	h.messages = ms
	return nil
}
