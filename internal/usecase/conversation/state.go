package conversation

import (
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/chat"
)

// Status is the controller state.
type Status string

// Controller states.
const (
	Idle          Status = "idle"
	AwaitingReply Status = "awaiting_reply"
)

// State is the persisted conversation of one console session.
type State struct {
	Generation   uint64       `json:"generation"`
	Status       Status       `json:"status"`
	History      chat.History `json:"history"`
	Alert        string       `json:"alert,omitempty"`
	PendingSince time.Time    `json:"pending_since,omitzero"`
}

// Initial returns the state of a fresh session.
func Initial() State {
	return State{Status: Idle}
}

// submit appends the user turn and moves to AwaitingReply. A reply outstanding
// for longer than abandonAfter is treated as lost.
func submit(s *State, msg chat.Message, now time.Time, abandonAfter time.Duration) (uint64, error) {
	if s.Status == AwaitingReply {
		if abandonAfter <= 0 || now.Sub(s.PendingSince) < abandonAfter {
			return 0, domain.ErrReplyPending
		}
	}
	s.Generation++
	s.History = s.History.Append(msg)
	s.Status = AwaitingReply
	s.PendingSince = now
	s.Alert = ""
	return s.Generation, nil
}

// reply appends the assistant turn and returns to Idle.
func reply(s *State, gen uint64, msg chat.Message) error {
	if gen != s.Generation || s.Status != AwaitingReply {
		return domain.ErrStaleResponse
	}
	s.History = s.History.Append(msg)
	s.Status = Idle
	s.PendingSince = time.Time{}
	return nil
}

// failReply records an alert, appends nothing and returns to Idle.
func failReply(s *State, gen uint64, err error) error {
	if gen != s.Generation || s.Status != AwaitingReply {
		return domain.ErrStaleResponse
	}
	s.Status = Idle
	s.PendingSince = time.Time{}
	s.Alert = domain.AlertMessage(err)
	return nil
}

// reset empties the history. Any outstanding reply becomes stale.
func reset(s *State) {
	s.Generation++
	s.History = chat.History{}
	s.Status = Idle
	s.PendingSince = time.Time{}
	s.Alert = ""
}

// View is a read-only snapshot of State for presentation.
type View struct {
	Generation uint64         `json:"generation"`
	Status     Status         `json:"status"`
	Messages   []chat.Message `json:"messages"`
	Alert      string         `json:"alert,omitempty"`
}

func viewOf(s State) View {
	msgs := s.History.Messages()
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return View{Generation: s.Generation, Status: s.Status, Messages: msgs, Alert: s.Alert}
}
