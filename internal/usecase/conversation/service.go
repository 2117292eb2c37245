package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/chat"
	"github.com/kailas-cloud/mmdex/internal/domain/modality"
	"github.com/kailas-cloud/mmdex/internal/domain/search/cluster"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

// Defaults.
const (
	DefaultTopK           = 3
	DefaultPendingTimeout = 2 * time.Minute
)

// Config holds chat call parameters.
type Config struct {
	TopK int
	// AudioDuration is the default audio segment length; normalized like user input.
	AudioDuration int
	// PendingTimeout bounds how long a lost reply blocks new submissions.
	PendingTimeout time.Duration
}

// SubmitInput is one chat submission.
type SubmitInput struct {
	Text string
	// AudioDuration is a raw override; blank uses the configured default.
	AudioDuration string
}

// Selection is a citation picked from an assistant message.
type Selection struct {
	View      chat.View         `json:"view"`
	Message   int               `json:"message"`
	Index     int               `json:"index"`
	Modality  modality.Modality `json:"modality"`
	TimeRange string            `json:"time_range,omitempty"`
	Excerpt   string            `json:"excerpt,omitempty"`
	Citation  result.Result     `json:"citation"`
}

// Service drives the chat state machine per session.
type Service struct {
	backend Backend
	states  StateStore
	obs     Observer
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time
}

// New creates a conversation service. obs can be nil.
func New(backend Backend, states StateStore, obs Observer, logger *zap.Logger, cfg Config) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.PendingTimeout == 0 {
		cfg.PendingTimeout = DefaultPendingTimeout
	}
	cfg.AudioDuration = request.AudioDuration(strconv.Itoa(cfg.AudioDuration))
	return &Service{backend: backend, states: states, obs: obs, logger: logger, cfg: cfg, now: time.Now}
}

// Open creates the conversation state for a new session.
func (s *Service) Open(ctx context.Context, sessionID string) (View, error) {
	initial := Initial()
	if err := s.states.Create(ctx, sessionID, initial); err != nil {
		return View{}, fmt.Errorf("open chat state: %w", err)
	}
	return viewOf(initial), nil
}

// History returns the conversation so far.
func (s *Service) History(ctx context.Context, sessionID string) (View, error) {
	st, err := s.states.Get(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return viewOf(st), nil
}

// Submit sends a user message and waits for the assistant reply. Only one
// submission per session may be outstanding.
func (s *Service) Submit(ctx context.Context, sessionID string, in SubmitInput) (View, error) {
	msg, err := chat.NewUserMessage(in.Text)
	if err != nil {
		return View{}, err
	}
	audio := s.cfg.AudioDuration
	if strings.TrimSpace(in.AudioDuration) != "" {
		audio = request.AudioDuration(in.AudioDuration)
	}

	var (
		gen      uint64
		outgoing []chat.Message
	)
	if _, err := s.states.Update(ctx, sessionID, func(st *State) error {
		g, err := submit(st, msg, s.now(), s.cfg.PendingTimeout)
		if err != nil {
			return err
		}
		gen = g
		outgoing = st.History.Outgoing()
		return nil
	}); err != nil {
		return View{}, err
	}

	rep, chatErr := s.backend.Chat(ctx, ChatRequest{
		History:       outgoing,
		TopK:          s.cfg.TopK,
		AudioDuration: audio,
	})

	var answer chat.Message
	if chatErr == nil {
		answer = chat.NewAssistantMessage(rep.Text, rep.Citations)
	}

	st, err := s.states.Update(context.WithoutCancel(ctx), sessionID, func(st *State) error {
		if chatErr != nil {
			return failReply(st, gen, chatErr)
		}
		return reply(st, gen, answer)
	})
	if errors.Is(err, domain.ErrStaleResponse) {
		if s.obs != nil {
			s.obs.StaleResponse("chat")
		}
		s.logger.Debug("discarding superseded chat reply", zap.Uint64("generation", gen))
		return View{}, fmt.Errorf("chat: %w", err)
	}
	if err != nil {
		return View{}, err
	}
	if chatErr != nil {
		return viewOf(st), fmt.Errorf("chat: %w", chatErr)
	}

	if cs := answer.Citations(); s.obs != nil && len(cs) > 0 {
		s.obs.Clustered(cluster.Counts(cs))
	}
	return viewOf(st), nil
}

// SelectCitation resolves a citation of an assistant message and picks how to
// present it.
func (s *Service) SelectCitation(ctx context.Context, sessionID string, message, index int) (Selection, error) {
	st, err := s.states.Get(ctx, sessionID)
	if err != nil {
		return Selection{}, err
	}
	msg, ok := st.History.At(message)
	if !ok {
		return Selection{}, fmt.Errorf("message %d: %w", message, domain.ErrNotFound)
	}
	c, ok := msg.Citation(index)
	if !ok {
		return Selection{}, fmt.Errorf("citation %d of message %d: %w", index, message, domain.ErrNotFound)
	}

	sel := Selection{
		View:      chat.ViewFor(c.Modality()),
		Message:   message,
		Index:     index,
		Modality:  c.Modality(),
		TimeRange: c.TimeRange(),
		Citation:  c,
	}
	if sel.View == chat.Inline {
		sel.Excerpt = c.Citation()
	}
	return sel, nil
}

// Clear empties the conversation. A reply still in flight is discarded when it lands.
func (s *Service) Clear(ctx context.Context, sessionID string) (View, error) {
	st, err := s.states.Update(ctx, sessionID, func(st *State) error {
		reset(st)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return viewOf(st), nil
}

// DismissAlert clears the current alert.
func (s *Service) DismissAlert(ctx context.Context, sessionID string) (View, error) {
	st, err := s.states.Update(ctx, sessionID, func(st *State) error {
		st.Alert = ""
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return viewOf(st), nil
}
