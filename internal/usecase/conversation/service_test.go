package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/chat"
	"github.com/kailas-cloud/mmdex/internal/domain/modality"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

// --- Mocks ---

type mockBackend struct {
	reply    Reply
	err      error
	requests []ChatRequest
	onChat   func()
}

func (m *mockBackend) Chat(_ context.Context, req ChatRequest) (Reply, error) {
	m.requests = append(m.requests, req)
	if m.onChat != nil {
		hook := m.onChat
		m.onChat = nil
		hook()
	}
	return m.reply, m.err
}

type mockStates struct {
	mu     sync.Mutex
	states map[string]State
}

func newMockStates() *mockStates { return &mockStates{states: map[string]State{}} }

func (m *mockStates) Create(_ context.Context, id string, initial State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = initial
	return nil
}

func (m *mockStates) Get(_ context.Context, id string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return State{}, domain.ErrSessionNotFound
	}
	return st, nil
}

func (m *mockStates) Update(_ context.Context, id string, fn func(*State) error) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	if !ok {
		return State{}, domain.ErrSessionNotFound
	}
	if err := fn(&st); err != nil {
		return st, err
	}
	m.states[id] = st
	return st, nil
}

type mockObserver struct {
	stale     []string
	clustered int
}

func (m *mockObserver) StaleResponse(op string) { m.stale = append(m.stale, op) }

func (m *mockObserver) Clustered(map[result.Category]int) { m.clustered++ }

// --- Helpers ---

const sid = "s-1"

func newTestService(t *testing.T, b *mockBackend) (*Service, *mockStates, *mockObserver) {
	t.Helper()
	states := newMockStates()
	obs := &mockObserver{}
	svc := New(b, states, obs, zap.NewNop(), Config{TopK: 3, AudioDuration: 30})
	if _, err := svc.Open(context.Background(), sid); err != nil {
		t.Fatal(err)
	}
	return svc, states, obs
}

func cite(t *testing.T, m modality.Modality, d float64) result.Result {
	t.Helper()
	f := result.Fields{Modality: m, Distance: d, TaskName: "file"}
	switch m {
	case modality.Text:
		f.Citation = "the quick brown fox"
		f.Span = result.Span{StartChar: 0, EndChar: 19, SegmentIndex: 1}
	case modality.Video, modality.Audio:
		f.Span = result.Span{StartSec: 5, EndSec: 10}
	}
	r, err := result.New(f)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// --- Tests ---

func TestSubmit_Success(t *testing.T) {
	b := &mockBackend{reply: Reply{
		Text: "Found the following relevant results",
		Citations: []result.Result{
			cite(t, modality.Video, 1.0), cite(t, modality.Text, 1.2), cite(t, modality.Image, 1.52),
		},
	}}
	svc, _, obs := newTestService(t, b)

	v, err := svc.Submit(context.Background(), sid, SubmitInput{Text: "show me foxes"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != Idle || len(v.Messages) != 2 {
		t.Fatalf("view = %+v", v)
	}
	if v.Messages[0].Role() != chat.User || v.Messages[1].Role() != chat.Assistant {
		t.Errorf("roles = %q, %q", v.Messages[0].Role(), v.Messages[1].Role())
	}
	want := []result.Category{result.High, result.Medium, result.Low}
	for i, c := range v.Messages[1].Citations() {
		if c.Category() != want[i] {
			t.Errorf("citation %d = %q, want %q", i, c.Category(), want[i])
		}
	}
	if obs.clustered != 1 {
		t.Errorf("clustered = %d", obs.clustered)
	}

	req := b.requests[0]
	if req.TopK != 3 || req.AudioDuration != 30 {
		t.Errorf("request = %+v", req)
	}
	if len(req.History) != 1 || req.History[0].Text() != "show me foxes" {
		t.Errorf("history sent = %+v", req.History)
	}
}

func TestSubmit_SendsOnlyLastMessageWithoutCitations(t *testing.T) {
	b := &mockBackend{reply: Reply{Text: "a1", Citations: []result.Result{cite(t, modality.Video, 1)}}}
	svc, _, _ := newTestService(t, b)
	ctx := context.Background()

	_, _ = svc.Submit(ctx, sid, SubmitInput{Text: "q1"})
	_, err := svc.Submit(ctx, sid, SubmitInput{Text: "q2", AudioDuration: "12.7"})
	if err != nil {
		t.Fatal(err)
	}
	req := b.requests[1]
	if len(req.History) != 1 || req.History[0].Text() != "q2" {
		t.Errorf("history sent = %+v", req.History)
	}
	if len(req.History[0].Citations()) != 0 {
		t.Error("citations sent to backend")
	}
	if req.AudioDuration != 12 {
		t.Errorf("AudioDuration = %d, want 12", req.AudioDuration)
	}
}

func TestSubmit_EmptyMessage(t *testing.T) {
	b := &mockBackend{}
	svc, _, _ := newTestService(t, b)
	for _, text := range []string{"", "  ", "\n"} {
		if _, err := svc.Submit(context.Background(), sid, SubmitInput{Text: text}); !errors.Is(err, domain.ErrEmptyMessage) {
			t.Errorf("Submit(%q) err = %v", text, err)
		}
	}
	if len(b.requests) != 0 {
		t.Error("backend called for empty message")
	}
	v, _ := svc.History(context.Background(), sid)
	if len(v.Messages) != 0 {
		t.Errorf("history = %d messages", len(v.Messages))
	}
}

func TestSubmit_FailureAddsNoAssistantMessage(t *testing.T) {
	b := &mockBackend{err: domain.NewBackendError(400, "No valid user message found.")}
	svc, _, _ := newTestService(t, b)

	v, err := svc.Submit(context.Background(), sid, SubmitInput{Text: "hello"})
	if !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("err = %v", err)
	}
	if v.Status != Idle {
		t.Errorf("Status = %q", v.Status)
	}
	if len(v.Messages) != 1 || v.Messages[0].Role() != chat.User {
		t.Errorf("messages = %+v", v.Messages)
	}
	if v.Alert != "No valid user message found." {
		t.Errorf("Alert = %q", v.Alert)
	}

	v, _ = svc.DismissAlert(context.Background(), sid)
	if v.Alert != "" {
		t.Errorf("Alert after dismiss = %q", v.Alert)
	}
}

func TestSubmit_RejectedWhileAwaitingReply(t *testing.T) {
	b := &mockBackend{reply: Reply{Text: "ok"}}
	svc, _, _ := newTestService(t, b)
	ctx := context.Background()

	var innerErr error
	b.onChat = func() {
		_, innerErr = svc.Submit(ctx, sid, SubmitInput{Text: "impatient"})
	}
	if _, err := svc.Submit(ctx, sid, SubmitInput{Text: "first"}); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(innerErr, domain.ErrReplyPending) {
		t.Errorf("inner err = %v, want ErrReplyPending", innerErr)
	}
	v, _ := svc.History(ctx, sid)
	if len(v.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(v.Messages))
	}
}

func TestSubmit_AbandonsLostReply(t *testing.T) {
	b := &mockBackend{reply: Reply{Text: "ok"}}
	svc, states, _ := newTestService(t, b)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	u, _ := chat.NewUserMessage("lost")
	_, _ = states.Update(ctx, sid, func(st *State) error {
		_, err := submit(st, u, now.Add(-time.Hour), time.Minute)
		return err
	})

	if _, err := svc.Submit(ctx, sid, SubmitInput{Text: "again"}); err != nil {
		t.Fatalf("Submit after abandoned reply: %v", err)
	}
}

func TestClear_DiscardsInFlightReply(t *testing.T) {
	b := &mockBackend{reply: Reply{Text: "late"}}
	svc, _, obs := newTestService(t, b)
	ctx := context.Background()

	b.onChat = func() {
		if _, err := svc.Clear(ctx, sid); err != nil {
			t.Errorf("Clear: %v", err)
		}
	}
	_, err := svc.Submit(ctx, sid, SubmitInput{Text: "q"})
	if !errors.Is(err, domain.ErrStaleResponse) {
		t.Fatalf("err = %v, want ErrStaleResponse", err)
	}
	v, _ := svc.History(ctx, sid)
	if len(v.Messages) != 0 || v.Status != Idle {
		t.Errorf("view = %+v", v)
	}
	if len(obs.stale) != 1 {
		t.Errorf("stale = %v", obs.stale)
	}
}

func TestSelectCitation(t *testing.T) {
	b := &mockBackend{reply: Reply{Text: "a", Citations: []result.Result{
		cite(t, modality.Video, 0.5), cite(t, modality.Text, 0.9),
	}}}
	svc, _, _ := newTestService(t, b)
	ctx := context.Background()
	_, _ = svc.Submit(ctx, sid, SubmitInput{Text: "q"})

	sel, err := svc.SelectCitation(ctx, sid, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sel.View != chat.Detail || sel.Modality != modality.Video {
		t.Errorf("selection = %+v", sel)
	}
	if sel.TimeRange != "00:00:05.000 - 00:00:10.000" {
		t.Errorf("TimeRange = %q", sel.TimeRange)
	}

	sel, err = svc.SelectCitation(ctx, sid, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if sel.View != chat.Inline || sel.Excerpt != "the quick brown fox" {
		t.Errorf("selection = %+v", sel)
	}

	if _, err := svc.SelectCitation(ctx, sid, 0, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("user message citation: err = %v", err)
	}
	if _, err := svc.SelectCitation(ctx, sid, 7, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing message: err = %v", err)
	}
}

func TestHistory_UnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t, &mockBackend{})
	if _, err := svc.History(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v", err)
	}
}
