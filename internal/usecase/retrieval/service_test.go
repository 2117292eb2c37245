package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/modality"
	"github.com/kailas-cloud/mmdex/internal/domain/search/filter"
	"github.com/kailas-cloud/mmdex/internal/domain/search/hit"
	"github.com/kailas-cloud/mmdex/internal/domain/search/mode"
	"github.com/kailas-cloud/mmdex/internal/domain/search/query"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	"github.com/kailas-cloud/mmdex/internal/domain/search/task"
)

// --- Mocks ---

type mockBackend struct {
	tasks      []task.Task
	results    []result.Result
	listErr    error
	searchErr  error
	deleteErr  error
	queries    []query.Query
	deleted    []string
	onSearch   func()
	listCalled int
}

func (m *mockBackend) ListTasks(_ context.Context, q query.Query) ([]task.Task, error) {
	m.listCalled++
	m.queries = append(m.queries, q)
	return m.tasks, m.listErr
}

func (m *mockBackend) SearchVector(_ context.Context, q query.Query) ([]result.Result, error) {
	m.queries = append(m.queries, q)
	if m.onSearch != nil {
		hook := m.onSearch
		m.onSearch = nil
		hook()
	}
	return m.results, m.searchErr
}

func (m *mockBackend) DeleteTask(_ context.Context, taskID string) error {
	m.deleted = append(m.deleted, taskID)
	return m.deleteErr
}

type mockStates struct {
	mu     sync.Mutex
	states map[string]State
}

func newMockStates() *mockStates { return &mockStates{states: map[string]State{}} }

func (m *mockStates) Create(_ context.Context, id string, initial State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[id]; ok {
		return domain.ErrInvalidInput
	}
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
	clustered []map[result.Category]int
}

func (m *mockObserver) StaleResponse(op string) { m.stale = append(m.stale, op) }

func (m *mockObserver) Clustered(c map[result.Category]int) { m.clustered = append(m.clustered, c) }

// --- Helpers ---

const sid = "session-1"

func newTestService(t *testing.T, b *mockBackend) (*Service, *mockStates, *mockObserver) {
	t.Helper()
	states := newMockStates()
	obs := &mockObserver{}
	svc := New(b, states, obs, zap.NewNop(), Config{InitialPageSize: 9, PageIncrement: 6})
	if _, err := svc.Open(context.Background(), sid); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return svc, states, obs
}

func vres(t *testing.T, taskID string, d float64) result.Result {
	t.Helper()
	r, err := result.New(result.Fields{
		TaskID: taskID, Modality: modality.Video, Distance: d, EmbeddingOption: "video",
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func tsk(t *testing.T, id string) task.Task {
	t.Helper()
	tk, err := task.New(task.Fields{TaskID: id, Modality: modality.Image})
	if err != nil {
		t.Fatal(err)
	}
	return tk
}

func taskIDs(v View) []string {
	out := make([]string, len(v.Hits))
	for i, h := range v.Hits {
		out[i] = h.TaskID()
	}
	return out
}

// --- Tests ---

func TestOpen_InitialState(t *testing.T) {
	svc, _, _ := newTestService(t, &mockBackend{})
	v, err := svc.View(context.Background(), sid)
	if err != nil {
		t.Fatal(err)
	}
	if v.Mode != mode.Browse || v.PageSize != 9 || len(v.Hits) != 0 || v.Option != filter.All {
		t.Errorf("initial view = %+v", v)
	}
}

func TestView_UnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t, &mockBackend{})
	if _, err := svc.View(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestSearch_BrowseWhenEmpty(t *testing.T) {
	b := &mockBackend{tasks: []task.Task{tsk(t, "a"), tsk(t, "b")}}
	svc, _, _ := newTestService(t, b)

	v, err := svc.Search(context.Background(), sid, SearchInput{Text: "   "})
	if err != nil {
		t.Fatal(err)
	}
	if v.Mode != mode.Browse || b.listCalled != 1 {
		t.Errorf("mode = %q, listCalled = %d", v.Mode, b.listCalled)
	}
	for _, h := range v.Hits {
		if h.Source() != hit.Listing {
			t.Errorf("hit source = %q", h.Source())
		}
	}
	if v.Loading {
		t.Error("Loading still set")
	}
}

func TestSearch_VectorResultsAreClustered(t *testing.T) {
	b := &mockBackend{results: []result.Result{
		vres(t, "a", 1.0), vres(t, "b", 1.2), vres(t, "c", 1.52),
	}}
	svc, _, obs := newTestService(t, b)

	v, err := svc.Search(context.Background(), sid, SearchInput{Text: "sunset"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Mode != mode.VectorText {
		t.Errorf("Mode = %q", v.Mode)
	}
	want := []result.Category{result.High, result.Medium, result.Low}
	for i, h := range v.Hits {
		r, ok := h.Result()
		if !ok {
			t.Fatalf("hit %d is not a vector hit", i)
		}
		if r.Category() != want[i] {
			t.Errorf("hit %d category = %q, want %q", i, r.Category(), want[i])
		}
	}
	if len(obs.clustered) != 1 {
		t.Errorf("Clustered observed %d times", len(obs.clustered))
	}
}

func TestSearch_ImageWinsOverText(t *testing.T) {
	b := &mockBackend{}
	svc, _, _ := newTestService(t, b)

	img := query.Image{Bytes: []byte{1, 2}, Format: "png"}
	v, err := svc.Search(context.Background(), sid, SearchInput{Text: "cat", Image: img})
	if err != nil {
		t.Fatal(err)
	}
	if v.Mode != mode.VectorImage || !v.HasImage {
		t.Errorf("view = %+v", v)
	}
	if b.queries[0].Embedding().Modality() != modality.Image {
		t.Errorf("embedding modality = %q", b.queries[0].Embedding().Modality())
	}
}

func TestSearch_DefaultModel(t *testing.T) {
	b := &mockBackend{}
	states := newMockStates()
	svc := New(b, states, nil, zap.NewNop(), Config{ModelID: "custom-model"})
	if _, err := svc.Open(context.Background(), sid); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Search(context.Background(), sid, SearchInput{Text: "cat"}); err != nil {
		t.Fatal(err)
	}
	if got := b.queries[0].Embedding().ModelID(); got != "custom-model" {
		t.Errorf("model = %q, want configured default", got)
	}

	in := SearchInput{Text: "cat", Settings: request.Settings{ModelID: "picked"}}
	if _, err := svc.Search(context.Background(), sid, in); err != nil {
		t.Fatal(err)
	}
	if got := b.queries[1].Embedding().ModelID(); got != "picked" {
		t.Errorf("model = %q, want user choice", got)
	}
}

func TestSearch_DedupesFragments(t *testing.T) {
	b := &mockBackend{results: []result.Result{
		vres(t, "a", 0.9), vres(t, "b", 1.4), vres(t, "a", 0.5),
	}}
	svc, _, _ := newTestService(t, b)

	v, err := svc.Search(context.Background(), sid, SearchInput{Text: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Hits) != 2 {
		t.Fatalf("hits = %v", taskIDs(v))
	}
	first, _ := v.Hits[0].Result()
	if first.TaskID() != "a" || first.Distance() != 0.5 {
		t.Errorf("first = %s %.2f, want a 0.50", first.TaskID(), first.Distance())
	}
}

func TestSearch_EmptyResultIsNotAnError(t *testing.T) {
	svc, _, _ := newTestService(t, &mockBackend{results: nil})
	v, err := svc.Search(context.Background(), sid, SearchInput{Text: "nothing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Hits == nil || len(v.Hits) != 0 {
		t.Errorf("hits = %v", v.Hits)
	}
}

func TestSearch_BackendErrorKeepsPreviousList(t *testing.T) {
	b := &mockBackend{results: []result.Result{vres(t, "a", 1.0), vres(t, "b", 1.1)}}
	svc, _, _ := newTestService(t, b)
	ctx := context.Background()

	if _, err := svc.Search(ctx, sid, SearchInput{Text: "first"}); err != nil {
		t.Fatal(err)
	}

	b.searchErr = domain.NewBackendError(500, "Failed to generate input embedding")
	v, err := svc.Search(ctx, sid, SearchInput{Text: "second"})
	if !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("err = %v, want ErrBackend", err)
	}
	if v.Alert != "Failed to generate input embedding" {
		t.Errorf("Alert = %q", v.Alert)
	}
	if got := taskIDs(v); len(got) != 2 || got[0] != "a" {
		t.Errorf("hits = %v, want previous list", got)
	}
	if v.Loading {
		t.Error("Loading still set")
	}

	v, err = svc.DismissAlert(ctx, sid)
	if err != nil || v.Alert != "" {
		t.Errorf("DismissAlert: alert = %q, err = %v", v.Alert, err)
	}
}

func TestShowMore_ReplacesList(t *testing.T) {
	b := &mockBackend{results: []result.Result{vres(t, "a", 1.0)}}
	svc, _, _ := newTestService(t, b)
	ctx := context.Background()

	if _, err := svc.Search(ctx, sid, SearchInput{Text: "beach", Option: filter.Video}); err != nil {
		t.Fatal(err)
	}
	b.results = []result.Result{vres(t, "a", 1.0), vres(t, "b", 1.3)}
	v, err := svc.ShowMore(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if v.PageSize != 15 {
		t.Errorf("PageSize = %d, want 15", v.PageSize)
	}
	if got := taskIDs(v); len(got) != 2 {
		t.Errorf("hits = %v, want replaced list of 2", got)
	}
	last := b.queries[len(b.queries)-1]
	if last.PageSize() != 15 || last.Text() != "beach" || last.Option() != filter.Video {
		t.Errorf("reissued query = %+v", last)
	}
}

func TestSearch_FailureKeepsCommittedInputs(t *testing.T) {
	b := &mockBackend{results: []result.Result{vres(t, "a", 1.0)}}
	svc, _, _ := newTestService(t, b)
	ctx := context.Background()

	if _, err := svc.Search(ctx, sid, SearchInput{Text: "beach", Option: filter.Video}); err != nil {
		t.Fatal(err)
	}
	b.searchErr = domain.NewBackendError(500, "index offline")
	v, err := svc.Search(ctx, sid, SearchInput{Text: "forest"})
	if !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("err = %v, want ErrBackend", err)
	}
	if v.Mode != mode.VectorText || v.Text != "beach" || v.Option != filter.Video {
		t.Errorf("view = %+v, want inputs of the beach search", v)
	}
	if got := taskIDs(v); len(got) != 1 || got[0] != "a" {
		t.Errorf("hits = %v", got)
	}

	b.searchErr = nil
	if _, err := svc.ShowMore(ctx, sid); err != nil {
		t.Fatal(err)
	}
	last := b.queries[len(b.queries)-1]
	if last.Text() != "beach" || last.Option() != filter.Video || last.PageSize() != 15 {
		t.Errorf("show more paged text=%q option=%q size=%d, want beach video 15",
			last.Text(), last.Option(), last.PageSize())
	}
}

func TestShowMore_FailureKeepsPageSize(t *testing.T) {
	b := &mockBackend{results: []result.Result{vres(t, "a", 1.0)}}
	svc, states, _ := newTestService(t, b)
	ctx := context.Background()

	if _, err := svc.Search(ctx, sid, SearchInput{Text: "beach"}); err != nil {
		t.Fatal(err)
	}
	b.searchErr = domain.NewBackendError(502, "timeout")
	v, err := svc.ShowMore(ctx, sid)
	if !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("err = %v, want ErrBackend", err)
	}
	if v.PageSize != 9 || v.Loading {
		t.Errorf("view = %+v, want page size 9 and not loading", v)
	}
	if st, _ := states.Get(ctx, sid); st.Pending != nil {
		t.Errorf("pending = %+v, want none", st.Pending)
	}

	b.searchErr = nil
	v, err = svc.ShowMore(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if v.PageSize != 15 || b.queries[len(b.queries)-1].PageSize() != 15 {
		t.Errorf("page size = %d, want 15 after retry", v.PageSize)
	}
}

func TestShowMore_Browse(t *testing.T) {
	b := &mockBackend{tasks: []task.Task{tsk(t, "a")}}
	svc, _, _ := newTestService(t, b)
	v, err := svc.ShowMore(context.Background(), sid)
	if err != nil {
		t.Fatal(err)
	}
	if v.Mode != mode.Browse || v.PageSize != 15 || b.listCalled != 1 {
		t.Errorf("view = %+v, listCalled = %d", v, b.listCalled)
	}
}

func TestSearch_StaleCompletionDiscarded(t *testing.T) {
	b := &mockBackend{results: []result.Result{vres(t, "old", 1.0)}}
	svc, _, obs := newTestService(t, b)
	ctx := context.Background()

	var inner View
	var innerErr error
	b.onSearch = func() {
		// a newer search lands while the first is in flight
		b.results = []result.Result{vres(t, "new", 1.0)}
		inner, innerErr = svc.Search(ctx, sid, SearchInput{Text: "newer"})
	}

	_, err := svc.Search(ctx, sid, SearchInput{Text: "older"})
	if !errors.Is(err, domain.ErrStaleResponse) {
		t.Fatalf("err = %v, want ErrStaleResponse", err)
	}
	if innerErr != nil {
		t.Fatalf("inner: %v", innerErr)
	}
	if got := taskIDs(inner); len(got) != 1 || got[0] != "new" {
		t.Errorf("inner hits = %v", got)
	}

	v, _ := svc.View(ctx, sid)
	if v.Text != "newer" {
		t.Errorf("Text = %q", v.Text)
	}
	if len(obs.stale) != 1 || obs.stale[0] != "search" {
		t.Errorf("stale = %v", obs.stale)
	}
}

func TestDelete_RemovesTaskWithoutRequery(t *testing.T) {
	b := &mockBackend{results: []result.Result{
		vres(t, "a", 1.0), vres(t, "b", 1.1), vres(t, "a", 1.4),
	}}
	b.results[2] = func() result.Result {
		r, _ := result.New(result.Fields{TaskID: "a", Modality: modality.Video, Distance: 1.4,
			EmbeddingOption: "video", Span: result.Span{StartSec: 10}})
		return r
	}()
	svc, _, _ := newTestService(t, b)
	ctx := context.Background()
	if _, err := svc.Search(ctx, sid, SearchInput{Text: "q"}); err != nil {
		t.Fatal(err)
	}
	calls := len(b.queries)

	v, err := svc.Delete(ctx, sid, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got := taskIDs(v); len(got) != 1 || got[0] != "b" {
		t.Errorf("hits = %v, want [b]", got)
	}
	if len(b.queries) != calls {
		t.Error("delete re-queried the backend")
	}
	if len(b.deleted) != 1 || b.deleted[0] != "a" {
		t.Errorf("deleted = %v", b.deleted)
	}
}

func TestDelete_InFlightShowMoreCannotRestoreTask(t *testing.T) {
	b := &mockBackend{results: []result.Result{vres(t, "a", 1.0), vres(t, "b", 1.1)}}
	svc, states, _ := newTestService(t, b)
	ctx := context.Background()

	if _, err := svc.Search(ctx, sid, SearchInput{Text: "q"}); err != nil {
		t.Fatal(err)
	}

	var delView View
	var delErr error
	b.results = []result.Result{vres(t, "a", 1.0), vres(t, "b", 1.1), vres(t, "c", 1.2)}
	b.onSearch = func() {
		// the delete lands while show more is still waiting on the backend
		delView, delErr = svc.Delete(ctx, sid, "a")
	}

	v, err := svc.ShowMore(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if delErr != nil {
		t.Fatalf("Delete: %v", delErr)
	}
	if got := taskIDs(delView); len(got) != 1 || got[0] != "b" {
		t.Errorf("hits after delete = %v, want [b]", got)
	}
	if got := taskIDs(v); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("hits after show more = %v, want [b c]", got)
	}
	if st, _ := states.Get(ctx, sid); len(st.Deleted) != 0 {
		t.Errorf("deleted = %v, want cleared once the action completed", st.Deleted)
	}

	v, err = svc.Search(ctx, sid, SearchInput{Text: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if got := taskIDs(v); len(got) != 3 {
		t.Errorf("hits of a later search = %v, want backend list as returned", got)
	}
}

func TestDelete_Failure(t *testing.T) {
	b := &mockBackend{tasks: []task.Task{tsk(t, "a")}}
	svc, _, _ := newTestService(t, b)
	ctx := context.Background()
	_, _ = svc.Search(ctx, sid, SearchInput{})

	b.deleteErr = domain.NewBackendError(403, "not allowed")
	v, err := svc.Delete(ctx, sid, "a")
	if !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("err = %v", err)
	}
	if v.Alert != "not allowed" || len(v.Hits) != 1 {
		t.Errorf("view = %+v", v)
	}
}

func TestDelete_NothingSelected(t *testing.T) {
	svc, _, _ := newTestService(t, &mockBackend{})
	if _, err := svc.Delete(context.Background(), sid, " "); !errors.Is(err, domain.ErrNothingSelected) {
		t.Errorf("err = %v", err)
	}
}

func TestClear_ResetsToBrowse(t *testing.T) {
	b := &mockBackend{results: []result.Result{vres(t, "a", 1.0)}, tasks: []task.Task{tsk(t, "z")}}
	svc, _, _ := newTestService(t, b)
	ctx := context.Background()

	_, _ = svc.Search(ctx, sid, SearchInput{Text: "q", Option: filter.Audio})
	_, _ = svc.ShowMore(ctx, sid)

	v, err := svc.Clear(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if v.Mode != mode.Browse || v.Text != "" || v.Option != filter.All || v.PageSize != 9 {
		t.Errorf("view = %+v", v)
	}
	if got := taskIDs(v); len(got) != 1 || got[0] != "z" {
		t.Errorf("hits = %v", got)
	}
}

func TestView_IsSnapshot(t *testing.T) {
	b := &mockBackend{tasks: []task.Task{tsk(t, "a"), tsk(t, "b")}}
	svc, states, _ := newTestService(t, b)
	ctx := context.Background()
	v, _ := svc.Search(ctx, sid, SearchInput{})

	v.Hits[0] = v.Hits[1]
	st, _ := states.Get(ctx, sid)
	if st.Hits[0].TaskID() != "a" {
		t.Error("view aliases stored hits")
	}
}

func TestMerge(t *testing.T) {
	a := []result.Result{vres(t, "a", 1.0).WithCategory(result.High), vres(t, "b", 1.2)}
	b := []result.Result{vres(t, "c", 1.52), vres(t, "a", 0.9)}

	got := Merge(a, b)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = fmt.Sprintf("%s:%.2f:%s", r.TaskID(), r.Distance(), r.Category())
	}
	want := []string{"a:0.90:high", "b:1.20:medium", "c:1.52:low"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Merge = %v, want %v", ids, want)
			break
		}
	}
}

func TestMerge_Empty(t *testing.T) {
	if got := Merge(nil, nil); len(got) != 0 {
		t.Errorf("Merge(nil, nil) = %v", got)
	}
}

func TestMerge_KeepsTextSegmentsOfOneTask(t *testing.T) {
	seg := func(i int, d float64) result.Result {
		r, err := result.New(result.Fields{
			TaskID: "doc", Modality: modality.Text, Distance: d, EmbeddingOption: "text",
			Span: result.Span{SegmentIndex: i},
		})
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	got := Merge([]result.Result{seg(1, 0.4)}, []result.Result{seg(2, 0.6), seg(1, 0.3)})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 segments", len(got))
	}
	if got[0].Distance() != 0.3 || got[1].Span().SegmentIndex != 2 {
		t.Errorf("merged = %+v, %+v", got[0].Fields(), got[1].Fields())
	}
}
