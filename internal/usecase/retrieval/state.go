package retrieval

import (
	"slices"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/search/filter"
	"github.com/kailas-cloud/mmdex/internal/domain/search/hit"
	"github.com/kailas-cloud/mmdex/internal/domain/search/mode"
	"github.com/kailas-cloud/mmdex/internal/domain/search/query"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
)

// Inputs are the search inputs of one action.
type Inputs struct {
	Mode     mode.Mode        `json:"mode"`
	Text     string           `json:"text,omitempty"`
	Image    query.Image      `json:"image,omitzero"`
	Option   filter.Option    `json:"option"`
	Settings request.Settings `json:"settings"`
	PageSize int              `json:"page_size"`
}

func inputsOf(q query.Query, settings request.Settings) Inputs {
	return Inputs{
		Mode:     q.Mode(),
		Text:     q.Text(),
		Image:    q.Image(),
		Option:   q.Option(),
		Settings: settings,
		PageSize: q.PageSize(),
	}
}

// Query rebuilds the query the inputs describe.
func (in Inputs) Query() query.Query {
	return query.New(in.Text, in.Image, in.Option, in.PageSize, in.Settings)
}

// State is the persisted search state of one console session. It changes only
// through the reducer functions in this file.
//
// The embedded Inputs always describe Hits. An action in flight lives in
// Pending until it completes.
type State struct {
	Generation uint64 `json:"generation"`
	Inputs
	Pending *Inputs   `json:"pending,omitempty"`
	Deleted []string  `json:"deleted,omitempty"`
	Hits    []hit.Hit `json:"hits"`
	Alert   string    `json:"alert,omitempty"`
	Loading bool      `json:"loading"`
}

// Initial returns the state of a fresh session.
func Initial(pageSize int) State {
	if pageSize <= 0 {
		pageSize = query.DefaultPageSize
	}
	return State{
		Inputs: Inputs{Mode: mode.Browse, Option: filter.All, PageSize: pageSize},
		Hits:   []hit.Hit{},
	}
}

// begin records a new action as pending and returns its generation token. The
// committed inputs and hits are left alone.
func begin(s *State, q query.Query, settings request.Settings) uint64 {
	in := inputsOf(q, settings)
	s.Generation++
	s.Pending = &in
	s.Deleted = nil
	s.Loading = true
	return s.Generation
}

// complete commits the pending inputs and replaces the list with a fresh page.
// Pagination never appends. Tasks deleted while the action was in flight stay out.
func complete(s *State, gen uint64, hits []hit.Hit) error {
	if gen != s.Generation {
		return domain.ErrStaleResponse
	}
	if s.Pending != nil {
		s.Inputs = *s.Pending
	}
	hits = slices.DeleteFunc(slices.Clone(hits), func(h hit.Hit) bool {
		return slices.Contains(s.Deleted, h.TaskID())
	})
	if hits == nil {
		hits = []hit.Hit{}
	}
	s.Hits = hits
	s.Pending = nil
	s.Deleted = nil
	s.Loading = false
	s.Alert = ""
	return nil
}

// fail records an alert and drops the pending inputs. The committed inputs and
// the previous list are untouched.
func fail(s *State, gen uint64, err error) error {
	if gen != s.Generation {
		return domain.ErrStaleResponse
	}
	s.Pending = nil
	s.Deleted = nil
	s.Loading = false
	s.Alert = domain.AlertMessage(err)
	return nil
}

// nextPage returns the committed query enlarged by n.
func nextPage(s State, n int) query.Query {
	q := s.Query()
	return q.WithPageSize(q.PageSize() + n)
}

// cleared returns the browse query that replaces the current inputs.
func cleared(s State, pageSize int) query.Query {
	return query.New("", query.Image{}, filter.All, pageSize, s.Settings)
}

// removeTask drops every hit belonging to taskID. While an action is in flight
// the id is remembered so its response cannot bring the task back. Returns the
// number of hits removed.
func removeTask(s *State, taskID string) int {
	if s.Loading && !slices.Contains(s.Deleted, taskID) {
		s.Deleted = append(s.Deleted, taskID)
	}
	before := len(s.Hits)
	s.Hits = slices.DeleteFunc(slices.Clone(s.Hits), func(h hit.Hit) bool {
		return h.TaskID() == taskID
	})
	return before - len(s.Hits)
}

func dismissAlert(s *State) {
	s.Alert = ""
}

// View is a read-only snapshot of State for presentation.
type View struct {
	Generation uint64        `json:"generation"`
	Mode       mode.Mode     `json:"mode"`
	Text       string        `json:"text,omitempty"`
	HasImage   bool          `json:"has_image"`
	Option     filter.Option `json:"option"`
	PageSize   int           `json:"page_size"`
	Hits       []hit.Hit     `json:"hits"`
	Alert      string        `json:"alert,omitempty"`
	Loading    bool          `json:"loading"`
}

func viewOf(s State) View {
	hits := slices.Clone(s.Hits)
	if hits == nil {
		hits = []hit.Hit{}
	}
	return View{
		Generation: s.Generation,
		Mode:       s.Mode,
		Text:       s.Text,
		HasImage:   !s.Image.IsEmpty(),
		Option:     s.Option,
		PageSize:   s.PageSize,
		Hits:       hits,
		Alert:      s.Alert,
		Loading:    s.Loading,
	}
}
