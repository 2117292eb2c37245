package chi

import (
	"net/http"

	"github.com/kailas-cloud/mmdex/internal/domain/search/filter"
	"github.com/kailas-cloud/mmdex/internal/domain/search/query"
	retrievaluc "github.com/kailas-cloud/mmdex/internal/usecase/retrieval"
)

// Search handles POST /sessions/{session}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	img, err := query.ParseDataURL(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	opt, err := filter.Parse(req.Option)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	view, err := s.search.Search(r.Context(), sessionID(r), retrievaluc.SearchInput{
		Text:     req.Text,
		Image:    img,
		Option:   opt,
		Settings: req.Settings.settings(),
	})
	s.writeSearchView(w, r, view, err)
}

// ShowMore handles POST /sessions/{session}/search/more.
func (s *Server) ShowMore(w http.ResponseWriter, r *http.Request) {
	view, err := s.search.ShowMore(r.Context(), sessionID(r))
	s.writeSearchView(w, r, view, err)
}

// ClearSearch handles POST /sessions/{session}/search/clear.
func (s *Server) ClearSearch(w http.ResponseWriter, r *http.Request) {
	view, err := s.search.Clear(r.Context(), sessionID(r))
	s.writeSearchView(w, r, view, err)
}

// GetResults handles GET /sessions/{session}/results.
func (s *Server) GetResults(w http.ResponseWriter, r *http.Request) {
	view, err := s.search.View(r.Context(), sessionID(r))
	s.writeSearchView(w, r, view, err)
}

// DeleteTask handles DELETE /sessions/{session}/tasks/{task}.
func (s *Server) DeleteTask(w http.ResponseWriter, r *http.Request) {
	var taskID string
	if err := bindPathParam(r, "task", &taskID); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid task parameter")
		return
	}
	view, err := s.search.Delete(r.Context(), sessionID(r), taskID)
	s.writeSearchView(w, r, view, err)
}

// DismissSearchAlert handles POST /sessions/{session}/search/alert/dismiss.
func (s *Server) DismissSearchAlert(w http.ResponseWriter, r *http.Request) {
	view, err := s.search.DismissAlert(r.Context(), sessionID(r))
	s.writeSearchView(w, r, view, err)
}

func (s *Server) writeSearchView(w http.ResponseWriter, r *http.Request, view retrievaluc.View, err error) {
	if err != nil {
		var state any
		if view.Mode != "" {
			state = view
		}
		s.handleDomainError(w, r, err, state)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
