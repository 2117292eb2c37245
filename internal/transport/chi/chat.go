package chi

import (
	"net/http"

	conversationuc "github.com/kailas-cloud/mmdex/internal/usecase/conversation"
)

// SubmitChat handles POST /sessions/{session}/chat.
func (s *Server) SubmitChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := s.chat.Submit(r.Context(), sessionID(r), conversationuc.SubmitInput{
		Text:          req.Text,
		AudioDuration: string(req.AudioDuration),
	})
	s.writeChatView(w, r, view, err)
}

// GetChat handles GET /sessions/{session}/chat.
func (s *Server) GetChat(w http.ResponseWriter, r *http.Request) {
	view, err := s.chat.History(r.Context(), sessionID(r))
	s.writeChatView(w, r, view, err)
}

// ClearChat handles DELETE /sessions/{session}/chat.
func (s *Server) ClearChat(w http.ResponseWriter, r *http.Request) {
	view, err := s.chat.Clear(r.Context(), sessionID(r))
	s.writeChatView(w, r, view, err)
}

// DismissChatAlert handles POST /sessions/{session}/chat/alert/dismiss.
func (s *Server) DismissChatAlert(w http.ResponseWriter, r *http.Request) {
	view, err := s.chat.DismissAlert(r.Context(), sessionID(r))
	s.writeChatView(w, r, view, err)
}

// SelectCitation handles GET /sessions/{session}/chat/messages/{message}/citations/{index}.
func (s *Server) SelectCitation(w http.ResponseWriter, r *http.Request) {
	var message, index int
	if err := bindPathParam(r, "message", &message); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "message must be an integer")
		return
	}
	if err := bindPathParam(r, "index", &index); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "index must be an integer")
		return
	}

	sel, err := s.chat.SelectCitation(r.Context(), sessionID(r), message, index)
	if err != nil {
		s.handleDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) writeChatView(w http.ResponseWriter, r *http.Request, view conversationuc.View, err error) {
	if err != nil {
		var state any
		if view.Status != "" {
			state = view
		}
		s.handleDomainError(w, r, err, state)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
