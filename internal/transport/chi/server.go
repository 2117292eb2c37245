// Package chi is the console HTTP API: a thin JSON shell over the retrieval
// aggregator and the conversation controller.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/repository/session"
	conversationuc "github.com/kailas-cloud/mmdex/internal/usecase/conversation"
	healthuc "github.com/kailas-cloud/mmdex/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/mmdex/internal/usecase/retrieval"
)

// maxBodyBytes bounds request bodies; a 5 MiB image is ~6.7 MiB as base64.
const maxBodyBytes = 8 << 20

// Server holds the console handlers.
type Server struct {
	search        *retrievaluc.Service
	chat          *conversationuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	modelID       string
	newID         func() string
	errorHandlers []errorHandler
}

// NewServer creates the console API server.
func NewServer(
	search *retrievaluc.Service,
	chat *conversationuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:        search,
		chat:          chat,
		health:        health,
		logger:        logger,
		newID:         session.NewID,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithDefaultModel sets the embedding model reported by the normalizer when
// the caller leaves model_id empty.
func (s *Server) WithDefaultModel(modelID string) *Server {
	s.modelID = modelID
	return s
}

// SessionResponse is returned when a console session is opened.
type SessionResponse struct {
	SessionID string              `json:"session_id"`
	Search    retrievaluc.View    `json:"search"`
	Chat      conversationuc.View `json:"chat"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.newID()

	searchView, err := s.search.Open(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err, nil)
		return
	}
	chatView, err := s.chat.Open(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err, nil)
		return
	}

	w.Header().Set("Location", "/sessions/"+id)
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: id, Search: searchView, Chat: chatView})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: report.Status, Checks: report.Checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
