package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

// ErrorCode is the machine-readable error class in API responses.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeSessionNotFound  ErrorCode = "session_not_found"
	CodeNotFound         ErrorCode = "not_found"
	CodeEmptyMessage     ErrorCode = "empty_message"
	CodeNothingSelected  ErrorCode = "nothing_selected"
	CodeReplyPending     ErrorCode = "reply_pending"
	CodeStaleResponse    ErrorCode = "stale_response"
	CodeRateLimited      ErrorCode = "rate_limited"
	CodeBackendError     ErrorCode = "backend_error"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx answer. State carries the
// session view after a failed action when one is available.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Alert   string    `json:"alert,omitempty"`
	State   any       `json:"state,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, state any) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		backendErrorHandler,
		sentinelHandler(domain.ErrStaleResponse, http.StatusConflict, CodeStaleResponse),
		sentinelHandler(domain.ErrReplyPending, http.StatusConflict, CodeReplyPending),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrEmptyMessage, http.StatusBadRequest, CodeEmptyMessage),
		sentinelHandler(domain.ErrNothingSelected, http.StatusBadRequest, CodeNothingSelected),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidModality, http.StatusBadRequest, CodeValidationFailed),
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, state any) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeJSON(w, status, ErrorResponse{Code: code, Message: sentinel.Error(), State: state})
		return true
	}
}

// backendErrorHandler surfaces the backend's own message as the alert.
func backendErrorHandler(w http.ResponseWriter, err error, state any) bool {
	if !errors.Is(err, domain.ErrBackend) {
		return false
	}
	alert := domain.AlertMessage(err)
	writeJSON(w, http.StatusBadGateway, ErrorResponse{
		Code:    CodeBackendError,
		Message: alert,
		Alert:   alert,
		State:   state,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error, state any) {
	log := requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err, state) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
