package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// errorCode is the machine-readable error identifier in API responses.
type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeNotFound          errorCode = "not_found"
	codeAlreadyExists     errorCode = "already_exists"
	codeUnsupportedFormat errorCode = "unsupported_format"
	codeEmptyContent      errorCode = "empty_content"
	codeRateLimited       errorCode = "rate_limited"
	codeProviderError     errorCode = "provider_error"
	codeProviderAuth      errorCode = "provider_auth_failed"
	codeDimensionMismatch errorCode = "dimension_mismatch"
	codeNotRedrivable     errorCode = "not_redrivable"
	codeFileTerminal      errorCode = "file_terminal"
	codePayloadTooLarge   errorCode = "payload_too_large"
	codeUnauthorized      errorCode = "unauthorized"
	codeInternalError     errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrInvalidRequest,
		domain.ErrUnsupportedFormat,
		domain.ErrCorruptInput,
		domain.ErrEmptyContent,
		domain.ErrRateLimited,
		domain.ErrProviderUnavailable,
		domain.ErrProviderAuth,
		domain.ErrDimensionMismatch,
		domain.ErrFileTerminal,
		domain.ErrNotRedrivable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
