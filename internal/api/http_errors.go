package api

import (
	"errors"
	"net/http"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

var errMalformedBody = errors.New("malformed request body")

type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatConflict:
		return http.StatusConflict, true
	case core.ErrCatAuth:
		return http.StatusUnauthorized, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondError maps err to a status and a JSON body. Internal failures are
// logged and answered with a generic message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errMalformedBody) {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body", Code: core.CodeInvalidPayload})
		return
	}

	status, ok := httpStatusForDomainError(err)
	if !ok || status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	var domErr *core.DomainError
	errors.As(err, &domErr)
	s.respondJSON(w, status, errorResponse{
		Error:   domErr.Message,
		Code:    domErr.Code,
		Details: domErr.Details,
	})
}
