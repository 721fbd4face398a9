package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

const apiKeyHeader = "X-API-Key"

// requireInternalKey guards internal routes with the configured API key.
func (s *Server) requireInternalKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		given := r.Header.Get(apiKeyHeader)
		if s.apiKey == "" || subtle.ConstantTimeCompare([]byte(given), []byte(s.apiKey)) != 1 {
			s.respondError(w, r, core.ErrAuth("invalid or missing API key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
