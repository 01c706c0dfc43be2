package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"boqledger/internal/billing"
	"boqledger/internal/invoice"
	"boqledger/internal/logger"
	"boqledger/internal/store"
)

// Response is the standard JSON envelope for all API responses.
type Response struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	writeResponse(w, status, Response{Data: data})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeResponse(w, status, Response{Error: msg})
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps service errors onto status codes. Validation
// failures carry every violation in the data field.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var failure *invoice.ValidationFailure
	switch {
	case errors.As(err, &failure):
		writeResponse(w, http.StatusUnprocessableEntity, Response{
			Data:  map[string]any{"violations": failure.Details()},
			Error: "invoice validation failed",
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrProjectExists), errors.Is(err, store.ErrRAConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrLockBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, billing.ErrInvalidRequest), errors.Is(err, invoice.ErrInvalidOptions):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// BasicAuth enforces HTTP Basic Authentication when credentials are configured.
func BasicAuth(user, pass string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if user == "" && pass == "" {
			log := logger.WithComponent("httpapi")
			log.Warn().Msg("AUTH_USER and AUTH_PASS not set, API is unauthenticated")
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="boqledger"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
