package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"courtmatch/internal/middleware"
	"courtmatch/internal/services"
)

// requestTimeout bounds every store round trip made on behalf of a request.
const requestTimeout = 10 * time.Second

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondWithCode(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message, Code: code})
}

var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrSelfConfirmation, http.StatusForbidden, "self_confirmation"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{services.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{services.ErrInvalidScore, http.StatusUnprocessableEntity, "invalid_score"},
	{services.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
	{services.ErrPastBooking, http.StatusUnprocessableEntity, "past_booking"},
	{services.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

// respondWithServiceError maps a service error kind onto an HTTP status.
// Unknown errors are logged and reported as 500 without detail.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			respondWithCode(w, k.status, k.code, err.Error())
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		respondWithCode(w, http.StatusServiceUnavailable, "timeout", "Request timed out")
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	respondWithCode(w, http.StatusInternalServerError, "internal", "Internal server error")
}

// requireActor returns the authenticated actor or writes 401.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithCode(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return "", false
	}
	return actor, true
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondWithCode(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return false
	}
	return true
}
