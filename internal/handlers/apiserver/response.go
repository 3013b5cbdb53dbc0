package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chatgo/internal/policy"
)

// ErrorResponse is the generic JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONResponse writes data as a JSON response with the given status.
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already out; nothing to do but log.
			log.Printf("encoding JSON response: %v", err)
		}
	}
}

// writeJSONError sends a JSON error response.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}

// writePolicyError maps a domain error to its HTTP status and writes it. The
// mapping distinguishes bad requests, authorization failures, missing
// resources, and conflicts; anything unmapped is an internal error and its
// detail stays out of the response.
func writePolicyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, policy.ErrEmptyParticipants),
		errors.Is(err, policy.ErrTooManyParticipants),
		errors.Is(err, policy.ErrMissingName),
		errors.Is(err, policy.ErrNotAGroup),
		errors.Is(err, policy.ErrSelfConversation):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, policy.ErrBlocked),
		errors.Is(err, policy.ErrNotAParticipant):
		writeJSONError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, policy.ErrConversationNotFound),
		errors.Is(err, policy.ErrUserNotFound),
		errors.Is(err, policy.ErrParticipantNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, policy.ErrAlreadyMember),
		errors.Is(err, policy.ErrConcurrentModification):
		writeJSONError(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("internal error: %v", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
