package apiserver

import (
	"encoding/json"
	"net/http"

	"chatgo/internal/middleware"
	"chatgo/internal/services"

	"github.com/gorilla/mux"
)

// UserHandler bundles the user directory HTTP handlers.
type UserHandler struct {
	UserService services.UserService
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{UserService: userService}
}

// GetMe returns the authenticated user's profile.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	user, err := h.UserService.GetUserProfile(r.Context(), userID)
	if err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// SearchUsers finds users by username or nickname; the caller is excluded
// from the results.
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, "query parameter q is required", http.StatusBadRequest)
		return
	}

	users, err := h.UserService.SearchUsers(r.Context(), query, userID)
	if err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// BlockRequest names the user to add to the caller's blocklist.
type BlockRequest struct {
	Username string `json:"username"`
}

// BlockUser adds a user to the caller's blocklist. Blocking is directed:
// it only affects what the blocked user can do toward the caller.
func (h *UserHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Username == "" {
		writeJSONError(w, "username is required", http.StatusBadRequest)
		return
	}

	if err := h.UserService.BlockUser(r.Context(), userID, req.Username); err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusNoContent, nil)
}

// UnblockUser removes a user from the caller's blocklist.
func (h *UserHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	username := mux.Vars(r)["username"]
	if username == "" {
		writeJSONError(w, "username is required", http.StatusBadRequest)
		return
	}

	if err := h.UserService.UnblockUser(r.Context(), userID, username); err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusNoContent, nil)
}

// ListBlocked returns the caller's blocklist.
func (h *UserHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	blocked, err := h.UserService.ListBlockedUsers(r.Context(), userID)
	if err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, blocked)
}
