package apiserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"chatgo/internal/middleware"
	"chatgo/internal/models"
	"chatgo/internal/services"

	"github.com/gorilla/mux"
)

// ConversationHandler bundles the conversation and message HTTP handlers.
type ConversationHandler struct {
	ChatService services.ChatService
}

// NewConversationHandler creates a new ConversationHandler instance.
func NewConversationHandler(chatService services.ChatService) *ConversationHandler {
	return &ConversationHandler{ChatService: chatService}
}

// CreateConversationRequest is the conversation creation request body.
type CreateConversationRequest struct {
	IsGroup        bool   `json:"isGroup"`
	Name           string `json:"name,omitempty"`
	ParticipantIDs []uint `json:"participantIds"`
}

// AddParticipantsRequest names the users to append to a group conversation.
type AddParticipantsRequest struct {
	ParticipantIDs []uint `json:"participantIds"`
}

// PostMessageRequest is the message posting request body.
type PostMessageRequest struct {
	Body string `json:"body"`
}

// ConversationView is the per-viewer representation of a conversation: the
// name field is resolved for the requesting user, so a private conversation
// shows up under the other participant's username.
type ConversationView struct {
	ID           uint                   `json:"id"`
	IsGroup      bool                   `json:"isGroup"`
	Name         string                 `json:"name"`
	CreatorID    uint                   `json:"creatorId"`
	Participants []models.UserBasicInfo `json:"participants"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// conversationView renders a conversation for the given viewer.
func (h *ConversationHandler) conversationView(r *http.Request, viewerID uint, conversation *models.Conversation) ConversationView {
	name, err := h.ChatService.DisplayName(r.Context(), viewerID, conversation)
	if err != nil {
		// One unresolvable name should not fail a whole listing; fall back
		// to whatever is stored.
		log.Printf("resolving display name for conversation %d: %v", conversation.ID, err)
		name = conversation.Name
	}

	participants := make([]models.UserBasicInfo, 0, len(conversation.Participants))
	for _, p := range conversation.Participants {
		participants = append(participants, models.UserBasicInfo{
			ID:       p.UserID,
			Username: p.User.Username,
			Nickname: p.User.Nickname,
		})
	}

	return ConversationView{
		ID:           conversation.ID,
		IsGroup:      conversation.IsGroup,
		Name:         name,
		CreatorID:    conversation.CreatorID,
		Participants: participants,
		CreatedAt:    conversation.CreatedAt,
	}
}

// CreateConversation starts a new private or group conversation.
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	conversation, err := h.ChatService.CreateConversation(r.Context(), userID, req.IsGroup, req.Name, req.ParticipantIDs)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, h.conversationView(r, userID, conversation))
}

// ListConversations returns the caller's conversations, most recently
// active first; conversations without any message come last.
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conversations, err := h.ChatService.ListConversations(r.Context(), userID)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	views := make([]ConversationView, 0, len(conversations))
	for _, c := range conversations {
		views = append(views, h.conversationView(r, userID, c))
	}
	writeJSONResponse(w, http.StatusOK, views)
}

// PostMessage appends a message to the conversation. The message is
// persisted first; delivery to connected participants follows asynchronously.
func (h *ConversationHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conversationID, ok := conversationIDFromRequest(w, r)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Body == "" {
		writeJSONError(w, "message body is required", http.StatusBadRequest)
		return
	}

	message, err := h.ChatService.PostMessage(r.Context(), userID, conversationID, req.Body)
	if err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, message)
}

// GetMessages returns a page of the conversation's history, oldest first.
func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conversationID, ok := conversationIDFromRequest(w, r)
	if !ok {
		return
	}

	limit := intQueryParam(r, "limit", 50)
	offset := intQueryParam(r, "offset", 0)

	messages, err := h.ChatService.GetMessages(r.Context(), userID, conversationID, limit, offset)
	if err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

// AddParticipants appends new members to a group conversation.
func (h *ConversationHandler) AddParticipants(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conversationID, ok := conversationIDFromRequest(w, r)
	if !ok {
		return
	}

	var req AddParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	conversation, err := h.ChatService.AddParticipants(r.Context(), userID, conversationID, req.ParticipantIDs)
	if err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.conversationView(r, userID, conversation))
}

// AddFavorite marks the conversation as a favorite of the caller.
func (h *ConversationHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, true)
}

// RemoveFavorite unmarks the conversation as a favorite of the caller.
func (h *ConversationHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, false)
}

func (h *ConversationHandler) setFavorite(w http.ResponseWriter, r *http.Request, favorite bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conversationID, ok := conversationIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.ChatService.SetFavorite(r.Context(), userID, conversationID, favorite); err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusNoContent, nil)
}

// ListFavorites returns the conversations the caller has favorited.
func (h *ConversationHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conversations, err := h.ChatService.ListFavorites(r.Context(), userID)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	views := make([]ConversationView, 0, len(conversations))
	for _, c := range conversations {
		views = append(views, h.conversationView(r, userID, c))
	}
	writeJSONResponse(w, http.StatusOK, views)
}

// conversationIDFromRequest parses the {id} path variable, writing the error
// response itself when the value is missing or malformed.
func conversationIDFromRequest(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeJSONError(w, "invalid conversation id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

// intQueryParam reads an integer query parameter, falling back to def when
// absent or malformed.
func intQueryParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return def
	}
	return value
}
