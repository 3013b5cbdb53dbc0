package chatserver

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"chatgo/internal/auth"
	"chatgo/internal/config"
	"chatgo/internal/services"
	"chatgo/internal/websocket"

	"github.com/gorilla/mux"
)

// WebSocketHandler upgrades authenticated clients onto a conversation's
// delivery channel. Browsers cannot set headers on websocket requests, so
// the token travels as a query parameter.
type WebSocketHandler struct {
	Hub            *websocket.Hub
	ChatService    services.ChatService
	TokenBlacklist auth.TokenBlacklist
	Cfg            config.Config
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(hub *websocket.Hub, chatService services.ChatService, blacklist auth.TokenBlacklist, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		Hub:            hub,
		ChatService:    chatService,
		TokenBlacklist: blacklist,
		Cfg:            cfg,
	}
}

// ServeWS authenticates the request, verifies the caller belongs to the
// requested conversation, and hands the connection to the hub. Frames typed
// by the client are posted through the chat service, so the same membership
// and blocklist rules apply whether a message arrives over HTTP or over the
// socket.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), token, h.Cfg.Auth.JWTSecretKey, h.TokenBlacklist)
	if err != nil {
		log.Printf("websocket auth failed: %v", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	rawID := mux.Vars(r)["id"]
	conversationID64, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil || conversationID64 == 0 {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	conversationID := uint(conversationID64)

	member, err := h.ChatService.IsParticipant(r.Context(), claims.UserID, conversationID)
	if err != nil {
		log.Printf("membership check failed (user %d, conversation %d): %v", claims.UserID, conversationID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "not a participant of this conversation", http.StatusForbidden)
		return
	}

	inbound := func(ctx context.Context, senderID, convID uint, body string) error {
		_, err := h.ChatService.PostMessage(ctx, senderID, convID, body)
		return err
	}

	websocket.ServeConversationWS(h.Hub, inbound, claims.UserID, conversationID, w, r, h.Cfg.WebSocket)
}
