// Package wire holds the DTOs that cross process boundaries: the payload
// published to Kafka after a message is persisted, and the frames exchanged
// with websocket clients.
package wire

import "time"

// MessagePayload is the fan-out payload for one persisted chat message.
// It is produced by the API server after the store commit and consumed by
// chat servers, which hand it to the hub keyed by ConversationID.
type MessagePayload struct {
	MessageID      uint      `json:"messageId"`
	ConversationID uint      `json:"conversationId"`
	SenderID       uint      `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sentAt"`
}

// ClientFrame is an inbound websocket frame: a message the connected client
// wants posted to the conversation its connection is subscribed to.
type ClientFrame struct {
	Body string `json:"body"`
}

// ErrorFrame is sent to a websocket client when its inbound frame is
// rejected, e.g. by a blocklist rule.
type ErrorFrame struct {
	Error string `json:"error"`
}
