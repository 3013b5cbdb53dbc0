package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"chatgo/internal/config"
	"chatgo/internal/wire"

	"github.com/gorilla/websocket"
)

// InboundHandler posts a message typed by a connected client to its
// conversation, running the full membership/blocklist policy. A non-nil
// error is reported back to that client only.
type InboundHandler func(ctx context.Context, senderID, conversationID uint, body string) error

// Client is a middleman between one websocket connection and the hub. Each
// connection is subscribed to exactly one conversation, mirroring the
// per-conversation channel the clients connect to.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound payloads.
	send chan []byte

	// Authenticated user and subscribed conversation for this connection.
	UserID         uint
	ConversationID uint

	handleInbound InboundHandler

	closeOnce sync.Once
}

// closeSend closes the outbound channel exactly once. Only the hub calls
// this, under its write lock, so closure never races a publish in flight.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump pumps inbound frames from the websocket connection into the
// inbound handler and tears the subscription down on disconnect.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		// Unsubscribe also closes the send channel, which stops writePump.
		c.hub.Unsubscribe(c.ConversationID, c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(time.Duration(wsCfg.PongWaitSeconds) * time.Second))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error (user %d): %v", c.UserID, err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame wire.ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("websocket: bad frame from user %d: %v", c.UserID, err)
			continue
		}
		if frame.Body == "" {
			continue
		}

		if err := c.handleInbound(context.Background(), c.UserID, c.ConversationID, frame.Body); err != nil {
			// Validation failures are surfaced to the offending client only;
			// they never disturb the other subscribers.
			errFrame, marshalErr := json.Marshal(wire.ErrorFrame{Error: err.Error()})
			if marshalErr == nil {
				select {
				case c.send <- errFrame:
				default:
				}
			}
		}
	}
}

// writePump pumps payloads from the hub to the websocket connection.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	newline := []byte("\n")
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(wsCfg.WriteWaitSeconds) * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// Drain whatever else is queued into the same frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(wsCfg.WriteWaitSeconds) * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeConversationWS upgrades the HTTP request to a websocket connection
// subscribed to one conversation. Membership must already have been checked
// by the caller; the hub itself does not verify it.
func ServeConversationWS(hub *Hub, handler InboundHandler, userID, conversationID uint, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ServeConversationWS - upgrade failed:", err)
		return
	}
	client := &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, 256),
		UserID:         userID,
		ConversationID: conversationID,
		handleInbound:  handler,
	}
	hub.Subscribe(conversationID, client)

	go client.writePump(wsCfg)
	go client.readPump(wsCfg)

	log.Printf("client connected: user %d, conversation %d", userID, conversationID)
}
