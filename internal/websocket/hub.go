package websocket

import (
	"log"
	"sync"
)

// Hub is the process-wide delivery registry: it maps a conversation ID to
// the set of live subscriber connections and fans published payloads out to
// them. Subscriptions are ephemeral; nothing is persisted or replayed, and
// the hub does not check that a subscriber is a participant; the gateway
// enforces that at connection time.
//
// The hub owns the lifetime of every subscriber's send channel: sends happen
// under the read lock and the channel is closed only under the write lock in
// Unsubscribe, so a publish can never hit a channel a disconnect just closed.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint]map[*Client]struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uint]map[*Client]struct{}),
	}
}

// Subscribe registers the client for a conversation's messages. Subscribing
// the same client twice is a no-op.
func (h *Hub) Subscribe(conversationID uint, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscribers[conversationID]
	if !ok {
		set = make(map[*Client]struct{})
		h.subscribers[conversationID] = set
	}
	set[client] = struct{}{}
}

// Unsubscribe removes the client from a conversation's subscriber set and
// closes its send channel. Closing under the write lock is what keeps
// Publish, which sends under the read lock, off a closed channel. Duplicate
// disconnect signals and unknown clients are harmless.
func (h *Hub) Unsubscribe(conversationID uint, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subscribers[conversationID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.subscribers, conversationID)
		}
	}
	client.closeSend()
}

// Publish sends the payload to every client currently subscribed to the
// conversation. Delivery is fire-and-forget: a client whose send buffer is
// full is assumed slow or gone, gets dropped from the registry and closed,
// and never fails the publish for the others. The sends run while the read
// lock is held, so a concurrent disconnect cannot close a channel out from
// under them.
func (h *Hub) Publish(conversationID uint, payload []byte) {
	var stale []*Client
	h.mu.RLock()
	for client := range h.subscribers[conversationID] {
		select {
		case client.send <- payload:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		log.Printf("hub: send buffer full for user %d on conversation %d, dropping subscriber", client.UserID, conversationID)
		h.Unsubscribe(conversationID, client)
	}
}

// SubscriberCount reports how many clients are subscribed to a conversation.
func (h *Hub) SubscriberCount(conversationID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[conversationID])
}
