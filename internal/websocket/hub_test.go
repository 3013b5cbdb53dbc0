package websocket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(userID uint, buffer int) *Client {
	return &Client{
		send:   make(chan []byte, buffer),
		UserID: userID,
	}
}

func drain(c *Client) []string {
	var got []string
	for {
		select {
		case payload := <-c.send:
			got = append(got, string(payload))
		default:
			return got
		}
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	hub := NewHub()
	a := newTestClient(1, 4)
	b := newTestClient(2, 4)
	other := newTestClient(3, 4)

	hub.Subscribe(10, a)
	hub.Subscribe(10, b)
	hub.Subscribe(11, other)

	hub.Publish(10, []byte("hello"))

	require.Equal(t, []string{"hello"}, drain(a))
	require.Equal(t, []string{"hello"}, drain(b))
	require.Empty(t, drain(other))
}

func TestSubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := newTestClient(1, 4)

	hub.Subscribe(10, c)
	hub.Subscribe(10, c)
	require.Equal(t, 1, hub.SubscriberCount(10))

	hub.Publish(10, []byte("once"))
	require.Equal(t, []string{"once"}, drain(c))
}

func TestUnsubscribeUnknownIsNoOp(t *testing.T) {
	hub := NewHub()
	c := newTestClient(1, 4)

	// Never subscribed, and the conversation has no subscriber set at all.
	// The registry is untouched; the handle is still released.
	hub.Unsubscribe(10, c)
	require.Equal(t, 0, hub.SubscriberCount(10))

	c = newTestClient(1, 4)
	hub.Subscribe(10, c)
	hub.Unsubscribe(10, c)
	hub.Unsubscribe(10, c) // duplicate disconnect signal
	require.Equal(t, 0, hub.SubscriberCount(10))

	_, open := <-c.send
	require.False(t, open)
}

func TestPublishDropsStaleSubscriber(t *testing.T) {
	hub := NewHub()
	stale := newTestClient(1, 1)
	healthy := newTestClient(2, 4)

	hub.Subscribe(10, stale)
	hub.Subscribe(10, healthy)

	// Fill the stale client's buffer; the next publish cannot enqueue and
	// must evict it without affecting the healthy subscriber.
	stale.send <- []byte("backlog")
	hub.Publish(10, []byte("drops"))

	require.Equal(t, 1, hub.SubscriberCount(10))
	require.Equal(t, []string{"drops"}, drain(healthy))

	// The stale client's channel was closed after eviction.
	_, open := <-stale.send
	require.True(t, open) // the backlogged payload is still readable
	_, open = <-stale.send
	require.False(t, open)
}

func TestPublishRacingDisconnectDoesNotPanic(t *testing.T) {
	hub := NewHub()

	clients := make([]*Client, 64)
	for i := range clients {
		// Buffer of one so publishes also exercise the stale-eviction path
		// while disconnects run.
		clients[i] = newTestClient(uint(i), 1)
		hub.Subscribe(10, clients[i])
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hub.Publish(10, []byte("payload"))
		}
	}()
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.Unsubscribe(10, c)
		}(c)
	}
	wg.Wait()

	require.Equal(t, 0, hub.SubscriberCount(10))
	for _, c := range clients {
		for {
			if _, open := <-c.send; !open {
				break
			}
		}
	}
}

func TestConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			convID := uint(i % 4)
			c := newTestClient(uint(i), 64)
			hub.Subscribe(convID, c)
			hub.Publish(convID, []byte(fmt.Sprintf("m%d", i)))
			hub.Unsubscribe(convID, c)
		}(i)
	}
	wg.Wait()

	for convID := uint(0); convID < 4; convID++ {
		require.Equal(t, 0, hub.SubscriberCount(convID))
	}
}
