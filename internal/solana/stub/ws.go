package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
)

// WSClient implements solana.WSClient for testing.
type WSClient struct {
	mu     sync.Mutex
	subs   map[string]chan solana.AccountNotification
	closed bool
}

var _ solana.WSClient = (*WSClient)(nil)

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{
		subs: make(map[string]chan solana.AccountNotification),
	}
}

// SubscribeAccount registers a subscription for pubkey.
func (c *WSClient) SubscribeAccount(_ context.Context, pubkey string) (<-chan solana.AccountNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("client closed")
	}
	if _, ok := c.subs[pubkey]; ok {
		return nil, fmt.Errorf("already subscribed to %s", pubkey)
	}

	ch := make(chan solana.AccountNotification, 16)
	c.subs[pubkey] = ch
	return ch, nil
}

// UnsubscribeAccount removes the subscription for pubkey.
func (c *WSClient) UnsubscribeAccount(_ context.Context, pubkey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subs[pubkey]; !ok {
		return fmt.Errorf("not subscribed to %s", pubkey)
	}
	delete(c.subs, pubkey)
	return nil
}

// Close closes the stub client and all subscription channels.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for pk, ch := range c.subs {
		close(ch)
		delete(c.subs, pk)
	}
	return nil
}

// Notify delivers a notification to the subscriber for its pubkey.
// It reports whether a subscription existed.
func (c *WSClient) Notify(n solana.AccountNotification) bool {
	c.mu.Lock()
	ch, ok := c.subs[n.Pubkey]
	c.mu.Unlock()

	if !ok {
		return false
	}
	ch <- n
	return true
}

// Subscribed reports whether pubkey currently has a subscription.
func (c *WSClient) Subscribed(pubkey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[pubkey]
	return ok
}
