package stub

import (
	"context"
	"sync"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu       sync.Mutex
	accounts map[string]*solana.AccountInfo
	errs     map[string]error
	slot     uint64
	health   error
	calls    map[string]int

	// Gate, when set, makes GetAccountInfo block until the channel is
	// closed. Tests use it to hold several callers in flight at once.
	Gate chan struct{}
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		accounts: make(map[string]*solana.AccountInfo),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetAccount registers the account returned for pubkey.
func (c *RPCClient) SetAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[pubkey] = info
}

// SetError forces GetAccountInfo for pubkey to fail with err.
func (c *RPCClient) SetError(pubkey string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[pubkey] = err
}

// ClearError removes a forced error for pubkey.
func (c *RPCClient) ClearError(pubkey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.errs, pubkey)
}

// SetSlot sets the slot returned by GetSlot.
func (c *RPCClient) SetSlot(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = slot
}

// SetHealth sets the error returned by GetHealth.
func (c *RPCClient) SetHealth(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.health = err
}

// Calls reports how many times GetAccountInfo was invoked for pubkey.
func (c *RPCClient) Calls(pubkey string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[pubkey]
}

// GetAccountInfo returns the registered account, the forced error, or
// (nil, nil) when no account is registered for pubkey.
func (c *RPCClient) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	c.calls[pubkey]++
	gate := c.Gate
	err := c.errs[pubkey]
	info := c.accounts[pubkey]
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return info, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot, nil
}

// GetHealth returns the configured health error.
func (c *RPCClient) GetHealth(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}
